package template

import "testing"

func TestRender_SubstitutesVars(t *testing.T) {
	got := Render("Hi {{name}}, your estimate from {{company}} is ready.", map[string]string{
		"name":    "Dana",
		"company": "Acme Plumbing",
	})
	want := "Hi Dana, your estimate from Acme Plumbing is ready."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRender_TrimsPlaceholderWhitespace(t *testing.T) {
	got := Render("Hi {{ name }}.", map[string]string{"name": "Dana"})
	if got != "Hi Dana." {
		t.Fatalf("got %q", got)
	}
}

func TestRender_UnknownVarRendersEmpty(t *testing.T) {
	got := Render("Hi {{name}}{{missing}}!", map[string]string{"name": "Dana"})
	if got != "Hi Dana!" {
		t.Fatalf("got %q", got)
	}
}

func TestRender_NilVars(t *testing.T) {
	if got := Render("Hi {{name}}!", nil); got != "Hi !" {
		t.Fatalf("got %q", got)
	}
}

func TestRender_UnterminatedPlaceholderLeftAsIs(t *testing.T) {
	in := "Hi {{name"
	if got := Render(in, map[string]string{"name": "Dana"}); got != in {
		t.Fatalf("got %q", got)
	}
}
