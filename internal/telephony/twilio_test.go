package telephony

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestTwilioSend(t *testing.T) {
	var gotPath, gotTo, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotPath = r.URL.Path
		gotTo = r.PostFormValue("To")
		gotBody = r.PostFormValue("Body")
		if user, pass, ok := r.BasicAuth(); !ok || user != "AC123" || pass != "token" {
			t.Errorf("missing basic auth, got %s/%s", user, pass)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sid":"SM900","status":"queued"}`))
	}))
	defer srv.Close()

	tr := NewTwilioTransport("AC123", "token", srv.URL)
	res, err := tr.Send(context.Background(), SendRequest{
		ClientID: "client-1",
		To:       "+14165551234",
		From:     "+14165550000",
		Body:     "Hi Jamie",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.SID != "SM900" || res.Status != "queued" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if gotPath != "/2010-04-01/Accounts/AC123/Messages.json" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotTo != "+14165551234" || gotBody != "Hi Jamie" {
		t.Fatalf("form not posted: to=%q body=%q", gotTo, gotBody)
	}
}

func TestTwilioSendErrorClassification(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		permanent bool
		code      int
	}{
		{"invalid number", 400, `{"code":21211,"message":"invalid 'To' number"}`, true, 21211},
		{"carrier stop", 400, `{"code":21610,"message":"unsubscribed recipient"}`, true, 21610},
		{"rate limited", 429, `{"code":20429,"message":"too many requests"}`, false, 20429},
		{"server error", 500, `{}`, false, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			tr := NewTwilioTransport("AC123", "token", srv.URL)
			_, err := tr.Send(context.Background(), SendRequest{To: "+1", From: "+2", Body: "x"})
			if err == nil {
				t.Fatalf("expected error")
			}
			if IsPermanent(err) != tc.permanent {
				t.Fatalf("IsPermanent=%v, want %v (%v)", IsPermanent(err), tc.permanent, err)
			}
			var se *SendError
			if !errors.As(err, &se) || se.Code != tc.code {
				t.Fatalf("expected code %d, got %+v", tc.code, err)
			}
		})
	}
}

func TestTwilioSendValidation(t *testing.T) {
	tr := NewTwilioTransport("AC123", "token", "http://unreachable.invalid")
	_, err := tr.Send(context.Background(), SendRequest{To: "+1"})
	if !IsPermanent(err) {
		t.Fatalf("missing fields must fail permanently, got %v", err)
	}
}

func TestTwilioDialMany(t *testing.T) {
	var calls []map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		calls = append(calls, map[string]string{
			"To":       r.PostFormValue("To"),
			"From":     r.PostFormValue("From"),
			"Url":      r.PostFormValue("Url"),
			"Timeout":  r.PostFormValue("Timeout"),
			"resource": r.URL.Path,
		})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sid":"CA` + r.PostFormValue("To") + `"}`))
	}))
	defer srv.Close()

	tr := NewTwilioTransport("AC123", "token", srv.URL)
	res, err := tr.DialMany(context.Background(), DialRequest{
		ClientID:  "client-1",
		AttemptID: "att-1",
		CallerID:  "+14165550000",
		Legs: []DialLeg{
			{MemberID: "mA", Phone: "+14165550001"},
			{MemberID: "mB", Phone: "+14165550002"},
		},
		RingTimeout:       25 * time.Second,
		StatusCallbackURL: "https://api.example.com/webhooks/twilio/voice/leg",
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if len(res.LegSIDs) != 2 || res.LegSIDs["mA"] == "" || res.LegSIDs["mB"] == "" {
		t.Fatalf("expected a sid per leg: %+v", res.LegSIDs)
	}
	if len(calls) != 2 {
		t.Fatalf("expected 2 REST dials, got %d", len(calls))
	}
	for _, c := range calls {
		if c["resource"] != "/2010-04-01/Accounts/AC123/Calls.json" {
			t.Fatalf("unexpected resource %s", c["resource"])
		}
		if c["From"] != "+14165550000" || c["Timeout"] != "25" {
			t.Fatalf("dial leg misconfigured: %+v", c)
		}
		if !strings.Contains(c["Url"], "attempt_id=att-1") || !strings.Contains(c["Url"], "member_id=m") {
			t.Fatalf("callback url missing identifiers: %s", c["Url"])
		}
	}
}

func TestLegCallbackURLAppendsToExistingQuery(t *testing.T) {
	got := legCallbackURL("https://x.test/cb?env=prod", "att-1", "mA")
	if !strings.HasPrefix(got, "https://x.test/cb?env=prod&") {
		t.Fatalf("existing query clobbered: %s", got)
	}
	if !strings.Contains(got, "attempt_id=att-1") || !strings.Contains(got, "member_id=mA") {
		t.Fatalf("identifiers missing: %s", got)
	}
}
