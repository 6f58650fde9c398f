package telephony

import (
	"strings"
	"testing"
	"time"
)

func TestRenderRingGroup(t *testing.T) {
	out, err := RenderRingGroup(RingGroupParams{
		AttemptID: "att-1",
		MemberPhones: map[string]string{
			"mA": "+14165550001",
			"mB": "+14165550002",
		},
		RingTimeout:     25 * time.Second,
		LegCallbackURL:  "https://api.example.com/webhooks/twilio/voice/leg",
		DialCompleteURL: "https://api.example.com/webhooks/twilio/voice/complete",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	for _, want := range []string{
		`<Dial timeout="25"`,
		`action="https://api.example.com/webhooks/twilio/voice/complete?attempt_id=att-1"`,
		`statusCallbackEvent="answered completed"`,
		">+14165550001</Number>",
		">+14165550002</Number>",
		"member_id=mA",
		"member_id=mB",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRenderRingGroupValidation(t *testing.T) {
	if _, err := RenderRingGroup(RingGroupParams{MemberPhones: map[string]string{"m": "+1"}}); err == nil {
		t.Fatalf("missing attempt id must fail")
	}
	if _, err := RenderRingGroup(RingGroupParams{AttemptID: "att-1"}); err == nil {
		t.Fatalf("empty dial plan must fail")
	}
}

func TestRenderVoicemailOffer(t *testing.T) {
	out, err := RenderVoicemailOffer("Maple Roofing")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "<Say>") || !strings.Contains(out, "Maple Roofing") {
		t.Fatalf("missing spoken apology:\n%s", out)
	}
	if !strings.Contains(out, "<Hangup>") {
		t.Fatalf("voicemail offer must end the call:\n%s", out)
	}
}

func TestRenderEmpty(t *testing.T) {
	out, err := RenderEmpty()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "<Response>") {
		t.Fatalf("unexpected ack:\n%s", out)
	}
	if strings.Contains(out, "<Dial") || strings.Contains(out, "<Say") {
		t.Fatalf("empty ack must carry no verbs:\n%s", out)
	}
}
