package telephony

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestParseLegStatus(t *testing.T) {
	form := url.Values{
		"CallSid":    {"CA123"},
		"CallStatus": {"in-progress"},
		"To":         {" +14165550001 "},
		"From":       {"+14165550000"},
	}
	r := httptest.NewRequest("POST", "/webhooks/twilio/voice/leg?attempt_id=att-1&member_id=mB", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	got, err := ParseLegStatus(r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.AttemptID != "att-1" || got.MemberID != "mB" {
		t.Fatalf("query params not picked up: %+v", got)
	}
	if got.CallSID != "CA123" || got.To != "+14165550001" {
		t.Fatalf("form fields not parsed: %+v", got)
	}
	if !got.Answered() {
		t.Fatalf("in-progress must count as answered")
	}

	r = httptest.NewRequest("POST", "/webhooks/twilio/voice/leg?attempt_id=att-1&member_id=mB",
		strings.NewReader(url.Values{"CallStatus": {"no-answer"}}.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	got, err = ParseLegStatus(r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Answered() {
		t.Fatalf("no-answer must not count as answered")
	}
}

func TestParseDialComplete(t *testing.T) {
	cases := []struct {
		status   string
		noAnswer bool
	}{
		{"no-answer", true},
		{"busy", true},
		{"failed", true},
		{"canceled", true},
		{"completed", false},
		{"answered", false},
	}
	for _, tc := range cases {
		r := httptest.NewRequest("POST", "/webhooks/twilio/voice/complete?attempt_id=att-1",
			strings.NewReader(url.Values{"DialCallStatus": {tc.status}}.Encode()))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		got, err := ParseDialComplete(r)
		if err != nil {
			t.Fatalf("parse %s: %v", tc.status, err)
		}
		if got.AttemptID != "att-1" {
			t.Fatalf("attempt id missing for %s", tc.status)
		}
		if got.NoAnswer() != tc.noAnswer {
			t.Fatalf("%s: NoAnswer=%v, want %v", tc.status, got.NoAnswer(), tc.noAnswer)
		}
	}
}

func TestParseInboundSMS(t *testing.T) {
	form := url.Values{
		"MessageSid": {"SM123"},
		"From":       {"+14165551234"},
		"To":         {"+14165550000"},
		"Body":       {"  Stop "},
	}
	r := httptest.NewRequest("POST", "/webhooks/twilio/sms", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	got, err := ParseInboundSMS(r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.MessageSID != "SM123" || got.From != "+14165551234" || got.To != "+14165550000" {
		t.Fatalf("form fields not parsed: %+v", got)
	}
	if !got.IsOptOut() {
		t.Fatalf("STOP keyword with padding and casing must opt out")
	}

	got.Body = "stop texting me so much"
	if got.IsOptOut() {
		t.Fatalf("embedded stop must not opt out; carriers match the whole body")
	}
}
