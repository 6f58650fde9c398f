package telephony

import (
	"net/http"
	"strings"
)

// Webhook form parsing for the three Twilio callbacks this service consumes.
// Twilio sends application/x-www-form-urlencoded by default.
//
// Keep these provider-adapter-only. Business logic (status transitions,
// opt-out handling) is not made here.

// LegStatusForm is one per-leg status callback for a ring-group dial.
// attempt_id and member_id ride on the callback URL query string.
type LegStatusForm struct {
	AttemptID string
	MemberID  string

	CallSID    string
	CallStatus string
	To         string
	From       string
}

// Answered reports whether this callback says the leg was picked up.
func (f LegStatusForm) Answered() bool {
	return f.CallStatus == "answered" || f.CallStatus == "in-progress"
}

func ParseLegStatus(r *http.Request) (LegStatusForm, error) {
	if err := r.ParseForm(); err != nil {
		return LegStatusForm{}, err
	}
	return LegStatusForm{
		AttemptID:  r.URL.Query().Get("attempt_id"),
		MemberID:   r.URL.Query().Get("member_id"),
		CallSID:    r.PostFormValue("CallSid"),
		CallStatus: r.PostFormValue("CallStatus"),
		To:         strings.TrimSpace(r.PostFormValue("To")),
		From:       strings.TrimSpace(r.PostFormValue("From")),
	}, nil
}

// DialCompleteForm is the aggregate callback fired once when the whole dial
// ends, carrying the overall outcome.
type DialCompleteForm struct {
	AttemptID string

	CallSID        string
	DialCallStatus string
}

// NoAnswer reports whether the dial ended without any leg answering.
func (f DialCompleteForm) NoAnswer() bool {
	switch f.DialCallStatus {
	case "no-answer", "busy", "failed", "canceled":
		return true
	default:
		return false
	}
}

func ParseDialComplete(r *http.Request) (DialCompleteForm, error) {
	if err := r.ParseForm(); err != nil {
		return DialCompleteForm{}, err
	}
	return DialCompleteForm{
		AttemptID:      r.URL.Query().Get("attempt_id"),
		CallSID:        r.PostFormValue("CallSid"),
		DialCallStatus: r.PostFormValue("DialCallStatus"),
	}, nil
}

// InboundSMSForm is an inbound message webhook.
type InboundSMSForm struct {
	MessageSID string
	From       string
	To         string
	Body       string
}

func ParseInboundSMS(r *http.Request) (InboundSMSForm, error) {
	if err := r.ParseForm(); err != nil {
		return InboundSMSForm{}, err
	}
	return InboundSMSForm{
		MessageSID: r.PostFormValue("MessageSid"),
		From:       strings.TrimSpace(r.PostFormValue("From")),
		To:         strings.TrimSpace(r.PostFormValue("To")),
		Body:       r.PostFormValue("Body"),
	}, nil
}

// IsOptOut detects carrier-standard STOP keywords.
func (f InboundSMSForm) IsOptOut() bool {
	switch strings.ToUpper(strings.TrimSpace(f.Body)) {
	case "STOP", "STOPALL", "UNSUBSCRIBE", "CANCEL", "END", "QUIT":
		return true
	default:
		return false
	}
}
