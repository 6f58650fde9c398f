package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"time"
)

// Minimal TwiML builder for the verbs this service emits. It intentionally
// avoids any provider SDK dependency.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlDial struct {
	XMLName xml.Name      `xml:"Dial"`
	Timeout int           `xml:"timeout,attr,omitempty"`
	Action  string        `xml:"action,attr,omitempty"`
	Numbers []twimlNumber `xml:"Number"`
}

type twimlNumber struct {
	StatusCallback      string `xml:"statusCallback,attr,omitempty"`
	StatusCallbackEvent string `xml:"statusCallbackEvent,attr,omitempty"`
	Value               string `xml:",chardata"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// RingGroupParams drives the simultaneous-dial TwiML for a shared inbound leg.
type RingGroupParams struct {
	AttemptID string

	// MemberPhones maps member id to phone; every number rings at once and the
	// first to answer wins the call.
	MemberPhones map[string]string

	RingTimeout time.Duration

	// LegCallbackURL receives per-leg statusCallback posts.
	LegCallbackURL string

	// DialCompleteURL is the Dial action URL; it fires once with the overall
	// outcome (DialCallStatus) after the dial ends.
	DialCompleteURL string
}

// RenderRingGroup produces TwiML dialing every eligible member concurrently.
func RenderRingGroup(p RingGroupParams) (string, error) {
	if p.AttemptID == "" {
		return "", errors.New("telephony: attempt_id required")
	}
	if len(p.MemberPhones) == 0 {
		return "", errors.New("telephony: at least one member phone required")
	}

	d := twimlDial{
		Timeout: int(p.RingTimeout.Seconds()),
		Action:  legCallbackURL(p.DialCompleteURL, p.AttemptID, ""),
	}
	for memberID, phone := range p.MemberPhones {
		d.Numbers = append(d.Numbers, twimlNumber{
			StatusCallback:      legCallbackURL(p.LegCallbackURL, p.AttemptID, memberID),
			StatusCallbackEvent: "answered completed",
			Value:               phone,
		})
	}

	return renderTwiML(twimlResponse{Verbs: []any{d}})
}

// RenderVoicemailOffer produces the no-answer fallback turn: a short spoken
// apology so the caller never hears dead air before hangup.
func RenderVoicemailOffer(companyName string) (string, error) {
	text := "Sorry, the team at " + companyName + " is not available right now. We just sent you a text so you can pick a time that works."
	return renderTwiML(twimlResponse{Verbs: []any{twimlSay{Text: text}, twimlHangup{}}})
}

// RenderEmpty acknowledges a webhook with no further call instruction.
func RenderEmpty() (string, error) {
	return renderTwiML(twimlResponse{})
}

func renderTwiML(r twimlResponse) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
