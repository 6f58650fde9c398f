package telephony

import (
	"context"
	"errors"
	"time"
)

// MessageTransport sends SMS/MMS. Implementations live in provider adapters;
// business logic must never call a provider SDK or REST API directly.
//
// Failures are classified transient vs permanent via SendError so callers can
// decide between bounded retry and terminal failure.
type MessageTransport interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}

// VoiceTransport places outbound ring-group dials. The provider is responsible
// for hanging up losing legs; per-leg outcomes arrive as webhook callbacks.
type VoiceTransport interface {
	DialMany(ctx context.Context, req DialRequest) (DialResult, error)
}

type SendRequest struct {
	ClientID string `json:"client_id"`

	// To and From are E.164.
	To   string `json:"to"`
	From string `json:"from"`

	Body      string   `json:"body"`
	MediaURLs []string `json:"media_urls,omitempty"`
}

type SendResult struct {
	// SID is the provider's message identifier.
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// DialLeg is one team member's phone leg in a ring-group dial.
type DialLeg struct {
	MemberID string `json:"member_id"`
	Phone    string `json:"phone"`
}

type DialRequest struct {
	ClientID  string `json:"client_id"`
	AttemptID string `json:"attempt_id"`

	// CallerID is the number presented to the dialed members.
	CallerID string `json:"caller_id"`

	Legs []DialLeg `json:"legs"`

	// RingTimeout bounds how long each leg rings; it is part of the dial
	// instruction, never polled afterwards.
	RingTimeout time.Duration `json:"ring_timeout"`

	// StatusCallbackURL receives per-leg and dial-complete callbacks. The
	// adapter appends attempt_id and member_id query parameters per leg.
	StatusCallbackURL string `json:"status_callback_url"`
}

type DialResult struct {
	// LegSIDs maps member id to the provider call SID for that leg.
	LegSIDs map[string]string `json:"leg_sids"`
}

// SendError is a classified transport failure.
type SendError struct {
	// Code is the provider error code, when one was returned.
	Code int

	// Permanent failures (invalid number, blocked destination) must not be
	// retried; transient ones may be retried with bounded attempts.
	Permanent bool

	Msg string
}

func (e *SendError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "telephony: send failed"
}

// IsPermanent reports whether err is a non-retryable transport failure.
func IsPermanent(err error) bool {
	var se *SendError
	if errors.As(err, &se) {
		return se.Permanent
	}
	return false
}
