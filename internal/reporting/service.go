package reporting

import (
	"context"
	"errors"
	"time"

	"engagement-platform/internal/audit"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// EventSource abstracts the audit trail for reporting.
//
// IMPORTANT:
// - Implementations must enforce client filtering.
// - The audit trail is append-only, so aggregations are stable for a closed
//   date range and safe to cache downstream.
type EventSource interface {
	ListRange(ctx context.Context, clientID string, from, to time.Time) ([]audit.Event, error)
}

type Service struct {
	events EventSource
}

func NewService(events EventSource) *Service { return &Service{events: events} }

// ComplianceReport aggregates send decisions and opt-outs over [from, to).
// It is read-only over the audit trail and performs no orchestration.
func (s *Service) ComplianceReport(ctx context.Context, req ComplianceReportRequest) (ComplianceReport, error) {
	if req.ClientID == "" {
		return ComplianceReport{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return ComplianceReport{}, ErrInvalidRequest
	}
	if s.events == nil {
		return ComplianceReport{}, errors.New("reporting: event source not configured")
	}

	rows, err := s.events.ListRange(ctx, req.ClientID, req.Range.From, req.Range.To)
	if err != nil {
		return ComplianceReport{}, err
	}

	out := ComplianceReport{
		ClientID:        req.ClientID,
		Range:           req.Range,
		Category:        req.Category,
		BlockedByReason: map[string]int{},
		ByCategory:      map[string]CategoryCounts{},
	}

	for _, e := range rows {
		switch e.Type {
		case audit.EventTypeOptOut:
			out.OptOuts++
		case audit.EventTypeSendDecision:
			if req.Category != "" && e.Category != req.Category {
				continue
			}
			out.TotalDecisions++
			cc := out.ByCategory[e.Category]
			switch e.Outcome {
			case "allowed":
				out.Allowed++
				cc.Allowed++
			case "blocked":
				out.Blocked++
				cc.Blocked++
				out.BlockedByReason[e.Reason]++
			case "deferred":
				out.Deferred++
				cc.Deferred++
			}
			out.ByCategory[e.Category] = cc
		}
	}

	return out, nil
}
