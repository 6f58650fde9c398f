package sequence

import "time"

// Step describes one sequence step before rendering: a body template plus a
// send-time rule evaluated in the client's local calendar. Offsets never use
// raw UTC arithmetic, so steps cannot drift into closed hours across DST.
type Step struct {
	// Body is a template with {{var}} placeholders.
	Body string

	// DayOffset is whole days relative to the anchor date, client-local.
	// Negative offsets schedule before the anchor (appointment reminders).
	DayOffset int

	// SendHour is the local clock hour to send at; -1 keeps the anchor's own
	// clock time.
	SendHour int

	// HourOffset shifts the computed time by whole hours, applied last.
	HourOffset int
}

// At computes the step's send time for an anchor in loc.
func (s Step) At(anchor time.Time, loc *time.Location) time.Time {
	a := anchor.In(loc)

	hour, minute := a.Hour(), a.Minute()
	if s.SendHour >= 0 {
		hour, minute = s.SendHour, 0
	}

	// time.Date normalizes the day offset within the location, keeping the
	// local clock hour stable across DST transitions.
	t := time.Date(a.Year(), a.Month(), a.Day()+s.DayOffset, hour, minute, 0, 0, loc)
	if s.HourOffset != 0 {
		t = t.Add(time.Duration(s.HourOffset) * time.Hour)
	}
	return t
}

// DefaultSteps is the constant per-type step table, overridable per call to
// Start. Bodies reference lead/client variables filled at start time.
func DefaultSteps(t SequenceType) []Step {
	switch t {
	case TypeEstimateFollowup:
		return []Step{
			{Body: "Hi {{name}}, just checking in on the estimate from {{company}}. Any questions I can answer?", DayOffset: 2, SendHour: 10},
			{Body: "Hi {{name}}, wanted to make sure the estimate from {{company}} reached you. Happy to adjust anything.", DayOffset: 5, SendHour: 10},
			{Body: "Hi {{name}}, we still have room on the schedule if you'd like to move forward with {{company}}.", DayOffset: 10, SendHour: 10},
			{Body: "Hi {{name}}, last note from {{company}} about your estimate. Reply anytime if you'd like to pick it back up.", DayOffset: 14, SendHour: 10},
		}
	case TypeAppointmentReminder:
		return []Step{
			{Body: "Hi {{name}}, a reminder from {{company}} about your appointment tomorrow. Reply C to confirm or R to reschedule.", DayOffset: -1, SendHour: 10},
			{Body: "Hi {{name}}, {{company}} will see you in about 2 hours. Reply here if anything changes.", SendHour: -1, HourOffset: -2},
		}
	case TypeReviewRequest:
		return []Step{
			{Body: "Hi {{name}}, thanks for choosing {{company}}! Would you leave us a quick review? It really helps: {{review_link}}", DayOffset: 1, SendHour: 14},
			{Body: "Hi {{name}}, if you have 30 seconds, a review of {{company}} would mean a lot: {{review_link}}", DayOffset: 4, SendHour: 14},
		}
	case TypeReferralRequest:
		return []Step{
			{Body: "Hi {{name}}, glad we could help! If you know anyone who could use {{company}}, we'd love an introduction.", DayOffset: 7, SendHour: 11},
		}
	case TypeMissedCallFollowup:
		return []Step{
			{Body: "Hi, you just called {{company}} and we missed you - sorry about that! Reply here with a good time and we'll call you right back.", SendHour: -1},
		}
	case TypePaymentReminder:
		return []Step{
			{Body: "Hi {{name}}, a friendly reminder from {{company}} that your invoice is ready. Reply here with any questions.", DayOffset: 3, SendHour: 9},
			{Body: "Hi {{name}}, your invoice from {{company}} is still open. Let us know if you'd like to set up a payment plan.", DayOffset: 7, SendHour: 9},
			{Body: "Hi {{name}}, final reminder from {{company}} about your open invoice.", DayOffset: 14, SendHour: 9},
		}
	default:
		return nil
	}
}
