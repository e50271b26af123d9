package pack

import "time"

// ScheduleStatus is the outcome of a fill start-date decision.
type ScheduleStatus string

const (
	ScheduleOK               ScheduleStatus = "scheduled"
	ScheduleAlreadyScheduled ScheduleStatus = "already_scheduled"
	ScheduleRejected         ScheduleStatus = "rejected"
)

// ScheduleDecision carries the resolved fill start date for a template.
type ScheduleDecision struct {
	Status    ScheduleStatus `json:"status"`
	StartDate *time.Time     `json:"start_date,omitempty"`
}

// DecideStartDate resolves when filling for a template may begin, given the
// earliest administration date among its slots.
//
//   - already scheduled: nothing to do
//   - caller-requested start date: honored when minAdmin is on or after it,
//     otherwise pulled back to minAdmin
//   - minAdmin before today: too late to schedule, rejected
//   - minAdmin today: start today
//   - minAdmin in the future: start the day before, so packs are filled
//     ahead of the first administration
func DecideStartDate(minAdmin time.Time, today time.Time, requested *time.Time, alreadyScheduled bool) ScheduleDecision {
	if alreadyScheduled {
		return ScheduleDecision{Status: ScheduleAlreadyScheduled}
	}

	minAdmin = truncateDay(minAdmin)
	today = truncateDay(today)

	if requested != nil {
		req := truncateDay(*requested)
		start := req
		if minAdmin.Before(req) {
			start = minAdmin
		}
		return ScheduleDecision{Status: ScheduleOK, StartDate: &start}
	}

	switch {
	case minAdmin.Before(today):
		return ScheduleDecision{Status: ScheduleRejected}
	case minAdmin.Equal(today):
		return ScheduleDecision{Status: ScheduleOK, StartDate: &today}
	default:
		start := minAdmin.AddDate(0, 0, -1)
		return ScheduleDecision{Status: ScheduleOK, StartDate: &start}
	}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
