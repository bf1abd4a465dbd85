package trial

import "github.com/alem-hub/academy-core/internal/domain/session"

// sessionToTrial is the full mapping. Session states not listed here leave the
// trial request untouched.
var sessionToTrial = map[session.Status]Status{
	session.StatusScheduled: StatusScheduled,
	session.StatusCompleted: StatusCompleted,
	session.StatusCancelled: StatusCancelled,
	session.StatusAbsent:    StatusNoShow,
}

// StatusForSession returns the trial status implied by a session status.
// ok is false when the session status implies no transition.
func StatusForSession(s session.Status) (Status, bool) {
	st, ok := sessionToTrial[s]
	return st, ok
}
