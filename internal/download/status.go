package download

// Status tracks task state.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusSuccess     Status = "success"
	StatusFailed      Status = "failed"
)

// validTransitions defines allowed state transitions.
// Key is the "from" status, value is list of valid "to" statuses.
var validTransitions = map[Status][]Status{
	StatusPending:     {StatusDownloading},
	StatusDownloading: {StatusSuccess, StatusFailed},
	StatusSuccess:     {}, // terminal - cleared, never retried in place
	StatusFailed:      {},
}

// CanTransitionTo returns true if transitioning from s to target is valid.
func (s Status) CanTransitionTo(target Status) bool {
	valid, ok := validTransitions[s]
	if !ok {
		return false
	}
	for _, v := range valid {
		if v == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if this status has no valid outgoing transitions.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}
