package dispatch

import "fmt"

// State is a worker's lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateRunning
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// WorkerStats is a point-in-time snapshot of one worker's counters.
type WorkerStats struct {
	ID       int    `json:"id"`
	State    string `json:"state"`
	Pending  int    `json:"pending"`
	Cycles   int64  `json:"cycles"`
	Executed int64  `json:"executed"`
	Failed   int64  `json:"failed"`
}

// Attempted is the number of items the worker has taken and run, whether
// they succeeded or not.
func (s WorkerStats) Attempted() int64 {
	return s.Executed + s.Failed
}

// Failure describes one asynchronous statement that did not execute.
type Failure struct {
	WorkerID  int
	Statement string
	Err       error
}

func (f Failure) Error() string {
	return fmt.Sprintf("worker %d: %q: %v", f.WorkerID, f.Statement, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }
