package inbox

import "strings"

// Status is the outcome of an inbox command.
type Status int

const (
	// Applied means the platform acknowledged and the store was updated.
	Applied Status = iota
	// Partial means only some of a batch was acknowledged; only that part
	// was applied locally.
	Partial
	// Skipped means there was no signed-in user and no call was issued.
	Skipped
	// Failed means the platform call failed and the store is untouched.
	Failed
)

func (s Status) String() string {
	switch s {
	case Applied:
		return "applied"
	case Partial:
		return "partial"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result describes what a command did.
type Result struct {
	Command string
	Status  Status

	// IDs are the notifications the command changed locally.
	IDs []int64

	// FailedIDs lists the ids whose acknowledgement failed in a batch.
	FailedIDs []int64

	Err error
}

// OK reports whether the command was fully applied.
func (r Result) OK() bool {
	return r.Status == Applied
}

// Summary renders the result for the status bar.
func (r Result) Summary() string {
	name := strings.ReplaceAll(r.Command, "-", " ")
	switch r.Status {
	case Applied:
		return name + ": done"
	case Skipped:
		return name + ": not signed in"
	case Partial:
		if r.Err != nil {
			return name + ": partly applied: " + r.Err.Error()
		}
		return name + ": partly applied"
	default:
		if r.Err != nil {
			return name + " failed: " + r.Err.Error()
		}
		return name + " failed"
	}
}
