package orchestrator

import "errors"

// Kind classifies an orchestrator error for the HTTP surface to map to a
// status code, per §7's controller-level rules (distinct from
// vmmanager.Kind, which classifies node-agent errors).
type Kind int

const (
	KindUnknown Kind = iota
	KindNoHostsAvailable
	KindHostUnassigned
	KindInvalidTransition
	KindNodeCreateFailed
	KindNotFound
)

var (
	// ErrNoHostsAvailable is returned by PickHost when no host has
	// status=up.
	ErrNoHostsAvailable = errors.New("no hosts available")

	// ErrHostUnassigned is returned by lifecycle routing when a VM has
	// no assigned host.
	ErrHostUnassigned = errors.New("vm has no assigned host")

	// ErrUsePause is the guidance error for a pause->start transition.
	ErrUsePause = errors.New("vm is paused; use resume instead of start")

	// ErrJobNotFinished is returned for a pending->start transition.
	ErrJobNotFinished = errors.New("vm's create job has not finished")
)

// Error pairs a Kind with an underlying cause, mirroring vmmanager.Error
// so the HTTP layer can switch on Kind via errors.As.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "orchestrator error"
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}
