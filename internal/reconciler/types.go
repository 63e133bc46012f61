package reconciler

import "fmt"

// State names the stage a code reached while being reconciled. States
// only ever move forward within a run; the state recorded on a failure
// tells exactly how far a code got.
type State string

const (
	StatePending        State = "pending"
	StateMatched        State = "matched"
	StateUpdated        State = "updated"
	StateUnmatched      State = "unmatched"
	StateTemplateCopied State = "template_copied"
	StateFieldsOverlaid State = "fields_overlaid"
	StateMarked         State = "marked"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

// Action is the mutation kind a reconciled record resolved to.
type Action string

const (
	ActionUpdated  Action = "updated"
	ActionInserted Action = "inserted"
)

// Outcome reports what happened to one record.
type Outcome struct {
	Code   string
	Action Action
	Row    int
}

// CodeError records a failure reconciling a single code. It is local by
// contract: the caller records it and carries on with the next code.
type CodeError struct {
	Code  string
	State State
	Err   error
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("code %s (state %s): %v", e.Code, e.State, e.Err)
}

func (e *CodeError) Unwrap() error {
	return e.Err
}
