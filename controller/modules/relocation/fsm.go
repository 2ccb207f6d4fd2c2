package relocation

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
)

const (
	StateIdle        = "idle"
	StateValidating  = "validating"
	StateAwaitingAck = "awaiting_ack"
	StateCommitting  = "committing"
	StateFailed      = "failed"
)

const (
	eventValidate = "validate"
	eventSend     = "send"
	eventAck      = "ack"
	eventDone     = "done"
	eventFail     = "fail"
)

// request tracks one relocation through its states. A failed request stays
// failed; the next relocation gets a fresh request.
type request struct {
	From int
	To   int
	fsm  *fsm.FSM
}

func newRequest(from, to int, observe func(r *request, src, dst string)) *request {
	r := &request{From: from, To: to}
	r.fsm = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventValidate, Src: []string{StateIdle}, Dst: StateValidating},
			{Name: eventSend, Src: []string{StateValidating}, Dst: StateAwaitingAck},
			{Name: eventAck, Src: []string{StateAwaitingAck}, Dst: StateCommitting},
			{Name: eventDone, Src: []string{StateCommitting}, Dst: StateIdle},
			{Name: eventFail, Src: []string{StateValidating, StateAwaitingAck, StateCommitting}, Dst: StateFailed},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				if observe != nil {
					observe(r, e.Src, e.Dst)
				}
			},
		},
	)
	return r
}

// robotCommand is the line that asks the robot to move a plant.
func robotCommand(from, to int) string {
	return fmt.Sprintf("%dT%d", from, to)
}

func (r *request) command() string {
	return robotCommand(r.From, r.To)
}

func (r *request) State() string {
	return r.fsm.Current()
}

// event fires a transition. Transitions are bookkeeping only and must be
// recorded even after ctx is cancelled.
func (r *request) event(ctx context.Context, name string) error {
	if err := r.fsm.Event(context.WithoutCancel(ctx), name); err != nil {
		return fmt.Errorf("relocation %s in state %s: %w", name, r.State(), err)
	}
	return nil
}

// fail moves the request to failed and returns cause.
func (r *request) fail(ctx context.Context, cause error) error {
	_ = r.event(ctx, eventFail)
	return cause
}
