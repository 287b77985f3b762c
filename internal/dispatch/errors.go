package dispatch

import "errors"

var (
	// ErrNilTask is returned when a nil task is offered for assignment.
	ErrNilTask = errors.New("task cannot be nil")

	// ErrTaskAlreadyAssigned is returned when a task id already has an
	// active assignment in the ledger.
	ErrTaskAlreadyAssigned = errors.New("task already has an active assignment")
)
