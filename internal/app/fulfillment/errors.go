package fulfillment

import "fmt"

type Stage string

const (
	StageCheckout   Stage = "checkout"
	StagePayment    Stage = "payment"
	StageGeneration Stage = "generation"
	StagePackaging  Stage = "packaging"
)

// StageError names the pipeline stage that failed so callers can decide
// between retrying payment and retrying finalize.
type StageError struct {
	Stage   Stage
	OrderID string
	Err     error
}

func (e *StageError) Error() string {
	if e.OrderID == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s failed for order %s: %v", e.Stage, e.OrderID, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, orderID string, err error) error {
	return &StageError{Stage: stage, OrderID: orderID, Err: err}
}
