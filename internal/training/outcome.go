package training

import (
	"fmt"

	"github.com/dyluth/assay/pkg/bioactivity"
)

// OutcomeKind classifies how EnsureTrained finished.
type OutcomeKind int

const (
	// Complete means the model finished training and can serve predictions.
	Complete OutcomeKind = iota + 1
	// Failed means the service reported the model in the error state.
	Failed
	// TimedOut means the poll budget ran out while the model was still in progress.
	TimedOut
)

func (k OutcomeKind) String() string {
	switch k {
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of EnsureTrained. Callers must inspect Kind
// (or Err) before using Model for prediction.
type Outcome struct {
	Kind    OutcomeKind
	Model   Model  // last observed state
	Detail  string // service error detail for Failed
	Polls   int    // status queries made in this call
	Created bool   // a create request was issued in this call
}

// Ready reports whether the model can serve predictions.
func (o Outcome) Ready() bool {
	return o.Kind == Complete
}

// Err converts a non-complete outcome into the matching taxonomy error.
func (o Outcome) Err() error {
	switch o.Kind {
	case Complete:
		return nil
	case Failed:
		return fmt.Errorf("%w: model %s failed: %s", bioactivity.ErrRemoteService, o.Model.Name, o.Detail)
	case TimedOut:
		return fmt.Errorf("%w: model %s still %s after %d polls",
			bioactivity.ErrTimeoutIncomplete, o.Model.Name, o.Model.Status, o.Polls)
	default:
		return fmt.Errorf("%w: model %s has no outcome", bioactivity.ErrModelNotReady, o.Model.Name)
	}
}
