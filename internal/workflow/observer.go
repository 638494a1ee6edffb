package workflow

import (
	"clipmill/internal/manifest"
	"clipmill/internal/pipeline"
)

// Observer receives scheduler events. Calls happen on worker and collector
// goroutines, so implementations must be safe for concurrent use.
type Observer interface {
	UnitStarted(worker int, unit manifest.WorkUnit)
	UnitFinished(outcome Outcome, done, pending int)
}

// Outcome is the collected result of one dispatched unit.
type Outcome struct {
	Worker int
	Result pipeline.UnitResult
	// Err holds faults outside the pipeline: a recovered panic or a failed
	// ledger write. Either one makes the unit count as failed.
	Err error
}

// Succeeded reports whether the unit completed and was recorded.
func (o Outcome) Succeeded() bool {
	return o.Err == nil && o.Result.Completed()
}

type observers []Observer

func (o observers) UnitStarted(worker int, unit manifest.WorkUnit) {
	for _, obs := range o {
		obs.UnitStarted(worker, unit)
	}
}

func (o observers) UnitFinished(outcome Outcome, done, pending int) {
	for _, obs := range o {
		obs.UnitFinished(outcome, done, pending)
	}
}
