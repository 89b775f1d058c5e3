// Licensed under the MIT License.

package ubuildlib

import (
	"time"

	"github.com/snnbyyds/ubuntu-build/internal/logger"
)

// Stage is one step of the pipeline: a closure over the work tree and build
// config with no ordering dependency other than the declared sequence.
type Stage struct {
	Name   string
	Action func() error
	// IgnorableFailure marks best-effort stages (purging a package that may
	// not exist, cache cleanup): their failures are logged and the pipeline
	// continues. Everything else is fatal on first failure.
	IgnorableFailure bool
}

type StageStatus int

const (
	StageSucceeded StageStatus = iota
	StageFailed
	StageFailedIgnored
	StageSkipped
)

func (s StageStatus) String() string {
	switch s {
	case StageSucceeded:
		return "succeeded"
	case StageFailed:
		return "failed"
	case StageFailedIgnored:
		return "failed (ignored)"
	case StageSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// StageRecord is diagnostic information about one dispatched stage. Records
// are not persisted across runs.
type StageRecord struct {
	Name   string
	Start  time.Time
	Status StageStatus
	Err    error
}

// StageRunner executes stages strictly in order, recording the outcome of
// each.
type StageRunner struct {
	records []StageRecord
}

// Run dispatches the stages in order. On the first fatal failure it stops
// dispatching, records the remaining stages as skipped, and returns a
// *StageFailure identifying the failed stage.
func (r *StageRunner) Run(stages []Stage) error {
	var failure *StageFailure

	for _, stage := range stages {
		if failure != nil {
			r.records = append(r.records, StageRecord{Name: stage.Name, Status: StageSkipped})
			continue
		}

		record := StageRecord{Name: stage.Name, Start: time.Now()}
		logger.Log.Infof("Stage: %s", stage.Name)

		err := stage.Action()
		switch {
		case err == nil:
			record.Status = StageSucceeded
		case stage.IgnorableFailure:
			logger.Log.Warnf("Stage (%s) failed (ignored): %v", stage.Name, err)
			record.Status = StageFailedIgnored
			record.Err = err
		default:
			record.Status = StageFailed
			record.Err = err
			failure = &StageFailure{Stage: stage.Name, Cause: err}
		}

		r.records = append(r.records, record)
	}

	if failure != nil {
		return failure
	}
	return nil
}

// Records returns the outcome of every stage dispatched so far.
func (r *StageRunner) Records() []StageRecord {
	return append([]StageRecord(nil), r.records...)
}
