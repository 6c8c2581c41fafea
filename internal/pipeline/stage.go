package pipeline

import "fmt"

// Stage is a step of a run. Stages advance in declaration order; Failed is
// reachable from any of them and no stage is entered twice.
type Stage int

const (
	Planning Stage = iota
	Reading
	Sorting
	OutputPlanning
	Writing
	Verifying
	Done
	Failed
)

var stageNames = [...]string{
	Planning:       "planning",
	Reading:        "reading",
	Sorting:        "sorting",
	OutputPlanning: "output_planning",
	Writing:        "writing",
	Verifying:      "verifying",
	Done:           "done",
	Failed:         "failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// StageError records the stage a run failed in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }
