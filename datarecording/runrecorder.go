package datarecording

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RunInfo is one property of a recorded run.
type RunInfo struct {
	Property string
	Value    string
}

// RunInfoTable is the table holding the run information.
const RunInfoTable = "run_info"

const timeLayout = "2006-01-02 15:04:05.000000000"

// RunRecorder records when and how a run happened and whether it ran to the
// end.
type RunRecorder struct {
	recorder DataRecorder
	entries  []RunInfo
}

// NewRunRecorder creates the run information table on the recorder.
func NewRunRecorder(recorder DataRecorder) *RunRecorder {
	recorder.CreateTable(RunInfoTable, RunInfo{})

	return &RunRecorder{recorder: recorder}
}

// Start notes the model name, the start time and the command line.
func (e *RunRecorder) Start(model string) {
	e.entries = append(e.entries,
		RunInfo{"Model", model},
		RunInfo{"Start Time", time.Now().Format(timeLayout)},
		RunInfo{"Command", strings.Join(os.Args, " ")},
	)
}

// Set notes an extra property.
func (e *RunRecorder) Set(property, value string) {
	e.entries = append(e.entries, RunInfo{property, value})
}

// End writes the buffered properties with the end time, the number of ticks
// and the completeness flag.
func (e *RunRecorder) End(ticks uint64, complete bool) {
	e.entries = append(e.entries,
		RunInfo{"End Time", time.Now().Format(timeLayout)},
		RunInfo{"Ticks", strconv.FormatUint(ticks, 10)},
		RunInfo{"Complete", strconv.FormatBool(complete)},
	)

	for _, entry := range e.entries {
		e.recorder.InsertData(RunInfoTable, entry)
	}

	e.entries = nil

	e.recorder.Flush()
}
