package driver

import (
	"encoding/json"
	"fmt"
	"time"

	"pagemd/internal/output"
)

// State is the position of a target in the pipeline.
type State string

const (
	StatePending    State = "pending"
	StateFetching   State = "fetching"
	StateConverting State = "converting"
	StateWriting    State = "writing"
	StateDone       State = "done"
	StateFailed     State = "failed"
	StateSkipped    State = "skipped"
)

// Outcome records what happened to one target.
type Outcome struct {
	Target     string `json:"target"`
	URL        string `json:"url"`
	Path       string `json:"path,omitempty"`
	State      State  `json:"state"`
	FailedAt   State  `json:"failed_at,omitempty"`
	Error      string `json:"error,omitempty"`
	Bytes      int    `json:"bytes,omitempty"`
	DurationMS int64  `json:"duration_ms"`

	err error
}

// Err returns the error that failed the target, if any.
func (o Outcome) Err() error {
	return o.err
}

// Report summarizes a run.
type Report struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Aborted    bool      `json:"aborted"`
	Outcomes   []Outcome `json:"outcomes"`
}

func (r *Report) add(o Outcome) {
	switch o.State {
	case StateDone:
		r.Succeeded++
	case StateSkipped:
		r.Skipped++
	default:
		r.Failed++
	}
	r.Outcomes = append(r.Outcomes, o)
}

// Total returns the number of targets that reached a final state.
func (r *Report) Total() int {
	return len(r.Outcomes)
}

// WriteJSON saves the report as indented JSON.
func (r *Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return output.NewWriter().Write(path, append(data, '\n'))
}
