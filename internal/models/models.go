package models

import (
	"path"
	"strings"
	"time"
)

// RemoteFile identifies one raw sonar file inside the survey bucket.
type RemoteFile struct {
	Key  string
	Size int64
}

// Stem returns the base name of the remote key without its extension.
// Output files for this source share this stem.
func (f RemoteFile) Stem() string {
	base := path.Base(f.Key)
	return strings.TrimSuffix(base, path.Ext(base))
}

// FileOutcome captures the result of processing one remote file.
type FileOutcome struct {
	Key     string
	Stem    string
	Err     error
	Outputs []string
	Elapsed time.Duration
}

// OK reports whether the file was processed without error.
func (o FileOutcome) OK() bool {
	return o.Err == nil
}

// RunReport aggregates per-file outcomes for one pipeline run.
type RunReport struct {
	RunID     string
	StartedAt time.Time
	Outcomes  []FileOutcome
}

// Succeeded counts outcomes without error.
func (r *RunReport) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

// Failed counts outcomes with an error.
func (r *RunReport) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}
