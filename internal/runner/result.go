package runner

import (
	"fmt"
	"time"
)

// Result holds the output of a run that exited with status 0.
type Result struct {
	RunID     string        // unique identifier for this run
	Stdout    string        // captured stdout (may be truncated)
	Stderr    string        // captured stderr (may be truncated)
	ExitCode  int           // always 0 for a Result
	Sandboxed bool          // true if a filesystem policy was applied
	Truncated bool          // true if output exceeded the size cap
	Duration  time.Duration // wall-clock time from spawn to exit
}

// Failure titles for errors raised before the program could run.
const (
	TitleInvalid = "invalid"
	TitleHome    = "home"
	TitleResolve = "resolve"
	TitlePolicy  = "policy"
	TitleSpawn   = "spawn"
)

// Failure describes a run that did not exit with status 0, or could not
// be started. It carries everything a caller needs to diagnose the run and
// is serialised as-is into error results.
type Failure struct {
	RunID   string   `json:"run_id"`
	Code    *int     `json:"code"`   // exit status; nil when killed by a signal or never started
	Signal  *string  `json:"signal"` // e.g. SIGTERM; nil unless killed by a signal
	Program string   `json:"program"`
	Args    []string `json:"args"`
	Cwd     string   `json:"cwd,omitempty"` // empty means inherited
	Home    string   `json:"HOME"`
	Stderr  string   `json:"stderr"`
	Stdout  string   `json:"stdout"`
	Title   string   `json:"title"` // exit(<code>), signal(<name>), or a pre-spawn stage
	Detail  string   `json:"error,omitempty"`

	cause error
}

func (f *Failure) Error() string {
	if f.Detail != "" {
		return fmt.Sprintf("%s %s: %s", f.Program, f.Title, f.Detail)
	}
	return fmt.Sprintf("%s %s", f.Program, f.Title)
}

// Unwrap returns the underlying error for pre-spawn failures.
func (f *Failure) Unwrap() error {
	return f.cause
}
