// Package runner spawns programs through pkgx with an isolated HOME and,
// where the platform supports it, a filesystem sandbox policy.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/deixis/pkgxmcp/internal/home"
	"github.com/deixis/pkgxmcp/internal/metrics"
	"github.com/deixis/pkgxmcp/internal/sandbox"
	"github.com/google/uuid"
)

// Executable resolves the pkgx binary programs are run through.
// Implemented by pkgx.Resolver.
type Executable interface {
	Resolve(ctx context.Context) (string, error)
}

// Request is a single program invocation.
type Request struct {
	Program string
	Args    []string
	Dir     string // working directory; empty inherits the server's
}

// Runner executes programs through pkgx.
type Runner struct {
	Pkgx   Executable
	Home   *home.Home
	Policy *sandbox.Policy // nil runs without a filesystem policy

	Invoker   string // sandbox wrapper; defaults to sandbox.Invoker
	PolicyDir string // where policy files are written; defaults to os.TempDir()

	Timeout   time.Duration // 0 never interrupts a run
	MaxOutput int           // bytes per stream; 0 is unlimited
	Metrics   *metrics.Collector
}

// Run executes req and waits for it to finish. Stdin is never connected.
//
// A zero exit status yields a Result, whatever was written to stderr.
// Every other outcome, including failures before the process starts, is
// returned as a *Failure. Cancelling ctx does not stop a started run.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	args := req.Args
	if args == nil {
		args = []string{}
	}
	fail := &Failure{
		RunID:   uuid.New().String(),
		Program: req.Program,
		Args:    args,
		Cwd:     req.Dir,
		Home:    r.Home.Path(),
	}

	if req.Program == "" {
		return nil, fail.stage(TitleInvalid, "no program given", errors.New("empty program"))
	}

	if _, err := r.Home.Dir(); err != nil {
		return nil, fail.stage(TitleHome, "preparing isolated home", err)
	}

	pkgxPath, err := r.Pkgx.Resolve(ctx)
	if err != nil {
		return nil, fail.stage(TitleResolve, "resolving pkgx", err)
	}

	argv := make([]string, 0, len(args)+2)
	argv = append(argv, pkgxPath, req.Program)
	argv = append(argv, args...)

	if r.Policy != nil {
		f, err := r.Policy.Write(r.policyDir())
		if err != nil {
			return nil, fail.stage(TitlePolicy, "writing sandbox policy", err)
		}
		defer f.Remove()
		r.Metrics.ObservePolicy()
		argv = f.Wrap(r.invoker(), argv)
	}

	runCtx := context.WithoutCancel(ctx)
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, r.Timeout)
		defer cancel()
	}

	if req.Dir != "" {
		if _, err := os.Stat(req.Dir); err != nil {
			return nil, fail.stage(TitleSpawn, "changing to working directory", err)
		}
	}

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = req.Dir
	cmd.Env = r.Home.Env(os.Environ())

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitWriter{buf: &stdout, limit: r.MaxOutput}
	cmd.Stderr = &limitWriter{buf: &stderr, limit: r.MaxOutput}

	done := r.Metrics.Started()
	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)
	done()

	if runErr == nil {
		return &Result{
			RunID:     fail.RunID,
			Stdout:    stdout.String(),
			Stderr:    stderr.String(),
			Sandboxed: r.Policy != nil,
			Truncated: r.MaxOutput > 0 && (stdout.Len() >= r.MaxOutput || stderr.Len() >= r.MaxOutput),
			Duration:  elapsed,
		}, nil
	}

	fail.Stdout = stdout.String()
	fail.Stderr = stderr.String()

	var exitErr *exec.ExitError
	if !errors.As(runErr, &exitErr) {
		// Binary not found, bad working directory, or other exec error.
		return nil, fail.stage(TitleSpawn, "starting "+argv[0], runErr)
	}

	if name, ok := signalName(exitErr.ProcessState); ok {
		fail.Signal = &name
		fail.Title = fmt.Sprintf("signal(%s)", name)
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			fail.Detail = fmt.Sprintf("killed after %s timeout", r.Timeout)
		}
		return nil, fail
	}

	code := exitErr.ExitCode()
	fail.Code = &code
	fail.Title = fmt.Sprintf("exit(%d)", code)
	return nil, fail
}

func (f *Failure) stage(title, detail string, err error) *Failure {
	f.Title = title
	f.Detail = detail + ": " + err.Error()
	f.cause = err
	return f
}

func (r *Runner) invoker() string {
	if r.Invoker != "" {
		return r.Invoker
	}
	return sandbox.Invoker
}

func (r *Runner) policyDir() string {
	if r.PolicyDir != "" {
		return r.PolicyDir
	}
	return os.TempDir()
}

// limitWriter writes up to limit bytes to buf, then silently discards the
// rest. A limit of 0 keeps everything.
type limitWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *limitWriter) Write(p []byte) (int, error) {
	if w.limit <= 0 {
		return w.buf.Write(p)
	}
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		return len(p), nil // discard
	}
	if len(p) > remaining {
		// Write only what fits, but report all bytes as consumed
		// to avoid short write errors from io.Copy.
		w.buf.Write(p[:remaining])
		return len(p), nil
	}
	return w.buf.Write(p)
}
