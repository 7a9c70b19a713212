// Package mcp provides the pkgx MCP server: the two program-running tools,
// the catalog resources, and the model instructions.
package mcp

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"log"
	"os"
	"time"

	"github.com/deixis/pkgxmcp"
	"github.com/deixis/pkgxmcp/internal/catalog"
	"github.com/deixis/pkgxmcp/internal/metrics"
	"github.com/deixis/pkgxmcp/internal/runner"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

//go:embed instructions.md
var Instructions string

// ErrSuperuser is returned when the server runs with superuser privileges.
var ErrSuperuser = errors.New("running as root is not allowed")

// Superuser reports whether the current process runs as root.
func Superuser() bool {
	return os.Geteuid() == 0
}

// handler holds shared dependencies for all tool and resource handlers.
type handler struct {
	runner  *runner.Runner
	catalog *catalog.Catalog
	metrics *metrics.Collector

	superuser func() bool
	fatal     func(error) // terminates the process; only returns in tests
}

// NewServer creates an MCP server with all pkgx tools and resources registered.
func NewServer(r *runner.Runner, c *catalog.Catalog, opts ...ServerOption) *mcp.Server {
	so := serverOptions{
		superuser: Superuser,
		fatal: func(err error) {
			log.Fatalf("refusing to run: %v", err)
		},
	}
	for _, o := range opts {
		o(&so)
	}

	h := &handler{
		runner:    r,
		catalog:   c,
		metrics:   so.metrics,
		superuser: so.superuser,
		fatal:     so.fatal,
	}

	mcpOpts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools:     &mcp.ToolCapabilities{ListChanged: false},
			Resources: &mcp.ResourceCapabilities{ListChanged: false},
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "pkgx-mcp", Version: pkgxmcp.Version}, mcpOpts)

	registerTools(s, h)
	registerResources(s, h)

	return s
}

// ServerOption configures the pkgx MCP server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	metrics   *metrics.Collector
	superuser func() bool
	fatal     func(error)
}

// WithMetrics records invocations and resource reads on m.
func WithMetrics(m *metrics.Collector) ServerOption {
	return func(o *serverOptions) {
		o.metrics = m
	}
}

// WithPrivilegeCheck replaces the superuser probe and the function called
// to terminate the process when it reports true.
func WithPrivilegeCheck(superuser func() bool, fatal func(error)) ServerOption {
	return func(o *serverOptions) {
		o.superuser = superuser
		o.fatal = fatal
	}
}

// guard terminates the process when running as superuser. It only returns
// an error when the fatal hook returns.
func (h *handler) guard() error {
	if h.superuser() {
		h.fatal(ErrSuperuser)
		return ErrSuperuser
	}
	return nil
}

// run executes one program invocation and shapes the outcome envelope.
func (h *handler) run(ctx context.Context, tool string, req runner.Request) (*mcp.CallToolResult, any, error) {
	if err := h.guard(); err != nil {
		h.metrics.ObserveInvocation(tool, metrics.OutcomeRejected, 0)
		return errorResult(err.Error())
	}

	start := time.Now()
	res, err := h.runner.Run(ctx, req)
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
	}
	h.metrics.ObserveInvocation(tool, outcome, time.Since(start))

	text, isError := Envelope(res, err)
	if isError {
		return errorResult(text)
	}
	return textResult(text)
}

// output is the success payload.
type output struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// Envelope serialises the outcome of a run. Successful runs become
// {"stdout", "stderr"}; failures become the full *runner.Failure detail
// and report isError.
func Envelope(res *runner.Result, err error) (text string, isError bool) {
	if err == nil {
		data, mErr := json.Marshal(output{Stdout: res.Stdout, Stderr: res.Stderr})
		if mErr != nil {
			return "encoding result: " + mErr.Error(), true
		}
		return string(data), false
	}

	var detail any = map[string]string{"title": "error", "error": err.Error()}
	var f *runner.Failure
	if errors.As(err, &f) {
		detail = f
	}
	data, mErr := json.Marshal(detail)
	if mErr != nil {
		return err.Error(), true
	}
	return string(data), true
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
