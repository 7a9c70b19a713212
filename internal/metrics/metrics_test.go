package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveInvocation(t *testing.T) {
	c := New()
	c.ObserveInvocation("run-command-line", OutcomeSuccess, time.Second)
	c.ObserveInvocation("run-command-line", OutcomeSuccess, time.Second)
	c.ObserveInvocation("run-command-line", OutcomeError, time.Second)

	if got := testutil.ToFloat64(c.Invocations.WithLabelValues("run-command-line", OutcomeSuccess)); got != 2 {
		t.Errorf("success invocations = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.Invocations.WithLabelValues("run-command-line", OutcomeError)); got != 1 {
		t.Errorf("error invocations = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(c.InvocationDuration); got != 1 {
		t.Errorf("duration series = %d, want 1", got)
	}
}

func TestStarted(t *testing.T) {
	c := New()
	done := c.Started()
	if got := testutil.ToFloat64(c.InFlight); got != 1 {
		t.Errorf("in flight = %v, want 1", got)
	}
	done()
	if got := testutil.ToFloat64(c.InFlight); got != 0 {
		t.Errorf("in flight = %v, want 0", got)
	}
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.ObserveInvocation("x", OutcomeSuccess, time.Second)
	c.ObserveResolution("path")
	c.ObservePolicy()
	c.ObserveResourceRead("x", OutcomeSuccess)
	c.Started()()
}

func TestRegistryGathers(t *testing.T) {
	c := New()
	c.ObserveResolution("download")
	c.ObservePolicy()
	c.ObserveResourceRead("list-mash-scripts", OutcomeError)

	families, err := c.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"pkgx_mcp_pkgx_resolutions_total",
		"pkgx_mcp_sandbox_policies_total",
		"pkgx_mcp_resource_reads_total",
		"pkgx_mcp_tool_in_flight",
	} {
		if !names[want] {
			t.Errorf("metric %s not gathered", want)
		}
	}
}
