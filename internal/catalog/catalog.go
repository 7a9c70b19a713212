// Package catalog lists what pkgx can run: the programs it knows and the
// remote mash script index.
package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"

	"github.com/deixis/pkgxmcp/internal/runner"
)

// Catalog serves the read-only program and script listings.
type Catalog struct {
	Pkgx       runner.Executable
	ScriptsURL string
	Client     *http.Client
}

// Programs returns the raw output of `pkgx -Q`. The listing runs with the
// server's own environment; pkgx's stderr passes through to ours.
func (c *Catalog) Programs(ctx context.Context) (string, error) {
	path, err := c.Pkgx.Resolve(ctx)
	if err != nil {
		return "", fmt.Errorf("resolving pkgx: %w", err)
	}

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, path, "-Q")
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("listing programs: %w", err)
	}
	return stdout.String(), nil
}

// Scripts fetches the mash script index and returns the body unchanged.
func (c *Catalog) Scripts(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ScriptsURL, nil)
	if err != nil {
		return "", fmt.Errorf("building script index request: %w", err)
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching script index: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading script index: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetching script index from %s: %s", c.ScriptsURL, resp.Status)
	}
	return string(body), nil
}
