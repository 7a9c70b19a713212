// Package pkgx locates the pkgx executable that spawned programs run
// through, downloading a release binary when none is installed.
package pkgx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/deixis/pkgxmcp/internal/home"
	"github.com/deixis/pkgxmcp/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// Name is the executable looked up on PATH and the file name used for
// downloaded binaries.
const Name = "pkgx"

// Resolution sources reported to metrics.
const (
	SourcePath     = "path"
	SourceDownload = "download"
)

// ErrUnsupportedPlatform is returned when no release binary exists for the
// host OS and architecture.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// DownloadError reports a non-OK response while fetching the release binary.
type DownloadError struct {
	URL    string
	Status string
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("failed to download pkgx from %s: %s", e.URL, e.Status)
}

// Platform maps a GOOS/GOARCH pair to the release artifact path used by
// the download host.
func Platform(goos, goarch string) (string, error) {
	switch goos + "/" + goarch {
	case "linux/amd64":
		return "Linux/x86-64", nil
	case "linux/arm64":
		return "Linux/arm64", nil
	case "darwin/arm64":
		return "Darwin/arm64", nil
	case "darwin/amd64":
		return "Darwin/x86-64", nil
	}
	return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, goos, goarch)
}

// Resolver finds the pkgx executable. A successful resolution is cached for
// the lifetime of the Resolver; concurrent first calls share one attempt.
type Resolver struct {
	Path           string // explicit executable; skips probe and download
	ReuseInstalled bool   // use a pkgx found on PATH
	BaseURL        string // download host, e.g. https://pkgx.sh
	Home           *home.Home
	Client         *http.Client
	Metrics        *metrics.Collector

	// GOOS and GOARCH override the host platform when set.
	GOOS, GOARCH string

	group singleflight.Group
	mu    sync.Mutex
	path  string
}

// Resolve returns the path of the pkgx executable.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	if r.Path != "" {
		return r.Path, nil
	}

	r.mu.Lock()
	cached := r.path
	r.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	// The shared attempt must not be cut short by the first caller's context.
	v, err, _ := r.group.Do(Name, func() (any, error) {
		return r.resolve(context.WithoutCancel(ctx))
	})
	if err != nil {
		return "", err
	}
	path := v.(string)

	r.mu.Lock()
	r.path = path
	r.mu.Unlock()
	return path, nil
}

func (r *Resolver) resolve(ctx context.Context) (string, error) {
	if r.ReuseInstalled {
		if path, ok := probe(ctx); ok {
			log.Printf("using %s from PATH: %s", Name, path)
			r.Metrics.ObserveResolution(SourcePath)
			return path, nil
		}
	}

	path, err := r.download(ctx)
	if err != nil {
		return "", err
	}
	r.Metrics.ObserveResolution(SourceDownload)
	return path, nil
}

// probe reports whether pkgx on PATH runs, returning its absolute path.
func probe(ctx context.Context) (string, bool) {
	path, err := exec.LookPath(Name)
	if err != nil {
		return "", false
	}
	if err := exec.CommandContext(ctx, path, "--version").Run(); err != nil {
		return "", false
	}
	return path, true
}

func (r *Resolver) download(ctx context.Context) (string, error) {
	goos, goarch := r.GOOS, r.GOARCH
	if goos == "" {
		goos = runtime.GOOS
	}
	if goarch == "" {
		goarch = runtime.GOARCH
	}
	platform, err := Platform(goos, goarch)
	if err != nil {
		return "", err
	}

	dir, err := r.Home.Dir()
	if err != nil {
		return "", err
	}

	url := strings.TrimSuffix(r.BaseURL, "/") + "/" + platform
	log.Printf("downloading %s from %s", Name, url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building pkgx download request: %w", err)
	}
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading pkgx: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &DownloadError{URL: url, Status: resp.Status}
	}

	path := filepath.Join(dir, Name)
	if err := writeExecutable(path, resp.Body); err != nil {
		return "", err
	}
	log.Printf("installed %s at %s", Name, path)
	return path, nil
}

// writeExecutable streams body into a temp file beside path and renames it
// into place, so readers never observe a partial binary.
func writeExecutable(path string, body io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+Name+"-*")
	if err != nil {
		return fmt.Errorf("creating pkgx temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing pkgx: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing pkgx: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o755); err != nil {
		return fmt.Errorf("marking pkgx executable: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("installing pkgx: %w", err)
	}
	return nil
}
