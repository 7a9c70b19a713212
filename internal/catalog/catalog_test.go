package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type staticPkgx string

func (s staticPkgx) Resolve(context.Context) (string, error) { return string(s), nil }

func fakePkgx(t *testing.T, body string) staticPkgx {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pkgx")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return staticPkgx(path)
}

func TestPrograms(t *testing.T) {
	c := &Catalog{Pkgx: fakePkgx(t, `[ "$1" = "-Q" ] || exit 9
printf 'node\npython\n'
`)}
	got, err := c.Programs(context.Background())
	if err != nil {
		t.Fatalf("Programs: %v", err)
	}
	if got != "node\npython\n" {
		t.Errorf("Programs = %q, want node and python", got)
	}
}

func TestPrograms_Failure(t *testing.T) {
	c := &Catalog{Pkgx: fakePkgx(t, "exit 1\n")}
	if _, err := c.Programs(context.Background()); err == nil {
		t.Fatal("expected error when pkgx -Q fails")
	}
}

func TestScripts(t *testing.T) {
	const index = `{"scripts":[{"fullname":"pkgx/demo"}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(index))
	}))
	defer srv.Close()

	c := &Catalog{ScriptsURL: srv.URL + "/mash/index.json", Client: srv.Client()}
	got, err := c.Scripts(context.Background())
	if err != nil {
		t.Fatalf("Scripts: %v", err)
	}
	if got != index {
		t.Errorf("Scripts = %q, want %q", got, index)
	}
}

func TestScripts_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := &Catalog{ScriptsURL: srv.URL, Client: srv.Client()}
	_, err := c.Scripts(context.Background())
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error = %q, want to mention the status", err)
	}
}
