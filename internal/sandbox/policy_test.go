package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestForPlatform(t *testing.T) {
	if p := ForPlatform("linux", "/home/me", Options{}); p != nil {
		t.Errorf("ForPlatform(linux) = %+v, want nil", p)
	}
	if p := ForPlatform("windows", "/home/me", Options{}); p != nil {
		t.Errorf("ForPlatform(windows) = %+v, want nil", p)
	}
	if p := ForPlatform("darwin", "/Users/me", Options{}); p == nil {
		t.Error("ForPlatform(darwin) = nil, want policy")
	}
}

func TestDefault_Rules(t *testing.T) {
	p := Default("/Users/me", Options{
		Writable:  []string{"/opt/cache"},
		Protected: []string{".gnupg"},
	})

	if len(p.Rules) == 0 || p.Rules[0] != (Rule{Action: Deny, Kind: Write, Scope: "/"}) {
		t.Fatalf("first rule = %+v, want deny-all writes", p.Rules)
	}

	var allowWrite, denyRead []string
	for _, r := range p.Rules[1:] {
		switch {
		case r.Action == Allow && r.Kind == Write:
			allowWrite = append(allowWrite, r.Scope)
		case r.Action == Deny && r.Kind == Read:
			denyRead = append(denyRead, r.Scope)
		default:
			t.Errorf("unexpected rule %+v", r)
		}
	}

	wantWrite := []string{"/var", "/tmp", "/private", "/opt/cache", "/dev/null"}
	if !slices.Equal(allowWrite, wantWrite) {
		t.Errorf("allowed writes = %q, want %q", allowWrite, wantWrite)
	}
	wantRead := []string{
		"/Users/me/.ssh",
		"/Users/me/.aws",
		"/Users/me/.azure",
		"/Users/me/.config/gcloud",
		"/Users/me/.gnupg",
	}
	if !slices.Equal(denyRead, wantRead) {
		t.Errorf("denied reads = %q, want %q", denyRead, wantRead)
	}
}

func TestDefault_NoHome(t *testing.T) {
	p := Default("", Options{})
	for _, r := range p.Rules {
		if r.Kind == Read {
			t.Errorf("unexpected read rule without a home: %+v", r)
		}
	}
}

func TestRender(t *testing.T) {
	got := Default("/Users/me", Options{}).Render()
	want := `(version 1)
(allow default)
(deny file-write*)
(allow file-write* (subpath "/var"))
(allow file-write* (subpath "/tmp"))
(allow file-write* (subpath "/private"))
(allow file-write* (literal "/dev/null"))
(deny file-read* (subpath "/Users/me/.ssh"))
(deny file-read* (subpath "/Users/me/.aws"))
(deny file-read* (subpath "/Users/me/.azure"))
(deny file-read* (subpath "/Users/me/.config/gcloud"))
`
	if got != want {
		t.Errorf("Render =\n%s\nwant\n%s", got, want)
	}
}

func TestRender_QuotesPaths(t *testing.T) {
	p := &Policy{Rules: []Rule{{Action: Deny, Kind: Read, Scope: `/Users/a "b"/.ssh`}}}
	if got := p.Render(); !strings.Contains(got, `(subpath "/Users/a \"b\"/.ssh")`) {
		t.Errorf("Render = %q, want escaped quotes", got)
	}
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	p := Default("/Users/me", Options{})

	f, err := p.Write(dir)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Dir(f.Path) != dir {
		t.Errorf("Path = %q, want inside %q", f.Path, dir)
	}
	name := filepath.Base(f.Path)
	if !strings.HasPrefix(name, "pkgx_sandbox_") || !strings.HasSuffix(name, ".sb") {
		t.Errorf("file name = %q, want pkgx_sandbox_<pid>_<suffix>.sb", name)
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		t.Fatalf("reading policy: %v", err)
	}
	if string(data) != p.Render() {
		t.Errorf("file contents = %q, want rendered policy", data)
	}

	f.Remove()
	if _, err := os.Stat(f.Path); !os.IsNotExist(err) {
		t.Errorf("policy file still exists after Remove: %v", err)
	}
	// Removing twice is harmless.
	f.Remove()
}

func TestWrite_UniqueNames(t *testing.T) {
	dir := t.TempDir()
	p := Default("", Options{})
	seen := make(map[string]bool)
	for range 20 {
		f, err := p.Write(dir)
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
		if seen[f.Path] {
			t.Fatalf("duplicate policy path %s", f.Path)
		}
		seen[f.Path] = true
	}
}

func TestWrite_Failure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")
	_, err := Default("", Options{}).Write(dir)
	if !errors.Is(err, ErrPolicyWrite) {
		t.Fatalf("err = %v, want ErrPolicyWrite", err)
	}
}

func TestWrap(t *testing.T) {
	f := &File{Path: "/tmp/p.sb"}
	got := f.Wrap(Invoker, []string{"/usr/local/bin/pkgx", "node", "--version"})
	want := []string{"sandbox-exec", "-f", "/tmp/p.sb", "/usr/local/bin/pkgx", "node", "--version"}
	if !slices.Equal(got, want) {
		t.Errorf("Wrap = %q, want %q", got, want)
	}
}
