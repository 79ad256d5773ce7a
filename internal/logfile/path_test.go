package logfile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hazz-dev/pingwatch/internal/logfile"
)

func TestDirResolver(t *testing.T) {
	got, err := logfile.DirResolver("/data/app").Resolve("service_logs.json")
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join("/data/app", "service_logs.json") {
		t.Errorf("unexpected path %q", got)
	}
}

func TestDirResolver_AbsoluteNameKept(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "x.json")
	got, err := logfile.DirResolver("/elsewhere").Resolve(abs)
	if err != nil {
		t.Fatal(err)
	}
	if got != abs {
		t.Errorf("expected %q, got %q", abs, got)
	}
}

func TestExecutableDirResolver(t *testing.T) {
	exe, err := os.Executable()
	if err != nil {
		t.Skipf("os.Executable unavailable: %v", err)
	}
	got, err := logfile.ExecutableDirResolver{}.Resolve("service_logs.json")
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(filepath.Dir(exe), "service_logs.json") {
		t.Errorf("unexpected path %q", got)
	}
}

func TestResolverFor(t *testing.T) {
	if _, ok := logfile.ResolverFor("").(logfile.ExecutableDirResolver); !ok {
		t.Error("expected ExecutableDirResolver for empty dir")
	}
	if r, ok := logfile.ResolverFor("/tmp/x").(logfile.DirResolver); !ok || string(r) != "/tmp/x" {
		t.Error("expected DirResolver for explicit dir")
	}
}
