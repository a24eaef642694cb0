package cmd

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-drift/peko/pkg/errors"
	"github.com/go-drift/peko/pkg/permissions"
	"github.com/go-drift/peko/pkg/platform"
)

// runCLI runs the CLI in a fresh project directory holding config and
// returns what it printed.
func runCLI(t *testing.T, config string, args ...string) (string, error) {
	t.Helper()

	dir := t.TempDir()
	if config != "" {
		if err := os.WriteFile(filepath.Join(dir, "peko.yaml"), []byte(config), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	t.Chdir(dir)
	permissions.ResetForTest()
	platform.ResetForTest()

	var out, errOut bytes.Buffer
	stdout, stderr = &out, &errOut
	t.Cleanup(func() {
		stdout, stderr = os.Stdout, os.Stderr
		permissions.ResetForTest()
		platform.ResetForTest()
		errors.SetHandler(nil)
	})

	err := run(context.Background(), args)
	return out.String(), err
}

func TestHelpAndVersion(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no args", nil, "Commands:"},
		{"help", []string{"help"}, "Commands:"},
		{"version flag", []string{"--version"}, "peko version"},
		{"version command", []string{"version"}, "peko version"},
		{"command help", []string{"request", "--help"}, "peko request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, "", tt.args...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out)
			}
		})
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown command", []string{"launch"}},
		{"unknown global flag", []string{"--bogus", "check"}},
		{"config without path", []string{"--config"}},
		{"missing config file", []string{"--config", "nope.yaml", "check", "CAMERA"}},
		{"check without names", []string{"check"}},
		{"request without names", []string{"request"}},
		{"bad codec", []string{"check", "--codec", "xml", "CAMERA"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCLI(t, "", tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCheck(t *testing.T) {
	const cfg = "host:\n  granted: [CAMERA, LOCATION]\n"

	out, err := runCLI(t, cfg, "check", "CAMERA", "LOCATION")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "CAMERA") || strings.Count(out, "granted") != 2 {
		t.Errorf("unexpected output:\n%s", out)
	}

	out, err = runCLI(t, cfg, "check", "--codec", "cbor", "CAMERA", "RECORD_AUDIO")
	if !stderrors.Is(err, errNotGranted) {
		t.Fatalf("expected errNotGranted, got %v", err)
	}
	if !strings.Contains(out, "not_determined") {
		t.Errorf("expected RECORD_AUDIO to be not_determined:\n%s", out)
	}
}

func TestRequest(t *testing.T) {
	const cfg = `
host:
  codec: cbor
  granted: [CAMERA]
  decisions:
    RECORD_AUDIO: {granted: false, canShowAgain: false}
    CONTACTS: {granted: true}
`

	out, err := runCLI(t, cfg, "request", "--open-settings", "CAMERA", "RECORD_AUDIO", "CONTACTS", "CALENDAR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"Granted(CAMERA)",
		"Denied.DeniedPermanently(RECORD_AUDIO)",
		"Granted(CONTACTS)",
		"Denied.NeedsRationale(CALENDAR)",
		"Granted:             CAMERA, CONTACTS",
		"Needs rationale:     CALENDAR",
		"Permanently denied:  RECORD_AUDIO",
		"Opened app settings.",
	}
	last := -1
	for _, w := range want {
		i := strings.Index(out, w)
		if i < 0 {
			t.Fatalf("output missing %q:\n%s", w, out)
		}
		if i < last {
			t.Errorf("%q printed out of order:\n%s", w, out)
		}
		last = i
	}
}

func TestRequestAllGranted(t *testing.T) {
	out, err := runCLI(t, "host:\n  granted: [CAMERA]\n", "request", "CAMERA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "All permissions granted.") {
		t.Errorf("unexpected output:\n%s", out)
	}
}
