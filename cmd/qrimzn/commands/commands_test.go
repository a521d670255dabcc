package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// setupRoot writes a config rooted in a temp dir and, when script is not
// empty, a stub binary at <root>/bin/qrimzn.
func setupRoot(t *testing.T, script string) (configPath, root string) {
	t.Helper()
	dir := t.TempDir()
	root = filepath.Join(dir, "root")
	configPath = filepath.Join(dir, "qrimzn.toml")
	content := `[install]
root = "` + filepath.ToSlash(root) + `"

[log]
level = "error"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	if script != "" {
		if runtime.GOOS == "windows" {
			t.Skip("shell script stubs require a POSIX shell")
		}
		bin := filepath.Join(root, "bin", "qrimzn")
		if err := os.MkdirAll(filepath.Dir(bin), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(bin, []byte("#!/bin/sh\n"+script), 0755); err != nil {
			t.Fatal(err)
		}
	}
	return configPath, root
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := Root()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestResizeWritesEachWidth(t *testing.T) {
	configPath, _ := setupRoot(t, "cat\n")
	outDir := filepath.Join(t.TempDir(), "out")

	out, err := run(t, "fake-png", "resize", "-", "--config", configPath,
		"--width", "100", "--width", "200", "-w", "100", "-o", outDir)
	if err != nil {
		t.Fatalf("resize: %v\n%s", err, out)
	}

	for _, name := range []string{"resized_100px.png", "resized_200px.png"} {
		data, err := os.ReadFile(filepath.Join(outDir, name))
		if err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
		if string(data) != "fake-png" {
			t.Errorf("%s = %q", name, data)
		}
	}

	hist, err := run(t, "", "history", "--config", configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if strings.Count(hist, "resize") != 2 {
		t.Errorf("history should list two resize calls:\n%s", hist)
	}
}

func TestResizeRequiresWidth(t *testing.T) {
	configPath, _ := setupRoot(t, "")
	if _, err := run(t, "x", "resize", "-", "--config", configPath); err == nil {
		t.Fatal("expected error without --width")
	}
}

func TestQRCodeToStdout(t *testing.T) {
	configPath, _ := setupRoot(t, `printf '%s,' "$@"
`)

	out, err := run(t, "", "qrcode", "--config", configPath, "--content", "hello", "--code", "abc", "-o", "-")
	if err != nil {
		t.Fatalf("qrcode: %v", err)
	}
	if out != "--type,qrcode,--content,hello,--code,abc," {
		t.Errorf("out = %q", out)
	}
}

func TestQRCodeFailureRecorded(t *testing.T) {
	configPath, _ := setupRoot(t, "exit 3\n")

	_, err := run(t, "", "qrcode", "--config", configPath, "--content", "hello", "--code", "abc", "-o", "-")
	if err == nil {
		t.Fatal("expected failure")
	}

	hist, err := run(t, "", "history", "--config", configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(hist, "process_failed (3)") {
		t.Errorf("history should show the exit code:\n%s", hist)
	}
}

func TestMissingBinaryHint(t *testing.T) {
	configPath, _ := setupRoot(t, "")

	_, err := run(t, "", "qrcode", "--config", configPath, "--content", "c", "--code", "k", "-o", "-")
	if err == nil || !strings.Contains(err.Error(), "qrimzn install") {
		t.Fatalf("err = %v, want a hint to run install", err)
	}
}

func TestStatusFreshRoot(t *testing.T) {
	configPath, _ := setupRoot(t, "")

	out, err := run(t, "", "status", "--config", configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "missing") || !strings.Contains(out, "never") {
		t.Errorf("status output:\n%s", out)
	}
}

func TestStatusNonExecutableBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("execute bits are not tracked on windows")
	}
	configPath, root := setupRoot(t, "")
	bin := filepath.Join(root, "bin", "qrimzn")
	if err := os.MkdirAll(filepath.Dir(bin), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bin, []byte("not a program"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "", "status", "--config", configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, bin+" (missing)") {
		t.Errorf("non-executable binary should read as missing:\n%s", out)
	}

	if err := os.Chmod(bin, 0755); err != nil {
		t.Fatal(err)
	}
	out, err = run(t, "", "status", "--config", configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, bin+" (present)") {
		t.Errorf("status output:\n%s", out)
	}
}

func TestInitWritesTemplate(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "cfg", "qrimzn.toml")

	out, err := run(t, "", "init", "--config", configPath)
	if err != nil {
		t.Fatalf("init: %v\n%s", err, out)
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Errorf("config not written: %v", err)
	}
	if !strings.Contains(out, "state database: OK") {
		t.Errorf("init output:\n%s", out)
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	if err != nil {
		t.Fatal(err)
	}
	if out != "qrimzn dev\n" {
		t.Errorf("out = %q", out)
	}
}

func TestUniqueWidths(t *testing.T) {
	got := uniqueWidths([]int{300, 100, 300, 200, 100})
	want := []int{300, 100, 200}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
