package runner

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stubs require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "stub")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatalf("cannot create stub: %v", err)
	}
	return path
}

func TestOSRunnerStartEcho(t *testing.T) {
	stub := writeScript(t, "cat\n")
	r := &OSRunner{}

	proc, err := r.Start(context.Background(), Spec{Path: stub, Stdin: []byte("hello")})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	out, err := io.ReadAll(proc.Stdout())
	if err != nil {
		t.Fatalf("reading stdout: %v", err)
	}
	io.Copy(io.Discard, proc.Stderr())
	if err := proc.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if string(out) != "hello" {
		t.Errorf("stdout = %q, want %q", out, "hello")
	}
}

func TestOSRunnerStartEnv(t *testing.T) {
	stub := writeScript(t, "printf '%s' \"$GOGC\"\n")
	r := &OSRunner{}

	proc, err := r.Start(context.Background(), Spec{Path: stub, Env: []string{"GOGC=25"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	out, _ := io.ReadAll(proc.Stdout())
	io.Copy(io.Discard, proc.Stderr())
	if err := proc.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if string(out) != "25" {
		t.Errorf("stdout = %q, want %q", out, "25")
	}
}

func TestOSRunnerExitCode(t *testing.T) {
	stub := writeScript(t, "exit 7\n")
	r := &OSRunner{}

	proc, err := r.Start(context.Background(), Spec{Path: stub})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	io.Copy(io.Discard, proc.Stdout())
	io.Copy(io.Discard, proc.Stderr())

	code, ok := ExitCode(proc.Wait())
	if !ok {
		t.Fatal("expected an exit code")
	}
	if code != 7 {
		t.Errorf("exit code = %d, want 7", code)
	}
}

func TestOSRunnerStartMissingBinary(t *testing.T) {
	r := &OSRunner{}
	_, err := r.Start(context.Background(), Spec{Path: filepath.Join(t.TempDir(), "absent")})
	if err == nil {
		t.Fatal("expected start error for missing binary")
	}
}

func TestOSRunnerRun(t *testing.T) {
	stub := writeScript(t, "echo out; echo err >&2\n")
	r := &OSRunner{}

	stdout, stderr, err := r.Run(context.Background(), stub)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.TrimSpace(stdout) != "out" {
		t.Errorf("stdout = %q", stdout)
	}
	if strings.TrimSpace(stderr) != "err" {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestExitCodeAbsent(t *testing.T) {
	if _, ok := ExitCode(errors.New("plain")); ok {
		t.Error("plain error should carry no exit code")
	}
	if _, ok := ExitCode(nil); ok {
		t.Error("nil should carry no exit code")
	}
}

func TestFakeRunnerScripts(t *testing.T) {
	fake := NewFakeRunner()
	fake.SetScript("/bin/tool --type resize", Script{Echo: true})
	fake.SetScript("/bin/tool --type qrcode", Script{Stdout: []byte("png"), ExitCode: 3})

	ctx := context.Background()

	proc, err := fake.Start(ctx, Spec{Path: "/bin/tool", Args: []string{"--type", "resize"}, Stdin: []byte("img")})
	if err != nil {
		t.Fatalf("Start resize: %v", err)
	}
	out, _ := io.ReadAll(proc.Stdout())
	if string(out) != "img" {
		t.Errorf("resize stdout = %q, want %q", out, "img")
	}
	if err := proc.Wait(); err != nil {
		t.Errorf("resize Wait: %v", err)
	}

	proc, err = fake.Start(ctx, Spec{Path: "/bin/tool", Args: []string{"--type", "qrcode"}})
	if err != nil {
		t.Fatalf("Start qrcode: %v", err)
	}
	if code, ok := ExitCode(proc.Wait()); !ok || code != 3 {
		t.Errorf("qrcode exit = %d (%v), want 3", code, ok)
	}

	if fake.StartCount() != 2 {
		t.Errorf("StartCount = %d, want 2", fake.StartCount())
	}
	if fake.CallCount("/bin/tool --type resize") != 1 {
		t.Errorf("resize call count = %d, want 1", fake.CallCount("/bin/tool --type resize"))
	}

	fake.Reset()
	if fake.StartCount() != 0 || fake.Called("/bin/tool") {
		t.Error("Reset should clear recorded calls")
	}
}

func TestFakeRunnerStartError(t *testing.T) {
	fake := NewFakeRunner()
	boom := errors.New("permission denied")
	fake.SetDefaultScript(Script{StartErr: boom})

	_, err := fake.Start(context.Background(), Spec{Path: "/bin/tool"})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if fake.StartCount() != 1 {
		t.Errorf("StartCount = %d, want 1", fake.StartCount())
	}
}

func TestFakeRunnerRunResponses(t *testing.T) {
	fake := NewFakeRunner()
	fake.SetResponse("/bin/tool --help", Response{Stdout: "usage"})
	fake.SetFallback(Response{Err: errors.New("unexpected")})

	out, _, err := fake.Run(context.Background(), "/bin/tool", "--help")
	if err != nil || out != "usage" {
		t.Errorf("Run --help = %q, %v", out, err)
	}
	if _, _, err := fake.Run(context.Background(), "/bin/other"); err == nil {
		t.Error("expected fallback error")
	}
}
