package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Call records a single invocation of a command.
type Call struct {
	Name string
	Args []string
}

func (c Call) String() string {
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Response is a pre-configured response for a command pattern.
type Response struct {
	Stdout string
	Stderr string
	Err    error
}

// Script is a pre-configured child process served by FakeRunner.Start.
type Script struct {
	Stdout   []byte
	Stderr   string
	ExitCode int
	// StartErr makes Start fail before any process exists.
	StartErr error
	// Echo copies Spec.Stdin to stdout after Stdout.
	Echo bool
}

// ExitStatus is the error returned by a fake process that exits non-zero.
type ExitStatus struct {
	Code int
}

func (e *ExitStatus) Error() string { return fmt.Sprintf("exit status %d", e.Code) }

// ExitCode returns the scripted exit code.
func (e *ExitStatus) ExitCode() int { return e.Code }

// FakeRunner records command calls and returns pre-configured responses.
// Exported for use by bridge and installer tests.
type FakeRunner struct {
	mu        sync.Mutex
	Calls     []Call
	Specs     []Spec
	responses map[string]Response // key: "name arg1 arg2..."
	fallback  Response
	scripts   map[string]Script // key: prefix of "path arg1 arg2..."
	script    Script
}

// NewFakeRunner creates a FakeRunner whose processes exit 0 with no output.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		responses: make(map[string]Response),
		scripts:   make(map[string]Script),
	}
}

// SetResponse configures a response for a specific command string.
func (f *FakeRunner) SetResponse(cmd string, resp Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[cmd] = resp
}

// SetFallback sets the default response for unmatched commands.
func (f *FakeRunner) SetFallback(resp Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fallback = resp
}

// SetScript configures the process started for commands beginning with prefix.
// The longest matching prefix wins.
func (f *FakeRunner) SetScript(prefix string, s Script) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[prefix] = s
}

// SetDefaultScript sets the process started for unmatched commands.
func (f *FakeRunner) SetDefaultScript(s Script) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script = s
}

// Run records the call and returns the matching response.
func (f *FakeRunner) Run(_ context.Context, name string, args ...string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := Call{Name: name, Args: args}
	f.Calls = append(f.Calls, call)

	key := call.String()
	if resp, ok := f.responses[key]; ok {
		return resp.Stdout, resp.Stderr, resp.Err
	}

	// Try matching just the command name with first arg for broader matches
	if len(args) > 0 {
		partial := name + " " + args[0]
		if resp, ok := f.responses[partial]; ok {
			return resp.Stdout, resp.Stderr, resp.Err
		}
	}

	if resp, ok := f.responses[name]; ok {
		return resp.Stdout, resp.Stderr, resp.Err
	}

	return f.fallback.Stdout, f.fallback.Stderr, f.fallback.Err
}

// Start records the spawn and returns the matching scripted process.
func (f *FakeRunner) Start(_ context.Context, spec Spec) (Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := Call{Name: spec.Path, Args: spec.Args}
	f.Calls = append(f.Calls, call)
	f.Specs = append(f.Specs, spec)

	s := f.script
	best := -1
	key := call.String()
	for prefix, candidate := range f.scripts {
		if strings.HasPrefix(key, prefix) && len(prefix) > best {
			s, best = candidate, len(prefix)
		}
	}

	if s.StartErr != nil {
		return nil, s.StartErr
	}

	out := append([]byte(nil), s.Stdout...)
	if s.Echo {
		out = append(out, spec.Stdin...)
	}
	return &fakeProcess{
		stdout: bytes.NewReader(out),
		stderr: strings.NewReader(s.Stderr),
		code:   s.ExitCode,
	}, nil
}

// Called returns true if a command matching the prefix was recorded.
func (f *FakeRunner) Called(prefix string) bool {
	return f.CallCount(prefix) > 0
}

// CallCount returns the number of times a command matching the prefix was called.
func (f *FakeRunner) CallCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if strings.HasPrefix(c.String(), prefix) {
			n++
		}
	}
	return n
}

// StartCount returns the number of processes spawned through Start.
func (f *FakeRunner) StartCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Specs)
}

// Reset clears all recorded calls.
func (f *FakeRunner) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = nil
	f.Specs = nil
}

type fakeProcess struct {
	stdout io.Reader
	stderr io.Reader
	code   int
}

func (p *fakeProcess) Stdout() io.Reader { return p.stdout }
func (p *fakeProcess) Stderr() io.Reader { return p.stderr }

func (p *fakeProcess) Wait() error {
	if p.code != 0 {
		return &ExitStatus{Code: p.code}
	}
	return nil
}

// Ensure FakeRunner implements CommandRunner.
var _ CommandRunner = (*FakeRunner)(nil)
var _ CommandRunner = (*OSRunner)(nil)
