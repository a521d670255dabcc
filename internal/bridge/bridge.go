// Package bridge runs the installed qrimzn binary once per request, feeding
// it stdin bytes and collecting its stdout into a single buffer.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/outranker/qrimzn-bridge/internal/logging"
	"github.com/outranker/qrimzn-bridge/internal/runner"
)

// Phase is a step in the life of one call.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseValidating     Phase = "validating"
	PhaseSpawned        Phase = "spawned"
	PhaseStreamingInput Phase = "streaming_input"
	PhaseAwaitingOutput Phase = "awaiting_output"
	PhaseResolved       Phase = "resolved"
	PhaseRejected       Phase = "rejected"
)

// CallRecord summarizes a finished call.
type CallRecord struct {
	ID          string
	Kind        Kind
	Args        []string
	Phase       Phase // PhaseResolved or PhaseRejected
	Err         error
	ExitCode    int
	InputBytes  int
	OutputBytes int
	Warnings    int // unexpected stderr lines
	Started     time.Time
	Duration    time.Duration
}

// Observer receives one record per call in its terminal phase.
// It may be invoked from several goroutines at once.
type Observer interface {
	ObserveCall(CallRecord)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(CallRecord)

func (f ObserverFunc) ObserveCall(r CallRecord) { f(r) }

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger. Nil discards.
func WithLogger(l logrus.FieldLogger) Option {
	return func(b *Bridge) { b.log = logging.OrDiscard(l) }
}

// WithEnvOverlay sets variables added to the parent environment for every child.
func WithEnvOverlay(env map[string]string) Option {
	return func(b *Bridge) { b.overlay = maps.Clone(env) }
}

// WithObserver registers an observer for finished calls.
func WithObserver(o Observer) Option {
	return func(b *Bridge) { b.observer = o }
}

// WithChunkSize sets the stdout read size.
func WithChunkSize(n int) Option {
	return func(b *Bridge) { b.chunkSize = n }
}

// CallOption adjusts a single call.
type CallOption func(*callConfig)

type callConfig struct {
	env map[string]string
}

// WithEnv sets one child environment variable for this call only. It wins
// over the bridge overlay and the parent environment.
func WithEnv(key, value string) CallOption {
	return func(c *callConfig) {
		if c.env == nil {
			c.env = make(map[string]string)
		}
		c.env[key] = value
	}
}

// Bridge spawns the binary at a fixed path. It holds no per-call state and
// is safe for concurrent use.
type Bridge struct {
	binPath   string
	runner    runner.CommandRunner
	log       logrus.FieldLogger
	overlay   map[string]string
	observer  Observer
	chunkSize int
}

// New creates a Bridge for the binary at binPath.
func New(binPath string, r runner.CommandRunner, opts ...Option) *Bridge {
	b := &Bridge{
		binPath:   binPath,
		runner:    r,
		log:       logging.Discard(),
		chunkSize: runner.DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BinaryPath returns the path the bridge spawns.
func (b *Bridge) BinaryPath() string { return b.binPath }

// Resize scales an encoded image to width pixels wide.
func (b *Bridge) Resize(ctx context.Context, payload []byte, width int, opts ...CallOption) ([]byte, error) {
	return b.Do(ctx, ResizeRequest{Input: payload, Width: width}, opts...)
}

// QRCode renders content as a QR image.
func (b *Bridge) QRCode(ctx context.Context, content, code string, opts ...CallOption) ([]byte, error) {
	return b.Do(ctx, QRCodeRequest{Content: content, Code: code}, opts...)
}

// Do runs op in a fresh process and returns everything it wrote to stdout.
func (b *Bridge) Do(ctx context.Context, op Operation, opts ...CallOption) ([]byte, error) {
	var cc callConfig
	for _, opt := range opts {
		opt(&cc)
	}

	rec := CallRecord{
		ID:      uuid.NewString(),
		Kind:    op.Kind(),
		Started: time.Now(),
	}
	log := b.log.WithFields(logrus.Fields{
		"call_id": rec.ID,
		"kind":    rec.Kind,
	})

	out, err := b.run(ctx, op, cc, &rec, log)

	rec.Duration = time.Since(rec.Started)
	rec.OutputBytes = len(out)
	rec.Err = err
	if err != nil {
		rec.Phase = PhaseRejected
		log.WithError(err).Debug("call rejected")
	} else {
		rec.Phase = PhaseResolved
		log.WithField("bytes", len(out)).Debug("call resolved")
	}
	if b.observer != nil {
		b.observer.ObserveCall(rec)
	}
	return out, err
}

func (b *Bridge) run(ctx context.Context, op Operation, cc callConfig, rec *CallRecord, log logrus.FieldLogger) ([]byte, error) {
	// Validating
	if err := op.Validate(); err != nil {
		return nil, err
	}
	if err := b.checkBinary(); err != nil {
		return nil, err
	}

	args := op.Args()
	payload := op.Payload()
	rec.Args = args
	rec.InputBytes = len(payload)

	proc, err := b.runner.Start(ctx, runner.Spec{
		Path:  b.binPath,
		Args:  args,
		Env:   b.childEnv(cc.env),
		Stdin: payload,
	})
	if err != nil {
		return nil, &SpawnError{Path: b.binPath, Err: err}
	}
	log.WithField("args", args).Debug(string(PhaseSpawned))
	if payload != nil {
		log.WithField("bytes", len(payload)).Debug(string(PhaseStreamingInput))
	}

	// stderr is drained alongside stdout so neither pipe can fill and stall the child
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		rec.Warnings = logDiagnostics(proc.Stderr(), log)
	}()

	log.Debug(string(PhaseAwaitingOutput))
	out, readErr := runner.Concat(runner.Chunks(proc.Stdout(), b.chunkSize))
	if readErr != nil {
		_, _ = io.Copy(io.Discard, proc.Stdout())
	}
	wg.Wait()

	waitErr := proc.Wait()
	if waitErr != nil {
		code, ok := runner.ExitCode(waitErr)
		if !ok {
			return nil, fmt.Errorf("waiting for qrimzn %s: %w", op.Kind(), waitErr)
		}
		rec.ExitCode = code
		perr := &ProcessError{Kind: op.Kind(), Code: code}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", perr, ctxErr)
		}
		log.WithField("exit_code", code).Warn("qrimzn exited with failure")
		return nil, perr
	}
	if readErr != nil {
		return nil, fmt.Errorf("reading qrimzn output: %w", readErr)
	}
	return out, nil
}

func (b *Bridge) checkBinary() error {
	info, err := os.Stat(b.binPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrBinaryNotFound, b.binPath)
		}
		return fmt.Errorf("%w: %s: %v", ErrBinaryNotFound, b.binPath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrBinaryNotFound, b.binPath)
	}
	return nil
}

// childEnv composes parent, overlay and per-call variables into a new slice.
func (b *Bridge) childEnv(call map[string]string) []string {
	if len(b.overlay) == 0 && len(call) == 0 {
		return nil
	}
	return mergeEnv(os.Environ(), b.overlay, call)
}

// mergeEnv returns base with each layer applied in order. Later layers win.
func mergeEnv(base []string, layers ...map[string]string) []string {
	merged := make(map[string]string)
	order := make([]string, 0, len(base))
	set := func(k, v string) {
		if _, seen := merged[k]; !seen {
			order = append(order, k)
		}
		merged[k] = v
	}
	for _, kv := range base {
		k, v, _ := cutEnv(kv)
		set(k, v)
	}
	for _, layer := range layers {
		for _, k := range slices.Sorted(maps.Keys(layer)) {
			set(k, layer[k])
		}
	}

	env := make([]string, 0, len(order))
	for _, k := range order {
		env = append(env, k+"="+merged[k])
	}
	return env
}

func cutEnv(kv string) (key, value string, ok bool) {
	// Windows keeps per-drive variables like "=C:=C:\" with a leading '='
	for i := 1; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i], kv[i+1:], true
		}
	}
	return kv, "", false
}
