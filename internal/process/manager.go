// Package process runs the assistant CLI as a cancellable streaming subprocess.
package process

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultKillGrace    = 5 * time.Second
	DefaultProbeTimeout = 10 * time.Second

	readBufferSize  = 32 * 1024
	stderrLimit     = 64 * 1024
	probeFlightName = "version"
)

// ChunkStream yields stdout text in arrival order. Next returns io.EOF after a
// clean exit and a *Error otherwise; once it has returned an error it keeps
// returning the same one. A stream has a single consumer.
type ChunkStream interface {
	Next() (string, error)
	Close() error
}

type SpawnOptions struct {
	Dir     string
	Timeout time.Duration
}

// Manager owns at most one live CLI process.
type Manager struct {
	executable   string
	logger       *zap.Logger
	killGrace    time.Duration
	probeTimeout time.Duration
	probes       singleflight.Group

	mu      sync.Mutex
	current *run
}

type Option func(*Manager)

func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithKillGrace sets how long a terminated process may linger before it is
// killed outright.
func WithKillGrace(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.killGrace = d
		}
	}
}

func WithProbeTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.probeTimeout = d
		}
	}
}

func NewManager(executable string, opts ...Option) *Manager {
	m := &Manager{
		executable:   executable,
		logger:       zap.NewNop(),
		killGrace:    DefaultKillGrace,
		probeTimeout: DefaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Executable() string {
	return m.executable
}

// Spawn starts the CLI with args. ctx cancellation and opts.Timeout both
// terminate the process and end the stream with a CANCELLED error.
func (m *Manager) Spawn(ctx context.Context, args []string, opts SpawnOptions) (ChunkStream, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, cancelledError(err, opts.Timeout)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		return nil, busyError()
	}

	cmd := exec.Command(m.executable, args...)
	cmd.Dir = opts.Dir
	cmd.WaitDelay = m.killGrace
	setupProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, spawnError("create stdout pipe", err)
	}
	stderr := &limitedBuffer{limit: stderrLimit}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, spawnError("start "+m.executable, err)
	}

	r := &run{
		m:       m,
		cmd:     cmd,
		stdout:  stdout,
		stderr:  stderr,
		buf:     make([]byte, readBufferSize),
		timeout: opts.Timeout,
		started: time.Now(),
	}
	m.current = r

	r.stopCtx = context.AfterFunc(ctx, func() { r.terminate(ctx.Err()) })
	if opts.Timeout > 0 {
		r.timer = time.AfterFunc(opts.Timeout, func() { r.terminate(context.DeadlineExceeded) })
	}

	m.logger.Debug("spawned CLI process",
		zap.String("executable", m.executable),
		zap.Int("pid", cmd.Process.Pid),
		zap.Int("args", len(args)),
		zap.Duration("timeout", opts.Timeout),
	)
	return r, nil
}

// Kill asks the live process, if any, to terminate and returns without
// waiting for it to exit.
func (m *Manager) Kill() {
	m.mu.Lock()
	r := m.current
	m.mu.Unlock()
	if r != nil {
		r.terminate(context.Canceled)
	}
}

// Running reports whether a process currently occupies the slot.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}

func (m *Manager) release(r *run) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == r {
		m.current = nil
	}
}

type run struct {
	m       *Manager
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stderr  *limitedBuffer
	buf     []byte
	timeout time.Duration
	started time.Time

	stopCtx func() bool
	timer   *time.Timer

	termMu    sync.Mutex
	reason    error
	exited    bool
	killTimer *time.Timer

	pending error
	done    bool
	result  error
}

func (r *run) Next() (string, error) {
	for !r.done {
		if r.pending != nil {
			r.finish(r.pending)
			break
		}
		n, err := r.stdout.Read(r.buf)
		if err != nil {
			r.pending = err
		}
		if n > 0 {
			return string(r.buf[:n]), nil
		}
	}
	return "", r.result
}

// Close abandons the stream, terminating the process if it is still running.
func (r *run) Close() error {
	if r.done {
		return nil
	}
	r.terminate(context.Canceled)
	_, _ = io.Copy(io.Discard, r.stdout)
	r.finish(io.EOF)
	return nil
}

// terminate records why the process is being stopped and signals it. The
// first reason wins.
func (r *run) terminate(reason error) {
	r.termMu.Lock()
	defer r.termMu.Unlock()
	if r.exited {
		return
	}
	if r.reason == nil {
		r.reason = reason
	}
	if err := signalTerminate(r.cmd); err != nil {
		r.m.logger.Debug("terminate signal failed", zap.Error(err))
	}
	if r.killTimer == nil {
		r.killTimer = time.AfterFunc(r.m.killGrace, func() {
			r.termMu.Lock()
			defer r.termMu.Unlock()
			if !r.exited {
				_ = forceKill(r.cmd)
			}
		})
	}
}

func (r *run) finish(readErr error) {
	waitErr := r.cmd.Wait()

	r.stopCtx()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.termMu.Lock()
	r.exited = true
	reason := r.reason
	if r.killTimer != nil {
		r.killTimer.Stop()
	}
	r.termMu.Unlock()

	r.m.release(r)
	r.done = true
	r.result = r.classify(reason, readErr, waitErr)

	fields := []zap.Field{zap.Duration("elapsed", time.Since(r.started))}
	if r.cmd.ProcessState != nil {
		fields = append(fields, zap.Int("exit_code", r.cmd.ProcessState.ExitCode()))
	}
	if r.result != io.EOF {
		fields = append(fields, zap.Error(r.result))
	}
	r.m.logger.Debug("CLI process finished", fields...)
}

func (r *run) classify(reason, readErr, waitErr error) error {
	if errors.Is(waitErr, exec.ErrWaitDelay) {
		waitErr = nil
	}
	switch {
	case reason != nil:
		// a signalled process that exits cleanly was still cancelled
		return cancelledError(reason, r.timeout)
	case waitErr != nil:
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return exitError(exitErr.ExitCode(), r.stderr.String())
		}
		return spawnError("wait for CLI process", waitErr)
	case readErr != nil && !errors.Is(readErr, io.EOF):
		return spawnError("read CLI output", readErr)
	default:
		return io.EOF
	}
}

// limitedBuffer keeps the first limit bytes written to it.
type limitedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}
