// Package agent drives single-flight requests against the assistant CLI and
// turns its output into a stream of events.
package agent

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yubzen/specpilot/internal/process"
	"github.com/yubzen/specpilot/internal/prompt"
	"github.com/yubzen/specpilot/internal/stream"
)

const DefaultTimeout = 300000 * time.Millisecond

// Runner is the process contract the service depends on. *process.Manager
// satisfies it.
type Runner interface {
	Spawn(ctx context.Context, args []string, opts process.SpawnOptions) (process.ChunkStream, error)
	Kill()
	CheckAvailability(ctx context.Context) process.Availability
}

type Service struct {
	runner     Runner
	builder    *prompt.Builder
	logger     *zap.Logger
	timeout    time.Duration
	workingDir string
	extraDirs  []string
	scrub      bool
	now        func() time.Time

	mu       sync.Mutex
	status   Status
	cancel   context.CancelFunc
	disposed bool
	done     chan struct{}
}

type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithWorkingDir(dir string) Option {
	return func(s *Service) { s.workingDir = dir }
}

// WithExtraDirs adds --add-dir entries to every request.
func WithExtraDirs(dirs ...string) Option {
	return func(s *Service) { s.extraDirs = append(s.extraDirs, dirs...) }
}

func WithBuilder(b *prompt.Builder) Option {
	return func(s *Service) {
		if b != nil {
			s.builder = b
		}
	}
}

// WithScrub redacts credentials from the message and system prompt.
func WithScrub(enabled bool) Option {
	return func(s *Service) { s.scrub = enabled }
}

func withClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(runner Runner, opts ...Option) *Service {
	s := &Service{
		runner:  runner,
		builder: prompt.NewBuilder(prompt.Options{}),
		logger:  zap.NewNop(),
		timeout: DefaultTimeout,
		now:     time.Now,
		status:  Status{State: StateIdle},
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendMessage starts a request and returns its event channel. The channel
// yields start, the parsed content events in arrival order, and exactly one
// terminal event (complete or error), then closes. The request stays in
// flight until its terminal event has been received; until then every other
// SendMessage returns ErrBusy. The status is final once the channel closes.
//
// Cancel stops delivery of content events, but the CANCELLED event is still
// handed to the consumer. Cancelling ctx or calling Dispose abandons the
// request: undelivered events, the terminal one included, are dropped and
// the channel closes.
func (s *Service) SendMessage(ctx context.Context, message string, opts SendOptions) (<-chan stream.Event, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil, ErrDisposed
	}
	if s.status.State.InFlight() {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	reqCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.status.State = StateSending
	s.mu.Unlock()

	req := &request{
		svc:    s,
		ctx:    ctx,
		events: make(chan stream.Event),
		logger: s.logger.With(zap.String("request_id", uuid.NewString())),
	}
	if opts.SessionID != "" || opts.ContinueSession {
		req.logger.Debug("session options are not forwarded to the CLI",
			zap.String("session_id", opts.SessionID),
			zap.Bool("continue_session", opts.ContinueSession),
		)
	}
	args := s.buildArgs(message, opts)

	go req.run(reqCtx, cancel, args)
	return req.events, nil
}

// Cancel signals the in-flight request, if any, and returns immediately.
func (s *Service) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// CheckAvailability probes the CLI and records the result in the status.
func (s *Service) CheckAvailability(ctx context.Context) process.Availability {
	avail := s.runner.CheckAvailability(ctx)

	s.mu.Lock()
	s.status.Ready = avail.Available
	s.status.CLIVersion = avail.Version
	s.mu.Unlock()
	return avail
}

func (s *Service) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Dispose cancels any in-flight request and kills any live process. Later
// sends fail with ErrDisposed.
func (s *Service) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	close(s.done)
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.runner.Kill()
}

func (s *Service) setState(state State) {
	s.mu.Lock()
	s.status.State = state
	s.mu.Unlock()
}

// finish records the outcome of a request and releases its cancel func.
func (s *Service) finish(state State, message string) {
	s.mu.Lock()
	s.status.State = state
	s.status.ErrorMessage = message
	s.cancel = nil
	s.mu.Unlock()
}

type request struct {
	svc    *Service
	ctx    context.Context
	reqCtx context.Context
	events chan stream.Event
	logger *zap.Logger
}

// emit delivers a content event. It gives up once the request is cancelled
// or abandoned.
func (r *request) emit(ev stream.Event) {
	select {
	case r.events <- ev:
	case <-r.reqCtx.Done():
	}
}

// end hands over the terminal event, then records the outcome. Only an
// abandoned or disposed request drops it.
func (r *request) end(ev stream.Event, state State, message string) {
	select {
	case r.events <- ev:
	case <-r.ctx.Done():
		r.logger.Debug("terminal event dropped", zap.String("reason", "caller abandoned the request"))
	case <-r.svc.done:
		r.logger.Debug("terminal event dropped", zap.String("reason", "service disposed"))
	}
	r.svc.finish(state, message)
}

func (r *request) run(ctx context.Context, cancel context.CancelFunc, args []string) {
	defer close(r.events)
	defer cancel()

	r.reqCtx = ctx
	s := r.svc
	started := s.now()
	r.emit(stream.Start(started))

	r.logger.Debug("spawning CLI", zap.Strings("args", truncateArgs(args)))
	chunks, err := s.runner.Spawn(ctx, args, process.SpawnOptions{Dir: s.workingDir, Timeout: s.timeout})
	if err != nil {
		r.fail(err)
		return
	}
	defer chunks.Close()

	s.setState(StateStreaming)
	parser := stream.NewParser(r.logger)
	for {
		chunk, err := chunks.Next()
		if errors.Is(err, io.EOF) {
			if r.deliver(parser.Flush(), chunks) {
				return
			}
			r.logger.Debug("request complete", zap.Duration("elapsed", time.Since(started)))
			r.end(stream.Complete(s.now()), StateIdle, "")
			return
		}
		if err != nil {
			r.fail(err)
			return
		}
		r.logger.Debug("chunk received", zap.Int("chunk_bytes", len(chunk)))
		if r.deliver(parser.Parse(chunk), chunks) {
			return
		}
	}
}

// deliver emits events in order. An error event from the CLI ends the
// request; deliver then stops the process and reports true.
func (r *request) deliver(events []stream.Event, chunks process.ChunkStream) bool {
	for _, ev := range events {
		if ev.Type != stream.EventError {
			r.emit(ev)
			continue
		}
		if ev.Code == "" {
			ev.Code = stream.CodeCLIError
		}
		_ = chunks.Close()
		r.logger.Warn("CLI reported an error",
			zap.String("message", ev.Message),
			zap.String("code", string(ev.Code)),
		)
		r.end(ev, StateError, ev.Message)
		return true
	}
	return false
}

func (r *request) fail(err error) {
	cause := err
	err = normalizeCancellationErr(err)
	if IsCancelled(err) {
		r.logger.Info("request cancelled",
			zap.String("cause", cause.Error()),
			zap.Bool("timeout", errors.Is(err, context.DeadlineExceeded)),
		)
		r.end(stream.Error(err.Error(), stream.CodeCancelled), StateIdle, "")
		return
	}

	msg := err.Error()
	fields := []zap.Field{zap.Error(err)}
	var perr *process.Error
	if errors.As(err, &perr) && perr.Code == stream.CodeCLIError {
		fields = append(fields, zap.Int("exit_code", perr.ExitCode))
	}
	r.logger.Warn("request failed", fields...)
	r.end(stream.Error(msg, stream.CodeUnknown), StateError, msg)
}

// truncateArgs shortens the prompt-bearing arguments for logging.
func truncateArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if len(a) > 80 {
			cut := 80
			for cut > 0 && !utf8.RuneStart(a[cut]) {
				cut--
			}
			a = a[:cut] + "..."
		}
		out[i] = a
	}
	return out
}
