package permissions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	pekoerrors "github.com/go-drift/peko/pkg/errors"
)

// DefaultRequestTimeout bounds how long a Request waits for the user to
// answer the dialog.
const DefaultRequestTimeout = 30 * time.Second

var (
	// ErrTimeout means the host did not report a decision before the
	// request timeout.
	ErrTimeout = errors.New("permissions: request timed out")

	// ErrCanceled means the request was abandoned before it completed.
	ErrCanceled = errors.New("permissions: request canceled")
)

// Requester negotiates permissions with one host.
// It is safe for concurrent use; every call owns its own stream and session.
type Requester struct {
	host     Host
	sessions SessionFactory
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures a Requester.
type Option func(*Requester)

// WithSessionFactory overrides where prompt sessions come from.
// By default the host itself is the factory.
func WithSessionFactory(f SessionFactory) Option {
	return func(r *Requester) { r.sessions = f }
}

// WithTimeout bounds the wait for the host's decision. Zero or negative
// disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Requester) { r.timeout = d }
}

// WithLogger sets the logger for request lifecycle records.
func WithLogger(l *slog.Logger) Option {
	return func(r *Requester) { r.logger = l }
}

// New returns a Requester for host.
func New(host Host, opts ...Option) *Requester {
	r := &Requester{
		host:     host,
		sessions: host,
		timeout:  DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// AreGranted reports whether the host already grants every name.
// It never shows a dialog. With no names it returns true.
func (r *Requester) AreGranted(names ...string) (bool, error) {
	req, err := Partition(r.host, names...)
	if err != nil {
		return false, err
	}
	return !req.NeedsPrompt(), nil
}

// Request starts negotiating names and returns the stream of results.
//
// Names the host already grants are emitted first, in input order. The rest
// are requested in one dialog and emitted in the order the host reports them.
// If every name is granted no dialog is shown. Cancelling ctx or the stream
// stops the negotiation; the dialog's host surface is released either way.
func (r *Requester) Request(ctx context.Context, names ...string) *Stream {
	req, err := Partition(r.host, names...)
	if err != nil {
		return closedStream(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := newStream(cancel)
	go r.produce(ctx, req, s)
	return s
}

func (r *Requester) produce(ctx context.Context, req Descriptor, s *Stream) {
	defer close(s.done)
	defer s.Cancel()
	defer pekoerrors.RecoverWithCallback("permissions.produce", func(v any) {
		s.close(fmt.Errorf("permissions: producer panic: %v", v))
	})

	for _, name := range req.granted {
		s.push(Granted(name))
	}
	if !req.NeedsPrompt() {
		r.logger.Debug("permissions already granted", "permissions", req.granted)
		s.close(nil)
		return
	}

	s.close(r.prompt(ctx, req.denied, s))
}

// prompt runs one session for denied and forwards its results to s.
func (r *Requester) prompt(ctx context.Context, denied []string, s *Stream) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, r.timeout, ErrTimeout)
		defer cancel()
	}

	session, err := r.sessions.Acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return contextError(ctx)
		}
		return fmt.Errorf("permissions: acquire session: %w", err)
	}
	defer session.Finish()

	r.logger.Debug("requesting permissions", "permissions", denied)
	if err := session.RequestPermissions(denied); err != nil {
		return err
	}

	results := session.Results()
	for {
		select {
		case result, ok := <-results:
			if !ok {
				if err := session.Err(); err != nil {
					return err
				}
				r.logger.Debug("permission request finished", "permissions", denied)
				return nil
			}
			s.push(result)
		case <-ctx.Done():
			r.logger.Debug("permission request stopped", "permissions", denied, "cause", context.Cause(ctx))
			return contextError(ctx)
		}
	}
}

// contextError maps a finished context to ErrTimeout or ErrCanceled.
func contextError(ctx context.Context) error {
	cause := context.Cause(ctx)
	if errors.Is(cause, ErrTimeout) || errors.Is(cause, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ErrCanceled
}

// AreGranted reports whether the configured host already grants every name.
// It panics if Initialize has not been called.
func AreGranted(names ...string) (bool, error) {
	return New(configuredHost()).AreGranted(names...)
}

// Request negotiates names with the configured host.
// It panics if Initialize has not been called.
func Request(ctx context.Context, names ...string) *Stream {
	return New(configuredHost()).Request(ctx, names...)
}
