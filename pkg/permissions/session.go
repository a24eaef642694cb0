package permissions

import (
	"context"
	"errors"
	"fmt"
	"sync"

	pekoerrors "github.com/go-drift/peko/pkg/errors"
)

// Session errors.
var (
	// ErrNoPermissions is returned when a prompt is requested for an empty set.
	ErrNoPermissions = errors.New("permissions: no permissions to request")

	// ErrSessionUsed is returned when a session is asked to prompt twice.
	ErrSessionUsed = errors.New("permissions: session already used")

	// ErrSessionFinished is returned when a finished session is asked to prompt.
	ErrSessionFinished = errors.New("permissions: session finished")
)

// Session is a single-use binding to the host's prompt surface.
//
// A session shows one dialog for one set of names, delivers one classified
// result per name on Results, and closes Results. Finish must be called
// exactly once per acquired session on every path, whether or not a dialog
// was shown; further calls do nothing.
type Session interface {
	// RequestPermissions shows the host dialog for names. It does not wait
	// for the user's decision.
	RequestPermissions(names []string) error

	// Results delivers the classified outcomes in the order the host
	// reported them. It is closed after the last result or on failure.
	Results() <-chan Result

	// Err returns the failure that closed Results early, if any.
	Err() error

	// Finish releases the host surface.
	Finish()
}

// SessionFactory acquires sessions bound to a host surface. Acquire may wait
// for the host to attach its surface; concurrent calls must be safe.
type SessionFactory interface {
	Acquire(ctx context.Context) (Session, error)
}

// Decision is the host's verdict for one permission in a batch.
type Decision struct {
	Permission string
	Granted    bool
	// CanShowAgain reports whether the host would show the dialog again.
	// It is ignored when Granted is true.
	CanShowAgain bool
}

// Classify turns a host decision into a result. The granted flag dominates.
func Classify(d Decision) Result {
	switch {
	case d.Granted:
		return Granted(d.Permission)
	case d.CanShowAgain:
		return NeedsRationale(d.Permission)
	default:
		return DeniedPermanently(d.Permission)
	}
}

// Prompter is the host primitive behind a session.
type Prompter interface {
	// Prompt shows the dialog for names and returns once it is shown.
	// respond is called later with one decision per name, or with an error
	// if the dialog could not complete.
	Prompt(names []string, respond func([]Decision, error)) error

	// Detach releases the host surface the prompter is bound to.
	Detach() error
}

// NewSession returns a Session that drives p.
func NewSession(p Prompter) Session {
	return &promptSession{prompter: p}
}

type promptSession struct {
	prompter Prompter

	mu        sync.Mutex
	requested []string
	results   chan Result
	delivered bool
	finished  bool
	err       error

	finishOnce sync.Once
}

func (s *promptSession) RequestPermissions(names []string) error {
	if len(names) == 0 {
		return ErrNoPermissions
	}

	s.mu.Lock()
	switch {
	case s.finished:
		s.mu.Unlock()
		return ErrSessionFinished
	case s.results != nil:
		s.mu.Unlock()
		return ErrSessionUsed
	}
	s.requested = append([]string(nil), names...)
	// Sized so delivery never blocks on a slow or absent consumer.
	s.results = make(chan Result, len(names))
	s.mu.Unlock()

	if err := s.prompter.Prompt(s.requested, s.respond); err != nil {
		err = fmt.Errorf("permissions: prompt: %w", err)
		s.fail(err)
		return err
	}
	return nil
}

func (s *promptSession) Results() <-chan Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

func (s *promptSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *promptSession) Finish() {
	s.finishOnce.Do(func() {
		s.mu.Lock()
		s.finished = true
		s.mu.Unlock()

		if err := s.prompter.Detach(); err != nil {
			pekoerrors.Report(&pekoerrors.Error{
				Op:   "permissions.session.finish",
				Kind: pekoerrors.KindPlatform,
				Err:  err,
			})
		}
	})
}

func (s *promptSession) respond(decisions []Decision, err error) {
	if err != nil {
		s.fail(err)
		return
	}
	s.deliver(decisions)
}

// deliver classifies one batch. Only the first batch counts.
func (s *promptSession) deliver(decisions []Decision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delivered || s.finished || s.results == nil {
		return
	}
	s.delivered = true

	pending := make(map[string]bool, len(s.requested))
	for _, name := range s.requested {
		pending[name] = true
	}

	for _, d := range decisions {
		stillPending, requested := pending[d.Permission]
		if !requested || !stillPending {
			pekoerrors.Report(&pekoerrors.Error{
				Op:   "permissions.session.deliver",
				Kind: pekoerrors.KindProtocol,
				Err:  fmt.Errorf("unexpected decision for %q", d.Permission),
			})
			continue
		}
		pending[d.Permission] = false
		s.results <- Classify(d)
	}

	// A name the host never reported was not decided by the user, so it is
	// left re-promptable.
	for _, name := range s.requested {
		if !pending[name] {
			continue
		}
		pekoerrors.Report(&pekoerrors.Error{
			Op:   "permissions.session.deliver",
			Kind: pekoerrors.KindProtocol,
			Err:  fmt.Errorf("no decision reported for %q", name),
		})
		pending[name] = false
		s.results <- NeedsRationale(name)
	}
	close(s.results)
}

func (s *promptSession) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delivered || s.results == nil {
		return
	}
	s.delivered = true
	s.err = err
	close(s.results)
}
