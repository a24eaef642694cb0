// Package permissionstest provides a scripted permissions.Host for tests.
package permissionstest

import (
	"context"
	"slices"
	"sync"

	"github.com/go-drift/peko/pkg/permissions"
)

// Host is an in-memory permissions.Host. Grants are looked up in Granted;
// dialogs answer from Decisions. A dialog for a name with no scripted
// decision answers {Granted: false, CanShowAgain: true}.
//
// The zero value is not usable; call New.
type Host struct {
	mu        sync.Mutex
	scope     permissions.Scope
	granted   map[string]bool
	decisions map[string]permissions.Decision
	order     []string
	omit      map[string]bool
	checkErr  error
	acquire   error
	promptErr error
	hold      chan struct{}
	grantOnOK bool

	acquires int
	prompts  [][]string
	finishes int
	detaches int
	shown    chan []string
}

// New returns an application-scoped Host granting the given names.
func New(granted ...string) *Host {
	h := &Host{
		scope:     permissions.ScopeApplication,
		granted:   make(map[string]bool),
		decisions: make(map[string]permissions.Decision),
		omit:      make(map[string]bool),
		shown:     make(chan []string, 16),
	}
	for _, name := range granted {
		h.granted[name] = true
	}
	return h
}

// WithScope sets the scope the host reports.
func (h *Host) WithScope(s permissions.Scope) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scope = s
	return h
}

// Decide scripts the dialog answer for name.
func (h *Host) Decide(name string, granted, canShowAgain bool) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.decisions[name] = permissions.Decision{Permission: name, Granted: granted, CanShowAgain: canShowAgain}
	return h
}

// ReportOrder makes the dialog report decisions in the given order instead
// of request order. Requested names missing from order are reported after.
func (h *Host) ReportOrder(names ...string) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.order = append([]string(nil), names...)
	return h
}

// Omit makes the dialog leave name out of its answer.
func (h *Host) Omit(name string) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.omit[name] = true
	return h
}

// GrantOnApprove makes approved dialog decisions update the grant state.
func (h *Host) GrantOnApprove() *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.grantOnOK = true
	return h
}

// FailChecks makes every grant check return err.
func (h *Host) FailChecks(err error) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkErr = err
	return h
}

// FailAcquire makes Acquire return err.
func (h *Host) FailAcquire(err error) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.acquire = err
	return h
}

// FailPrompt makes the dialog fail to show with err.
func (h *Host) FailPrompt(err error) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.promptErr = err
	return h
}

// Hold keeps every dialog open until Release is called.
func (h *Host) Hold() *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hold = make(chan struct{})
	return h
}

// Release answers dialogs held by Hold.
func (h *Host) Release() {
	h.mu.Lock()
	hold := h.hold
	h.hold = nil
	h.mu.Unlock()
	if hold != nil {
		close(hold)
	}
}

// Shown delivers the names of each dialog as it is shown.
func (h *Host) Shown() <-chan []string {
	return h.shown
}

// Scope implements permissions.Host.
func (h *Host) Scope() permissions.Scope {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.scope
}

// IsGranted implements permissions.GrantOracle.
func (h *Host) IsGranted(name string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.checkErr != nil {
		return false, h.checkErr
	}
	return h.granted[name], nil
}

// Acquire implements permissions.SessionFactory.
func (h *Host) Acquire(ctx context.Context) (permissions.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.acquires++
	if h.acquire != nil {
		return nil, h.acquire
	}
	return &countingSession{Session: permissions.NewSession(&prompter{host: h}), host: h}, nil
}

// Acquires returns how many sessions were handed out.
func (h *Host) Acquires() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.acquires
}

// Prompts returns the names of every dialog shown so far.
func (h *Host) Prompts() [][]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([][]string, len(h.prompts))
	for i, p := range h.prompts {
		out[i] = slices.Clone(p)
	}
	return out
}

// Finishes returns how many times Finish was called on handed-out sessions.
func (h *Host) Finishes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.finishes
}

// Detaches returns how many host surfaces were released.
func (h *Host) Detaches() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.detaches
}

// answer builds the scripted decisions for names.
func (h *Host) answer(names []string) []permissions.Decision {
	h.mu.Lock()
	defer h.mu.Unlock()

	ordered := make([]string, 0, len(names))
	for _, name := range h.order {
		if slices.Contains(names, name) && !slices.Contains(ordered, name) {
			ordered = append(ordered, name)
		}
	}
	for _, name := range names {
		if !slices.Contains(ordered, name) {
			ordered = append(ordered, name)
		}
	}

	decisions := make([]permissions.Decision, 0, len(ordered))
	for _, name := range ordered {
		if h.omit[name] {
			continue
		}
		d, ok := h.decisions[name]
		if !ok {
			d = permissions.Decision{Permission: name, CanShowAgain: true}
		}
		if d.Granted && h.grantOnOK {
			h.granted[name] = true
		}
		decisions = append(decisions, d)
	}
	return decisions
}

type prompter struct {
	host *Host
}

func (p *prompter) Prompt(names []string, respond func([]permissions.Decision, error)) error {
	h := p.host
	h.mu.Lock()
	if h.promptErr != nil {
		err := h.promptErr
		h.mu.Unlock()
		return err
	}
	h.prompts = append(h.prompts, slices.Clone(names))
	hold := h.hold
	h.mu.Unlock()

	select {
	case h.shown <- slices.Clone(names):
	default:
	}

	go func() {
		if hold != nil {
			<-hold
		}
		respond(h.answer(names), nil)
	}()
	return nil
}

func (p *prompter) Detach() error {
	p.host.mu.Lock()
	defer p.host.mu.Unlock()
	p.host.detaches++
	return nil
}

// countingSession records Finish calls, including repeated ones.
type countingSession struct {
	permissions.Session
	host *Host
}

func (s *countingSession) Finish() {
	s.host.mu.Lock()
	s.host.finishes++
	s.host.mu.Unlock()
	s.Session.Finish()
}
