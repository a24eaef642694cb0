package platform

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/go-drift/peko/pkg/errors"
	"github.com/go-drift/peko/pkg/permissions"
)

// Channel names used by the permissions host.
const (
	PermissionsChannel = "peko/permissions"
	ResultsChannel     = "peko/permissions/results"
)

// StatusGranted is the status native code reports for a granted permission.
const StatusGranted = "granted"

// Host is the permissions.Host backed by the native bridge.
//
// Grant checks are synchronous "check" calls. Dialogs are shown on a
// transient prompt surface that native code attaches on request; concurrent
// sessions share one surface, and it is detached when the last session
// finishes.
type Host struct {
	scope   permissions.Scope
	channel *MethodChannel
	results *EventChannel
	attach  singleflight.Group

	mu      sync.Mutex
	surface *surface
}

// surface is one attached prompt surface and the sessions using it.
type surface struct {
	id   string
	refs int
}

// NewHost returns a Host with the given scope. Only application-scoped hosts
// are accepted by permissions.Initialize.
func NewHost(scope permissions.Scope) *Host {
	return &Host{
		scope:   scope,
		channel: NewMethodChannel(PermissionsChannel),
		results: NewEventChannel(ResultsChannel),
	}
}

// Scope implements permissions.Host.
func (h *Host) Scope() permissions.Scope {
	return h.scope
}

// Status returns the status native code reports for name, such as
// "granted", "denied" or "not_determined".
func (h *Host) Status(name string) (string, error) {
	result, err := h.channel.Invoke("check", map[string]any{
		"permission": name,
	})
	if err != nil {
		return "", err
	}
	status := parseString(parseMap(result)["status"])
	if status == "" {
		return "", &errors.ParseError{Channel: PermissionsChannel, DataType: "PermissionStatus", Got: result}
	}
	return status, nil
}

// IsGranted implements permissions.GrantOracle.
func (h *Host) IsGranted(name string) (bool, error) {
	status, err := h.Status(name)
	if err != nil {
		return false, err
	}
	return status == StatusGranted, nil
}

// ShouldShowRationale returns whether the app should explain why it needs
// name before requesting it. Android-specific; other hosts report false.
func (h *Host) ShouldShowRationale(name string) (bool, error) {
	result, err := h.channel.Invoke("shouldShowRationale", map[string]any{
		"permission": name,
	})
	if err != nil {
		return false, err
	}
	return parseBool(parseMap(result)["shouldShow"]), nil
}

// Acquire implements permissions.SessionFactory. It attaches the prompt
// surface if none is attached and returns a new session bound to it.
func (h *Host) Acquire(ctx context.Context) (permissions.Session, error) {
	s, err := h.acquireSurface(ctx)
	if err != nil {
		return nil, err
	}
	return permissions.NewSession(&bridgePrompter{host: h, surface: s}), nil
}

// acquireSurface takes a reference on the attached surface, attaching one
// if needed. Callers that lose a race with the last release attach again.
func (h *Host) acquireSurface(ctx context.Context) (*surface, error) {
	for {
		h.mu.Lock()
		if s := h.surface; s != nil {
			s.refs++
			h.mu.Unlock()
			return s, nil
		}
		h.mu.Unlock()

		ch := h.attach.DoChan("attach", h.attachSurface)

		select {
		case res := <-ch:
			if res.Err != nil {
				return nil, fmt.Errorf("platform: attach prompt surface: %w", res.Err)
			}
			if s, ok := h.claim(res.Val.(string)); ok {
				return s, nil
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		case <-ctx.Done():
			// Nobody may be left to release a surface attached after we stop
			// waiting.
			go func() {
				if res := <-ch; res.Err == nil {
					h.detachIfUnused(res.Val.(string))
				}
			}()
			return nil, ctx.Err()
		}
	}
}

// attachSurface asks native code for a prompt surface unless one is attached.
func (h *Host) attachSurface() (any, error) {
	h.mu.Lock()
	if s := h.surface; s != nil {
		h.mu.Unlock()
		return s.id, nil
	}
	h.mu.Unlock()

	result, err := h.channel.Invoke("attach", nil)
	if err != nil {
		return nil, err
	}
	id := parseString(parseMap(result)["surface"])
	if id == "" {
		return nil, &errors.ParseError{Channel: PermissionsChannel, DataType: "Surface", Got: result}
	}
	h.mu.Lock()
	h.surface = &surface{id: id}
	h.mu.Unlock()
	return id, nil
}

// claim takes a reference on the attached surface with the given id. It
// fails if that surface was released before the caller got to it.
func (h *Host) claim(id string) (*surface, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.surface == nil || h.surface.id != id {
		return nil, false
	}
	h.surface.refs++
	return h.surface, true
}

// release drops a reference and detaches the surface with the last one.
func (h *Host) release(s *surface) error {
	h.mu.Lock()
	s.refs--
	last := s.refs <= 0 && h.surface == s
	if last {
		h.surface = nil
	}
	h.mu.Unlock()

	if !last {
		return nil
	}
	return h.detach(s.id)
}

func (h *Host) detachIfUnused(id string) {
	h.mu.Lock()
	s := h.surface
	unused := s != nil && s.id == id && s.refs == 0
	if unused {
		h.surface = nil
	}
	h.mu.Unlock()

	if unused {
		if err := h.detach(id); err != nil {
			errors.Report(&errors.Error{
				Op:      "platform.detachUnused",
				Kind:    errors.KindPlatform,
				Channel: PermissionsChannel,
				Err:     err,
			})
		}
	}
}

func (h *Host) detach(id string) error {
	_, err := h.channel.Invoke("detach", map[string]any{"surface": id})
	return err
}

// bridgePrompter shows one dialog on a surface and waits for its answer on
// the results channel.
type bridgePrompter struct {
	host    *Host
	surface *surface

	mu   sync.Mutex
	sub  *Subscription
	done bool
}

func (p *bridgePrompter) Prompt(names []string, respond func([]permissions.Decision, error)) error {
	requestID := uuid.NewString()

	var once sync.Once
	deliver := func(decisions []permissions.Decision, err error) {
		once.Do(func() {
			p.stopListening()
			if !Dispatch(func() { respond(decisions, err) }) {
				respond(decisions, err)
			}
		})
	}

	// Subscribe BEFORE triggering the native request to avoid missing the answer.
	sub := p.host.results.Listen(EventHandler{
		OnEvent: func(data any) {
			id, decisions, err := parsePromptResult(data)
			if id != requestID {
				if id == "" {
					errors.Report(&errors.Error{
						Op:      "platform.prompt",
						Kind:    errors.KindParsing,
						Channel: ResultsChannel,
						Err:     err,
					})
				}
				return
			}
			if err != nil {
				errors.Report(&errors.Error{
					Op:      "platform.prompt",
					Kind:    errors.KindParsing,
					Channel: ResultsChannel,
					Err:     err,
				})
			}
			deliver(decisions, err)
		},
		OnError: func(err error) {
			deliver(nil, err)
		},
		OnDone: func() {
			deliver(nil, ErrClosed)
		},
	})

	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		sub.Cancel()
	} else {
		p.sub = sub
		p.mu.Unlock()
	}

	_, err := p.host.channel.Invoke("request", map[string]any{
		"requestId":   requestID,
		"surface":     p.surface.id,
		"permissions": names,
	})
	if err != nil {
		p.stopListening()
		return err
	}
	return nil
}

func (p *bridgePrompter) Detach() error {
	p.stopListening()
	return p.host.release(p.surface)
}

func (p *bridgePrompter) stopListening() {
	p.mu.Lock()
	p.done = true
	sub := p.sub
	p.sub = nil
	p.mu.Unlock()
	if sub != nil {
		sub.Cancel()
	}
}

// parsePromptResult decodes a results event:
//
//	{"requestId": "...", "results": [{"permission": "CAMERA", "granted": false, "canShowAgain": true}]}
//
// The request ID is returned whenever it can be read, even alongside an error.
func parsePromptResult(data any) (string, []permissions.Decision, error) {
	m := parseMap(data)
	if m == nil {
		return "", nil, &errors.ParseError{Channel: ResultsChannel, DataType: "PromptResult", Got: data}
	}
	id := parseString(m["requestId"])
	if id == "" {
		return "", nil, &errors.ParseError{Channel: ResultsChannel, DataType: "PromptResult", Got: data}
	}

	items, ok := parseSlice(m["results"])
	if !ok {
		return id, nil, &errors.ParseError{Channel: ResultsChannel, DataType: "PromptResult.results", Got: m["results"]}
	}
	decisions := make([]permissions.Decision, 0, len(items))
	for _, item := range items {
		entry := parseMap(item)
		name := parseString(entry["permission"])
		if name == "" {
			return id, nil, &errors.ParseError{Channel: ResultsChannel, DataType: "PromptDecision", Got: item}
		}
		decisions = append(decisions, permissions.Decision{
			Permission:   name,
			Granted:      parseBool(entry["granted"]),
			CanShowAgain: parseBool(entry["canShowAgain"]),
		})
	}
	return id, decisions, nil
}

// OpenAppSettings opens the system settings page for this app, where users
// can change permissions the dialog can no longer ask for.
func OpenAppSettings() error {
	_, err := NewMethodChannel(PermissionsChannel).Invoke("openSettings", nil)
	return err
}
