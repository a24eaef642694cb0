// Package simhost is a scripted native side for the peko CLI.
//
// It implements platform.NativeBridge and speaks the permissions protocol
// the way a device would: it attaches prompt surfaces, answers dialogs with
// scripted decisions on the results channel, and remembers what the user
// decided so later checks see it.
package simhost

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-drift/peko/pkg/platform"
)

// Decision is the scripted answer for one permission.
type Decision struct {
	Granted      bool
	CanShowAgain bool
}

// Options configure a Bridge.
type Options struct {
	// Granted lists permissions granted before any dialog.
	Granted []string
	// Decisions scripts dialog answers. Unlisted permissions are denied
	// with CanShowAgain set.
	Decisions map[string]Decision
	// Codec must match the codec installed with platform.SetCodec.
	Codec  platform.MessageCodec
	Logger *slog.Logger
}

// state is what the simulated OS remembers about one permission.
type state struct {
	status        string
	showRationale bool
}

// Bridge is the simulated native side.
type Bridge struct {
	codec     platform.MessageCodec
	logger    *slog.Logger
	decisions map[string]Decision
	emit      func(channel string, data []byte) error

	mu       sync.Mutex
	states   map[string]state
	surfaces map[string]bool
	nextID   int
	streams  map[string]bool
	pending  sync.WaitGroup
}

// New returns a Bridge for opts. Install it with platform.SetNativeBridge.
func New(opts Options) *Bridge {
	codec := opts.Codec
	if codec == nil {
		codec = platform.JsonCodec{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := &Bridge{
		codec:     codec,
		logger:    logger,
		decisions: make(map[string]Decision, len(opts.Decisions)),
		emit:      platform.HandleEvent,
		states:    make(map[string]state),
		surfaces:  make(map[string]bool),
		streams:   make(map[string]bool),
	}
	for name, d := range opts.Decisions {
		b.decisions[name] = d
	}
	for _, name := range opts.Granted {
		b.states[name] = state{status: platform.StatusGranted}
	}
	return b
}

// InvokeMethod implements platform.NativeBridge.
func (b *Bridge) InvokeMethod(channel, method string, args []byte) ([]byte, error) {
	if channel != platform.PermissionsChannel {
		return nil, platform.ErrChannelNotFound
	}
	decoded, err := b.codec.Decode(args)
	if err != nil {
		return nil, err
	}
	params, _ := decoded.(map[string]any)

	result, err := b.handle(method, params)
	if err != nil {
		return nil, err
	}
	return b.codec.Encode(result)
}

func (b *Bridge) handle(method string, params map[string]any) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch method {
	case "check":
		name, _ := params["permission"].(string)
		return map[string]any{"status": b.statusLocked(name)}, nil

	case "shouldShowRationale":
		name, _ := params["permission"].(string)
		return map[string]any{"shouldShow": b.states[name].showRationale}, nil

	case "attach":
		b.nextID++
		id := fmt.Sprintf("surface-%d", b.nextID)
		b.surfaces[id] = true
		b.logger.Debug("prompt surface attached", "surface", id)
		return map[string]any{"surface": id}, nil

	case "detach":
		id, _ := params["surface"].(string)
		if !b.surfaces[id] {
			return nil, platform.NewChannelError("unknown_surface", id)
		}
		delete(b.surfaces, id)
		b.logger.Debug("prompt surface detached", "surface", id)
		return nil, nil

	case "request":
		id, _ := params["surface"].(string)
		if !b.surfaces[id] {
			return nil, platform.NewChannelError("unknown_surface", id)
		}
		requestID, _ := params["requestId"].(string)
		if requestID == "" {
			return nil, platform.NewChannelError("invalid_arguments", "missing requestId")
		}
		items, _ := params["permissions"].([]any)
		names := make([]string, 0, len(items))
		for _, item := range items {
			if name, ok := item.(string); ok {
				names = append(names, name)
			}
		}
		event := b.answerLocked(requestID, names)
		b.logger.Debug("permission dialog shown", "surface", id, "permissions", names)

		b.pending.Add(1)
		go func() {
			defer b.pending.Done()
			b.send(event)
		}()
		return nil, nil

	case "openSettings":
		b.logger.Info("app settings opened")
		return nil, nil

	default:
		return nil, platform.ErrMethodNotFound
	}
}

func (b *Bridge) statusLocked(name string) string {
	if st, ok := b.states[name]; ok {
		return st.status
	}
	return "not_determined"
}

// answerLocked applies the scripted decisions for names and builds the
// results event.
func (b *Bridge) answerLocked(requestID string, names []string) map[string]any {
	results := make([]any, 0, len(names))
	for _, name := range names {
		d, ok := b.decisions[name]
		if !ok {
			d = Decision{CanShowAgain: true}
		}

		// A permanently denied permission is not shown again.
		if st, ok := b.states[name]; ok && st.status == "permanently_denied" {
			d = Decision{}
		}

		switch {
		case d.Granted:
			b.states[name] = state{status: platform.StatusGranted}
		case d.CanShowAgain:
			b.states[name] = state{status: "denied", showRationale: true}
		default:
			b.states[name] = state{status: "permanently_denied"}
		}

		results = append(results, map[string]any{
			"permission":   name,
			"granted":      d.Granted,
			"canShowAgain": d.CanShowAgain,
		})
	}
	return map[string]any{"requestId": requestID, "results": results}
}

func (b *Bridge) send(event map[string]any) {
	b.mu.Lock()
	listening := b.streams[platform.ResultsChannel]
	b.mu.Unlock()
	if !listening {
		b.logger.Warn("results stream not started; answer dropped", "requestId", event["requestId"])
		return
	}

	data, err := b.codec.Encode(event)
	if err != nil {
		b.logger.Error("encode results event", "error", err)
		return
	}
	if err := b.emit(platform.ResultsChannel, data); err != nil {
		b.logger.Warn("deliver results event", "error", err)
	}
}

// StartEventStream implements platform.NativeBridge.
func (b *Bridge) StartEventStream(channel string) error {
	if channel != platform.ResultsChannel {
		return platform.ErrChannelNotFound
	}
	b.mu.Lock()
	b.streams[channel] = true
	b.mu.Unlock()
	return nil
}

// StopEventStream implements platform.NativeBridge.
func (b *Bridge) StopEventStream(channel string) error {
	b.mu.Lock()
	delete(b.streams, channel)
	b.mu.Unlock()
	return nil
}

// Attached returns the number of attached prompt surfaces.
func (b *Bridge) Attached() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.surfaces)
}

// Wait blocks until every dialog answer has been delivered.
func (b *Bridge) Wait() {
	b.pending.Wait()
}
