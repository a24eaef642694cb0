package cmd

import (
	"log/slog"

	"github.com/go-drift/peko/cmd/peko/internal/config"
	"github.com/go-drift/peko/cmd/peko/internal/simhost"
	"github.com/go-drift/peko/pkg/errors"
	"github.com/go-drift/peko/pkg/permissions"
	"github.com/go-drift/peko/pkg/platform"
)

// session is the wiring shared by commands that talk to the host.
type session struct {
	cfg    *config.Resolved
	logger *slog.Logger
	bridge *simhost.Bridge
	host   *platform.Host
}

// hostOverrides are per-command flags layered over the config file.
type hostOverrides struct {
	codec string
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
}

// openSession resolves the config, installs the simulated bridge and
// initializes the permissions package with a host over it.
func openSession(g *Globals, o hostOverrides) (*session, error) {
	root, err := config.FindProjectRoot()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Resolve(root, g.ConfigPath)
	if err != nil {
		return nil, err
	}
	if o.codec != "" {
		if err := config.ValidateCodec(o.codec); err != nil {
			return nil, err
		}
		cfg.Codec = o.codec
	}

	logger := newLogger(g.Verbose)
	errors.SetHandler(&errors.LogHandler{Logger: logger, Verbose: g.Verbose})

	var codec platform.MessageCodec = platform.JsonCodec{}
	if cfg.Codec == config.CodecCBOR {
		codec = platform.CborCodec{}
	}
	platform.SetCodec(codec)

	decisions := make(map[string]simhost.Decision, len(cfg.Decisions))
	for name, d := range cfg.Decisions {
		decisions[name] = simhost.Decision{Granted: d.Granted, CanShowAgain: d.CanShowAgain}
	}
	bridge := simhost.New(simhost.Options{
		Granted:   cfg.Granted,
		Decisions: decisions,
		Codec:     codec,
		Logger:    logger.With("component", "simhost"),
	})
	platform.SetNativeBridge(bridge)

	host := platform.NewHost(permissions.ScopeApplication)
	permissions.Initialize(host)

	logger.Debug("host ready", "app", cfg.AppName, "codec", cfg.Codec, "timeout", cfg.Timeout)
	return &session{cfg: cfg, logger: logger, bridge: bridge, host: host}, nil
}
