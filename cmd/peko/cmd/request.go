package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/go-drift/peko/pkg/permissions"
	"github.com/go-drift/peko/pkg/platform"
)

func init() {
	RegisterCommand(&Command{
		Name:  "request",
		Short: "Request permissions in one dialog",
		Long: `Request permissions from the host.

Permissions that are already granted are reported first. The rest are
asked for in a single dialog, and each answer is printed as it arrives.
A summary follows once the dialog completes.

Flags:
  --codec NAME         Wire codec for the host (json or cbor)
  --timeout DURATION   Give up waiting for the dialog after DURATION
  --open-settings      Open app settings when a permission is permanently denied`,
		Usage: "peko request [--codec NAME] [--timeout DURATION] [--open-settings] PERMISSION...",
		Run:   runRequest,
	})
}

func runRequest(ctx context.Context, g *Globals, args []string) error {
	var (
		o            hostOverrides
		timeout      time.Duration
		openSettings bool
	)
	flags := pflag.NewFlagSet("request", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&o.codec, "codec", "", "wire codec (json or cbor)")
	flags.DurationVar(&timeout, "timeout", 0, "dialog timeout (default from config)")
	flags.BoolVar(&openSettings, "open-settings", false, "open app settings on permanent denial")
	if err := flags.Parse(args); err != nil {
		return err
	}
	names := flags.Args()
	if len(names) == 0 {
		return fmt.Errorf("request requires at least one permission")
	}

	s, err := openSession(g, o)
	if err != nil {
		return err
	}
	if !flags.Changed("timeout") {
		timeout = s.cfg.Timeout
	}

	requester := permissions.New(s.host,
		permissions.WithTimeout(timeout),
		permissions.WithLogger(s.logger),
	)
	stream := requester.Request(ctx, names...)
	defer stream.Cancel()

	var results permissions.Results
	for r, err := range stream.All(ctx) {
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, r)
		results = append(results, r)
	}
	<-stream.Done()

	printSummary(results)

	if openSettings && len(results.DeniedPermanently()) > 0 {
		if err := platform.OpenAppSettings(); err != nil {
			return fmt.Errorf("open app settings: %w", err)
		}
		fmt.Fprintln(stdout, "Opened app settings.")
	}
	return nil
}

func printSummary(results permissions.Results) {
	fmt.Fprintln(stdout)
	if results.AllGranted() {
		fmt.Fprintln(stdout, "All permissions granted.")
		return
	}
	line := func(label string, rs permissions.Results) {
		if len(rs) > 0 {
			fmt.Fprintf(stdout, "%-20s %s\n", label+":", strings.Join(rs.Names(), ", "))
		}
	}
	line("Granted", results.Granted())
	line("Needs rationale", results.NeedsRationale())
	line("Permanently denied", results.DeniedPermanently())
}
