package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/go-drift/peko/pkg/permissions"
)

// errNotGranted is returned by check when any permission is missing.
var errNotGranted = errors.New("not all permissions are granted")

func init() {
	RegisterCommand(&Command{
		Name:  "check",
		Short: "Report whether permissions are granted",
		Long: `Report whether each permission is already granted, without showing
a dialog.

Each permission is printed with the status the host reports. The command
fails when any of them is not granted.

Flags:
  --codec NAME         Wire codec for the host (json or cbor)`,
		Usage: "peko check [--codec NAME] PERMISSION...",
		Run:   runCheck,
	})
}

func runCheck(ctx context.Context, g *Globals, args []string) error {
	var o hostOverrides
	flags := pflag.NewFlagSet("check", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&o.codec, "codec", "", "wire codec (json or cbor)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	names := flags.Args()
	if len(names) == 0 {
		return fmt.Errorf("check requires at least one permission")
	}

	s, err := openSession(g, o)
	if err != nil {
		return err
	}

	for _, name := range names {
		status, err := s.host.Status(name)
		if err != nil {
			return fmt.Errorf("check %s: %w", name, err)
		}
		fmt.Fprintf(stdout, "%-24s %s\n", name, status)
	}

	ok, err := permissions.AreGranted(names...)
	if err != nil {
		return err
	}
	if !ok {
		return errNotGranted
	}
	return nil
}
