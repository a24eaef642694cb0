package cmd

import "context"

func init() {
	RegisterCommand(&Command{
		Name:  "version",
		Short: "Show version information",
		Long:  "Show the peko CLI version and build time.",
		Usage: "peko version",
		Run: func(ctx context.Context, g *Globals, args []string) error {
			printVersion()
			return nil
		},
	})
}
