// Package cmd implements the peko CLI commands.
//
// The command structure follows standard Go CLI patterns with a root command
// that dispatches to subcommands (check, request, version).
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// Version information set at build time.
var (
	Version   = "0.1.0-dev"
	BuildTime = "unknown"
)

// Output streams, replaced in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// Command represents a CLI command.
type Command struct {
	Name  string
	Short string
	Long  string
	Usage string
	Run   func(ctx context.Context, g *Globals, args []string) error
}

// Globals holds flags accepted before the command name.
type Globals struct {
	ConfigPath string
	Verbose    bool
}

var rootCmd = &Command{
	Name:  "peko",
	Short: "peko - batch runtime permission requests",
	Long: `peko negotiates runtime permissions with a native host: it checks
which permissions are already granted, shows one dialog for the rest,
and reports each permission as granted, needing a rationale, or
permanently denied.

The CLI drives a simulated host scripted by peko.yaml.

Use "peko <command> --help" for more information about a command.`,
	Usage: "peko [--config FILE] [--verbose] <command> [flags]",
}

// Commands registered with the CLI.
var (
	commands = make(map[string]*Command)
	ordered  []*Command
)

// RegisterCommand adds a command to the CLI.
func RegisterCommand(cmd *Command) {
	commands[cmd.Name] = cmd
	ordered = append(ordered, cmd)
}

// Execute runs the CLI with the process arguments.
func Execute(ctx context.Context) error {
	return run(ctx, os.Args[1:])
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printHelp(rootCmd)
		return nil
	}

	// Handle global flags up to the command name.
	g := &Globals{}
	var filteredArgs []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if len(filteredArgs) > 0 {
			filteredArgs = append(filteredArgs, arg)
			continue
		}
		switch arg {
		case "-h", "--help", "help":
			printHelp(rootCmd)
			return nil
		case "--version":
			printVersion()
			return nil
		case "-v", "--verbose":
			g.Verbose = true
		case "--config":
			if i+1 >= len(args) {
				return fmt.Errorf("--config requires a file path")
			}
			g.ConfigPath = args[i+1]
			i++
		default:
			if strings.HasPrefix(arg, "--config=") {
				g.ConfigPath = strings.TrimPrefix(arg, "--config=")
				continue
			}
			if strings.HasPrefix(arg, "-") {
				return fmt.Errorf("unknown flag: %s", arg)
			}
			filteredArgs = append(filteredArgs, arg)
		}
	}
	args = filteredArgs

	if len(args) == 0 {
		printHelp(rootCmd)
		return nil
	}

	// Find and execute the command
	cmdName := args[0]
	cmd, ok := commands[cmdName]
	if !ok {
		fmt.Fprintf(stderr, "Error: unknown command %q\n\n", cmdName)
		printHelp(rootCmd)
		return fmt.Errorf("unknown command: %s", cmdName)
	}

	// Check for help flag on subcommand
	cmdArgs := args[1:]
	for _, arg := range cmdArgs {
		if arg == "-h" || arg == "--help" {
			printCommandHelp(cmd)
			return nil
		}
	}

	return cmd.Run(ctx, g, cmdArgs)
}

func printVersion() {
	fmt.Fprintf(stdout, "peko version %s (built %s)\n", Version, BuildTime)
}

func printHelp(cmd *Command) {
	fmt.Fprintln(stdout, cmd.Long)
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Usage:")
	fmt.Fprintf(stdout, "  %s\n", cmd.Usage)
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Commands:")
	for _, sub := range ordered {
		fmt.Fprintf(stdout, "  %-14s %s\n", sub.Name, sub.Short)
	}
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Flags:")
	fmt.Fprintln(stdout, "  -h, --help           Show help for a command")
	fmt.Fprintln(stdout, "  -v, --verbose        Log host traffic to stderr")
	fmt.Fprintln(stdout, "  --config FILE        Config file (default: ./peko.yaml in the project root)")
	fmt.Fprintln(stdout, "  --version            Show version information")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Examples:")
	fmt.Fprintln(stdout, "  peko check CAMERA                 Report whether CAMERA is granted")
	fmt.Fprintln(stdout, "  peko request CAMERA RECORD_AUDIO  Ask for both in one dialog")
}

func printCommandHelp(cmd *Command) {
	fmt.Fprintln(stdout, cmd.Long)
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Usage:")
	fmt.Fprintf(stdout, "  %s\n", cmd.Usage)
}
