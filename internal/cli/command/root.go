package command

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/cwa-verification/tanserver/internal/cli/connection"
	"github.com/cwa-verification/tanserver/internal/cli/output"
	"github.com/cwa-verification/tanserver/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	info := buildinfo.Get()
	return &cli.App{
		Name:    "tan-cli",
		Usage:   "Issue, inspect and redeem TANs and TeleTANs",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", info.Version, info.Commit, info.BuildTime),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			TanCommand(),
			RemoteCommand(),
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "tan-server address (e.g., localhost:8080)",
			EnvVars: []string{"TANCLI_SERVER"},
			Value:   "localhost:8080",
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Aliases: []string{"t"},
			Usage:   "Request timeout",
			EnvVars: []string{"TANCLI_TIMEOUT"},
			Value:   connection.DefaultTimeout,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			EnvVars: []string{"TANCLI_OUTPUT"},
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable verbose output",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Server  string
	Timeout time.Duration

	Output string // table, json, yaml
	Wide   bool

	Verbose bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Server:  c.String("server"),
		Timeout: c.Duration("timeout"),
		Output:  c.String("output"),
		Wide:    c.Bool("wide"),
		Verbose: c.Bool("verbose"),
	}
}

// EnsureConnected returns an HTTP client for the configured server and a
// context bounded by the request timeout.
func EnsureConnected(c *cli.Context) (*connection.HTTPClient, context.Context, context.CancelFunc) {
	flags := ParseGlobalFlags(c)
	client := connection.NewHTTPClient(flags.Server, flags.Timeout)
	if flags.Verbose {
		fmt.Fprintf(errWriter(c), "server: %s\n", client.BaseURL())
	}

	parent := c.Context
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, flags.Timeout+time.Second)
	return client, ctx, cancel
}

// Render writes data to the app's writer in the selected output format.
func Render(c *cli.Context, data any) error {
	flags := ParseGlobalFlags(c)
	format, err := output.ParseFormat(flags.Output)
	if err != nil {
		return err
	}
	return output.NewFormatter(format, flags.Wide).Format(c.App.Writer, data)
}

// PrintError prints an error message to the app's error writer.
func PrintError(c *cli.Context, format string, args ...any) {
	fmt.Fprintf(errWriter(c), "error: "+format+"\n", args...)
}

func errWriter(c *cli.Context) io.Writer {
	if c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return c.App.Writer
}
