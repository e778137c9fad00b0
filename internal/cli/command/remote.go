package command

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/cwa-verification/tanserver/internal/cli/connection"
	"github.com/cwa-verification/tanserver/internal/infra/buildinfo"
	"github.com/cwa-verification/tanserver/pkg/token"
)

// IssuedTan is the output of `remote issue`.
type IssuedTan struct {
	Tan  string `json:"tan" yaml:"tan"`
	Type string `json:"type" yaml:"type"`
}

// VerifiedTan is the output of `remote verify`.
type VerifiedTan struct {
	Tan    string `json:"tan" yaml:"tan"`
	Status string `json:"status" yaml:"status"`
}

// RedeemedTan is the output of `remote redeem`.
type RedeemedTan struct {
	Tan      string `json:"tan" yaml:"tan"`
	Redeemed bool   `json:"redeemed" yaml:"redeemed"`
}

// LabResult is the output of `remote result`.
type LabResult struct {
	ID         string `json:"id" yaml:"id" table:"wide"`
	TestResult int    `json:"test_result" yaml:"test_result"`
	Label      string `json:"label" yaml:"label"`
}

// ServerStatus is the output of `remote status`.
type ServerStatus struct {
	Server    string    `json:"server" yaml:"server"`
	Health    string    `json:"health" yaml:"health"`
	Ready     bool      `json:"ready" yaml:"ready"`
	Version   string    `json:"version" yaml:"version"`
	Commit    string    `json:"commit" yaml:"commit" table:"wide"`
	GoVersion string    `json:"go_version" yaml:"go_version" table:"wide"`
	Time      time.Time `json:"time" yaml:"time"`
}

// RemoteCommand returns the remote subcommand group.
func RemoteCommand() *cli.Command {
	return &cli.Command{
		Name:    "remote",
		Aliases: []string{"r"},
		Usage:   "Call a running tan-server",
		Subcommands: []*cli.Command{
			{
				Name:  "issue",
				Usage: "Issue a TAN or TeleTAN",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "type",
						Usage: "Code type: tan, teletan",
						Value: "tan",
					},
					&cli.StringFlag{
						Name:  "source-of-trust",
						Usage: "Source of trust: connected_lab, teletan (defaults by type)",
					},
				},
				Action: remoteIssue,
			},
			{
				Name:      "verify",
				Usage:     "Show the status of a code without redeeming it",
				ArgsUsage: "TAN",
				Action:    remoteVerify,
			},
			{
				Name:      "redeem",
				Usage:     "Redeem a code",
				ArgsUsage: "TAN",
				Action:    remoteRedeem,
			},
			{
				Name:      "delete",
				Usage:     "Delete a stored record by code or hash",
				ArgsUsage: "TAN|HASH",
				Action:    remoteDelete,
			},
			{
				Name:      "result",
				Usage:     "Look up a lab test result",
				ArgsUsage: "HASHED_GUID",
				Action:    remoteResult,
			},
			{
				Name:   "status",
				Usage:  "Show server health, readiness and version",
				Action: remoteStatus,
			},
		},
	}
}

func remoteIssue(c *cli.Context) error {
	client, ctx, cancel := EnsureConnected(c)
	defer cancel()

	body := map[string]string{"type": strings.ToUpper(c.String("type"))}
	if sot := c.String("source-of-trust"); sot != "" {
		body["source_of_trust"] = strings.ToUpper(sot)
	}

	resp, err := client.Post(ctx, "/v1/tans", body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result IssuedTan
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}
	return Render(c, result)
}

func remoteVerify(c *cli.Context) error {
	plaintext := c.Args().First()
	if plaintext == "" {
		return fmt.Errorf("tan required")
	}

	client, ctx, cancel := EnsureConnected(c)
	defer cancel()

	resp, err := client.Post(ctx, "/v1/tans/verify", map[string]string{"tan": plaintext})
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	result := VerifiedTan{Tan: plaintext}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}
	return Render(c, result)
}

func remoteRedeem(c *cli.Context) error {
	plaintext := c.Args().First()
	if plaintext == "" {
		return fmt.Errorf("tan required")
	}

	client, ctx, cancel := EnsureConnected(c)
	defer cancel()

	resp, err := client.Post(ctx, "/v1/tans/redeem", map[string]string{"tan": plaintext})
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	result := RedeemedTan{Tan: plaintext}
	if err := connection.ParseResponse(resp, &result); err != nil {
		var apiErr *connection.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			if rerr := Render(c, result); rerr != nil {
				return rerr
			}
		}
		return err
	}
	return Render(c, result)
}

func remoteDelete(c *cli.Context) error {
	arg := c.Args().First()
	if arg == "" {
		return fmt.Errorf("tan or hash required")
	}

	hash := strings.ToLower(arg)
	if !token.IsHashSyntaxValid(hash) {
		hash = token.Hash(arg)
	}

	client, ctx, cancel := EnsureConnected(c)
	defer cancel()

	resp, err := client.Delete(ctx, "/admin/v1/tans/"+hash)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if err := connection.ParseResponse(resp, nil); err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "deleted %s\n", hash)
	return nil
}

func remoteResult(c *cli.Context) error {
	id := strings.ToLower(c.Args().First())
	if id == "" {
		return fmt.Errorf("hashed guid required")
	}

	client, ctx, cancel := EnsureConnected(c)
	defer cancel()

	resp, err := client.Post(ctx, "/v1/testresult", map[string]string{"id": id})
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	result := LabResult{ID: id}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}
	return Render(c, result)
}

func remoteStatus(c *cli.Context) error {
	client, ctx, cancel := EnsureConnected(c)
	defer cancel()

	status := ServerStatus{Server: client.BaseURL()}

	resp, err := client.Get(ctx, "/health")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	var health struct {
		Status string    `json:"status"`
		Time   time.Time `json:"time"`
	}
	if err := connection.ParseResponse(resp, &health); err != nil {
		return err
	}
	status.Health, status.Time = health.Status, health.Time

	resp, err = client.Get(ctx, "/ready")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	status.Ready = connection.ParseResponse(resp, nil) == nil

	resp, err = client.Get(ctx, "/version")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	var info buildinfo.Info
	if err := connection.ParseResponse(resp, &info); err != nil {
		return err
	}
	status.Version, status.Commit, status.GoVersion = info.Version, info.Commit, info.GoVersion

	return Render(c, status)
}
