package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/cwa-verification/tanserver/internal/core/domain"
	"github.com/cwa-verification/tanserver/pkg/token"
)

// GeneratedTan is one row of `tan generate` output. Nothing is stored.
type GeneratedTan struct {
	Tan  string         `json:"tan" yaml:"tan"`
	Type domain.TanType `json:"type" yaml:"type"`
	Hash string         `json:"hash" yaml:"hash" table:"wide"`
}

// HashedTan is the output of `tan hash`.
type HashedTan struct {
	Tan  string `json:"tan" yaml:"tan"`
	Hash string `json:"hash" yaml:"hash"`
}

// CheckedTan is the output of `tan check`.
type CheckedTan struct {
	Tan   string `json:"tan" yaml:"tan"`
	Kind  string `json:"kind" yaml:"kind"`
	Valid bool   `json:"valid" yaml:"valid"`
}

// maxGenerateCount bounds `tan generate --count`.
const maxGenerateCount = 10000

// TanCommand returns the offline tan subcommand group.
func TanCommand() *cli.Command {
	alphabetFlags := []cli.Flag{
		&cli.StringFlag{
			Name:  "alphabet",
			Usage: "TeleTAN alphabet",
			Value: token.TeleTanAlphabet,
		},
		&cli.IntFlag{
			Name:  "length",
			Usage: "TeleTAN length",
			Value: token.TeleTanLength,
		},
	}

	return &cli.Command{
		Name:  "tan",
		Usage: "Generate, hash and check codes locally",
		Subcommands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "Generate TAN or TeleTAN candidates without storing them",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "type",
						Usage: "Code type: tan, teletan",
						Value: "tan",
					},
					&cli.IntFlag{
						Name:    "count",
						Aliases: []string{"n"},
						Usage:   "Number of codes",
						Value:   1,
					},
				}, alphabetFlags...),
				Action: tanGenerate,
			},
			{
				Name:      "hash",
				Usage:     "Print the SHA-256 hash under which a code is stored",
				ArgsUsage: "TAN",
				Action:    tanHash,
			},
			{
				Name:      "check",
				Usage:     "Check whether a code is a well-formed TAN or TeleTAN",
				ArgsUsage: "TAN",
				Flags:     alphabetFlags,
				Action:    tanCheck,
			},
		},
	}
}

func generatorFromFlags(c *cli.Context) (*token.Generator, error) {
	g, err := token.NewGenerator(c.String("alphabet"), c.Int("length"))
	if err != nil {
		return nil, fmt.Errorf("invalid teletan settings: %w", err)
	}
	return g, nil
}

func tanGenerate(c *cli.Context) error {
	typ, err := domain.ParseTanType(c.String("type"))
	if err != nil {
		return err
	}
	count := c.Int("count")
	if count < 1 || count > maxGenerateCount {
		return fmt.Errorf("count must be between 1 and %d", maxGenerateCount)
	}
	g, err := generatorFromFlags(c)
	if err != nil {
		return err
	}

	generate := g.GenerateTan
	if typ == domain.TanTypeTeleTan {
		generate = g.GenerateTeleTan
	}

	rows := make([]GeneratedTan, 0, count)
	for i := 0; i < count; i++ {
		plaintext, err := generate()
		if err != nil {
			return fmt.Errorf("generate: %w", err)
		}
		rows = append(rows, GeneratedTan{Tan: plaintext, Type: typ, Hash: token.Hash(plaintext)})
	}
	return Render(c, rows)
}

func tanHash(c *cli.Context) error {
	plaintext := c.Args().First()
	if plaintext == "" {
		return fmt.Errorf("tan required")
	}
	return Render(c, HashedTan{Tan: plaintext, Hash: token.Hash(plaintext)})
}

func tanCheck(c *cli.Context) error {
	plaintext := c.Args().First()
	if plaintext == "" {
		return fmt.Errorf("tan required")
	}
	g, err := generatorFromFlags(c)
	if err != nil {
		return err
	}

	result := CheckedTan{Tan: plaintext, Kind: "-"}
	switch {
	case token.IsTanSyntaxValid(plaintext):
		result.Kind, result.Valid = string(domain.TanTypeTan), true
	case g.IsTeleTanSyntaxValid(plaintext):
		result.Kind, result.Valid = string(domain.TanTypeTeleTan), true
	}

	if err := Render(c, result); err != nil {
		return err
	}
	if !result.Valid {
		return fmt.Errorf("%q is neither a TAN nor a TeleTAN", plaintext)
	}
	return nil
}
