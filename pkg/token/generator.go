package token

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/google/uuid"
)

// TeleTAN defaults.
const (
	// TeleTanLength is the default number of characters in a TeleTAN.
	TeleTanLength = 7

	// TeleTanAlphabet is the default TeleTAN alphabet: [2-9A-HJ-KMNP-Za-kmnp-z].
	TeleTanAlphabet = "23456789" +
		"ABCDEFGHJKMNPQRSTUVWXYZ" +
		"abcdefghijkmnpqrstuvwxyz"
)

// Generator errors.
var (
	ErrEmptyAlphabet   = errors.New("token: alphabet is empty")
	ErrInvalidAlphabet = errors.New("token: alphabet must contain unique ASCII letters or digits")
	ErrInvalidLength   = errors.New("token: length must be positive")
)

// Generator produces TAN and TeleTAN candidates.
//
// A Generator is safe for concurrent use. The same alphabet and length
// drive both generation and IsTeleTanSyntaxValid, so every generated
// TeleTAN passes validation.
type Generator struct {
	alphabet string
	length   int
	allowed  [256]bool
	max      *big.Int
	random   io.Reader
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithRandom sets the entropy source (defaults to crypto/rand.Reader).
func WithRandom(r io.Reader) GeneratorOption {
	return func(g *Generator) {
		g.random = r
	}
}

// NewGenerator creates a Generator for the given TeleTAN alphabet and length.
func NewGenerator(alphabet string, length int, opts ...GeneratorOption) (*Generator, error) {
	if alphabet == "" {
		return nil, ErrEmptyAlphabet
	}
	if length <= 0 {
		return nil, ErrInvalidLength
	}

	g := &Generator{
		alphabet: alphabet,
		length:   length,
		max:      big.NewInt(int64(len(alphabet))),
		random:   rand.Reader,
	}
	for i := 0; i < len(alphabet); i++ {
		c := alphabet[i]
		if !isAlphanumeric(c) || g.allowed[c] {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAlphabet, c)
		}
		g.allowed[c] = true
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

var defaultGenerator = mustGenerator(TeleTanAlphabet, TeleTanLength)

func mustGenerator(alphabet string, length int) *Generator {
	g, err := NewGenerator(alphabet, length)
	if err != nil {
		panic(err)
	}
	return g
}

// DefaultGenerator returns the generator using the default TeleTAN alphabet and length.
func DefaultGenerator() *Generator {
	return defaultGenerator
}

// Alphabet returns the TeleTAN alphabet.
func (g *Generator) Alphabet() string {
	return g.alphabet
}

// Length returns the TeleTAN length.
func (g *Generator) Length() int {
	return g.length
}

// GenerateTan generates a standard TAN (random UUID, lowercase canonical form).
func (g *Generator) GenerateTan() (string, error) {
	id, err := uuid.NewRandomFromReader(g.random)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// GenerateTeleTan generates a TeleTAN.
//
// Each character is an independent uniform draw from the alphabet.
func (g *Generator) GenerateTeleTan() (string, error) {
	buf := make([]byte, g.length)
	for i := range buf {
		n, err := rand.Int(g.random, g.max)
		if err != nil {
			return "", err
		}
		buf[i] = g.alphabet[n.Int64()]
	}
	return string(buf), nil
}

// IsTeleTanSyntaxValid reports whether s has the configured length and
// consists only of alphabet characters.
func (g *Generator) IsTeleTanSyntaxValid(s string) bool {
	if len(s) != g.length {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !g.allowed[s[i]] {
			return false
		}
	}
	return true
}

// GenerateTan generates a standard TAN using the default generator.
func GenerateTan() (string, error) {
	return defaultGenerator.GenerateTan()
}

// GenerateTeleTan generates a TeleTAN using the default alphabet and length.
func GenerateTeleTan() (string, error) {
	return defaultGenerator.GenerateTeleTan()
}

func isAlphanumeric(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}
