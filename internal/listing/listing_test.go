package listing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LandScout/internal/domain"
)

type namedParser string

func (n namedParser) Name() string { return string(n) }

func (n namedParser) Parse(context.Context, domain.MessageContent) (domain.Candidate, error) {
	return domain.Candidate{Title: string(n)}, nil
}

func names(chain []Parser) []string {
	out := make([]string, 0, len(chain))
	for _, p := range chain {
		out = append(out, p.Name())
	}
	return out
}

func TestRegistry_ChainKeepsConfiguredOrder(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(namedParser("idealista"), namedParser("fotocasa"), namedParser("habitaclia"))

	chain, err := reg.Chain([]string{"Fotocasa", " idealista ", "fotocasa", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"fotocasa", "idealista"}, names(chain))
	assert.Equal(t, []string{"fotocasa", "habitaclia", "idealista"}, reg.Names())
}

func TestRegistry_ChainReportsEveryUnknownName(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(namedParser("idealista"))

	_, err := reg.Chain([]string{"fotocasa", "idealista", "pisos"})
	assert.EqualError(t, err, "parser fotocasa, pisos is not registered (known: idealista)")

	_, err = reg.Chain(nil)
	assert.EqualError(t, err, "no parser strategies configured")
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	t.Parallel()

	var reg Registry
	reg.Register(namedParser("idealista"))
	reg.Register(namedParser("IDEALISTA"))

	chain, err := reg.Chain([]string{"idealista"})
	require.NoError(t, err)
	assert.Equal(t, []string{"IDEALISTA"}, names(chain))
	assert.Len(t, reg.Names(), 1)
}
