package mailbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuery_AllAndEmpty(t *testing.T) {
	t.Parallel()

	for _, expr := range []string{"", "ALL", "  all  "} {
		q, err := ParseQuery(expr)
		require.NoError(t, err, expr)
		assert.True(t, q.IsAll(), expr)
	}
}

func TestParseQuery_Unseen(t *testing.T) {
	t.Parallel()

	q, err := ParseQuery("UNSEEN")
	require.NoError(t, err)
	assert.True(t, q.Unseen)
	assert.False(t, q.IsAll())
}

func TestParseQuery_RawFilterExpression(t *testing.T) {
	t.Parallel()

	q, err := ParseQuery(`UNSEEN FROM noresponder@idealista.com SUBJECT "nuevo terreno" SINCE 01-Mar-2025`)
	require.NoError(t, err)

	assert.True(t, q.Unseen)
	assert.Equal(t, []string{"noresponder@idealista.com"}, q.From)
	assert.Equal(t, []string{"nuevo terreno"}, q.Subject)
	assert.Equal(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), q.Since)
}

func TestParseQuery_ISODate(t *testing.T) {
	t.Parallel()

	q, err := ParseQuery("BEFORE 2025-06-30")
	require.NoError(t, err)
	assert.Equal(t, 2025, q.Before.Year())
	assert.Equal(t, time.June, q.Before.Month())
}

func TestParseQuery_Errors(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"missing argument": "FROM",
		"bad date":         "SINCE yesterday",
		"unknown term":     "X-GM-LABELS foo",
		"open quote":       `SUBJECT "terreno`,
		"contradiction":    "SEEN UNSEEN",
	}

	for name, expr := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseQuery(expr)
			assert.Error(t, err)
		})
	}
}
