package mailbox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LandScout/internal/domain"
)

const multipartMessage = "From: alerts@idealista.com\r\n" +
	"To: me@example.com\r\n" +
	"Subject: =?UTF-8?Q?Nuevo_terreno_en_Llanes?=\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=\"b1\"\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Terreno urbano 59.000 €\r\n" +
	"--b1\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Terreno urbano <strong>59.000 €</strong></p>\r\n" +
	"--b1--\r\n"

func TestExtractContent_PrefersHTML(t *testing.T) {
	t.Parallel()

	content, err := ExtractContent([]byte(multipartMessage))
	require.NoError(t, err)

	assert.Equal(t, "Nuevo terreno en Llanes", content.Subject)
	assert.True(t, content.HTML)
	assert.Equal(t, "alerts@idealista.com", content.SourceHint)
	assert.Contains(t, content.Body, "<strong>59.000 €</strong>")
}

func TestExtractContent_PlainTextFallback(t *testing.T) {
	t.Parallel()

	raw := "Subject: Parcela\r\nContent-Type: text/plain; charset=utf-8\r\n\r\nParcela de 1.373 m2\r\n"

	content, err := ExtractContent([]byte(raw))
	require.NoError(t, err)

	assert.False(t, content.HTML)
	assert.Equal(t, "Parcela de 1.373 m2", strings.TrimSpace(content.Body))
}

func TestExtractContent_NoUsableBody(t *testing.T) {
	t.Parallel()

	raw := "Subject: Empty\r\nContent-Type: text/plain\r\n\r\n   \r\n"

	_, err := ExtractContent([]byte(raw))
	assert.ErrorIs(t, err, domain.ErrNoContent)
}
