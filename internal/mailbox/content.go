package mailbox

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"LandScout/internal/domain"
)

const maxPartSize = 4 << 20

// ExtractContent decodes a raw RFC 5322 message and returns its richest body:
// all text/html parts joined, otherwise all text/plain parts.
// Messages without a usable body return domain.ErrNoContent.
func ExtractContent(raw []byte) (domain.MessageContent, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if mr == nil {
		return domain.MessageContent{}, fmt.Errorf("read message: %w", err)
	}
	defer mr.Close()

	subject, err := mr.Header.Subject()
	if err != nil {
		subject = mr.Header.Get("Subject")
	}

	var htmlParts, textParts []string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if part == nil {
			return domain.MessageContent{}, fmt.Errorf("read part: %w", err)
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := header.ContentType()
		if contentType != "text/html" && contentType != "text/plain" {
			continue
		}

		body, err := io.ReadAll(io.LimitReader(part.Body, maxPartSize))
		if err != nil {
			continue
		}
		text := strings.TrimSpace(string(body))
		if text == "" {
			continue
		}

		if contentType == "text/html" {
			htmlParts = append(htmlParts, text)
		} else {
			textParts = append(textParts, text)
		}
	}

	content := domain.MessageContent{
		Subject:    strings.TrimSpace(subject),
		SourceHint: sender(mr.Header),
	}
	switch {
	case len(htmlParts) > 0:
		content.Body = strings.Join(htmlParts, "\n")
		content.HTML = true
	case len(textParts) > 0:
		content.Body = strings.Join(textParts, "\n")
	default:
		return content, domain.ErrNoContent
	}

	return content, nil
}

func sender(h mail.Header) string {
	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		return from[0].Address
	}
	return strings.TrimSpace(h.Get("From"))
}
