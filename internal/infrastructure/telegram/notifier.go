package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"LandScout/internal/ports"
)

const defaultAPIBase = "https://api.telegram.org"

// maxMessageLength is the Bot API limit for a single sendMessage text.
const maxMessageLength = 4096

// Notifier sends digests to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier. An empty apiBase selects
// the public Bot API.
func NewNotifier(botToken, chatID, apiBase string) *Notifier {
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  strings.TrimRight(apiBase, "/"),
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Configured reports whether token and chat are set.
func (n *Notifier) Configured() bool {
	return n != nil && n.botToken != "" && n.chatID != ""
}

// PublishDigest posts an HTML-formatted message to Telegram. Digests over the
// API limit are cut between listings.
func (n *Notifier) PublishDigest(ctx context.Context, digest string) error {
	if !n.Configured() || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	digest = truncateDigest(digest)

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", digest)
	form.Set("parse_mode", "HTML")
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}

// truncateDigest keeps whole blank-line separated blocks so no tag or entity
// is split. A single oversized block is cut before any open tag or entity.
func truncateDigest(digest string) string {
	if utf8.RuneCountInString(digest) <= maxMessageLength {
		return digest
	}
	const ellipsis = "…"
	budget := maxMessageLength - utf8.RuneCountInString(ellipsis)

	var b strings.Builder
	used := 0
	for _, block := range strings.SplitAfter(digest, "\n\n") {
		n := utf8.RuneCountInString(block)
		if used+n > budget {
			break
		}
		b.WriteString(block)
		used += n
	}
	if used > 0 {
		return b.String() + ellipsis
	}

	cut := string([]rune(digest)[:budget])
	if i := strings.LastIndexAny(cut, "&<"); i >= 0 && !strings.ContainsAny(cut[i:], ";>") {
		cut = cut[:i]
	}
	return cut + ellipsis
}
