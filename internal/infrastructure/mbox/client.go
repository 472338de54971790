// Package mbox replays an mbox export through the mailbox session contract.
// Item identifiers are 1-based message ordinals, so appending to the file
// keeps earlier identifiers stable.
package mbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	mboxlib "github.com/emersion/go-mbox"

	"LandScout/internal/domain"
	"LandScout/internal/ports"
)

// Options configures the replay source. Path is either a single mbox file,
// served for any folder name, or a directory holding one <folder>.mbox per folder.
type Options struct {
	Path string
}

// Client opens sessions over an mbox file or directory.
type Client struct {
	path   string
	logger *slog.Logger
}

var _ ports.MailboxClient = (*Client)(nil)

// NewClient validates the path.
func NewClient(opts Options, logger *slog.Logger) (*Client, error) {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return nil, fmt.Errorf("mbox path is empty")
	}
	return &Client{path: path, logger: logger}, nil
}

// Connect checks that the source exists.
func (c *Client) Connect(ctx context.Context) (ports.MailboxSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(c.path)
	if err != nil {
		return nil, fmt.Errorf("open mbox source: %w", err)
	}
	return &session{root: c.path, dir: info.IsDir(), logger: c.logger}, nil
}

type message struct {
	id     domain.ItemID
	raw    []byte
	header mail.Header
	body   []byte
	date   time.Time
}

type session struct {
	root     string
	dir      bool
	logger   *slog.Logger
	folder   string
	messages []message
}

func (s *session) SelectFolder(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.root
	if s.dir {
		path = filepath.Join(s.root, name+".mbox")
	}

	messages, err := load(ctx, path)
	if err != nil {
		return fmt.Errorf("select %s: %w", name, err)
	}
	s.folder = name
	s.messages = messages
	if s.logger != nil {
		s.logger.Debug("mbox folder selected", "folder", name, "path", path, "messages", len(messages))
	}
	return nil
}

func (s *session) Search(ctx context.Context, query domain.SearchQuery) ([]domain.ItemID, error) {
	if s.folder == "" {
		return nil, fmt.Errorf("no folder selected")
	}
	ids := make([]domain.ItemID, 0, len(s.messages))
	for _, msg := range s.messages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if matches(msg, query) {
			ids = append(ids, msg.id)
		}
	}
	return ids, nil
}

func (s *session) FetchBatch(ctx context.Context, ids []domain.ItemID) (map[domain.ItemID]domain.RawItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items := make(map[domain.ItemID]domain.RawItem, len(ids))
	for _, id := range ids {
		if id == 0 || int(id) > len(s.messages) {
			continue
		}
		msg := s.messages[id-1]
		items[id] = domain.RawItem{ID: id, Raw: msg.raw, ReceivedAt: msg.date}
	}
	return items, nil
}

func (s *session) Close() error {
	s.messages = nil
	return nil
}

func load(ctx context.Context, path string) ([]message, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	reader := mboxlib.NewReader(file)
	var messages []message
	for idx := 1; ; idx++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return messages, nil
			}
			return nil, fmt.Errorf("message %d: %w", idx, err)
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			return nil, fmt.Errorf("message %d read: %w", idx, err)
		}

		msg := message{id: domain.ItemID(idx), raw: raw}
		if parsed, err := mail.ReadMessage(bytes.NewReader(raw)); err == nil {
			msg.header = parsed.Header
			msg.body, _ = io.ReadAll(parsed.Body)
			if date, err := parsed.Header.Date(); err == nil {
				msg.date = date
			}
		}
		messages = append(messages, msg)
	}
}

func matches(msg message, q domain.SearchQuery) bool {
	if q.IsAll() {
		return true
	}
	seen := strings.Contains(msg.header.Get("Status"), "R") || strings.Contains(msg.header.Get("X-Status"), "R")
	if q.Unseen && seen {
		return false
	}
	if q.Seen && !seen {
		return false
	}

	day := floorDay(msg.date)
	if !q.Since.IsZero() && (msg.date.IsZero() || day.Before(floorDay(q.Since))) {
		return false
	}
	if !q.Before.IsZero() && (msg.date.IsZero() || !day.Before(floorDay(q.Before))) {
		return false
	}

	if !containsAll(msg.header.Get("From"), q.From) ||
		!containsAll(msg.header.Get("To"), q.To) ||
		!containsAll(msg.header.Get("Subject"), q.Subject) ||
		!containsAll(string(msg.body), q.Body) ||
		!containsAll(string(msg.raw), q.Text) {
		return false
	}
	return true
}

func containsAll(haystack string, needles []string) bool {
	lower := strings.ToLower(haystack)
	for _, needle := range needles {
		if !strings.Contains(lower, strings.ToLower(needle)) {
			return false
		}
	}
	return true
}

func floorDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
