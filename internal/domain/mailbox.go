package domain

import (
	"strings"
	"time"
)

// ItemID is a provider-native, ordered mailbox item identifier (an IMAP UID for example).
type ItemID uint64

// RawItem is the fetched content of a mailbox item.
type RawItem struct {
	ID         ItemID
	Raw        []byte
	ReceivedAt time.Time
}

// MessageContent is the rendering-ready view of a message handed to the parser.
type MessageContent struct {
	Subject    string
	Body       string
	HTML       bool
	SourceHint string
}

// SearchQuery is a protocol-neutral mailbox search. All set fields must match.
type SearchQuery struct {
	Unseen  bool
	Seen    bool
	Since   time.Time
	Before  time.Time
	From    []string
	To      []string
	Subject []string
	Body    []string
	Text    []string
}

// IsAll reports whether the query matches every item.
func (q SearchQuery) IsAll() bool {
	return !q.Unseen && !q.Seen && q.Since.IsZero() && q.Before.IsZero() &&
		len(q.From) == 0 && len(q.To) == 0 && len(q.Subject) == 0 &&
		len(q.Body) == 0 && len(q.Text) == 0
}

// MailboxScope identifies the mailbox configuration a watermark belongs to.
type MailboxScope struct {
	Host   string
	User   string
	Folder string
}

// Key renders the scope as a stable storage key.
func (s MailboxScope) Key() string {
	return strings.ToLower(strings.Join([]string{s.Host, s.User, s.Folder}, "|"))
}
