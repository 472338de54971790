package imap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"LandScout/internal/domain"
	"LandScout/internal/ports"
)

const (
	defaultDialTimeout   = 30 * time.Second
	defaultLogoutTimeout = 5 * time.Second
)

// Options configures the IMAP connection.
type Options struct {
	Host               string
	Port               int
	Username           string
	Password           string
	UseTLS             bool
	InsecureSkipVerify bool
	DialTimeout        time.Duration
}

// Client opens read-only IMAP sessions.
type Client struct {
	opts          Options
	logger        *slog.Logger
	logoutTimeout time.Duration
}

var _ ports.MailboxClient = (*Client)(nil)

// NewClient validates options and returns a client.
func NewClient(opts Options, logger *slog.Logger) (*Client, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("imap host is empty")
	}
	if opts.Port <= 0 {
		return nil, fmt.Errorf("imap port must be positive")
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	return &Client{opts: opts, logger: logger, logoutTimeout: defaultLogoutTimeout}, nil
}

// Connect dials and authenticates. Login is bounded by the dial timeout and by
// ctx; the session is closed when ctx is cancelled.
func (c *Client) Connect(ctx context.Context) (ports.MailboxSession, error) {
	address := net.JoinHostPort(c.opts.Host, strconv.Itoa(c.opts.Port))

	dialer := &net.Dialer{Timeout: c.opts.DialTimeout}
	var (
		conn net.Conn
		err  error
	)
	if c.opts.UseTLS {
		tlsDialer := &tls.Dialer{
			NetDialer: dialer,
			Config: &tls.Config{
				ServerName:         c.opts.Host,
				InsecureSkipVerify: c.opts.InsecureSkipVerify,
			},
		}
		conn, err = tlsDialer.DialContext(ctx, "tcp", address)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", address)
	}
	if err != nil {
		return nil, fmt.Errorf("dial imap %s: %w", address, err)
	}

	client := imapclient.New(conn, &imapclient.Options{})
	err = waitBounded(ctx, c.opts.DialTimeout, client, func() error {
		return client.Login(c.opts.Username, c.opts.Password).Wait()
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("imap login failed: %w", err)
	}

	if c.logger != nil {
		c.logger.Debug("imap connection established", "address", address, "user", c.opts.Username, "tls", c.opts.UseTLS)
	}

	stopClose := context.AfterFunc(ctx, func() {
		_ = client.Close()
	})

	return &session{
		client:        client,
		stopClose:     stopClose,
		ctx:           ctx,
		logger:        c.logger,
		logoutTimeout: c.logoutTimeout,
	}, nil
}

// waitBounded runs a blocking client call and closes the connection when ctx
// ends or timeout elapses first, which fails the pending command.
func waitBounded(ctx context.Context, timeout time.Duration, client *imapclient.Client, call func() error) error {
	boundCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stop := context.AfterFunc(boundCtx, func() {
		_ = client.Close()
	})
	err := call()
	if !stop() {
		return fmt.Errorf("imap server did not answer: %w", boundCtx.Err())
	}
	return err
}

type session struct {
	client        *imapclient.Client
	stopClose     func() bool
	ctx           context.Context
	logger        *slog.Logger
	logoutTimeout time.Duration
	folder        string
}

func (s *session) SelectFolder(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := s.client.Select(name, &imapv2.SelectOptions{ReadOnly: true}).Wait()
	if err != nil {
		return fmt.Errorf("select %s: %w", name, err)
	}
	s.folder = name
	if s.logger != nil {
		s.logger.Debug("imap folder selected", "folder", name, "messages", data.NumMessages, "uid_next", data.UIDNext)
	}
	return nil
}

func (s *session) Search(ctx context.Context, query domain.SearchQuery) ([]domain.ItemID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.client.UIDSearch(searchCriteria(query), nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("uid search in %s: %w", s.folder, err)
	}

	uids := data.AllUIDs()
	ids := make([]domain.ItemID, 0, len(uids))
	for _, uid := range uids {
		ids = append(ids, domain.ItemID(uid))
	}
	return ids, nil
}

func (s *session) FetchBatch(ctx context.Context, ids []domain.ItemID) (map[domain.ItemID]domain.RawItem, error) {
	items := make(map[domain.ItemID]domain.RawItem, len(ids))
	if len(ids) == 0 {
		return items, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	uids := make([]imapv2.UID, 0, len(ids))
	for _, id := range ids {
		uids = append(uids, imapv2.UID(id))
	}

	section := &imapv2.FetchItemBodySection{Peek: true}
	opts := &imapv2.FetchOptions{
		UID:          true,
		InternalDate: true,
		BodySection:  []*imapv2.FetchItemBodySection{section},
	}

	msgs, err := s.client.Fetch(imapv2.UIDSetNum(uids...), opts).Collect()
	if err != nil {
		return nil, fmt.Errorf("uid fetch %d messages: %w", len(uids), err)
	}

	for _, msg := range msgs {
		raw := msg.FindBodySection(section)
		if raw == nil {
			continue
		}
		id := domain.ItemID(msg.UID)
		items[id] = domain.RawItem{ID: id, Raw: raw, ReceivedAt: msg.InternalDate}
	}
	return items, nil
}

func (s *session) Close() error {
	s.stopClose()
	if s.ctx.Err() == nil {
		err := waitBounded(context.Background(), s.logoutTimeout, s.client, func() error {
			return s.client.Logout().Wait()
		})
		if err != nil && s.logger != nil {
			s.logger.Warn("imap logout failed", "err", err)
		}
	}
	if err := s.client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func searchCriteria(q domain.SearchQuery) *imapv2.SearchCriteria {
	criteria := &imapv2.SearchCriteria{
		Since:  q.Since,
		Before: q.Before,
		Body:   q.Body,
		Text:   q.Text,
	}
	if q.Unseen {
		criteria.NotFlag = append(criteria.NotFlag, imapv2.FlagSeen)
	}
	if q.Seen {
		criteria.Flag = append(criteria.Flag, imapv2.FlagSeen)
	}
	for _, v := range q.From {
		criteria.Header = append(criteria.Header, imapv2.SearchCriteriaHeaderField{Key: "From", Value: v})
	}
	for _, v := range q.To {
		criteria.Header = append(criteria.Header, imapv2.SearchCriteriaHeaderField{Key: "To", Value: v})
	}
	for _, v := range q.Subject {
		criteria.Header = append(criteria.Header, imapv2.SearchCriteriaHeaderField{Key: "Subject", Value: v})
	}
	return criteria
}
