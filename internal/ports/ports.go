package ports

import (
	"context"
	"time"

	"LandScout/internal/domain"
)

// MailboxClient opens sessions against a mailbox provider.
type MailboxClient interface {
	Connect(ctx context.Context) (MailboxSession, error)
}

// MailboxSession is one connect/select/search/fetch conversation.
type MailboxSession interface {
	SelectFolder(ctx context.Context, name string) error
	Search(ctx context.Context, query domain.SearchQuery) ([]domain.ItemID, error)
	FetchBatch(ctx context.Context, ids []domain.ItemID) (map[domain.ItemID]domain.RawItem, error)
	Close() error
}

// MessageParser turns a message into a candidate listing or returns domain.ErrUnparseable.
type MessageParser interface {
	Parse(ctx context.Context, content domain.MessageContent) (domain.Candidate, error)
}

// LandRepository persists Land records.
type LandRepository interface {
	FindBySourceID(ctx context.Context, sourceID string) (*domain.Land, error)
	// Insert stores a new record and sets its ID. A source id collision returns
	// domain.ErrDuplicateSource and leaves the store unchanged.
	Insert(ctx context.Context, land *domain.Land) error
	ListAll(ctx context.Context) ([]domain.Land, error)
	Update(ctx context.Context, land domain.Land) error
}

// WeightRepository persists scoring criteria.
type WeightRepository interface {
	ListActive(ctx context.Context) (domain.Weights, error)
	// List returns every stored criterion, inactive ones included.
	List(ctx context.Context) ([]domain.Criterion, error)
	// Upsert writes every criterion by name in a single transaction.
	Upsert(ctx context.Context, criteria ...domain.Criterion) error
}

// WatermarkStore keeps the highest attempted mailbox item per scope.
type WatermarkStore interface {
	Get(ctx context.Context, scope string) (domain.ItemID, error)
	Set(ctx context.Context, scope string, value domain.ItemID) error
}

// Enricher fills attribute groups of a stored Land.
type Enricher interface {
	Enrich(ctx context.Context, land domain.Land) (domain.Attributes, error)
}

// LandScorer scores a record and persists the result.
type LandScorer interface {
	ScoreAndSave(ctx context.Context, land *domain.Land) error
}

// Notifier streams digests of new listings to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when jobs execute.
type Scheduler interface {
	AddJob(name, spec string, job func(time.Time)) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
