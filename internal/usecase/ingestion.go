package usecase

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"LandScout/internal/domain"
	"LandScout/internal/mailbox"
	"LandScout/internal/metrics"
	"LandScout/internal/ports"
)

// ErrMailboxUnavailable wraps connect, select, search and fetch failures. The
// watermark is never touched when a run ends with it.
var ErrMailboxUnavailable = errors.New("mailbox unavailable")

const (
	defaultMaxItems    = 200
	defaultFallback    = "INBOX"
	watermarkWriteWait = 10 * time.Second
)

// MailboxSettings describes what one run reads.
type MailboxSettings struct {
	Host           string
	User           string
	Folder         string
	FallbackFolder string
	Query          domain.SearchQuery
	MaxItems       int
	SourcePrefix   string
	SessionTimeout time.Duration
}

// PipelineDeps wires all driven adapters into the ingestion pipeline.
type PipelineDeps struct {
	Mailbox    ports.MailboxClient
	Parser     ports.MessageParser
	Lands      ports.LandRepository
	Watermarks ports.WatermarkStore
	Enricher   ports.Enricher
	Scorer     ports.LandScorer
	Notifier   ports.Notifier
	Settings   MailboxSettings
	// DigestMinScore is the lowest score_total that makes a new listing part of the digest.
	DigestMinScore float64
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
}

// Pipeline implements incremental mailbox ingestion.
type Pipeline struct {
	mailbox        ports.MailboxClient
	parser         ports.MessageParser
	lands          ports.LandRepository
	watermarks     ports.WatermarkStore
	enricher       ports.Enricher
	scorer         ports.LandScorer
	notifier       ports.Notifier
	settings       MailboxSettings
	digestMinScore float64
	metrics        *metrics.Metrics
	logger         *slog.Logger

	runs singleflight.Group
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	settings := deps.Settings
	if settings.FallbackFolder == "" {
		settings.FallbackFolder = defaultFallback
	}
	if settings.Folder == "" {
		settings.Folder = settings.FallbackFolder
	}

	return &Pipeline{
		mailbox:        deps.Mailbox,
		parser:         deps.Parser,
		lands:          deps.Lands,
		watermarks:     deps.Watermarks,
		enricher:       deps.Enricher,
		scorer:         deps.Scorer,
		notifier:       deps.Notifier,
		settings:       settings,
		digestMinScore: deps.DigestMinScore,
		metrics:        deps.Metrics,
		logger:         logger.With("component", "ingestion"),
	}
}

// Run ingests at most maxItems new mailbox items and returns how many Land
// records were created. maxItems <= 0 uses the configured cap. Concurrent
// calls for the same mailbox join the run already in flight and share its result.
func (p *Pipeline) Run(ctx context.Context, maxItems int) (int, error) {
	if p.mailbox == nil || p.parser == nil || p.lands == nil {
		return 0, fmt.Errorf("ingestion pipeline is not fully configured")
	}

	key := p.scope(p.settings.Folder).Key()
	v, err, shared := p.runs.Do(key, func() (interface{}, error) {
		return p.run(ctx, maxItems)
	})
	if shared {
		p.logger.Debug("joined in-flight ingestion run", "scope", key)
	}
	created, _ := v.(int)
	return created, err
}

func (p *Pipeline) scope(folder string) domain.MailboxScope {
	return domain.MailboxScope{Host: p.settings.Host, User: p.settings.User, Folder: folder}
}

func (p *Pipeline) run(ctx context.Context, maxItems int) (created int, err error) {
	started := time.Now()
	log := p.logger.With("run_id", uuid.NewString())
	defer func() {
		p.metrics.ObserveRun(started, err)
		if err != nil {
			log.Error("ingestion run failed", "created", created, "error", err, "elapsed", time.Since(started))
			return
		}
		log.Info("ingestion run finished", "created", created, "elapsed", time.Since(started))
	}()

	limit := maxItems
	if limit <= 0 {
		limit = p.settings.MaxItems
	}
	if limit <= 0 {
		limit = defaultMaxItems
	}

	if p.settings.SessionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.settings.SessionTimeout)
		defer cancel()
	}

	session, err := p.mailbox.Connect(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: connect: %w", ErrMailboxUnavailable, err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			log.Debug("mailbox session close", "error", cerr)
		}
	}()

	folder, err := p.selectFolder(ctx, log, session)
	if err != nil {
		return 0, err
	}
	scope := p.scope(folder).Key()

	watermark := p.readWatermark(ctx, log, scope)
	log.Info("ingestion run started", "folder", folder, "watermark", uint64(watermark), "max_items", limit)

	ids, err := session.Search(ctx, p.settings.Query)
	if err != nil {
		return 0, fmt.Errorf("%w: search: %w", ErrMailboxUnavailable, err)
	}

	batch := selectBatch(ids, watermark, limit)
	if len(batch) == 0 {
		log.Info("no new mailbox items", "found", len(ids))
		return 0, nil
	}

	items, err := session.FetchBatch(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("%w: fetch %d items: %w", ErrMailboxUnavailable, len(batch), err)
	}

	var (
		fresh     []domain.Land
		attempted domain.ItemID
	)
	for _, id := range batch {
		if ctx.Err() != nil {
			break
		}
		attempted = id

		item, ok := items[id]
		if !ok {
			p.metrics.Item(metrics.ItemMissing)
			log.Warn("mailbox item missing from fetch", "item_id", uint64(id))
			continue
		}

		outcome, land, itemErr := p.processItem(ctx, log, item)
		p.metrics.Item(outcome)
		switch outcome {
		case metrics.ItemCreated:
			created++
			fresh = append(fresh, land)
		case metrics.ItemFailed:
			log.Error("mailbox item failed", "item_id", uint64(id), "error", itemErr)
		default:
			log.Debug("mailbox item skipped", "item_id", uint64(id), "outcome", outcome, "reason", itemErr)
		}
	}

	if attempted > 0 {
		p.writeWatermark(ctx, log, scope, attempted)
	}

	p.publishDigest(ctx, log, fresh)

	if err := ctx.Err(); err != nil {
		return created, fmt.Errorf("ingestion interrupted: %w", err)
	}
	return created, nil
}

func (p *Pipeline) selectFolder(ctx context.Context, log *slog.Logger, session ports.MailboxSession) (string, error) {
	folder := p.settings.Folder
	err := session.SelectFolder(ctx, folder)
	if err == nil {
		return folder, nil
	}

	fallback := p.settings.FallbackFolder
	if strings.EqualFold(fallback, folder) {
		return "", fmt.Errorf("%w: select %s: %w", ErrMailboxUnavailable, folder, err)
	}

	log.Warn("folder unavailable, using fallback", "folder", folder, "fallback", fallback, "error", err)
	if ferr := session.SelectFolder(ctx, fallback); ferr != nil {
		return "", fmt.Errorf("%w: select %s: %w", ErrMailboxUnavailable, fallback, ferr)
	}
	return fallback, nil
}

func (p *Pipeline) readWatermark(ctx context.Context, log *slog.Logger, scope string) domain.ItemID {
	if p.watermarks == nil {
		return 0
	}
	w, err := p.watermarks.Get(ctx, scope)
	if err != nil {
		log.Warn("watermark read failed, scanning from the start", "scope", scope, "error", err)
		return 0
	}
	return w
}

func (p *Pipeline) writeWatermark(ctx context.Context, log *slog.Logger, scope string, value domain.ItemID) {
	if p.watermarks == nil {
		return
	}
	// attempted items count even when the run was cancelled
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), watermarkWriteWait)
	defer cancel()

	if err := p.watermarks.Set(writeCtx, scope, value); err != nil {
		log.Error("watermark write failed", "scope", scope, "value", uint64(value), "error", err)
		return
	}
	p.metrics.SetWatermark(scope, uint64(value))
}

// selectBatch keeps identifiers above the watermark, ascending, capped at limit.
func selectBatch(ids []domain.ItemID, watermark domain.ItemID, limit int) []domain.ItemID {
	batch := make([]domain.ItemID, 0, len(ids))
	seen := make(map[domain.ItemID]struct{}, len(ids))
	for _, id := range ids {
		if id <= watermark {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		batch = append(batch, id)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i] < batch[j] })
	if len(batch) > limit {
		batch = batch[:limit]
	}
	return batch
}

// processItem never panics; a recovered panic is reported as a failed item.
func (p *Pipeline) processItem(ctx context.Context, log *slog.Logger, item domain.RawItem) (outcome string, land domain.Land, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, land, err = metrics.ItemFailed, domain.Land{}, fmt.Errorf("panic: %v", r)
		}
	}()

	content, err := mailbox.ExtractContent(item.Raw)
	if errors.Is(err, domain.ErrNoContent) {
		return metrics.ItemUnparseable, domain.Land{}, err
	}
	if err != nil {
		return metrics.ItemFailed, domain.Land{}, fmt.Errorf("extract content: %w", err)
	}

	candidate, err := p.parser.Parse(ctx, content)
	if errors.Is(err, domain.ErrUnparseable) {
		return metrics.ItemUnparseable, domain.Land{}, err
	}
	if err != nil {
		return metrics.ItemFailed, domain.Land{}, fmt.Errorf("parse: %w", err)
	}

	candidate.SourceID = domain.SourceID(p.settings.SourcePrefix, item.ID)
	if candidate.ReceivedAt.IsZero() {
		candidate.ReceivedAt = item.ReceivedAt
	}

	existing, err := p.lands.FindBySourceID(ctx, candidate.SourceID)
	if err != nil {
		return metrics.ItemFailed, domain.Land{}, fmt.Errorf("lookup %s: %w", candidate.SourceID, err)
	}
	if existing != nil {
		return metrics.ItemDuplicate, domain.Land{}, fmt.Errorf("%s: %w", candidate.SourceID, domain.ErrDuplicateSource)
	}

	land = domain.NewLand(candidate)
	if err := p.lands.Insert(ctx, &land); err != nil {
		if errors.Is(err, domain.ErrDuplicateSource) {
			return metrics.ItemDuplicate, domain.Land{}, err
		}
		return metrics.ItemFailed, domain.Land{}, fmt.Errorf("insert %s: %w", candidate.SourceID, err)
	}
	log.Info("land created", "source_id", land.SourceID, "id", land.ID, "title", land.Title)

	p.enrichAndScore(ctx, log, &land)
	return metrics.ItemCreated, land, nil
}

// enrichAndScore runs the optional post-insert steps. Their failures leave the
// record in place unscored or unenriched.
func (p *Pipeline) enrichAndScore(ctx context.Context, log *slog.Logger, land *domain.Land) {
	enriched := false
	if p.enricher != nil {
		attrs, err := p.enricher.Enrich(ctx, *land)
		if err != nil {
			log.Warn("enrichment failed", "source_id", land.SourceID, "error", err)
		} else {
			land.Attributes = attrs
			enriched = true
		}
	}

	if p.scorer != nil {
		if err := p.scorer.ScoreAndSave(ctx, land); err != nil {
			log.Warn("scoring failed", "source_id", land.SourceID, "error", err)
		}
		return
	}

	if enriched {
		if err := p.lands.Update(ctx, *land); err != nil {
			log.Warn("saving enrichment failed", "source_id", land.SourceID, "error", err)
		}
	}
}

func (p *Pipeline) publishDigest(ctx context.Context, log *slog.Logger, lands []domain.Land) {
	if p.notifier == nil || len(lands) == 0 {
		return
	}

	var picked []domain.Land
	for _, land := range lands {
		if land.ScoreTotal != nil && *land.ScoreTotal >= p.digestMinScore {
			picked = append(picked, land)
		}
	}
	if len(picked) == 0 {
		return
	}

	sort.SliceStable(picked, func(i, j int) bool { return *picked[i].ScoreTotal > *picked[j].ScoreTotal })
	if err := p.notifier.PublishDigest(ctx, buildDigestMessage(picked)); err != nil {
		log.Warn("digest notification failed", "lands", len(picked), "error", err)
	}
}

// buildDigestMessage renders the Telegram HTML digest. Listings are separated
// by a blank line, which the notifier uses as its truncation boundary.
func buildDigestMessage(lands []domain.Land) string {
	if len(lands) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%d new listings</b>\n\n", len(lands))
	for _, land := range lands {
		fmt.Fprintf(&b, "- %s\nScore: %.2f\n", html.EscapeString(land.Title), *land.ScoreTotal)
		var facts []string
		if land.Municipality != "" {
			facts = append(facts, html.EscapeString(land.Municipality))
		}
		if land.Price != nil {
			facts = append(facts, fmt.Sprintf("%.0f €", *land.Price))
		}
		if land.Area != nil {
			facts = append(facts, fmt.Sprintf("%.0f m²", *land.Area))
		}
		if len(facts) > 0 {
			b.WriteString(strings.Join(facts, " · "))
			b.WriteByte('\n')
		}
		if land.URL != "" {
			b.WriteString(html.EscapeString(land.URL))
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	return b.String()
}
