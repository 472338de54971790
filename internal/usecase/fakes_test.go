package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"LandScout/internal/domain"
	"LandScout/internal/ports"
)

func rawMessage(subject, body string) []byte {
	return []byte("From: alerts@idealista.com\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		body + "\r\n")
}

type fakeMailbox struct {
	mu         sync.Mutex
	session    *fakeSession
	connectErr error
	connects   int
}

func (m *fakeMailbox) Connect(ctx context.Context) (ports.MailboxSession, error) {
	m.mu.Lock()
	m.connects++
	m.mu.Unlock()
	if m.connectErr != nil {
		return nil, m.connectErr
	}
	return m.session, nil
}

type fakeSession struct {
	mu sync.Mutex

	// missing folders fail to select
	missing   map[string]bool
	ids       []domain.ItemID
	items     map[domain.ItemID]domain.RawItem
	searchErr error
	fetchErr  error
	// gate, when set, blocks Search until closed
	gate chan struct{}

	selected []string
	fetched  [][]domain.ItemID
	closed   int
}

func newFakeSession() *fakeSession {
	return &fakeSession{missing: map[string]bool{}, items: map[domain.ItemID]domain.RawItem{}}
}

// add registers a message under id; it is both searchable and fetchable.
func (s *fakeSession) add(id domain.ItemID, subject, body string) {
	s.ids = append(s.ids, id)
	s.items[id] = domain.RawItem{ID: id, Raw: rawMessage(subject, body)}
}

func (s *fakeSession) SelectFolder(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.missing[name] {
		return fmt.Errorf("no such folder %s", name)
	}
	s.selected = append(s.selected, name)
	return nil
}

func (s *fakeSession) Search(ctx context.Context, query domain.SearchQuery) ([]domain.ItemID, error) {
	if s.gate != nil {
		<-s.gate
	}
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return append([]domain.ItemID(nil), s.ids...), nil
}

func (s *fakeSession) FetchBatch(ctx context.Context, ids []domain.ItemID) (map[domain.ItemID]domain.RawItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched = append(s.fetched, append([]domain.ItemID(nil), ids...))
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	out := make(map[domain.ItemID]domain.RawItem, len(ids))
	for _, id := range ids {
		if item, ok := s.items[id]; ok {
			out[id] = item
		}
	}
	return out, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
	return nil
}

// subjectParser accepts subjects starting with "Terreno"; "panic" in the
// subject panics and "boom" returns a hard error.
type subjectParser struct{}

func (subjectParser) Parse(_ context.Context, content domain.MessageContent) (domain.Candidate, error) {
	switch {
	case strings.Contains(content.Subject, "panic"):
		panic("parser exploded")
	case strings.Contains(content.Subject, "boom"):
		return domain.Candidate{}, errors.New("boom")
	case !strings.HasPrefix(content.Subject, "Terreno"):
		return domain.Candidate{}, domain.ErrUnparseable
	}
	price := 50000.0
	return domain.Candidate{
		Title:        content.Subject,
		URL:          "https://www.idealista.com/inmueble/1/",
		Price:        &price,
		Municipality: "Llanes",
		LandType:     "buildable",
		LegalStatus:  "buildable",
	}, nil
}

type memLands struct {
	mu        sync.Mutex
	nextID    int64
	rows      map[int64]domain.Land
	insertErr error
	updateErr map[string]error
}

func newMemLands() *memLands {
	return &memLands{rows: map[int64]domain.Land{}, updateErr: map[string]error{}}
}

func (r *memLands) FindBySourceID(_ context.Context, sourceID string) (*domain.Land, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, land := range r.rows {
		if land.SourceID == sourceID {
			found := land
			return &found, nil
		}
	}
	return nil, nil
}

func (r *memLands) Insert(_ context.Context, land *domain.Land) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	for _, existing := range r.rows {
		if existing.SourceID == land.SourceID {
			return domain.ErrDuplicateSource
		}
	}
	r.nextID++
	land.ID = r.nextID
	r.rows[land.ID] = *land
	return nil
}

func (r *memLands) ListAll(context.Context) ([]domain.Land, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Land, 0, len(r.rows))
	for _, land := range r.rows {
		out = append(out, land)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memLands) Update(_ context.Context, land domain.Land) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.updateErr[land.SourceID]; err != nil {
		return err
	}
	if _, ok := r.rows[land.ID]; !ok {
		return fmt.Errorf("update land %d: not found", land.ID)
	}
	r.rows[land.ID] = land
	return nil
}

func (r *memLands) bySource(sourceID string) (domain.Land, bool) {
	found, _ := r.FindBySourceID(context.Background(), sourceID)
	if found == nil {
		return domain.Land{}, false
	}
	return *found, true
}

func (r *memLands) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type memWatermarks struct {
	mu     sync.Mutex
	values map[string]domain.ItemID
	getErr error
	setErr error
	sets   int
}

func newMemWatermarks() *memWatermarks {
	return &memWatermarks{values: map[string]domain.ItemID{}}
}

func (w *memWatermarks) Get(_ context.Context, scope string) (domain.ItemID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.getErr != nil {
		return 0, w.getErr
	}
	return w.values[scope], nil
}

func (w *memWatermarks) Set(_ context.Context, scope string, value domain.ItemID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sets++
	if w.setErr != nil {
		return w.setErr
	}
	if value > w.values[scope] {
		w.values[scope] = value
	}
	return nil
}

func (w *memWatermarks) value(scope string) domain.ItemID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.values[scope]
}

type memWeights struct {
	mu        sync.Mutex
	criteria  map[domain.CriterionName]domain.Criterion
	upsertErr error
	upserts   int
}

func newMemWeights() *memWeights {
	return &memWeights{criteria: map[domain.CriterionName]domain.Criterion{}}
}

func (w *memWeights) ListActive(context.Context) (domain.Weights, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := domain.Weights{}
	for name, c := range w.criteria {
		if c.Active {
			out[name] = c.Weight
		}
	}
	return out, nil
}

func (w *memWeights) List(context.Context) ([]domain.Criterion, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]domain.Criterion, 0, len(w.criteria))
	for _, c := range w.criteria {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (w *memWeights) Upsert(_ context.Context, criteria ...domain.Criterion) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.upserts++
	if w.upsertErr != nil {
		return w.upsertErr
	}
	for _, c := range criteria {
		w.criteria[c.Name] = c
	}
	return nil
}

type stubEnricher struct {
	attrs domain.Attributes
	err   error
}

func (e stubEnricher) Enrich(context.Context, domain.Land) (domain.Attributes, error) {
	return e.attrs, e.err
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) PublishDigest(_ context.Context, digest string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, digest)
	return nil
}
