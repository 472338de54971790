package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"LandScout/internal/domain"
	"LandScout/internal/metrics"
	"LandScout/internal/ports"
	"LandScout/internal/scoring"
)

// ErrInvalidWeights marks a rejected weight update; nothing was persisted.
var ErrInvalidWeights = errors.New("invalid weights")

// EngineDeps wires the scoring engine.
type EngineDeps struct {
	Lands      ports.LandRepository
	Weights    ports.WeightRepository
	Calculator *scoring.Calculator
	// Defaults seed the weight store when it has no active criteria.
	Defaults domain.Weights
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Engine scores Land records and keeps them consistent with the active weights.
// Weight updates and full rescoring are serialized.
type Engine struct {
	lands    ports.LandRepository
	weights  ports.WeightRepository
	calc     *scoring.Calculator
	defaults domain.Weights
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time

	mu sync.Mutex
}

var _ ports.LandScorer = (*Engine)(nil)

// NewEngine builds the engine; missing defaults fall back to the built-in table.
func NewEngine(deps EngineDeps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scoring")

	calc := deps.Calculator
	if calc == nil {
		calc = scoring.NewCalculator(logger)
	}
	defaults := deps.Defaults
	if len(defaults) == 0 {
		defaults = domain.DefaultWeights()
	}

	return &Engine{
		lands:    deps.Lands,
		weights:  deps.Weights,
		calc:     calc,
		defaults: defaults,
		metrics:  deps.Metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Weights returns the active weight table. An empty store is seeded with the
// defaults first; a store whose criteria were all disabled stays empty.
func (e *Engine) Weights(ctx context.Context) (domain.Weights, error) {
	active, err := e.weights.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list weights: %w", err)
	}
	if len(active) > 0 {
		return active, nil
	}

	stored, err := e.weights.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list criteria: %w", err)
	}
	if len(stored) > 0 {
		return domain.Weights{}, nil
	}

	seeded := make(domain.Weights, len(e.defaults))
	criteria := make([]domain.Criterion, 0, len(e.defaults))
	for _, name := range e.defaults.Names() {
		seeded[name] = e.defaults[name]
		criteria = append(criteria, domain.Criterion{Name: name, Weight: e.defaults[name], Active: true, UpdatedAt: e.now()})
	}
	if err := e.weights.Upsert(ctx, criteria...); err != nil {
		return nil, fmt.Errorf("seed default weights: %w", err)
	}
	e.logger.Info("default weights seeded", "criteria", len(criteria))
	return seeded, nil
}

// Criteria lists every stored criterion, seeding the defaults into an empty store.
func (e *Engine) Criteria(ctx context.Context) ([]domain.Criterion, error) {
	if _, err := e.Weights(ctx); err != nil {
		return nil, err
	}
	criteria, err := e.weights.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list criteria: %w", err)
	}
	return criteria, nil
}

// Score computes the composite score with the current weights and stores it,
// with its breakdown, on land. land itself is not saved; the default weights
// may be seeded into an empty weight store on first use.
func (e *Engine) Score(ctx context.Context, land *domain.Land) (scoring.Result, error) {
	if land == nil {
		return scoring.Result{}, fmt.Errorf("score: nil land")
	}
	weights, err := e.Weights(ctx)
	if err != nil {
		return scoring.Result{}, err
	}
	return e.apply(land, weights), nil
}

// ScoreAndSave scores land and persists the result.
func (e *Engine) ScoreAndSave(ctx context.Context, land *domain.Land) error {
	result, err := e.Score(ctx, land)
	if err != nil {
		return err
	}
	if err := e.lands.Update(ctx, *land); err != nil {
		e.metrics.ScoreFailed()
		return fmt.Errorf("save score for %s: %w", land.SourceID, err)
	}
	e.logger.Debug("land scored", "source_id", land.SourceID, "score", result.Total, "criteria", len(result.Breakdown))
	return nil
}

// RescoreAll rescores every stored record and returns how many were updated.
// A record that cannot be saved is logged and skipped.
func (e *Engine) RescoreAll(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rescoreAll(ctx)
}

func (e *Engine) rescoreAll(ctx context.Context) (int, error) {
	weights, err := e.Weights(ctx)
	if err != nil {
		return 0, err
	}

	lands, err := e.lands.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list lands: %w", err)
	}

	updated := 0
	for i := range lands {
		if err := ctx.Err(); err != nil {
			e.metrics.AddRescored(updated)
			return updated, fmt.Errorf("rescore interrupted: %w", err)
		}
		land := &lands[i]
		e.apply(land, weights)
		if err := e.lands.Update(ctx, *land); err != nil {
			e.metrics.ScoreFailed()
			e.logger.Error("rescore save failed", "source_id", land.SourceID, "error", err)
			continue
		}
		updated++
	}

	e.metrics.AddRescored(updated)
	e.logger.Info("rescore finished", "updated", updated, "total", len(lands))
	return updated, nil
}

// SetWeights validates every supplied weight, persists them as active in one
// transaction and rescores the whole dataset. Criteria not named keep their
// current weight. Invalid input returns ErrInvalidWeights before any write.
func (e *Engine) SetWeights(ctx context.Context, weights domain.Weights) (int, error) {
	if len(weights) == 0 {
		return 0, fmt.Errorf("%w: no weights supplied", ErrInvalidWeights)
	}
	if err := weights.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidWeights, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.Weights(ctx); err != nil {
		return 0, err
	}

	criteria := make([]domain.Criterion, 0, len(weights))
	for _, name := range weights.Names() {
		criteria = append(criteria, domain.Criterion{Name: name, Weight: weights[name], Active: true, UpdatedAt: e.now()})
	}
	if err := e.weights.Upsert(ctx, criteria...); err != nil {
		return 0, fmt.Errorf("persist weights: %w", err)
	}
	e.logger.Info("weights updated", "criteria", len(criteria))

	return e.rescoreAll(ctx)
}

// DisableCriterion deactivates one criterion and rescores the whole dataset.
func (e *Engine) DisableCriterion(ctx context.Context, name domain.CriterionName) (int, error) {
	if _, err := domain.ParseCriterionName(string(name)); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidWeights, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	current, err := e.Weights(ctx)
	if err != nil {
		return 0, err
	}
	weight, ok := current[name]
	if !ok {
		return 0, nil
	}

	if err := e.weights.Upsert(ctx, domain.Criterion{Name: name, Weight: weight, Active: false, UpdatedAt: e.now()}); err != nil {
		return 0, fmt.Errorf("disable %s: %w", name, err)
	}
	e.logger.Info("criterion disabled", "criterion", name)

	return e.rescoreAll(ctx)
}

func (e *Engine) apply(land *domain.Land, weights domain.Weights) scoring.Result {
	result := e.calc.Evaluate(*land, weights)
	total := result.Total
	land.ScoreTotal = &total
	land.Breakdown = result.Breakdown
	return result
}
