package scoring

import (
	"fmt"
	"log/slog"
	"math"

	"LandScout/internal/domain"
)

// Result is the composite score and the criteria that produced it.
type Result struct {
	Total     float64
	Breakdown domain.Breakdown
}

// Calculator evaluates sub-scorers against a weight table.
type Calculator struct {
	scorers map[domain.CriterionName]Scorer
	logger  *slog.Logger
}

// NewCalculator uses the built-in sub-scorers.
func NewCalculator(logger *slog.Logger) *Calculator {
	return &Calculator{scorers: Scorers, logger: logger}
}

// Evaluate computes the weighted mean over criteria that produced a score, renormalised by
// the weights of those criteria only. A land without any applicable criterion scores 0.
func (c *Calculator) Evaluate(land domain.Land, weights domain.Weights) Result {
	breakdown := domain.Breakdown{}
	weighted := 0.0
	weightSum := 0.0

	for _, name := range domain.Criteria {
		weight, active := weights[name]
		if !active {
			continue
		}
		scorer, ok := c.scorers[name]
		if !ok {
			continue
		}

		score, applies, err := c.safeScore(scorer, land)
		if err != nil {
			c.warn("criterion failed", "criterion", name, "source_id", land.SourceID, "error", err)
			continue
		}
		if !applies {
			continue
		}

		breakdown[name] = domain.CriterionScore{Score: round2(score), Weight: weight}
		weighted += score * weight
		weightSum += weight
	}

	total := 0.0
	if weightSum > 0 {
		total = math.Max(0, math.Min(100, weighted/weightSum))
	}

	return Result{Total: round2(total), Breakdown: breakdown}
}

func (c *Calculator) safeScore(scorer Scorer, land domain.Land) (score float64, applies bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	score, applies = scorer(land)
	if applies && (math.IsNaN(score) || math.IsInf(score, 0)) {
		return 0, false, fmt.Errorf("score is not finite")
	}
	return math.Max(0, math.Min(100, score)), applies, nil
}

func (c *Calculator) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
