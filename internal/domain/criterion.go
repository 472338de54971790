package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// ErrUnknownCriterion is returned for weight names outside the known criteria.
var ErrUnknownCriterion = errors.New("unknown scoring criterion")

// CriterionName identifies one scoring dimension.
type CriterionName string

const (
	InfrastructureBasic    CriterionName = "infrastructure_basic"
	InfrastructureExtended CriterionName = "infrastructure_extended"
	TransportAccess        CriterionName = "transport"
	EnvironmentQuality     CriterionName = "environment"
	NeighborhoodQuality    CriterionName = "neighborhood"
	ServicesRating         CriterionName = "services_quality"
	LegalStatus            CriterionName = "legal_status"
)

// Criteria lists every known criterion in evaluation order.
var Criteria = []CriterionName{
	InfrastructureBasic,
	InfrastructureExtended,
	TransportAccess,
	EnvironmentQuality,
	NeighborhoodQuality,
	ServicesRating,
	LegalStatus,
}

// ParseCriterionName validates a criterion name.
func ParseCriterionName(name string) (CriterionName, error) {
	for _, c := range Criteria {
		if string(c) == name {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCriterion, name)
}

// Criterion is a persisted named weight.
type Criterion struct {
	Name      CriterionName
	Weight    float64
	Active    bool
	UpdatedAt time.Time
}

// Weights maps active criteria to their weight. Weights need not sum to one.
type Weights map[CriterionName]float64

// DefaultWeights returns the built-in weight table.
func DefaultWeights() Weights {
	return Weights{
		InfrastructureBasic:    0.20,
		InfrastructureExtended: 0.15,
		TransportAccess:        0.20,
		EnvironmentQuality:     0.15,
		NeighborhoodQuality:    0.15,
		ServicesRating:         0.10,
		LegalStatus:            0.05,
	}
}

// Validate checks every weight is a known criterion with a finite, non-negative value.
func (w Weights) Validate() error {
	for name, weight := range w {
		if _, err := ParseCriterionName(string(name)); err != nil {
			return err
		}
		if math.IsNaN(weight) || math.IsInf(weight, 0) {
			return fmt.Errorf("weight %s is not a number", name)
		}
		if weight < 0 {
			return fmt.Errorf("weight %s is negative: %v", name, weight)
		}
	}
	return nil
}

// Names returns criterion names in a stable order.
func (w Weights) Names() []CriterionName {
	names := make([]CriterionName, 0, len(w))
	for name := range w {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// CriterionScore is one entry of a score breakdown.
type CriterionScore struct {
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

// Breakdown records the criteria that contributed to a composite score.
// Criteria without data are absent.
type Breakdown map[CriterionName]CriterionScore
