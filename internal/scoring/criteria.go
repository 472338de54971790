// Package scoring computes per-criterion scores and the weighted composite for a Land.
package scoring

import (
	"math"
	"regexp"
	"strings"

	"LandScout/internal/domain"
)

// Scorer returns a score in [0,100] and whether the criterion applies to the land.
type Scorer func(land domain.Land) (float64, bool)

// Scorers maps every criterion to its sub-scorer.
var Scorers = map[domain.CriterionName]Scorer{
	domain.InfrastructureBasic:    ScoreInfrastructureBasic,
	domain.InfrastructureExtended: ScoreInfrastructureExtended,
	domain.TransportAccess:        ScoreTransport,
	domain.EnvironmentQuality:     ScoreEnvironment,
	domain.NeighborhoodQuality:    ScoreNeighborhood,
	domain.ServicesRating:         ScoreServicesQuality,
	domain.LegalStatus:            ScoreLegalStatus,
}

var utilityKeywords = map[string][]string{
	"electricity": {"electricidad", "luz", "eléctrico", "electrico", "corriente", "electricity"},
	"water":       {"agua", "suministro agua", "abastecimiento", "red agua", "water"},
	"internet":    {"internet", "fibra", "adsl", "wifi", "banda ancha", "fiber", "broadband"},
	"gas":         {"gas", "butano", "propano", "gas natural"},
}

var utilityPatterns = compileKeywordPatterns(utilityKeywords)

func compileKeywordPatterns(keywords map[string][]string) map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(keywords))
	for utility, words := range keywords {
		quoted := make([]string, len(words))
		for i, w := range words {
			quoted[i] = regexp.QuoteMeta(w)
		}
		patterns[utility] = regexp.MustCompile(`(?i)(^|[^\p{L}])(` + strings.Join(quoted, "|") + `)($|[^\p{L}])`)
	}
	return patterns
}

// ScoreInfrastructureBasic counts utilities flagged by enrichment or mentioned in the description.
func ScoreInfrastructureBasic(land domain.Land) (float64, bool) {
	var flags domain.BasicInfrastructure
	if land.Attributes.InfrastructureBasic != nil {
		flags = *land.Attributes.InfrastructureBasic
	}

	present := map[string]bool{
		"electricity": flags.Electricity,
		"water":       flags.Water,
		"internet":    flags.Internet,
		"gas":         flags.Gas,
	}

	description := land.Description
	mentioned := false
	for utility, pattern := range utilityPatterns {
		if description != "" && pattern.MatchString(description) {
			present[utility] = true
			mentioned = true
		}
	}

	if land.Attributes.InfrastructureBasic == nil && !mentioned {
		return 0, false
	}

	count := 0
	for _, ok := range present {
		if ok {
			count++
		}
	}

	return float64(count) / float64(len(present)) * 100, true
}

// ScoreInfrastructureExtended awards 25/15/10/5 points per available amenity by distance band.
func ScoreInfrastructureExtended(land domain.Land) (float64, bool) {
	infra := land.Attributes.InfrastructureExtended
	if infra == nil {
		return 0, false
	}

	score := 0.0
	for _, amenity := range []domain.Proximity{infra.Supermarket, infra.School, infra.Restaurant, infra.Hospital} {
		if !amenity.Available {
			continue
		}
		distance := distanceOf(amenity)
		switch {
		case distance <= 1000:
			score += 25
		case distance <= 3000:
			score += 15
		case distance <= 5000:
			score += 10
		default:
			score += 5
		}
	}

	return math.Min(score, 100), true
}

// ScoreTransport weighs train 30, bus 20, airport 25 and highway 25, scaled by distance band.
func ScoreTransport(land domain.Land) (float64, bool) {
	transport := land.Attributes.Transport
	if transport == nil {
		return 0, false
	}

	links := []struct {
		proximity domain.Proximity
		maxPoints float64
	}{
		{transport.TrainStation, 30},
		{transport.BusStation, 20},
		{transport.Airport, 25},
		{transport.Highway, 25},
	}

	score := 0.0
	for _, link := range links {
		if !link.proximity.Available {
			continue
		}
		score += link.maxPoints * distanceMultiplier(distanceOf(link.proximity))
	}

	return math.Min(score, 100), true
}

func distanceMultiplier(distance float64) float64 {
	switch {
	case distance <= 2000:
		return 1.0
	case distance <= 5000:
		return 0.7
	case distance <= 10000:
		return 0.4
	default:
		return 0.2
	}
}

func distanceOf(p domain.Proximity) float64 {
	if p.DistanceM == nil || *p.DistanceM < 0 {
		return math.Inf(1)
	}
	return *p.DistanceM
}

// ScoreEnvironment adds view bonuses and an orientation bonus.
func ScoreEnvironment(land domain.Land) (float64, bool) {
	env := land.Attributes.Environment
	if env == nil {
		return 0, false
	}

	score := 0.0
	if env.SeaView {
		score += 40
	}
	if env.MountainView {
		score += 30
	}
	if env.ForestView {
		score += 20
	}
	score += orientationBonus(env.Orientation)

	return math.Min(score, 100), true
}

func orientationBonus(orientation string) float64 {
	normalized := strings.NewReplacer("-", "", " ", "", "_", "").Replace(strings.ToLower(orientation))
	switch normalized {
	case "south", "s", "sur":
		return 20
	case "southeast", "southwest", "se", "sw", "sureste", "suroeste", "sudeste", "sudoeste":
		return 15
	case "east", "west", "e", "w", "este", "oeste":
		return 10
	default:
		return 0
	}
}

// ScoreNeighborhood starts at 50 and moves with price level, new construction and noise.
func ScoreNeighborhood(land domain.Land) (float64, bool) {
	n := land.Attributes.Neighborhood
	if n == nil {
		return 0, false
	}

	score := 50.0
	switch normalizeLevel(n.PriceLevel) {
	case domain.LevelHigh:
		score += 20
	case domain.LevelMedium:
		score += 10
	}
	if n.NewConstruction {
		score += 15
	}
	switch normalizeLevel(n.Noise) {
	case domain.LevelLow:
		score += 15
	case domain.LevelHigh:
		score -= 15
	}

	return math.Max(0, math.Min(score, 100)), true
}

func normalizeLevel(level domain.Level) domain.Level {
	l := domain.Level(strings.ToLower(strings.TrimSpace(string(level))))
	if l == "" {
		return domain.LevelMedium
	}
	return l
}

// ScoreServicesQuality averages the available 1-5 ratings as percentages.
func ScoreServicesQuality(land domain.Land) (float64, bool) {
	services := land.Attributes.ServicesQuality
	if services == nil {
		return 0, false
	}

	total := 0.0
	count := 0
	for _, rating := range []*float64{services.SchoolRating, services.RestaurantRating, services.CafeRating} {
		if rating == nil || *rating <= 0 {
			continue
		}
		total += math.Min(*rating, 5) / 5 * 100
		count++
	}

	if count == 0 {
		return 0, false
	}
	return total / float64(count), true
}

// ScoreLegalStatus gives 100 to developed land, 80 to buildable land and 0 otherwise.
// Land with neither a legal status nor a land type has no score.
func ScoreLegalStatus(land domain.Land) (float64, bool) {
	if strings.TrimSpace(land.LegalStatus) == "" && strings.TrimSpace(land.LandType) == "" {
		return 0, false
	}

	switch ClassifyLegal(land.LegalStatus, land.LandType) {
	case LegalDeveloped:
		return 100, true
	case LegalBuildable:
		return 80, true
	default:
		return 0, true
	}
}
