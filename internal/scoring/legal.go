package scoring

import (
	"regexp"
	"strings"
)

// LegalClass is the legal classification of a plot.
type LegalClass string

const (
	LegalDeveloped LegalClass = "developed"
	LegalBuildable LegalClass = "buildable"
	LegalOther     LegalClass = "other"
)

var (
	developedPattern = regexp.MustCompile(`(?i)\b(developed|urbano|urban|consolidado)\b`)
	buildablePattern = regexp.MustCompile(`(?i)\b(buildable|urbanizable|edificable)\b`)
	negatedPattern   = regexp.MustCompile(`(?i)\b(undeveloped|no urbanizable|non[- ]buildable|unbuildable|rustic|r[uú]stico)\b`)
)

// ClassifyLegal derives the legal class from a free-text status and a land type.
func ClassifyLegal(legalStatus, landType string) LegalClass {
	status := strings.TrimSpace(legalStatus)
	kind := strings.ToLower(strings.TrimSpace(landType))

	if negatedPattern.MatchString(status) {
		return LegalOther
	}
	if developedPattern.MatchString(status) || kind == string(LegalDeveloped) {
		return LegalDeveloped
	}
	if buildablePattern.MatchString(status) || kind == string(LegalBuildable) {
		return LegalBuildable
	}
	return LegalOther
}
