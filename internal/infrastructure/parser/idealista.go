package parser

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"LandScout/internal/domain"
	"LandScout/internal/listing"
)

const (
	minPlotArea       = 100
	maxTitleLength    = 100
	maxDescriptionLen = 1000
	defaultLandType   = "buildable"
)

var (
	priceExpr        = regexp.MustCompile(`(?i)(\d{1,3}(?:[.,]\d{3})+|\d+)\s*(?:€|eur\b)`)
	areaExpr         = regexp.MustCompile(`(?i)(\d{1,3}(?:[.,]\d{3})+|\d+)\s*m(?:²|2)`)
	propertyURLExpr  = regexp.MustCompile(`(?i)https?://www\.idealista\.com/[a-z]+/inmueble/\d+[^\s"'<>]*`)
	anyURLExpr       = regexp.MustCompile(`(?i)https?://(?:www\.)?idealista\.com/[^\s"'<>]+`)
	landInExpr       = regexp.MustCompile(`(?i)(?:land|plot|terreno|finca|parcela|solar) (?:in|en)\s+([^\d\n€]+?)(?:\s+\d|\s+See\s|\n|$)`)
	municipioExpr    = regexp.MustCompile(`(?i)municipio:?\s*(\p{Lu}[\p{L} ,\-]+)`)
	regionSuffixExpr = regexp.MustCompile(`(\p{Lu}[\p{L} \-]+),\s*(?:Asturias|Cantabria)\b`)
	titleTextExpr    = regexp.MustCompile(`(?i)\b(?:terreno|finca|parcela|solar|land|plot) +[^.\n]{10,80}`)
	footerExpr       = regexp.MustCompile(`(?is)(does this listing|from your searches|with the idealista app|if you.re no longer interested).*`)
	spaceExpr        = regexp.MustCompile(`\s+`)

	developedExpr = regexp.MustCompile(`(?i)\b(urbano|desarrollado|urban|developed|consolidado|edificable)\b`)
	buildableExpr = regexp.MustCompile(`(?i)\b(urbanizable|buildable|para construir|apto para construcci[oó]n|solar|parcela|terreno|finca|r[uú]stic[oa]?|rural)\b`)
	negatedExpr   = regexp.MustCompile(`(?i)\bno urbanizable\b`)

	rusticStatusExpr    = regexp.MustCompile(`(?i)\b(r[uú]stic[oa]?|no urbanizable)\b`)
	developedStatusExpr = regexp.MustCompile(`(?i)\b(urbano consolidado|suelo urbano)\b`)
	buildableStatusExpr = regexp.MustCompile(`(?i)\b(urbanizable|apto para construcci[oó]n)\b`)
)

var (
	landKeywords  = []string{"terreno", "finca", "parcela", "solar", "plot", "land", "m²", "m2"}
	titleSkipList = []string{"your search", "tu búsqueda", "new plot", "idealista"}
	stopwords     = map[string]struct{}{
		"and": {}, "en": {}, "de": {}, "del": {}, "la": {}, "el": {}, "por": {}, "con": {},
		"y": {}, "e": {}, "with": {}, "for": {}, "in": {}, "of": {}, "the": {},
	}
)

// IdealistaParser extracts listing fields from idealista alert notifications.
type IdealistaParser struct {
	subjectMarker string
}

var _ listing.Parser = (*IdealistaParser)(nil)

// NewIdealistaParser builds the parser; only messages whose subject or sender mention
// the marker are accepted.
func NewIdealistaParser() *IdealistaParser {
	return &IdealistaParser{subjectMarker: "idealista"}
}

// Name identifies the strategy inside the registry.
func (p *IdealistaParser) Name() string {
	return "idealista"
}

// Parse converts a notification into a candidate or reports domain.ErrUnparseable.
func (p *IdealistaParser) Parse(ctx context.Context, content domain.MessageContent) (domain.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return domain.Candidate{}, err
	}
	if !p.accepts(content) {
		return domain.Candidate{}, fmt.Errorf("subject %q: %w", content.Subject, domain.ErrUnparseable)
	}

	doc, err := flatten(content)
	if err != nil {
		return domain.Candidate{}, err
	}
	full := content.Subject + "\n" + doc.text

	candidate := domain.Candidate{
		Price:        extractNumber(priceExpr, full, 0),
		Area:         extractNumber(areaExpr, full, minPlotArea),
		URL:          extractURL(doc.links, full),
		Municipality: extractMunicipality(full),
		Description:  cleanDescription(doc.text),
		LandType:     classifyLandType(full),
		LegalStatus:  extractLegalStatus(full),
	}
	candidate.Title = extractTitle(doc.headings, full)
	if candidate.Title == "" {
		candidate.Title = fallbackTitle(candidate)
	}

	if candidate.URL == "" && candidate.Title == "" && candidate.Price == nil {
		return domain.Candidate{}, fmt.Errorf("no url, title or price: %w", domain.ErrUnparseable)
	}
	if candidate.LandType == "" {
		candidate.LandType = defaultLandType
	}
	return candidate, nil
}

func (p *IdealistaParser) accepts(content domain.MessageContent) bool {
	marker := strings.ToLower(p.subjectMarker)
	return strings.Contains(strings.ToLower(content.Subject), marker) ||
		strings.Contains(strings.ToLower(content.SourceHint), marker)
}

type flatDocument struct {
	text     string
	links    []string
	headings []string
}

func flatten(content domain.MessageContent) (flatDocument, error) {
	if !content.HTML {
		return flatDocument{
			text:  normalizeLines(content.Body),
			links: anyURLExpr.FindAllString(content.Body, -1),
		}, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content.Body))
	if err != nil {
		return flatDocument{}, fmt.Errorf("parse html body: %w", err)
	}
	doc.Find("style, script, head").Remove()

	var out flatDocument
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok {
			out.links = append(out.links, strings.TrimSpace(href))
		}
	})
	for _, selector := range []string{"h1, h2, h3, h4, h5, h6, strong, b", "td"} {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if goquery.NodeName(s) == "td" && s.Children().Length() > 0 {
				return
			}
			if text := normalizeText(s.Text()); text != "" {
				out.headings = append(out.headings, text)
			}
		})
	}

	// Block elements would otherwise glue neighbouring words together.
	doc.Find("br, p, div, tr, li, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	out.text = normalizeLines(doc.Text())
	return out, nil
}

func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(spaceExpr.ReplaceAllString(s, " "))
}

func normalizeLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = normalizeText(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func extractNumber(expr *regexp.Regexp, text string, min float64) *float64 {
	for _, match := range expr.FindAllStringSubmatch(text, -1) {
		digits := strings.NewReplacer(".", "", ",", "").Replace(match[1])
		value, err := strconv.ParseFloat(digits, 64)
		if err != nil || value <= 0 || value < min {
			continue
		}
		return &value
	}
	return nil
}

func extractURL(links []string, text string) string {
	for _, link := range links {
		if propertyURLExpr.MatchString(link) {
			return propertyURLExpr.FindString(link)
		}
	}
	if found := propertyURLExpr.FindString(text); found != "" {
		return found
	}
	for _, link := range append(links, anyURLExpr.FindAllString(text, -1)...) {
		if anyURLExpr.MatchString(link) && !strings.Contains(strings.ToLower(link), "logo") {
			return strings.TrimRight(link, `"'`)
		}
	}
	return ""
}

func extractMunicipality(text string) string {
	for _, m := range landInExpr.FindAllStringSubmatch(text, -1) {
		location := strings.Trim(normalizeText(m[1]), " ,.")
		if utf8.RuneCountInString(location) > 2 && !strings.Contains(strings.ToLower(location), "your search") {
			return location
		}
	}
	for _, expr := range []*regexp.Regexp{municipioExpr, regionSuffixExpr} {
		m := expr.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		candidate := strings.Trim(normalizeText(m[1]), " ,.")
		if validMunicipality(candidate) {
			return candidate
		}
	}
	return ""
}

func validMunicipality(name string) bool {
	if utf8.RuneCountInString(name) <= 2 || strings.ContainsAny(name, "0123456789") {
		return false
	}
	words := strings.Fields(name)
	if _, stop := stopwords[strings.ToLower(words[0])]; stop {
		return false
	}
	return true
}

func extractTitle(headings []string, text string) string {
	candidates := append([]string{}, headings...)
	candidates = append(candidates, titleTextExpr.FindAllString(text, -1)...)
	for _, candidate := range candidates {
		title := normalizeText(candidate)
		if utf8.RuneCountInString(title) < 15 {
			continue
		}
		lower := strings.ToLower(title)
		if containsAny(lower, titleSkipList) || !containsAny(lower, landKeywords) {
			continue
		}
		return truncate(title, maxTitleLength)
	}
	return ""
}

func fallbackTitle(c domain.Candidate) string {
	switch {
	case c.Municipality != "":
		return "Terreno en " + c.Municipality
	case c.Area != nil:
		return fmt.Sprintf("Terreno de %.0f m²", *c.Area)
	default:
		return ""
	}
}

func cleanDescription(text string) string {
	description := footerExpr.ReplaceAllString(text, "")
	if idx := strings.Index(description, "Hello"); idx >= 0 {
		description = description[idx:]
	}
	description = normalizeText(description)
	if utf8.RuneCountInString(description) > maxDescriptionLen {
		description = truncate(description, maxDescriptionLen) + "..."
	}
	return description
}

func classifyLandType(text string) string {
	stripped := negatedExpr.ReplaceAllString(text, "")
	if developedExpr.MatchString(stripped) {
		return "developed"
	}
	if buildableExpr.MatchString(text) {
		return "buildable"
	}
	return ""
}

func extractLegalStatus(text string) string {
	switch {
	case rusticStatusExpr.MatchString(text):
		return "rustic"
	case developedStatusExpr.MatchString(text):
		return "developed"
	case buildableStatusExpr.MatchString(text):
		return "buildable"
	default:
		return ""
	}
}

func containsAny(s string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit]))
}
