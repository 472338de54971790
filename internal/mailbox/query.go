// Package mailbox holds protocol-neutral helpers shared by mailbox adapters and the pipeline.
package mailbox

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"LandScout/internal/domain"
)

var dateLayouts = []string{"02-Jan-2006", "2-Jan-2006", "2006-01-02"}

// ParseQuery converts a search expression into a SearchQuery.
//
// Supported terms, combined with AND: ALL, UNSEEN, SEEN, SINCE <date>, BEFORE <date>,
// FROM <s>, TO <s>, SUBJECT <s>, BODY <s>, TEXT <s>. Arguments may be double-quoted.
func ParseQuery(expr string) (domain.SearchQuery, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return domain.SearchQuery{}, err
	}

	var q domain.SearchQuery
	for i := 0; i < len(tokens); i++ {
		key := strings.ToUpper(tokens[i])

		switch key {
		case "ALL":
			continue
		case "UNSEEN":
			q.Unseen = true
			continue
		case "SEEN":
			q.Seen = true
			continue
		}

		if i+1 >= len(tokens) {
			return domain.SearchQuery{}, fmt.Errorf("search term %s needs an argument", key)
		}
		arg := tokens[i+1]
		i++

		switch key {
		case "SINCE", "BEFORE":
			t, err := parseDate(arg)
			if err != nil {
				return domain.SearchQuery{}, fmt.Errorf("search term %s: %w", key, err)
			}
			if key == "SINCE" {
				q.Since = t
			} else {
				q.Before = t
			}
		case "FROM":
			q.From = append(q.From, arg)
		case "TO":
			q.To = append(q.To, arg)
		case "SUBJECT":
			q.Subject = append(q.Subject, arg)
		case "BODY":
			q.Body = append(q.Body, arg)
		case "TEXT":
			q.Text = append(q.Text, arg)
		default:
			return domain.SearchQuery{}, fmt.Errorf("unsupported search term %q", tokens[i-1])
		}
	}

	if q.Seen && q.Unseen {
		return domain.SearchQuery{}, fmt.Errorf("SEEN and UNSEEN are mutually exclusive")
	}

	return q, nil
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", value)
}

func tokenize(expr string) ([]string, error) {
	var (
		tokens  []string
		current strings.Builder
		quoted  bool
		started bool
	)

	flush := func() {
		if started {
			tokens = append(tokens, current.String())
		}
		current.Reset()
		started = false
	}

	for _, r := range expr {
		switch {
		case r == '"':
			if quoted {
				quoted = false
				flush()
				continue
			}
			flush()
			quoted = true
			started = true
		case unicode.IsSpace(r) && !quoted:
			flush()
		default:
			current.WriteRune(r)
			started = true
		}
	}

	if quoted {
		return nil, fmt.Errorf("unterminated quote in search expression %q", expr)
	}
	flush()

	return tokens, nil
}
