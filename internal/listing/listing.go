// Package listing holds the parser strategies that turn provider alert e-mails
// into listing candidates and resolves the order they are tried in.
package listing

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"LandScout/internal/domain"
)

// Parser recognises one provider's notification format. It returns
// domain.ErrUnparseable for messages that are not its alerts.
type Parser interface {
	Name() string
	Parse(ctx context.Context, content domain.MessageContent) (domain.Candidate, error)
}

// Registry indexes strategies by provider name, matched case-insensitively.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry builds a registry holding parsers.
func NewRegistry(parsers ...Parser) *Registry {
	r := &Registry{parsers: make(map[string]Parser, len(parsers))}
	for _, p := range parsers {
		r.Register(p)
	}
	return r
}

// Register adds p, replacing any strategy with the same provider name.
func (r *Registry) Register(p Parser) {
	if r.parsers == nil {
		r.parsers = map[string]Parser{}
	}
	r.parsers[providerKey(p.Name())] = p
}

// Names lists the registered providers in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.parsers))
	for key := range r.parsers {
		names = append(names, key)
	}
	slices.Sort(names)
	return names
}

// Chain resolves the configured provider names into the order the strategies
// are tried. Repeated names keep their first position. Every unknown name is
// reported in one error.
func (r *Registry) Chain(names []string) ([]Parser, error) {
	chain := make([]Parser, 0, len(names))
	seen := make(map[string]bool, len(names))
	var missing []string
	for _, name := range names {
		key := providerKey(name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		p, ok := r.parsers[key]
		if !ok {
			missing = append(missing, name)
			continue
		}
		chain = append(chain, p)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("parser %s is not registered (known: %s)",
			strings.Join(missing, ", "), strings.Join(r.Names(), ", "))
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("no parser strategies configured")
	}
	return chain, nil
}

func providerKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
