package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"LandScout/internal/domain"
	"LandScout/internal/listing"
	"LandScout/internal/ports"
)

// StrategyParser implements MessageParser over a resolved strategy chain.
type StrategyParser struct {
	chain  []listing.Parser
	logger *slog.Logger
}

var _ ports.MessageParser = (*StrategyParser)(nil)

// NewStrategyParser tries the strategies of chain in order, see listing.Registry.Chain.
func NewStrategyParser(chain []listing.Parser, log *slog.Logger) *StrategyParser {
	return &StrategyParser{
		chain:  chain,
		logger: log,
	}
}

// Parse hands the message to each configured strategy until one recognises it.
func (s *StrategyParser) Parse(ctx context.Context, content domain.MessageContent) (domain.Candidate, error) {
	if len(s.chain) == 0 {
		return domain.Candidate{}, fmt.Errorf("no parser strategies configured")
	}

	for _, strategy := range s.chain {
		name := strategy.Name()
		candidate, err := strategy.Parse(ctx, content)
		if errors.Is(err, domain.ErrUnparseable) {
			s.debug("strategy declined message", "parser", name, "reason", err)
			continue
		}
		if err != nil {
			return domain.Candidate{}, fmt.Errorf("parser %s: %w", name, err)
		}
		s.debug("strategy parsed message", "parser", name, "title", candidate.Title)
		return candidate, nil
	}

	return domain.Candidate{}, domain.ErrUnparseable
}

func (s *StrategyParser) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
