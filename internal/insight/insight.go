// Package insight hosts the four generators (deal coach, persona builder,
// objection handler, win-loss explainer) and the service that gates them
// behind the cold-start detector. Every request terminates in exactly one
// of three states: a structured payload, a cold-start verdict, or a typed
// failure. A generator never returns a partial payload.
package insight

import (
	"errors"
	"fmt"

	"github.com/Relayline/pulse/internal/assembler"
	"github.com/Relayline/pulse/internal/coldstart"
	"github.com/Relayline/pulse/internal/crm"
	"github.com/Relayline/pulse/internal/history"
	"github.com/Relayline/pulse/internal/llm"
)

var (
	// ErrInvalidUsage covers synchronously rejected requests, like a
	// missing objection text. Never retried.
	ErrInvalidUsage = errors.New("invalid usage")

	// ErrDealNotClosed is returned when the win-loss explainer is called
	// on a deal without a definitive outcome.
	ErrDealNotClosed = errors.New("deal is not closed")

	// ErrUnavailable covers provider failures and timeouts. The caller
	// may re-issue the request.
	ErrUnavailable = errors.New("generation provider unavailable")

	// ErrMalformedResponse means the provider's output could not be
	// coerced into the generator's fixed shape. Treated as a provider
	// failure, never surfaced as a garbled insight.
	ErrMalformedResponse = fmt.Errorf("%w: malformed provider response", ErrUnavailable)
)

// Config holds generator-level tunables.
type Config struct {
	// OverdueStageDays is the number of days in a stage after which a
	// deal counts as overdue.
	OverdueStageDays int `yaml:"overdue_stage_days"`
}

// DefaultConfig returns the default generator tunables.
func DefaultConfig() Config {
	return Config{OverdueStageDays: 30}
}

// Service wires the cold-start detector, context assembler, generation
// provider and chat history into the four insight operations. It is the
// single place that enforces the cold-start short-circuit: when a verdict
// is cold, neither the assembler nor the provider is touched.
type Service struct {
	crmStore  crm.Store
	detector  *coldstart.Detector
	assembler *assembler.Assembler
	provider  llm.LLM
	histStore history.Store
	config    Config
}

// NewService creates the insight service. histStore may be nil when chat
// history is not wired; the objection handler then ignores history flags.
func NewService(
	crmStore crm.Store,
	detector *coldstart.Detector,
	asm *assembler.Assembler,
	provider llm.LLM,
	histStore history.Store,
	config Config,
) (*Service, error) {
	if crmStore == nil {
		return nil, fmt.Errorf("crm store cannot be nil")
	}
	if detector == nil {
		return nil, fmt.Errorf("cold-start detector cannot be nil")
	}
	if asm == nil {
		return nil, fmt.Errorf("context assembler cannot be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("LLM provider cannot be nil")
	}
	if config.OverdueStageDays <= 0 {
		config.OverdueStageDays = DefaultConfig().OverdueStageDays
	}
	return &Service{
		crmStore:  crmStore,
		detector:  detector,
		assembler: asm,
		provider:  provider,
		histStore: histStore,
		config:    config,
	}, nil
}
