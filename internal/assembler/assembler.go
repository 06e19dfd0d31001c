// Package assembler builds the bounded, tenant-scoped evidence passed to
// the insight generators: the target entity's exact structured fields, the
// top-K most similar neighbors from the embedding store, and, for the
// objection handler, recent chat history.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/Relayline/pulse/internal/crm"
	"github.com/Relayline/pulse/internal/embed"
	"github.com/Relayline/pulse/internal/history"
	"github.com/Relayline/pulse/internal/vecstore"
)

var (
	ErrMissingQuery = errors.New("either a target entity or query text is required")
)

// Config bounds retrieval and the rendered context size.
type Config struct {
	// TopK is the number of neighbors to retrieve.
	TopK int `yaml:"top_k"`

	// MaxContextChars caps the rendered context size. When exceeded,
	// whole neighbors are dropped lowest-similarity first.
	MaxContextChars int `yaml:"max_context_chars"`

	// HistoryLimit is the number of recent chat turns appended when
	// history is requested.
	HistoryLimit int `yaml:"history_limit"`

	// EmbedTimeout bounds the query-embedding provider call. Not a YAML
	// field; the config layer projects it from the embedding section.
	EmbedTimeout time.Duration `yaml:"-"`
}

// DefaultConfig returns sensible retrieval defaults.
func DefaultConfig() Config {
	return Config{
		TopK:            5,
		MaxContextChars: 8000,
		HistoryLimit:    10,
		EmbedTimeout:    30 * time.Second,
	}
}

// Request describes one context assembly.
type Request struct {
	TenantID string

	// TargetType/TargetID identify the entity the insight is about.
	// Empty for a free-text objection with no grounding entity.
	TargetType crm.EntityType
	TargetID   string

	// QueryText, when set, is embedded instead of the target's text blob
	// (the objection handler's free-text objection).
	QueryText string

	// NeighborType restricts retrieval to one entity type, e.g. only
	// historical deals for the deal coach. Empty means any type.
	NeighborType crm.EntityType

	// IncludeHistory appends recent chat turns for the contact/deal log.
	IncludeHistory bool
	ContactID      string
	DealID         string
}

// Snippet is one retrieved neighbor included in the context.
type Snippet struct {
	EntityType crm.EntityType `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Score      float32        `json:"similarity_score"`
	Text       string         `json:"snippet_text"`
}

// Context is the assembled, budget-bounded evidence for one insight request.
type Context struct {
	Target    *crm.Snapshot  `json:"-"`
	Neighbors []Snippet      `json:"neighbors"` // similarity descending, post-truncation
	History   []history.Turn `json:"history,omitempty"`
	Prompt    string         `json:"-"` // rendered context block
	Dropped   int            `json:"-"` // neighbors dropped to fit the budget
}

// Assembler wires the snapshot reader, embedder, embedding store and chat
// history into context assembly.
type Assembler struct {
	crmStore  crm.Store
	vectors   vecstore.Store
	embedder  embed.Embedder
	histStore history.Store
	config    Config
}

// New creates a context assembler. histStore may be nil when chat history
// is not wired.
func New(crmStore crm.Store, vectors vecstore.Store, embedder embed.Embedder, histStore history.Store, config Config) (*Assembler, error) {
	if crmStore == nil {
		return nil, fmt.Errorf("crm store cannot be nil")
	}
	if vectors == nil {
		return nil, fmt.Errorf("vector store cannot be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	if config.TopK <= 0 {
		config.TopK = DefaultConfig().TopK
	}
	if config.MaxContextChars <= 0 {
		config.MaxContextChars = DefaultConfig().MaxContextChars
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = DefaultConfig().HistoryLimit
	}
	if config.EmbedTimeout <= 0 {
		config.EmbedTimeout = DefaultConfig().EmbedTimeout
	}
	return &Assembler{
		crmStore:  crmStore,
		vectors:   vectors,
		embedder:  embedder,
		histStore: histStore,
		config:    config,
	}, nil
}

// Assemble retrieves and renders the context for one request. Neighbor
// retrieval is always scoped to the request's tenant before ranking.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*Context, error) {
	if req.TenantID == "" {
		return nil, vecstore.ErrMissingTenant
	}

	out := &Context{}

	// The target's own facts are exact; they are loaded directly, not
	// retrieved.
	if req.TargetID != "" {
		snap, err := a.crmStore.Snapshot(ctx, req.TenantID, req.TargetType, req.TargetID)
		if err != nil {
			return nil, err
		}
		out.Target = snap
	}

	queryText := req.QueryText
	if queryText == "" {
		if out.Target == nil {
			return nil, ErrMissingQuery
		}
		queryText = out.Target.TextBlob()
	}

	// The embedding provider call is deadline-bounded even when the
	// caller's context carries none; a hung provider must not hang the
	// request.
	embedCtx, cancel := context.WithTimeout(ctx, a.config.EmbedTimeout)
	defer cancel()
	vectors, err := a.embedder.Embed(embedCtx, []string{queryText})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: no vector for query", embed.ErrEmbeddingFailed)
	}

	neighbors, err := a.vectors.Search(ctx, req.TenantID, vecstore.SearchQuery{
		Vector:     vectors[0],
		TopK:       a.config.TopK,
		EntityType: req.NeighborType,
		ExcludeID:  req.TargetID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search neighbors: %w", err)
	}
	for _, n := range neighbors {
		out.Neighbors = append(out.Neighbors, Snippet{
			EntityType: n.EntityType,
			EntityID:   n.EntityID,
			Score:      n.Score,
			Text:       n.Text,
		})
	}

	if req.IncludeHistory && a.histStore != nil {
		turns, err := a.histStore.Recent(ctx, req.TenantID, req.ContactID, req.DealID, a.config.HistoryLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to load chat history: %w", err)
		}
		out.History = turns
	}

	a.bound(out)
	return out, nil
}

// bound renders the context and enforces the size budget. Whole neighbors
// are dropped lowest-similarity first, then whole history turns oldest
// first; structured fields are never dropped before either. The order is a
// contract: it decides which evidence an insight is based on.
func (a *Assembler) bound(c *Context) {
	c.Prompt = render(c)
	for len(c.Prompt) > a.config.MaxContextChars && len(c.Neighbors) > 0 {
		c.Neighbors = c.Neighbors[:len(c.Neighbors)-1]
		c.Dropped++
		c.Prompt = render(c)
	}
	for len(c.Prompt) > a.config.MaxContextChars && len(c.History) > 0 {
		c.History = c.History[1:]
		c.Prompt = render(c)
	}
	if len(c.Prompt) > a.config.MaxContextChars {
		c.Prompt = truncateRunes(c.Prompt, a.config.MaxContextChars)
	}
}

// truncateRunes cuts s to at most max bytes without splitting a rune.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
