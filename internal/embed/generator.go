package embed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Relayline/pulse/internal/crm"
	"github.com/Relayline/pulse/internal/vecstore"
)

// GeneratorConfig bounds the batch embedding job.
type GeneratorConfig struct {
	// BatchSize is how many texts go to the provider in one call.
	BatchSize int

	// Concurrency caps in-flight provider batches to respect rate limits.
	Concurrency int

	// ProviderTimeout bounds each provider call.
	ProviderTimeout time.Duration
}

// DefaultGeneratorConfig returns sensible defaults for batch generation.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		BatchSize:       16,
		Concurrency:     4,
		ProviderTimeout: 30 * time.Second,
	}
}

// Report summarizes one generation run. Each candidate entity lands in
// exactly one bucket.
type Report struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Generator runs on-demand embedding batches. Unchanged entities (same
// source hash) are skipped, so re-running after a partial failure only
// retries what actually failed.
type Generator struct {
	crmStore crm.Store
	vectors  vecstore.Store
	embedder Embedder
	config   GeneratorConfig
}

// NewGenerator creates a batch embedding generator.
func NewGenerator(crmStore crm.Store, vectors vecstore.Store, embedder Embedder, config GeneratorConfig) (*Generator, error) {
	if crmStore == nil {
		return nil, fmt.Errorf("crm store cannot be nil")
	}
	if vectors == nil {
		return nil, fmt.Errorf("vector store cannot be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultGeneratorConfig().BatchSize
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultGeneratorConfig().Concurrency
	}
	return &Generator{
		crmStore: crmStore,
		vectors:  vectors,
		embedder: embedder,
		config:   config,
	}, nil
}

// Run embeds the tenant's entities of one type. When ids is empty the
// candidates are all entities of that type, capped at limit. One entity's
// failure never aborts sibling work; failed entities are picked up by the
// next run.
func (g *Generator) Run(ctx context.Context, tenantID string, entityType crm.EntityType, ids []string, limit int) (*Report, error) {
	if tenantID == "" {
		return nil, vecstore.ErrMissingTenant
	}

	candidates := ids
	if len(candidates) == 0 {
		listed, err := g.crmStore.ListIDs(ctx, tenantID, entityType, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to list candidate entities: %w", err)
		}
		candidates = listed
	} else if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	report := &Report{}
	if len(candidates) == 0 {
		return report, nil
	}

	stored, err := g.vectors.SourceHashes(ctx, tenantID, entityType, candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored hashes: %w", err)
	}

	// Resolve snapshots and drop everything already up to date.
	var pending []vecstore.Record
	for _, id := range candidates {
		snap, err := g.crmStore.Snapshot(ctx, tenantID, entityType, id)
		if err != nil {
			// A missing snapshot means the entity is not embeddable
			// (deleted under us, or never existed); nothing to retry.
			report.Skipped++
			continue
		}
		hash := snap.SourceHash()
		if stored[id] == hash {
			report.Skipped++
			continue
		}
		pending = append(pending, vecstore.Record{
			TenantID:   tenantID,
			EntityType: entityType,
			EntityID:   id,
			SourceHash: hash,
			Text:       snap.TextBlob(),
		})
	}

	if len(pending) == 0 {
		return report, nil
	}

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(g.config.Concurrency)

	for start := 0; start < len(pending); start += g.config.BatchSize {
		end := min(start+g.config.BatchSize, len(pending))
		batch := pending[start:end]

		group.Go(func() error {
			processed, failed := g.runBatch(groupCtx, batch)
			mu.Lock()
			report.Processed += processed
			report.Failed += failed
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return report, err
	}
	return report, nil
}

// runBatch embeds one batch and upserts each record independently.
// Provider errors fail the whole batch's entities; upsert errors fail only
// the affected entity.
func (g *Generator) runBatch(ctx context.Context, batch []vecstore.Record) (processed, failed int) {
	texts := make([]string, len(batch))
	for i, r := range batch {
		texts[i] = r.Text
	}

	callCtx := ctx
	if g.config.ProviderTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.config.ProviderTimeout)
		defer cancel()
	}

	vectors, err := g.embedder.Embed(callCtx, texts)
	if err != nil {
		log.Warn().Err(err).Int("batch_size", len(batch)).Msg("embedding batch failed")
		return 0, len(batch)
	}

	now := time.Now().UTC()
	for i := range batch {
		batch[i].Vector = vectors[i]
		batch[i].GeneratedAt = now
		if err := g.vectors.Upsert(ctx, []vecstore.Record{batch[i]}); err != nil {
			log.Warn().Err(err).
				Str("tenant_id", batch[i].TenantID).
				Str("entity_id", batch[i].EntityID).
				Msg("embedding upsert failed")
			failed++
			continue
		}
		processed++
	}
	return processed, failed
}
