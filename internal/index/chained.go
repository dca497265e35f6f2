package index

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/dshills/langcore/pkg/types"
)

// ChainedStorage serves every entry of the primary tier plus the secondary
// entries from files the primary tier has no record of. Shadowing is per
// file: a file known to the primary hides all of its secondary entries,
// whether or not they match the query.
type ChainedStorage struct {
	primary   Storage
	secondary Storage
}

// NewChainedStorage composes two tiers
func NewChainedStorage(primary, secondary Storage) *ChainedStorage {
	return &ChainedStorage{primary: primary, secondary: secondary}
}

// NewChain composes tiers from most to least current. A chain of one tier is
// that tier.
func NewChain(tiers ...Storage) Storage {
	switch len(tiers) {
	case 0:
		return NewMemoryStorage()
	case 1:
		return tiers[0]
	}
	return NewChainedStorage(tiers[0], NewChain(tiers[1:]...))
}

// Search implements Storage
func (c *ChainedStorage) Search(ctx context.Context, q Query) ([]Entry, error) {
	result, err := c.primary.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("primary search: %w", err)
	}
	primaryFiles, err := c.primary.FileTimestamps(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("primary timestamps: %w", err)
	}

	secondary, err := c.secondary.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("secondary search: %w", err)
	}
	for _, e := range secondary {
		if _, shadowed := primaryFiles[e.SourceURI.Normalized()]; !shadowed {
			result = append(result, e)
		}
	}
	return result, nil
}

// FileTimestamps implements Storage. Primary timestamps win on collision.
func (c *ChainedStorage) FileTimestamps(ctx context.Context, filter *types.URI) (map[string]time.Time, error) {
	merged, err := c.secondary.FileTimestamps(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("secondary timestamps: %w", err)
	}
	primary, err := c.primary.FileTimestamps(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("primary timestamps: %w", err)
	}

	if merged == nil {
		merged = make(map[string]time.Time, len(primary))
	}
	maps.Copy(merged, primary)
	return merged, nil
}
