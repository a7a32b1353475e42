package state

import (
	"context"
	"errors"

	"github.com/tbourn/go-report-bot/internal/repo"
	"github.com/tbourn/go-report-bot/internal/utils"
)

// SetKind names a per-day set.
type SetKind string

const (
	// Warned holds content hashes already warned about today.
	Warned SetKind = "warned"
	// Seen holds "<chat>:<message>" keys already handled today.
	Seen SetKind = "seen"
	// Albums holds "<media group id>=<state>" entries for albums already
	// seen today; see the collector for the state encoding.
	Albums SetKind = "albums"
)

// DaySets persists per-day string sets under "<kind>:<YYYY-MM-DD>". Keys of
// earlier days are simply never read again.
type DaySets struct {
	Meta MetaStore
}

// NewDaySets returns a DaySets over meta.
func NewDaySets(meta MetaStore) *DaySets {
	return &DaySets{Meta: meta}
}

// Key returns the Meta key of the set.
func Key(kind SetKind, day string) string {
	return string(kind) + ":" + day
}

// Load returns the stored set; an absent key yields an empty set.
func (d *DaySets) Load(ctx context.Context, kind SetKind, day string) (map[string]struct{}, error) {
	v, err := d.Meta.Get(ctx, Key(kind, day))
	if errors.Is(err, repo.ErrNotFound) {
		return map[string]struct{}{}, nil
	}
	if err != nil {
		return map[string]struct{}{}, err
	}
	return utils.ParseSet(v), nil
}

// Add unions items into the stored set. It re-reads the stored value first so
// concurrent writers lose at most the items of one write.
func (d *DaySets) Add(ctx context.Context, kind SetKind, day string, items ...string) error {
	if len(items) == 0 {
		return nil
	}
	cur, err := d.Load(ctx, kind, day)
	if err != nil {
		return err
	}
	changed := false
	for _, it := range items {
		if it == "" {
			continue
		}
		if _, ok := cur[it]; !ok {
			cur[it] = struct{}{}
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return d.Meta.Set(ctx, Key(kind, day), utils.FormatSet(cur))
}
