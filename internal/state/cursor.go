package state

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tbourn/go-report-bot/internal/repo"
)

// CursorKey is the Meta key holding the last consumed update id.
const CursorKey = "update_offset"

// Cursor is the polling cursor. Its stored value never decreases.
type Cursor struct {
	Meta MetaStore
}

// NewCursor returns a Cursor over meta.
func NewCursor(meta MetaStore) *Cursor {
	return &Cursor{Meta: meta}
}

// Get returns the last consumed update id, or 0 when none is stored.
// A corrupt value is reported as an error rather than silently reset.
func (c *Cursor) Get(ctx context.Context) (int64, error) {
	v, err := c.Meta.Get(ctx, CursorKey)
	if errors.Is(err, repo.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("cursor: bad stored value %q: %w", v, err)
	}
	return n, nil
}

// Advance stores to if it is greater than the current value and returns the
// resulting cursor.
func (c *Cursor) Advance(ctx context.Context, to int64) (int64, error) {
	cur, err := c.Get(ctx)
	if err != nil {
		return 0, err
	}
	if to <= cur {
		return cur, nil
	}
	if err := c.Meta.Set(ctx, CursorKey, strconv.FormatInt(to, 10)); err != nil {
		return cur, err
	}
	return to, nil
}

// MaxUpdateID returns the highest id among ids and whether ids was non-empty.
func MaxUpdateID(ids ...int64) (int64, bool) {
	if len(ids) == 0 {
		return 0, false
	}
	m := ids[0]
	for _, id := range ids[1:] {
		if id > m {
			m = id
		}
	}
	return m, true
}
