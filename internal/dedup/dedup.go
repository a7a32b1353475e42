// Package dedup answers "has this attachment or this caption been seen" and
// records new attachment fingerprints.
//
// Two fingerprint backends exist: the images table, used when attachment
// dedup is on and an images table is configured, and a single Meta key
// ("fingerprints") holding a comma-delimited set otherwise. With attachment
// dedup switched off the store knows no fingerprints and records none, so
// duplicates are detected from content hashes only.
//
// Read failures degrade to empty sets: a store that cannot be read must not
// block collection.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/go-report-bot/internal/config"
	"github.com/tbourn/go-report-bot/internal/repo"
	"github.com/tbourn/go-report-bot/internal/utils"
)

// MetaFingerprintsKey is the Meta key of the fallback fingerprint set.
const MetaFingerprintsKey = "fingerprints"

// Backend names, reported by Store.Backend.
const (
	BackendImages   = "images"
	BackendMeta     = "meta"
	BackendDisabled = "disabled"
)

// Store is the fingerprint and content-hash store.
//
// Fingerprints are stored with the code of the report that first used them
// and the local day of that report. Content hashes are not stored here: they
// are read back from the day's records, so a report that failed to persist
// is never counted as accepted.
type Store struct {
	DB      *gorm.DB
	Tables  config.TablesConfig
	Enabled bool
	Loc     *time.Location
	Now     func() time.Time
}

// New returns a Store for the given tables. enabled mirrors IMAGE_DEDUP.
func New(db *gorm.DB, tables config.TablesConfig, enabled bool, loc *time.Location) *Store {
	return &Store{DB: db, Tables: tables, Enabled: enabled, Loc: loc, Now: time.Now}
}

// Backend reports which fingerprint backend is active.
func (s *Store) Backend() string {
	switch {
	case !s.Enabled:
		return BackendDisabled
	case s.Tables.Images != "":
		return BackendImages
	default:
		return BackendMeta
	}
}

// LoadSeen bulk-loads every known fingerprint. Errors yield an empty set.
func (s *Store) LoadSeen(ctx context.Context) map[string]struct{} {
	seen := make(map[string]struct{})
	switch s.Backend() {
	case BackendImages:
		fps, err := repo.ListFingerprints(ctx, s.DB, s.Tables.Images)
		if err != nil {
			log.Warn().Err(err).Str("backend", BackendImages).Msg("load fingerprints failed; assuming none")
			return seen
		}
		for _, fp := range fps {
			seen[fp] = struct{}{}
		}
	case BackendMeta:
		v, err := repo.GetMeta(ctx, s.DB, s.Tables.Meta, MetaFingerprintsKey)
		if err != nil {
			if !errors.Is(err, repo.ErrNotFound) {
				log.Warn().Err(err).Str("backend", BackendMeta).Msg("load fingerprints failed; assuming none")
			}
			return seen
		}
		return utils.ParseSet(v)
	}
	return seen
}

// HasDuplicate reports whether any fingerprint is in seen. An empty list is
// never a duplicate, so text-only reports rely on the content hash alone.
func HasDuplicate(fps []string, seen map[string]struct{}) bool {
	for _, fp := range fps {
		if _, ok := seen[fp]; ok {
			return true
		}
	}
	return false
}

// Record persists every fingerprint not yet in seen and adds it to seen
// immediately, so later submissions of the same pass observe it even if the
// write failed. A fingerprint already stored by a concurrent writer is not
// an error.
func (s *Store) Record(ctx context.Context, code string, fps []string, seen map[string]struct{}) error {
	if s.Backend() == BackendDisabled {
		return nil
	}
	var fresh []string
	for _, fp := range fps {
		if fp == "" {
			continue
		}
		if _, ok := seen[fp]; ok {
			continue
		}
		seen[fp] = struct{}{}
		fresh = append(fresh, fp)
	}
	if len(fresh) == 0 {
		return nil
	}

	day := utils.Day(s.now(), s.Loc)
	if s.Backend() == BackendMeta {
		return s.recordMeta(ctx, fresh)
	}

	var errs []error
	for _, fp := range fresh {
		err := repo.InsertFingerprint(ctx, s.DB, s.Tables.Images, fp, code, day)
		if err != nil && !errors.Is(err, repo.ErrDuplicate) {
			errs = append(errs, fmt.Errorf("fingerprint %s: %w", fp, err))
		}
	}
	return errors.Join(errs...)
}

// recordMeta unions fresh into the Meta-backed fingerprint set. The stored
// value is re-read first so a concurrent writer loses at most the items of
// one write. The accepted code is not kept in this backend.
func (s *Store) recordMeta(ctx context.Context, fresh []string) error {
	cur := map[string]struct{}{}
	v, err := repo.GetMeta(ctx, s.DB, s.Tables.Meta, MetaFingerprintsKey)
	switch {
	case err == nil:
		cur = utils.ParseSet(v)
	case !errors.Is(err, repo.ErrNotFound):
		return err
	}
	for _, fp := range fresh {
		cur[fp] = struct{}{}
	}
	return repo.SetMeta(ctx, s.DB, s.Tables.Meta, MetaFingerprintsKey, utils.FormatSet(cur))
}

// LoadTodayContentHashes returns the content hash of every record accepted
// on the current local day. Errors yield an empty set.
func (s *Store) LoadTodayContentHashes(ctx context.Context) map[string]struct{} {
	out := make(map[string]struct{})
	hashes, err := repo.ContentHashesByDay(ctx, s.DB, s.Tables.Messages, utils.Day(s.now(), s.Loc))
	if err != nil {
		log.Warn().Err(err).Msg("load today's content hashes failed; assuming none")
		return out
	}
	for _, h := range hashes {
		if h != "" {
			out[h] = struct{}{}
		}
	}
	return out
}

// ContentHash is the hex SHA-256 of the NFC-normalised, trimmed content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(norm.NFC.String(strings.TrimSpace(content))))
	return hex.EncodeToString(sum[:])
}

// now returns the store clock, falling back to time.Now.
func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
