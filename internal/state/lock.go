package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-report-bot/internal/repo"
)

// LockKey is the Meta key holding the run lock token.
const LockKey = "run_lock"

// ErrLockHeld signals that another pass holds a live lock.
var ErrLockHeld = errors.New("run lock already held")

// Lock is an advisory, self-expiring mutual exclusion token stored in Meta.
// A contender takes it only when no token exists or the stored token is
// older than TTL. A crashed holder therefore blocks others for at most TTL.
//
// Token format: "<unix-nanos>|<owner>".
type Lock struct {
	Meta  MetaStore
	TTL   time.Duration
	Owner string
	Now   func() time.Time

	// CallTimeout bounds each store call made by Do; zero means no bound.
	CallTimeout time.Duration
}

// NewLock returns a Lock with a random owner id.
func NewLock(meta MetaStore, ttl time.Duration) *Lock {
	if ttl <= 0 {
		ttl = 4 * time.Minute
	}
	return &Lock{
		Meta:  meta,
		TTL:   ttl,
		Owner: fmt.Sprintf("%s:%d", uuid.NewString(), os.Getpid()),
		Now:   time.Now,
	}
}

// Lease is a held lock. Release it exactly once.
type Lease struct {
	lock  *Lock
	token string
}

// Token returns the stored token of the lease.
func (l *Lease) Token() string { return l.token }

// Acquire claims the lock or returns ErrLockHeld. It never blocks or retries
// beyond a single takeover attempt.
func (l *Lock) Acquire(ctx context.Context) (*Lease, error) {
	now := l.now()
	token := strconv.FormatInt(now.UnixNano(), 10) + "|" + l.Owner

	err := l.Meta.Insert(ctx, LockKey, token)
	if err == nil {
		return &Lease{lock: l, token: token}, nil
	}
	if !errors.Is(err, repo.ErrDuplicate) {
		return nil, fmt.Errorf("lock: insert: %w", err)
	}

	cur, err := l.Meta.Get(ctx, LockKey)
	if errors.Is(err, repo.ErrNotFound) {
		// Released between our insert and read; one more try.
		if err := l.Meta.Insert(ctx, LockKey, token); err == nil {
			return &Lease{lock: l, token: token}, nil
		}
		return nil, ErrLockHeld
	}
	if err != nil {
		return nil, fmt.Errorf("lock: read: %w", err)
	}

	if at, ok := parseToken(cur); ok && now.Sub(at) < l.TTL {
		return nil, ErrLockHeld
	}

	swapped, err := l.Meta.Swap(ctx, LockKey, cur, token)
	if err != nil {
		return nil, fmt.Errorf("lock: takeover: %w", err)
	}
	if !swapped {
		return nil, ErrLockHeld
	}
	return &Lease{lock: l, token: token}, nil
}

// Release deletes the token if it is still ours. A lease that expired and was
// taken over is left alone.
func (le *Lease) Release(ctx context.Context) error {
	if le == nil {
		return nil
	}
	_, err := le.lock.Meta.DeleteIf(ctx, LockKey, le.token)
	return err
}

// Do runs fn while holding the lock and releases it on every return path,
// including a panic in fn. A contended lock is reported as ErrLockHeld and fn
// is not called. A failed release is only logged: the token expires after TTL
// and the work fn did is already done.
func (l *Lock) Do(ctx context.Context, fn func(context.Context) error) error {
	actx, cancel := l.callCtx(ctx)
	lease, err := l.Acquire(actx)
	cancel()
	if err != nil {
		return err
	}
	log.Debug().Str("token", lease.Token()).Msg("run lock acquired")

	defer func() {
		rctx, cancel := l.callCtx(context.WithoutCancel(ctx))
		defer cancel()
		if rerr := lease.Release(rctx); rerr != nil {
			log.Warn().Err(rerr).Str("token", lease.Token()).Msg("run lock release failed; it will expire")
		}
	}()
	return fn(ctx)
}

// callCtx derives a context bounded by CallTimeout.
func (l *Lock) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.CallTimeout)
}

func (l *Lock) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// parseToken extracts the acquisition time from a token. Legacy tokens that
// hold only a unix-seconds or RFC3339 timestamp are accepted too.
func parseToken(tok string) (time.Time, bool) {
	ts, _, _ := strings.Cut(strings.TrimSpace(tok), "|")
	if n, err := strconv.ParseInt(ts, 10, 64); err == nil {
		if n < 1e12 { // seconds
			return time.Unix(n, 0), true
		}
		return time.Unix(0, n), true
	}
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return t, true
	}
	return time.Time{}, false
}
