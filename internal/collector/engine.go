// Collect pass engine.
//
// A pass runs the fixed sequence
//
//	acquire run lock → fetch updates → advance cursor → group albums →
//	classify, persist and answer each submission → release run lock
//
// The cursor is advanced before any submission is handled, so a crash in the
// middle of a pass drops the rest of the batch instead of answering it twice
// on the next poll. Everything a pass needs to answer each submission once
// per day (seen message keys, warned hashes, accepted hashes, fingerprints,
// album ledger) is loaded into a passState at the start of the pass and
// written through to the store as it changes.
//
// Failures are tagged with ErrStore or ErrTransport. Only failures of the
// lock, the cursor or the fetch abort a pass; everything else is logged,
// reported on the submission's Result, and the pass moves on.

package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-report-bot/internal/album"
	"github.com/tbourn/go-report-bot/internal/config"
	"github.com/tbourn/go-report-bot/internal/dedup"
	"github.com/tbourn/go-report-bot/internal/domain"
	"github.com/tbourn/go-report-bot/internal/format"
	"github.com/tbourn/go-report-bot/internal/repo"
	"github.com/tbourn/go-report-bot/internal/state"
	"github.com/tbourn/go-report-bot/internal/utils"
)

// Transport is the chat transport contract required by the engine.
type Transport interface {
	// FetchUpdates returns pending updates with update_id >= offset.
	FetchUpdates(ctx context.Context, offset int64) ([]domain.RawUpdate, error)
	// SendMessage sends text to chatID; replyTo and threadID may be 0.
	SendMessage(ctx context.Context, chatID int64, text string, replyTo, threadID int) error
	// SelfID is the bot's own user id, used to drop its own messages.
	SelfID() int64
}

// Messages holds the reply texts.
type Messages struct {
	Ack       string
	Malformed string
	Duplicate string
	Start     string
}

// Engine runs collect passes. Passes of one Engine never overlap; passes of
// different processes are kept apart by the run lock.
type Engine struct {
	Transport   Transport
	DB          *gorm.DB
	Tables      config.TablesConfig
	ChatID      int64
	Validator   format.Validator
	Dedup       *dedup.Store
	Cursor      *state.Cursor
	Lock        *state.Lock
	Sets        *state.DaySets
	Messages    Messages
	Loc         *time.Location
	CallTimeout time.Duration
	Now         func() time.Time

	mu sync.Mutex
}

// New wires an Engine from configuration.
//
// All state (cursor, run lock, day sets, fingerprints) lives in tables of db
// named by cfg.Store.Tables. Every store and transport call of a pass is
// bounded by cfg.Collector.CallTimeout.
func New(cfg config.Config, db *gorm.DB, tr Transport) *Engine {
	loc := cfg.Collector.Location()
	meta := state.NewMetaStore(db, cfg.Store.Tables.Meta)
	lock := state.NewLock(meta, cfg.Collector.LockTTL)
	lock.CallTimeout = cfg.Collector.CallTimeout
	return &Engine{
		Transport: tr,
		DB:        db,
		Tables:    cfg.Store.Tables,
		ChatID:    cfg.Telegram.ChatID,
		Validator: format.New(cfg.Collector.StrictFormat),
		Dedup:     dedup.New(db, cfg.Store.Tables, cfg.Collector.ImageDedup, loc),
		Cursor:    state.NewCursor(meta),
		Lock:      lock,
		Sets:      state.NewDaySets(meta),
		Messages: Messages{
			Ack:       cfg.Collector.AckText,
			Malformed: cfg.Collector.MalformedText,
			Duplicate: cfg.Collector.DuplicateText,
			Start:     cfg.Collector.StartText,
		},
		Loc:         loc,
		CallTimeout: cfg.Collector.CallTimeout,
		Now:         time.Now,
	}
}

// Result is the outcome of one submission. Outcome is 0 when the submission
// was already handled earlier today or is held waiting for an album caption.
// Err, when set, is tagged with ErrStore or ErrTransport.
type Result struct {
	Key         string
	Code        string
	Outcome     domain.Outcome
	AlreadySeen bool
	Held        bool
	Replied     bool
	Err         error
}

// PassResult summarizes one pass.
type PassResult struct {
	Skipped     string
	Fetched     int
	Cursor      int64
	Submissions int
	Accepted    int
	Duplicate   int
	Malformed   int
	AlreadySeen int
	Held        int
	Failed      int
	Replies     int
	Results     []Result
}

// add folds one submission result into the pass totals. Accepted counts a
// submission whose record was written, even when its ack could not be sent.
func (r *PassResult) add(res Result) {
	r.Results = append(r.Results, res)
	r.Submissions++
	if res.Replied {
		r.Replies++
	}
	if res.Err != nil {
		r.Failed++
	}
	switch {
	case res.AlreadySeen:
		r.AlreadySeen++
		return
	case res.Held:
		r.Held++
		return
	}
	switch res.Outcome {
	case domain.OutcomeAccepted:
		if res.Err == nil || errors.Is(res.Err, ErrTransport) {
			r.Accepted++
		}
	case domain.OutcomeDuplicate:
		r.Duplicate++
	case domain.OutcomeMalformed:
		r.Malformed++
	}
}

// passState is the mutable state shared by all submissions of one pass. It
// is seeded from the persisted per-day sets and updated synchronously so
// later submissions observe earlier ones.
type passState struct {
	day      string
	seenFPs  map[string]struct{}
	accepted map[string]struct{}
	warned   map[string]struct{}
	seenMsgs map[string]struct{}

	// albums is the day's album ledger; heldAtStart lists the albums that
	// were already held when the pass began.
	albums      albumLedger
	heldAtStart []string
}

// RunPass executes one collect pass.
//
// A pass that cannot start because another pass holds the run lock, or
// because a pass of this Engine is still running, is not an error: it is
// reported through PassResult.Skipped (SkipLockHeld or SkipBusy) without any
// fetch, write or reply. Errors are returned only when the pass had to abort
// (lock store failure, cursor read/write failure, fetch failure).
func (e *Engine) RunPass(ctx context.Context) (res PassResult, err error) {
	tr := otel.Tracer("collector/Engine")
	ctx, span := tr.Start(ctx, "RunPass", trace.WithAttributes(attribute.Int64("chat.id", e.ChatID)))
	defer span.End()

	defer func() {
		switch {
		case err != nil:
			passesTotal.WithLabelValues("error").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case res.Skipped != "":
			passesTotal.WithLabelValues("skipped").Inc()
			span.SetAttributes(attribute.String("pass.skipped", res.Skipped))
		default:
			passesTotal.WithLabelValues("ok").Inc()
		}
	}()

	if !e.mu.TryLock() {
		log.Info().Msg("collect pass skipped: a pass is already running")
		res.Skipped = SkipBusy
		return res, nil
	}
	defer e.mu.Unlock()

	err = e.Lock.Do(ctx, func(ctx context.Context) error {
		start := time.Now()
		defer func() { passDuration.Observe(time.Since(start).Seconds()) }()
		var runErr error
		res, runErr = e.run(ctx, span)
		return runErr
	})
	switch {
	case errors.Is(err, state.ErrLockHeld):
		log.Info().Msg("collect pass skipped: run lock held")
		res.Skipped = SkipLockHeld
		return res, nil
	case err != nil && !errors.Is(err, ErrStore) && !errors.Is(err, ErrTransport):
		// Only Acquire returns untagged errors.
		return res, fmt.Errorf("%w: run lock: %w", ErrStore, err)
	}
	return res, err
}

// run is the body of a pass, executed under the run lock. It reads the
// cursor, fetches and acknowledges the batch, answers every submission in
// order of first appearance, then sends deferred warnings for albums that
// never received a caption.
func (e *Engine) run(ctx context.Context, span trace.Span) (PassResult, error) {
	var res PassResult

	cctx, cancel := e.callCtx(ctx)
	cur, err := e.Cursor.Get(cctx)
	cancel()
	if err != nil {
		return res, fmt.Errorf("%w: read cursor: %w", ErrStore, err)
	}
	res.Cursor = cur

	fctx, cancel := e.callCtx(ctx)
	updates, err := e.Transport.FetchUpdates(fctx, cur+1)
	cancel()
	if err != nil {
		return res, fmt.Errorf("%w: fetch updates: %w", ErrTransport, err)
	}
	res.Fetched = len(updates)
	updatesFetched.Add(float64(len(updates)))
	span.SetAttributes(attribute.Int("updates.fetched", len(updates)))

	ids := make([]int64, 0, len(updates))
	for _, u := range updates {
		ids = append(ids, u.UpdateID)
	}
	if top, ok := state.MaxUpdateID(ids...); ok {
		actx, cancel := e.callCtx(ctx)
		next, err := e.Cursor.Advance(actx, top)
		cancel()
		if err != nil {
			return res, fmt.Errorf("%w: advance cursor: %w", ErrStore, err)
		}
		res.Cursor = next
		cursorGauge.Set(float64(next))
	}

	ps := e.newPassState(ctx)
	if len(updates) == 0 && len(ps.heldAtStart) == 0 {
		return res, nil
	}
	e.loadDedupState(ctx, ps)

	for _, u := range updates {
		if e.isStartCommand(u.Message) {
			e.handleStart(ctx, ps, u.Message)
		}
	}

	subs := album.Group(updates, album.Filter{ChatID: e.ChatID, SelfID: e.Transport.SelfID()})
	for _, sub := range subs {
		e.observe(&res, e.process(ctx, ps, sub))
	}
	for _, gid := range ps.heldAtStart {
		if r, ok := e.releaseHeldAlbum(ctx, ps, gid); ok {
			e.observe(&res, r)
		}
	}
	repliesSent.Add(float64(res.Replies))

	log.Info().
		Int("fetched", res.Fetched).
		Int64("cursor", res.Cursor).
		Int("submissions", res.Submissions).
		Int("accepted", res.Accepted).
		Int("duplicate", res.Duplicate).
		Int("malformed", res.Malformed).
		Int("already_seen", res.AlreadySeen).
		Int("held", res.Held).
		Int("failed", res.Failed).
		Msg("collect pass done")
	return res, nil
}

// observe adds r to res and updates the per-submission metrics.
func (e *Engine) observe(res *PassResult, r Result) {
	res.add(r)
	if r.Err != nil {
		failuresTotal.WithLabelValues(failureTag(r.Err)).Inc()
		log.Error().Err(r.Err).Str("key", r.Key).Str("outcome", r.Outcome.String()).Msg("submission failed")
	}
	if !r.AlreadySeen && !r.Held {
		submissionsTotal.WithLabelValues(r.Outcome.String()).Inc()
	}
}

// newPassState resolves today's date and loads the album ledger. The ledger
// is read even for an empty batch because held albums may be due a warning.
// A failed read degrades to an empty ledger.
func (e *Engine) newPassState(ctx context.Context) *passState {
	now := e.now().In(e.loc())
	ps := &passState{day: utils.Day(now, e.loc())}

	sctx, cancel := e.callCtx(ctx)
	items, err := e.Sets.Load(sctx, state.Albums, ps.day)
	cancel()
	if err != nil {
		log.Warn().Err(err).Msg("load album ledger failed; assuming empty")
	}
	ps.albums = parseAlbumLedger(items)
	ps.heldAtStart = ps.albums.held()
	return ps
}

// loadDedupState fills the fingerprint, accepted, warned and seen sets of
// ps. Every read degrades to an empty set on error, so a store outage can
// cause a repeated reply but never blocks a pass.
func (e *Engine) loadDedupState(ctx context.Context, ps *passState) {
	ps.seenFPs = e.Dedup.LoadSeen(ctx)
	ps.accepted = e.Dedup.LoadTodayContentHashes(ctx)

	var err error
	sctx, cancel := e.callCtx(ctx)
	if ps.warned, err = e.Sets.Load(sctx, state.Warned, ps.day); err != nil {
		log.Warn().Err(err).Msg("load warned set failed; assuming empty")
	}
	cancel()
	sctx, cancel = e.callCtx(ctx)
	if ps.seenMsgs, err = e.Sets.Load(sctx, state.Seen, ps.day); err != nil {
		log.Warn().Err(err).Msg("load seen set failed; assuming empty")
	}
	cancel()
}

// process classifies and acts on one submission.
//
// A submission whose member messages were all handled earlier today is
// skipped silently. A fragment of an album that was already answered today
// is absorbed: its fingerprints join the accepted report, and no reply is
// sent. A captionless album fragment that opens a new album is held until a
// later pass, since its caption may still be on the way. Everything else is
// classified as Malformed, Duplicate or Accepted and answered at most once.
func (e *Engine) process(ctx context.Context, ps *passState, sub domain.Submission) Result {
	r := Result{Key: sub.Key}
	keys := sub.MemberKeys()
	if allIn(ps.seenMsgs, keys) {
		r.AlreadySeen = true
		log.Debug().Str("key", sub.Key).Msg("submission already handled today")
		return r
	}
	defer e.markSeen(ctx, ps, keys)

	if gid := sub.GroupingID; gid != "" {
		entry, known := ps.albums[gid]
		if known && entry.Answered {
			e.absorbFragment(ctx, ps, sub, entry)
			r.AlreadySeen, r.Code = true, entry.Code
			return r
		}
		if strings.TrimSpace(sub.Content) == "" {
			e.holdAlbum(ctx, ps, sub)
			r.Held = true
			return r
		}
		if known {
			sub.Fingerprints = mergeFingerprints(sub.Fingerprints, entry.Fingerprints)
		}
	}

	hash := dedup.ContentHash(sub.Content)
	code, ok := e.Validator.ExtractCode(sub.Content)
	if !ok {
		r.Outcome = domain.OutcomeMalformed
		e.answerAlbum(ctx, ps, sub.GroupingID, "")
		r.Replied, r.Err = e.warnOnce(ctx, ps, sub, hash, e.Messages.Malformed)
		return r
	}
	r.Code = code

	_, acceptedToday := ps.accepted[hash]
	_, warnedToday := ps.warned[hash]
	if dedup.HasDuplicate(sub.Fingerprints, ps.seenFPs) || acceptedToday || warnedToday {
		r.Outcome = domain.OutcomeDuplicate
		e.answerAlbum(ctx, ps, sub.GroupingID, "")
		r.Replied, r.Err = e.warnOnce(ctx, ps, sub, hash, e.Messages.Duplicate)
		return r
	}

	r.Outcome = domain.OutcomeAccepted
	rec := &domain.Record{
		CreatedAt:    e.now().In(e.loc()),
		Day:          ps.day,
		ChatID:       sub.ChatID,
		MessageID:    sub.RepresentativeMessageID,
		MediaGroupID: sub.GroupingID,
		SenderID:     sub.SenderID,
		SenderName:   sub.SenderName,
		Content:      strings.TrimSpace(sub.Content),
		Code:         code,
		ContentHash:  hash,
	}
	wctx, cancel := e.callCtx(ctx)
	err := repo.CreateRecord(wctx, e.DB, e.Tables.Messages, rec)
	cancel()
	if err != nil {
		r.Err = fmt.Errorf("%w: create record: %w", ErrStore, err)
		return r
	}
	ps.accepted[hash] = struct{}{}
	e.answerAlbum(ctx, ps, sub.GroupingID, code)
	e.recordFingerprints(ctx, ps, code, sub.Fingerprints)

	log.Info().Str("code", code).Int64("chat_id", sub.ChatID).Int("message_id", sub.RepresentativeMessageID).Msg("report accepted")
	if err := e.reply(ctx, sub, e.Messages.Ack); err != nil {
		r.Err = err
		return r
	}
	r.Replied = true
	return r
}

// absorbFragment folds a late fragment of an answered album into it. When the
// album was accepted, the fragment's fingerprints are recorded under the
// accepted code so a reused photo is still caught later.
func (e *Engine) absorbFragment(ctx context.Context, ps *passState, sub domain.Submission, entry albumEntry) {
	log.Debug().Str("media_group_id", sub.GroupingID).Str("code", entry.Code).Msg("late album fragment absorbed")
	if entry.Code != "" {
		e.recordFingerprints(ctx, ps, entry.Code, sub.Fingerprints)
	}
}

// holdAlbum records a captionless album fragment in the ledger. The first
// held fragment of an album becomes the reply target; later ones only add
// their fingerprints. No reply is sent now.
func (e *Engine) holdAlbum(ctx context.Context, ps *passState, sub domain.Submission) {
	gid := sub.GroupingID
	entry, known := ps.albums[gid]
	if !known {
		entry = albumEntry{ReplyTo: sub.RepresentativeMessageID, ThreadID: sub.ThreadID}
	}
	entry.Fingerprints = mergeFingerprints(entry.Fingerprints, sub.Fingerprints)
	ps.albums[gid] = entry

	sctx, cancel := e.callCtx(ctx)
	defer cancel()
	item := heldItem(gid, entry.ReplyTo, entry.ThreadID, sub.Fingerprints)
	if err := e.Sets.Add(sctx, state.Albums, ps.day, item); err != nil {
		log.Warn().Err(err).Str("media_group_id", gid).Msg("persist album ledger failed")
	}
	log.Debug().Str("media_group_id", gid).Msg("captionless album held for its caption")
}

// releaseHeldAlbum answers an album that was held by an earlier pass and is
// still without a caption. It reports false when the album was answered in
// the meantime.
func (e *Engine) releaseHeldAlbum(ctx context.Context, ps *passState, gid string) (Result, bool) {
	entry := ps.albums[gid]
	if entry.Answered {
		return Result{}, false
	}
	sub := domain.Submission{
		Key:                     gid,
		ChatID:                  e.ChatID,
		RepresentativeMessageID: entry.ReplyTo,
		ThreadID:                entry.ThreadID,
		GroupingID:              gid,
	}
	r := Result{Key: gid, Outcome: domain.OutcomeMalformed}
	e.answerAlbum(ctx, ps, gid, "")
	r.Replied, r.Err = e.warnOnce(ctx, ps, sub, dedup.ContentHash(""), e.Messages.Malformed)
	return r, true
}

// answerAlbum marks album gid as answered, accepted under code or rejected
// when code is empty. It is a no-op for ungrouped submissions.
func (e *Engine) answerAlbum(ctx context.Context, ps *passState, gid, code string) {
	if gid == "" {
		return
	}
	ps.albums[gid] = albumEntry{Answered: true, Code: code}
	sctx, cancel := e.callCtx(ctx)
	defer cancel()
	if err := e.Sets.Add(sctx, state.Albums, ps.day, answeredItem(gid, code)); err != nil {
		log.Warn().Err(err).Str("media_group_id", gid).Msg("persist album ledger failed")
	}
}

// recordFingerprints stores fps under code. The fingerprint store is
// optional, so a failure is logged and the pass continues.
func (e *Engine) recordFingerprints(ctx context.Context, ps *passState, code string, fps []string) {
	fctx, cancel := e.callCtx(ctx)
	defer cancel()
	if err := e.Dedup.Record(fctx, code, fps, ps.seenFPs); err != nil {
		log.Warn().Err(err).Str("code", code).Msg("record fingerprints failed")
	}
}

// warnOnce replies with text unless hash was already warned about today. The
// hash is persisted before sending, so a failed send is not retried.
func (e *Engine) warnOnce(ctx context.Context, ps *passState, sub domain.Submission, hash, text string) (bool, error) {
	if _, ok := ps.warned[hash]; ok {
		return false, nil
	}
	ps.warned[hash] = struct{}{}
	sctx, cancel := e.callCtx(ctx)
	if err := e.Sets.Add(sctx, state.Warned, ps.day, hash); err != nil {
		log.Warn().Err(err).Msg("persist warned set failed")
	}
	cancel()
	if err := e.reply(ctx, sub, text); err != nil {
		return false, err
	}
	return true, nil
}

// reply sends text to the origin of sub, threaded under its representative
// message. An empty text disables that reply.
func (e *Engine) reply(ctx context.Context, sub domain.Submission, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	sctx, cancel := e.callCtx(ctx)
	defer cancel()
	if err := e.Transport.SendMessage(sctx, sub.ChatID, text, sub.RepresentativeMessageID, sub.ThreadID); err != nil {
		return fmt.Errorf("%w: send reply: %w", ErrTransport, err)
	}
	return nil
}

// markSeen adds message keys to today's seen set, in memory and in the
// store. A failed write is logged; the in-memory set still covers the rest
// of the pass.
func (e *Engine) markSeen(ctx context.Context, ps *passState, keys []string) {
	for _, k := range keys {
		ps.seenMsgs[k] = struct{}{}
	}
	sctx, cancel := e.callCtx(ctx)
	defer cancel()
	if err := e.Sets.Add(sctx, state.Seen, ps.day, keys...); err != nil {
		log.Warn().Err(err).Msg("persist seen set failed")
	}
}

// isStartCommand reports whether m is /start (optionally addressed as
// /start@botname) sent in the collection chat.
func (e *Engine) isStartCommand(m *domain.RawMessage) bool {
	if m == nil || m.ChatID != e.ChatID || !album.IsCommand(m) {
		return false
	}
	cmd, _, _ := strings.Cut(strings.TrimSpace(m.Text), " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return cmd == "/start"
}

// handleStart answers /start once per message.
func (e *Engine) handleStart(ctx context.Context, ps *passState, m *domain.RawMessage) {
	key := domain.MessageKey(m.ChatID, m.MessageID)
	if _, ok := ps.seenMsgs[key]; ok {
		return
	}
	e.markSeen(ctx, ps, []string{key})
	sub := domain.Submission{ChatID: m.ChatID, RepresentativeMessageID: m.MessageID, ThreadID: m.ThreadID}
	if err := e.reply(ctx, sub, e.Messages.Start); err != nil {
		log.Warn().Err(err).Msg("start reply failed")
	}
}

// callCtx derives the context of a single store or transport call, bounded
// by CallTimeout when it is set.
func (e *Engine) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.CallTimeout)
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) loc() *time.Location {
	if e.Loc != nil {
		return e.Loc
	}
	return time.UTC
}

// allIn reports whether every key is in set. An empty key list is never
// considered seen.
func allIn(set map[string]struct{}, keys []string) bool {
	if len(keys) == 0 {
		return false
	}
	for _, k := range keys {
		if _, ok := set[k]; !ok {
			return false
		}
	}
	return true
}
