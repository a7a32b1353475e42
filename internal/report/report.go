// Package report builds the daily reconciliation: today's accepted reports
// (latest per code) against the roster of expected codes.
package report

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-report-bot/internal/config"
	"github.com/tbourn/go-report-bot/internal/domain"
	"github.com/tbourn/go-report-bot/internal/format"
	"github.com/tbourn/go-report-bot/internal/repo"
	"github.com/tbourn/go-report-bot/internal/utils"
)

// Entry is one line of a report section.
type Entry struct {
	Code       string    `json:"code"`
	Name       string    `json:"name,omitempty"`
	Content    string    `json:"content,omitempty"`
	SenderName string    `json:"sender_name,omitempty"`
	At         time.Time `json:"at,omitempty"`
}

// Report is the computed daily reconciliation.
type Report struct {
	Day        string  `json:"day"`
	RosterSize int     `json:"roster_size"`
	Percent    int     `json:"percent"`
	Sent       []Entry `json:"sent"`
	Missing    []Entry `json:"missing"`
	// Extra lists codes reported today that are not on the roster.
	Extra []Entry `json:"extra"`
}

// Builder reads the roster and today's records from the store.
type Builder struct {
	DB     *gorm.DB
	Tables config.TablesConfig
	Loc    *time.Location
	Now    func() time.Time
}

// New returns a Builder using the wall clock.
func New(db *gorm.DB, tables config.TablesConfig, loc *time.Location) *Builder {
	return &Builder{DB: db, Tables: tables, Loc: loc, Now: time.Now}
}

// Build loads the roster and today's records and computes the report.
func (b *Builder) Build(ctx context.Context) (Report, error) {
	day := utils.Day(b.now(), b.Loc)

	tr := otel.Tracer("report/Builder")
	ctx, span := tr.Start(ctx, "Build", trace.WithAttributes(attribute.String("report.day", day)))
	defer span.End()

	roster, err := repo.ListRoster(ctx, b.DB, b.Tables.Roster)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list roster failed")
		return Report{}, fmt.Errorf("load roster: %w", err)
	}
	records, err := repo.ListRecordsByDay(ctx, b.DB, b.Tables.Messages, day)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list records failed")
		return Report{}, fmt.Errorf("load records: %w", err)
	}

	r := Compute(day, roster, records)
	span.SetAttributes(
		attribute.Int("report.roster", r.RosterSize),
		attribute.Int("report.sent", len(r.Sent)),
		attribute.Int("report.missing", len(r.Missing)),
	)
	observe(r)
	return r, nil
}

// Compute is the pure part of Build. Roster rows whose code is not an
// 8-digit code are ignored. For each code the most recent record wins; ties
// go to the later record in input order.
func Compute(day string, roster []domain.RosterEntry, records []domain.Record) Report {
	names := make(map[string]string, len(roster))
	for _, e := range roster {
		code := strings.TrimSpace(e.Code)
		if !format.IsCode(code) {
			continue
		}
		names[code] = strings.TrimSpace(e.Name)
	}

	latest := make(map[string]domain.Record)
	for _, rec := range records {
		prev, ok := latest[rec.Code]
		if !ok || !rec.CreatedAt.Before(prev.CreatedAt) {
			latest[rec.Code] = rec
		}
	}

	r := Report{Day: day, RosterSize: len(names)}
	for code, name := range names {
		if rec, ok := latest[code]; ok {
			r.Sent = append(r.Sent, entryOf(rec, name))
		} else {
			r.Missing = append(r.Missing, Entry{Code: code, Name: name})
		}
	}
	for code, rec := range latest {
		if _, ok := names[code]; !ok {
			r.Extra = append(r.Extra, entryOf(rec, ""))
		}
	}
	sortByCode(r.Sent)
	sortByCode(r.Missing)
	sortByCode(r.Extra)
	r.Percent = Percent(len(r.Sent), r.RosterSize)
	return r
}

// Percent returns round(100*sent/total), or 0 when total is 0.
func Percent(sent, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(sent) / float64(total)))
}

func entryOf(rec domain.Record, name string) Entry {
	return Entry{
		Code:       rec.Code,
		Name:       name,
		Content:    rec.Content,
		SenderName: rec.SenderName,
		At:         rec.CreatedAt,
	}
}

func sortByCode(es []Entry) {
	sort.Slice(es, func(i, j int) bool { return es[i].Code < es[j].Code })
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}
