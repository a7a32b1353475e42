// Package domain defines the persistence models for accepted reports, the
// key-value metadata table, attachment fingerprints, and the roster. These
// types are mapped with GORM and form the core data layer of the bot.
//
// Table names are configurable at runtime; the repo package applies the
// configured name with db.Table(...) so the TableName methods below only
// provide the defaults used by tests and migrations without overrides.
package domain

import (
	"time"
)

// Record is one accepted report. A record exists iff its submission was
// classified as Accepted.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - CreatedAt: acceptance time in the operating timezone.
//   - Day: local calendar day (YYYY-MM-DD), indexed for the daily report.
//   - ChatID / MessageID / MediaGroupID: origin of the submission.
//   - SenderID / SenderName: sender identity as reported by the transport.
//   - Content: resolved caption or text.
//   - Code: the 8-digit code extracted from Content.
//   - ContentHash: SHA-256 of the normalized content, used for dedup.
type Record struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	CreatedAt    time.Time `json:"created_at"    gorm:"not null"`
	Day          string    `json:"day"           gorm:"type:varchar(10);not null;index:idx_records_day"`
	ChatID       int64     `json:"chat_id"       gorm:"not null"`
	MessageID    int       `json:"message_id"`
	MediaGroupID string    `json:"media_group_id,omitempty" gorm:"type:varchar(64)"`
	SenderID     int64     `json:"sender_id"`
	SenderName   string    `json:"sender_name"   gorm:"type:varchar(255)"`
	Content      string    `json:"content"       gorm:"type:text;not null"`
	Code         string    `json:"code"          gorm:"type:varchar(8);not null;index"`
	ContentHash  string    `json:"content_hash"  gorm:"type:char(64);not null;index"`
}

// TableName returns the default database table name for Record.
func (Record) TableName() string { return "messages" }

// Meta is a single key/value row. It backs the polling cursor, the run lock
// token, the per-day warned/seen sets and the meta-backed fingerprint set.
type Meta struct {
	Key       string    `gorm:"type:varchar(128);primaryKey"`
	Value     string    `gorm:"type:text;not null;default:''"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the default database table name for Meta.
func (Meta) TableName() string { return "meta" }

// ImageFingerprint records the first time an attachment fingerprint was seen
// in an accepted report. Rows are append-only.
type ImageFingerprint struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	Fingerprint string    `gorm:"type:varchar(128);not null;uniqueIndex"`
	Code        string    `gorm:"type:varchar(8);not null"`
	Day         string    `gorm:"type:varchar(10);not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

// TableName returns the default database table name for ImageFingerprint.
func (ImageFingerprint) TableName() string { return "images" }

// RosterEntry is one expected sender/location for the daily report.
type RosterEntry struct {
	Code string `json:"code" gorm:"type:varchar(32);primaryKey" yaml:"code"`
	Name string `json:"name" gorm:"type:varchar(255);not null"  yaml:"name"`
}

// TableName returns the default database table name for RosterEntry.
func (RosterEntry) TableName() string { return "roster" }
