package domain

import (
	"strconv"
	"time"
)

// RawUpdate is one item of the transport feed. Message is nil for update
// kinds the bot does not act on (edits, callbacks, member changes).
type RawUpdate struct {
	UpdateID int64
	Message  *RawMessage
}

// RawMessage is the transport-neutral view of an incoming chat message.
type RawMessage struct {
	MessageID    int
	ChatID       int64
	SenderID     int64
	SenderName   string
	IsBot        bool
	Text         string
	Caption      string
	Attachments  []Attachment
	MediaGroupID string
	ThreadID     int
	Date         time.Time
}

// Content returns the caption when present, otherwise the text.
func (m *RawMessage) Content() string {
	if m.Caption != "" {
		return m.Caption
	}
	return m.Text
}

// Attachment is one media item with its size variants.
type Attachment struct {
	Kind     string // photo|video|document
	Variants []Variant
}

// Variant is one size variant of an attachment. UniqueID is stable across
// resends of the identical file.
type Variant struct {
	UniqueID string
	Width    int
	Height   int
	FileSize int
}

// Fingerprint returns the UniqueID of the largest variant (by area, then by
// file size), or "" when there are no variants.
func (a Attachment) Fingerprint() string {
	best := -1
	for i, v := range a.Variants {
		if v.UniqueID == "" {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		b := a.Variants[best]
		area, bestArea := v.Width*v.Height, b.Width*b.Height
		if area > bestArea || (area == bestArea && v.FileSize > b.FileSize) {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return a.Variants[best].UniqueID
}

// Submission is one logical report: a single message or an album collapsed
// to one caption and one set of attachment fingerprints. It is built per
// pass and never persisted as such.
type Submission struct {
	Key                     string
	ChatID                  int64
	RepresentativeMessageID int
	SenderID                int64
	SenderName              string
	Content                 string
	Fingerprints            []string
	GroupingID              string
	ThreadID                int
	MemberMessageIDs        []int
}

// MemberKeys returns the seen-set keys ("<chat>:<message>") of all members.
func (s Submission) MemberKeys() []string {
	out := make([]string, 0, len(s.MemberMessageIDs))
	for _, id := range s.MemberMessageIDs {
		out = append(out, MessageKey(s.ChatID, id))
	}
	return out
}

// MessageKey identifies a physical message across passes.
func MessageKey(chatID int64, messageID int) string {
	return strconv.FormatInt(chatID, 10) + ":" + strconv.Itoa(messageID)
}

// Outcome is the classification of one submission.
type Outcome int

const (
	OutcomeMalformed Outcome = iota + 1
	OutcomeDuplicate
	OutcomeAccepted
)

// String implements fmt.Stringer; used as a metrics label.
func (o Outcome) String() string {
	switch o {
	case OutcomeMalformed:
		return "malformed"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeAccepted:
		return "accepted"
	default:
		return "unknown"
	}
}
