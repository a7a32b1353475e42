// Package album collapses a batch of raw updates into logical submissions.
//
// Messages that share a media group id form one submission; every other
// message is a submission on its own. Attachment fingerprints and member
// message ids accumulate across the group, while the content and the reply
// target follow the last member that carried a non-empty caption or text.
package album

import (
	"sort"
	"strconv"
	"strings"

	"github.com/tbourn/go-report-bot/internal/domain"
)

// Filter selects which updates take part in aggregation.
type Filter struct {
	// ChatID is the collection chat; messages from other chats are dropped.
	ChatID int64
	// SelfID is the bot's own user id; its messages are dropped.
	SelfID int64
}

// Keep reports whether m is actionable under f.
func (f Filter) Keep(m *domain.RawMessage) bool {
	if m == nil {
		return false
	}
	if m.ChatID != f.ChatID {
		return false
	}
	if m.IsBot || (f.SelfID != 0 && m.SenderID == f.SelfID) {
		return false
	}
	if IsCommand(m) {
		return false
	}
	return strings.TrimSpace(m.Content()) != "" || len(m.Attachments) > 0
}

// IsCommand reports whether m is a bot command (e.g. /start) without media.
func IsCommand(m *domain.RawMessage) bool {
	return m != nil && len(m.Attachments) == 0 && strings.HasPrefix(strings.TrimSpace(m.Text), "/")
}

// Key returns the submission key of m: the media group id when present,
// otherwise a per-message synthetic key.
func Key(m *domain.RawMessage) string {
	if m.MediaGroupID != "" {
		return m.MediaGroupID
	}
	return "msg:" + strconv.FormatInt(m.ChatID, 10) + ":" + strconv.Itoa(m.MessageID)
}

// acc accumulates one submission while Group walks the batch. fps and
// members are sets so a redelivered message adds nothing.
type acc struct {
	sub     domain.Submission
	fps     map[string]struct{}
	members map[int]struct{}
}

// Group aggregates updates in a single forward pass and returns the
// submissions in order of first appearance of their key.
//
// For each kept message the accumulator of its key gains the message id and
// the attachment fingerprints. A message with non-empty content replaces the
// content, the reply target and the sender of its submission, so the caption
// of an album wins whichever member carries it. The thread id is taken from
// the first member that has one. Fingerprints are returned sorted.
//
// Group sees a single batch. Members of one album that arrive in different
// polls produce one submission per poll with the same Key; reconciling them is
// left to the caller.
func Group(updates []domain.RawUpdate, f Filter) []domain.Submission {
	byKey := make(map[string]*acc)
	var order []string

	for _, u := range updates {
		m := u.Message
		if !f.Keep(m) {
			continue
		}
		key := Key(m)
		a, ok := byKey[key]
		if !ok {
			a = &acc{
				sub: domain.Submission{
					Key:                     key,
					ChatID:                  m.ChatID,
					RepresentativeMessageID: m.MessageID,
					SenderID:                m.SenderID,
					SenderName:              m.SenderName,
					GroupingID:              m.MediaGroupID,
				},
				fps:     make(map[string]struct{}),
				members: make(map[int]struct{}),
			}
			byKey[key] = a
			order = append(order, key)
		}

		if _, dup := a.members[m.MessageID]; !dup {
			a.members[m.MessageID] = struct{}{}
			a.sub.MemberMessageIDs = append(a.sub.MemberMessageIDs, m.MessageID)
		}
		for _, att := range m.Attachments {
			if fp := att.Fingerprint(); fp != "" {
				a.fps[fp] = struct{}{}
			}
		}
		if a.sub.ThreadID == 0 && m.ThreadID != 0 {
			a.sub.ThreadID = m.ThreadID
		}
		if c := m.Content(); strings.TrimSpace(c) != "" {
			a.sub.Content = c
			a.sub.RepresentativeMessageID = m.MessageID
			a.sub.SenderID = m.SenderID
			a.sub.SenderName = m.SenderName
		}
	}

	out := make([]domain.Submission, 0, len(order))
	for _, key := range order {
		a := byKey[key]
		fps := make([]string, 0, len(a.fps))
		for fp := range a.fps {
			fps = append(fps, fp)
		}
		sort.Strings(fps)
		a.sub.Fingerprints = fps
		out = append(out, a.sub)
	}
	return out
}
