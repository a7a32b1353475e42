package report

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tbourn/go-report-bot/internal/utils"
)

const (
	// MaxMessageLen is the transport's single-message size limit in bytes.
	MaxMessageLen = 4096
	// PreviewRunes bounds the content preview in the sent section.
	PreviewRunes = 40
)

// Title returns the report heading for day (YYYY-MM-DD).
func Title(day string) string {
	d := day
	if t, err := time.Parse(utils.DayLayout, day); err == nil {
		d = t.Format("02/01/2006")
	}
	return "BÁO CÁO 5S - " + d
}

// Lines renders r as text lines, without segmentation.
func Lines(r Report) []string {
	lines := []string{
		Title(r.Day),
		fmt.Sprintf("Đã gửi: %d/%d (%d%%)", len(r.Sent), r.RosterSize, r.Percent),
		fmt.Sprintf("Chưa gửi: %d", len(r.Missing)),
	}

	lines = append(lines, "", fmt.Sprintf("ĐÃ GỬI (%d):", len(r.Sent)))
	for _, e := range r.Sent {
		lines = append(lines, fmt.Sprintf("- %s %s: %s", e.Code, e.Name, Preview(e.Content, PreviewRunes)))
	}

	lines = append(lines, "", fmt.Sprintf("CHƯA GỬI (%d):", len(r.Missing)))
	for _, e := range r.Missing {
		lines = append(lines, fmt.Sprintf("- %s %s", e.Code, e.Name))
	}

	if len(r.Extra) > 0 {
		lines = append(lines, "", fmt.Sprintf("NGOÀI DANH SÁCH (%d):", len(r.Extra)))
		for _, e := range r.Extra {
			lines = append(lines, fmt.Sprintf("- %s: %s", e.Code, Preview(e.Content, PreviewRunes)))
		}
	}
	return lines
}

// Render renders r into messages of at most limit bytes each.
func Render(r Report, limit int) []string {
	return Segment(Lines(r), limit)
}

// Preview collapses whitespace and truncates s to n runes, marking the cut
// with an ellipsis.
func Preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	rs := []rune(s)
	return strings.TrimRight(string(rs[:n]), " ") + "…"
}

// Segment joins lines with newlines into chunks of at most limit bytes,
// breaking only between lines. A line longer than limit on its own is split
// at rune boundaries. A non-positive limit means MaxMessageLen.
func Segment(lines []string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLen
	}
	var (
		out []string
		cur strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, line := range lines {
		for _, part := range hardSplit(line, limit) {
			need := len(part)
			if cur.Len() > 0 {
				need++
			}
			if cur.Len()+need > limit {
				flush()
			}
			if cur.Len() > 0 {
				cur.WriteByte('\n')
			}
			cur.WriteString(part)
		}
	}
	flush()
	return out
}

// hardSplit cuts s into pieces of at most limit bytes without splitting a
// rune.
func hardSplit(s string, limit int) []string {
	if len(s) <= limit {
		return []string{s}
	}
	var parts []string
	for len(s) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			_, cut = utf8.DecodeRuneInString(s)
		}
		parts = append(parts, s[:cut])
		s = s[cut:]
	}
	if s != "" {
		parts = append(parts, s)
	}
	return parts
}

// Sender delivers one message to a chat; threadID may be 0.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, replyTo, threadID int) error
}

// Deliver sends parts in order and stops at the first failure.
func Deliver(ctx context.Context, s Sender, chatID int64, threadID int, parts []string) error {
	for i, p := range parts {
		if err := s.SendMessage(ctx, chatID, p, 0, threadID); err != nil {
			reportSendFailures.Inc()
			return fmt.Errorf("send part %d/%d: %w", i+1, len(parts), err)
		}
	}
	return nil
}
