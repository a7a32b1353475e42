package telegram

import (
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tbourn/go-report-bot/internal/domain"
)

// convertUpdates maps library updates to transport-neutral ones. threads maps
// update id to message_thread_id.
func convertUpdates(in []tgbotapi.Update, threads map[int]int) []domain.RawUpdate {
	out := make([]domain.RawUpdate, 0, len(in))
	for _, u := range in {
		ru := domain.RawUpdate{UpdateID: int64(u.UpdateID)}
		if u.Message != nil {
			ru.Message = convertMessage(u.Message)
			ru.Message.ThreadID = threads[u.UpdateID]
		}
		out = append(out, ru)
	}
	return out
}

func convertMessage(m *tgbotapi.Message) *domain.RawMessage {
	rm := &domain.RawMessage{
		MessageID:    m.MessageID,
		Text:         m.Text,
		Caption:      m.Caption,
		MediaGroupID: m.MediaGroupID,
		Date:         time.Unix(int64(m.Date), 0),
	}
	if m.Chat != nil {
		rm.ChatID = m.Chat.ID
	}
	if m.From != nil {
		rm.SenderID = m.From.ID
		rm.IsBot = m.From.IsBot
		rm.SenderName = displayName(m.From)
	}

	if len(m.Photo) > 0 {
		att := domain.Attachment{Kind: "photo"}
		for _, p := range m.Photo {
			att.Variants = append(att.Variants, domain.Variant{
				UniqueID: p.FileUniqueID,
				Width:    p.Width,
				Height:   p.Height,
				FileSize: int(p.FileSize),
			})
		}
		rm.Attachments = append(rm.Attachments, att)
	}
	if v := m.Video; v != nil {
		rm.Attachments = append(rm.Attachments, domain.Attachment{Kind: "video", Variants: []domain.Variant{{
			UniqueID: v.FileUniqueID,
			Width:    v.Width,
			Height:   v.Height,
			FileSize: int(v.FileSize),
		}}})
	}
	if d := m.Document; d != nil {
		rm.Attachments = append(rm.Attachments, domain.Attachment{Kind: "document", Variants: []domain.Variant{{
			UniqueID: d.FileUniqueID,
			FileSize: int(d.FileSize),
		}}})
	}
	return rm
}

// displayName prefers "First Last", then @username.
func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	if u.UserName != "" {
		return "@" + u.UserName
	}
	return ""
}
