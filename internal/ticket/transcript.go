package ticket

import (
	"context"
	"fmt"
	"log"

	"github.com/guildkit/ticketd/internal/archive"
	"github.com/guildkit/ticketd/internal/gateway"
	"github.com/guildkit/ticketd/internal/model"
	"github.com/guildkit/ticketd/internal/store"
)

const (
	defaultPageSize = 100
	// maxHistoryPages bounds the backward fetch so a misbehaving or absurd
	// thread cannot turn the close into a runaway pagination loop.
	maxHistoryPages = 200
)

// TranscriptCompiler pages a thread's history, normalizes it, and persists
// the immutable transcript record.
type TranscriptCompiler struct {
	gw       gateway.Gateway
	store    store.Store
	exporter *archive.Exporter // optional
	pageSize int
}

func NewTranscriptCompiler(gw gateway.Gateway, st store.Store, exporter *archive.Exporter) *TranscriptCompiler {
	return &TranscriptCompiler{gw: gw, store: st, exporter: exporter, pageSize: defaultPageSize}
}

// Compile fetches the thread backward page by page, oldest message of each
// page as the next cursor, until a page comes back empty. Messages from
// automated accounts are dropped; a single reverse at the end yields
// chronological order.
func (c *TranscriptCompiler) Compile(ctx context.Context, threadID string) ([]model.TranscriptMessage, error) {
	var records []model.TranscriptMessage
	before := ""
	for page := 0; ; page++ {
		if page >= maxHistoryPages {
			log.Printf("transcript: thread %s exceeded %d history pages, truncating", threadID, maxHistoryPages)
			break
		}
		msgs, err := c.fetchPage(ctx, threadID, before)
		if err != nil {
			return nil, fmt.Errorf("fetch history page %d: %w", page, err)
		}
		if len(msgs) == 0 {
			break
		}
		// Pages arrive newest first; the last entry is the oldest and
		// becomes the cursor.
		before = msgs[len(msgs)-1].ID
		for _, m := range msgs {
			if m.Author.Bot {
				continue
			}
			records = append(records, normalize(m))
		}
	}
	reverse(records)
	return records, nil
}

// fetchPage retries once; history reads are idempotent so a retry cannot
// duplicate anything.
func (c *TranscriptCompiler) fetchPage(ctx context.Context, threadID, before string) ([]gateway.Message, error) {
	msgs, err := c.gw.MessagesBefore(ctx, threadID, before, c.pageSize)
	if err == nil {
		return msgs, nil
	}
	log.Printf("transcript: page fetch failed, retrying once: %v", err)
	return c.gw.MessagesBefore(ctx, threadID, before, c.pageSize)
}

// Persist upserts the transcript keyed by the session's scope, retrying
// once. A retried close lands on the same row instead of duplicating it.
func (c *TranscriptCompiler) Persist(ctx context.Context, sess *model.TicketSession, msgs []model.TranscriptMessage) error {
	t, err := model.NewTranscript(sess.BotID, sess.GuildID, sess.ThreadID, msgs, model.TranscriptMetadata{
		OpenedBy:  sess.OpenedBy,
		ClosedBy:  sess.ClosedBy,
		ClaimedBy: sess.ClaimedBy,
		OpenTime:  sess.OpenTime,
		CloseTime: sess.CloseTime,
		Reason:    sess.CloseReason,
		Category:  sess.Category,
	})
	if err != nil {
		return err
	}
	if err := c.store.UpsertTranscript(ctx, t); err != nil {
		log.Printf("transcript: upsert failed, retrying once: %v", err)
		if err := c.store.UpsertTranscript(ctx, t); err != nil {
			return fmt.Errorf("upsert transcript: %w", err)
		}
	}
	if c.exporter != nil {
		c.exporter.ExportTranscriptAsync(t)
	}
	return nil
}

// PostSummary echoes a closing summary with a durable thread link into the
// configured transcript channel. A missing channel is non-fatal.
func (c *TranscriptCompiler) PostSummary(ctx context.Context, transcriptChannelID string, sess *model.TicketSession, messageCount int) {
	if transcriptChannelID == "" {
		return
	}
	link := fmt.Sprintf("https://discord.com/channels/%s/%s", sess.GuildID, sess.ThreadID)
	content := fmt.Sprintf(
		"Ticket #%d closed by <@%s> — %s\nOpened by <@%s>, %d messages archived.\n%s",
		sess.TicketID, sess.ClosedBy, sess.CloseReason, sess.OpenedBy, messageCount, link,
	)
	if _, err := c.gw.SendMessage(ctx, transcriptChannelID, content, nil); err != nil {
		log.Printf("transcript: summary post to %s failed: %v", transcriptChannelID, err)
	}
}

func normalize(m gateway.Message) model.TranscriptMessage {
	rec := model.TranscriptMessage{
		ID: m.ID,
		Author: model.TranscriptAuthor{
			ID:          m.Author.ID,
			DisplayName: m.Author.DisplayName,
			Avatar:      m.Author.Avatar,
		},
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
	for _, a := range m.Attachments {
		rec.Attachments = append(rec.Attachments, model.TranscriptAttachment{
			ID:          a.ID,
			URL:         a.URL,
			Name:        a.Name,
			ContentType: a.ContentType,
			Size:        a.Size,
		})
	}
	return rec
}

func reverse(msgs []model.TranscriptMessage) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
