package model

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type SessionStatus string

const (
	SessionOpen         SessionStatus = "open"
	SessionClaimed      SessionStatus = "claimed"
	SessionPendingClose SessionStatus = "pending_close"
	SessionClosed       SessionStatus = "closed"
)

// TicketSession is the persisted lifecycle record of one support ticket.
// One row per opened ticket; the row outlives the thread as the audit trail.
type TicketSession struct {
	ID       uint64 `gorm:"primaryKey" json:"id"`
	BotID    string `gorm:"size:32;not null;uniqueIndex:idx_session_thread,priority:1;uniqueIndex:idx_session_number,priority:1" json:"bot_id"`
	GuildID  string `gorm:"size:32;not null;uniqueIndex:idx_session_thread,priority:2;uniqueIndex:idx_session_number,priority:2" json:"guild_id"`
	ThreadID string `gorm:"size:32;not null;uniqueIndex:idx_session_thread,priority:3" json:"thread_id"`
	TicketID int64  `gorm:"not null;uniqueIndex:idx_session_number,priority:3" json:"ticket_id"`

	OpenedBy string    `gorm:"size:32;not null" json:"opened_by"`
	OpenTime time.Time `gorm:"not null" json:"open_time"`
	Category string    `gorm:"size:128" json:"category,omitempty"`

	ClaimedBy string        `gorm:"size:32;index" json:"claimed_by,omitempty"`
	Status    SessionStatus `gorm:"type:varchar(32);index;not null" json:"status"`

	// Status card in the admin channel, empty when no admin channel is configured.
	AdminChannelID string `gorm:"size:32" json:"admin_channel_id,omitempty"`
	AdminMessageID string `gorm:"size:32" json:"admin_message_id,omitempty"`

	CloseReason string     `gorm:"type:text" json:"close_reason,omitempty"`
	ClosedBy    string     `gorm:"size:32" json:"closed_by,omitempty"`
	CloseTime   *time.Time `json:"close_time,omitempty"`

	Rating *int `json:"rating,omitempty"`

	LastActivity time.Time  `gorm:"not null" json:"last_activity"`
	WarnedAt     *time.Time `json:"warned_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ThreadName is the conversation thread naming convention.
func (s *TicketSession) ThreadName() string {
	return fmt.Sprintf("ticket-%d", s.TicketID)
}

// TicketCounter issues ticket numbers per (bot, guild) via a single atomic
// increment; rows are never read-modify-written.
type TicketCounter struct {
	BotID   string `gorm:"primaryKey;size:32"`
	GuildID string `gorm:"primaryKey;size:32"`
	Value   int64  `gorm:"not null"`
}

// Transcript is the immutable archive of a closed ticket. Rows are written
// once on close and only ever rewritten by the idempotent upsert of a
// retried close.
type Transcript struct {
	ID       uint64 `gorm:"primaryKey" json:"id"`
	BotID    string `gorm:"size:32;not null;uniqueIndex:idx_transcript_thread,priority:1" json:"bot_id"`
	GuildID  string `gorm:"size:32;not null;uniqueIndex:idx_transcript_thread,priority:2" json:"guild_id"`
	ThreadID string `gorm:"size:32;not null;uniqueIndex:idx_transcript_thread,priority:3" json:"thread_id"`

	Messages datatypes.JSON `gorm:"type:jsonb" json:"messages"`
	Metadata datatypes.JSON `gorm:"type:jsonb" json:"metadata"`

	CreatedAt time.Time `json:"created_at"`
}

type TranscriptAuthor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar,omitempty"`
}

type TranscriptAttachment struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Size        int    `json:"size,omitempty"`
}

type TranscriptMessage struct {
	ID          string                 `json:"id"`
	Author      TranscriptAuthor       `json:"author"`
	Content     string                 `json:"content"`
	Attachments []TranscriptAttachment `json:"attachments,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

type TranscriptMetadata struct {
	OpenedBy  string     `json:"opened_by"`
	ClosedBy  string     `json:"closed_by"`
	ClaimedBy string     `json:"claimed_by,omitempty"`
	OpenTime  time.Time  `json:"open_time"`
	CloseTime *time.Time `json:"close_time"`
	Reason    string     `json:"reason"`
	Category  string     `json:"category,omitempty"`
}

// NewTranscript marshals the typed records into the JSONB columns.
func NewTranscript(botID, guildID, threadID string, msgs []TranscriptMessage, meta TranscriptMetadata) (*Transcript, error) {
	rawMsgs, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("marshal messages: %w", err)
	}
	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return &Transcript{
		BotID:    botID,
		GuildID:  guildID,
		ThreadID: threadID,
		Messages: datatypes.JSON(rawMsgs),
		Metadata: datatypes.JSON(rawMeta),
	}, nil
}

// DecodeMessages unpacks the messages column.
func (t *Transcript) DecodeMessages() ([]TranscriptMessage, error) {
	if len(t.Messages) == 0 {
		return nil, nil
	}
	var msgs []TranscriptMessage
	if err := json.Unmarshal(t.Messages, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}
