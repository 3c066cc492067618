// Package gateway abstracts the chat platform's thread, message and
// membership primitives. The ticket engine only ever talks to this
// interface; rendering specifics stay in the adapter.
package gateway

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound marks a thread, channel or message that no longer exists on
// the platform. Callers decide whether that is fatal or tolerable.
var ErrNotFound = errors.New("gateway: not found")

type Author struct {
	ID          string
	DisplayName string
	Avatar      string
	Bot         bool
}

type Attachment struct {
	ID          string
	URL         string
	Name        string
	ContentType string
	Size        int
}

type Message struct {
	ID          string
	Author      Author
	Content     string
	Attachments []Attachment
	Timestamp   time.Time
}

// Button is the one component shape the engine needs; the adapter maps it
// to whatever the platform renders.
type Button struct {
	Label    string
	CustomID string
	Disabled bool
	Primary  bool
}

type Gateway interface {
	// CreateTicketThread opens a private thread under the parent channel.
	CreateTicketThread(ctx context.Context, parentChannelID, name string) (threadID string, err error)
	AddThreadMember(ctx context.Context, threadID, userID string) error

	SendMessage(ctx context.Context, channelID, content string, buttons []Button) (messageID string, err error)
	EditMessage(ctx context.Context, channelID, messageID, content string, buttons []Button) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	SendDirectMessage(ctx context.Context, userID, content string, buttons []Button) (messageID string, err error)

	// CloseThread locks and archives the thread.
	CloseThread(ctx context.Context, threadID string) error

	// MessagesBefore returns up to limit messages older than beforeID,
	// newest first. An empty beforeID starts from the newest message.
	MessagesBefore(ctx context.Context, channelID, beforeID string, limit int) ([]Message, error)
}
