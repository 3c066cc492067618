// Package discord adapts the gateway interface onto a discordgo session.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/guildkit/ticketd/internal/gateway"
)

type Gateway struct {
	session *discordgo.Session
}

func New(session *discordgo.Session) *Gateway {
	return &Gateway{session: session}
}

// mapErr folds discord REST 404s into gateway.ErrNotFound so callers can
// tolerate vanished threads and messages uniformly.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %v", gateway.ErrNotFound, err)
	}
	return err
}

func (g *Gateway) CreateTicketThread(ctx context.Context, parentChannelID, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	thread, err := g.session.ThreadStartComplex(parentChannelID, &discordgo.ThreadStart{
		Name:                name,
		Type:                discordgo.ChannelTypeGuildPrivateThread,
		AutoArchiveDuration: 10080,
		Invitable:           false,
	})
	if err != nil {
		return "", mapErr(err)
	}
	return thread.ID, nil
}

func (g *Gateway) AddThreadMember(ctx context.Context, threadID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapErr(g.session.ThreadMemberAdd(threadID, userID))
}

func (g *Gateway) SendMessage(ctx context.Context, channelID, content string, buttons []gateway.Button) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	msg, err := g.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:    content,
		Components: toComponents(buttons),
	})
	if err != nil {
		return "", mapErr(err)
	}
	return msg.ID, nil
}

func (g *Gateway) EditMessage(ctx context.Context, channelID, messageID, content string, buttons []gateway.Button) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	edit := discordgo.NewMessageEdit(channelID, messageID)
	edit.SetContent(content)
	components := toComponents(buttons)
	edit.Components = &components
	_, err := g.session.ChannelMessageEditComplex(edit)
	return mapErr(err)
}

func (g *Gateway) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapErr(g.session.ChannelMessageDelete(channelID, messageID))
}

func (g *Gateway) SendDirectMessage(ctx context.Context, userID, content string, buttons []gateway.Button) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	channel, err := g.session.UserChannelCreate(userID)
	if err != nil {
		return "", mapErr(err)
	}
	return g.SendMessage(ctx, channel.ID, content, buttons)
}

func (g *Gateway) CloseThread(ctx context.Context, threadID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	locked := true
	archived := true
	_, err := g.session.ChannelEditComplex(threadID, &discordgo.ChannelEdit{
		Locked:   &locked,
		Archived: &archived,
	})
	return mapErr(err)
}

func (g *Gateway) MessagesBefore(ctx context.Context, channelID, beforeID string, limit int) ([]gateway.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msgs, err := g.session.ChannelMessages(channelID, limit, beforeID, "", "")
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]gateway.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessage(m))
	}
	return out, nil
}

func toMessage(m *discordgo.Message) gateway.Message {
	msg := gateway.Message{
		ID:        m.ID,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
	if m.Author != nil {
		msg.Author = gateway.Author{
			ID:          m.Author.ID,
			DisplayName: m.Author.Username,
			Avatar:      m.Author.AvatarURL(""),
			Bot:         m.Author.Bot,
		}
	}
	for _, a := range m.Attachments {
		msg.Attachments = append(msg.Attachments, gateway.Attachment{
			ID:          a.ID,
			URL:         a.URL,
			Name:        a.Filename,
			ContentType: a.ContentType,
			Size:        a.Size,
		})
	}
	return msg
}

func toComponents(buttons []gateway.Button) []discordgo.MessageComponent {
	if len(buttons) == 0 {
		return nil
	}
	row := discordgo.ActionsRow{}
	for _, b := range buttons {
		style := discordgo.SecondaryButton
		if b.Primary {
			style = discordgo.PrimaryButton
		}
		row.Components = append(row.Components, discordgo.Button{
			Label:    b.Label,
			Style:    style,
			CustomID: b.CustomID,
			Disabled: b.Disabled,
		})
	}
	return []discordgo.MessageComponent{row}
}
