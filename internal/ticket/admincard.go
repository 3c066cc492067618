package ticket

import (
	"context"
	"errors"
	"fmt"

	"github.com/guildkit/ticketd/internal/gateway"
	"github.com/guildkit/ticketd/internal/model"
)

// AdminCardSync keeps the staff-facing status card in a separate admin
// channel consistent with the session. Post returns the message ref the
// caller records on the session; Update and Retract treat a vanished card
// as already synchronized.
type AdminCardSync struct {
	gw gateway.Gateway
}

func NewAdminCardSync(gw gateway.Gateway) *AdminCardSync {
	return &AdminCardSync{gw: gw}
}

func renderCard(sess *model.TicketSession) string {
	claim := "unclaimed"
	if sess.ClaimedBy != "" {
		claim = fmt.Sprintf("claimed by <@%s>", sess.ClaimedBy)
	}
	return fmt.Sprintf(
		"**Ticket #%d** — %s\nOpened by <@%s> in <#%s>\nStatus: %s",
		sess.TicketID, sess.Category, sess.OpenedBy, sess.ThreadID, claim,
	)
}

func cardButtons(sess *model.TicketSession) []gateway.Button {
	return []gateway.Button{
		{Label: "Claim", CustomID: ClaimCustomID(sess.ThreadID), Primary: true, Disabled: sess.ClaimedBy != ""},
		{Label: "Join", CustomID: JoinCustomID(sess.ThreadID)},
	}
}

// Post publishes the card. A blank admin channel means none is configured
// and the card is skipped without error.
func (s *AdminCardSync) Post(ctx context.Context, adminChannelID string, sess *model.TicketSession) (string, error) {
	if adminChannelID == "" {
		return "", nil
	}
	return s.gw.SendMessage(ctx, adminChannelID, renderCard(sess), cardButtons(sess))
}

func (s *AdminCardSync) Update(ctx context.Context, sess *model.TicketSession) error {
	if sess.AdminChannelID == "" || sess.AdminMessageID == "" {
		return nil
	}
	err := s.gw.EditMessage(ctx, sess.AdminChannelID, sess.AdminMessageID, renderCard(sess), cardButtons(sess))
	if errors.Is(err, gateway.ErrNotFound) {
		return nil
	}
	return err
}

func (s *AdminCardSync) Retract(ctx context.Context, sess *model.TicketSession) error {
	if sess.AdminChannelID == "" || sess.AdminMessageID == "" {
		return nil
	}
	err := s.gw.DeleteMessage(ctx, sess.AdminChannelID, sess.AdminMessageID)
	if errors.Is(err, gateway.ErrNotFound) {
		return nil
	}
	return err
}
