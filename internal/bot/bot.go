// Package bot is the chat-platform front end: it decodes component
// interactions into intents and dispatches them to the lifecycle
// controller, the way an HTTP handler layer fronts a service.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/guildkit/ticketd/internal/store"
	"github.com/guildkit/ticketd/internal/ticket"
)

const interactionTimeout = 10 * time.Second

type Bot struct {
	session *discordgo.Session
	ctrl    *ticket.Controller
}

func New(session *discordgo.Session, ctrl *ticket.Controller) *Bot {
	return &Bot{session: session, ctrl: ctrl}
}

// Register attaches the interaction and message handlers.
func (b *Bot) Register() {
	b.session.AddHandler(b.onInteraction)
	b.session.AddHandler(b.onMessage)
}

func (b *Bot) onMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()
	b.ctrl.TouchActivity(ctx, m.GuildID, m.ChannelID)
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()

	switch i.Type {
	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		if customID == ticket.CloseReasonModalID {
			// The reason button opens a modal; the intent arrives on submit.
			b.OpenReasonModal(s, i)
			return
		}
		intent, err := ticket.ParseIntent(customID)
		if err != nil {
			log.Printf("bot: %v", err)
			return
		}
		b.dispatch(ctx, s, i, intent)
	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		if data.CustomID != ticket.CloseReasonModalID {
			return
		}
		b.dispatch(ctx, s, i, ticket.CloseWithReasonIntent{Reason: modalInput(data)})
	}
}

// dispatch is the single exhaustive switch over decoded intents.
func (b *Bot) dispatch(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, intent ticket.Intent) {
	actor := actorFrom(i)
	switch in := intent.(type) {
	case ticket.OpenIntent:
		sess, err := b.ctrl.Open(ctx, i.GuildID, actor, in.Category)
		if err != nil {
			b.replyError(s, i, err)
			return
		}
		b.reply(s, i, fmt.Sprintf("Your ticket **#%d** is ready: <#%s>", sess.TicketID, sess.ThreadID))

	case ticket.ClaimIntent:
		sess, err := b.ctrl.Claim(ctx, i.GuildID, in.ThreadID, actor)
		if err != nil {
			b.replyError(s, i, err)
			return
		}
		b.reply(s, i, fmt.Sprintf("Ticket **#%d** is yours.", sess.TicketID))

	case ticket.JoinIntent:
		if err := b.ctrl.Join(ctx, i.GuildID, in.ThreadID, actor); err != nil {
			b.replyError(s, i, err)
			return
		}
		b.reply(s, i, fmt.Sprintf("Added you to <#%s>.", in.ThreadID))

	case ticket.RequestCloseIntent:
		if _, err := b.ctrl.RequestClose(ctx, i.GuildID, i.ChannelID, actor); err != nil {
			b.replyError(s, i, err)
			return
		}
		b.reply(s, i, "Close requested, waiting for confirmation.")

	case ticket.CloseWithReasonIntent:
		if _, err := b.ctrl.Close(ctx, i.GuildID, i.ChannelID, actor, in.Reason); err != nil {
			b.replyError(s, i, err)
			return
		}
		b.reply(s, i, "Ticket closed.")

	case ticket.ConfirmCloseIntent:
		if _, err := b.ctrl.Close(ctx, i.GuildID, i.ChannelID, actor, ""); err != nil {
			b.replyError(s, i, err)
			return
		}
		b.reply(s, i, "Ticket closed.")

	case ticket.RateIntent:
		if _, err := b.ctrl.Rate(ctx, in.GuildID, in.ThreadID, actor, in.Score); err != nil {
			b.replyError(s, i, err)
			return
		}
		b.reply(s, i, "Thanks for the feedback!")
	}
}

// OpenReasonModal shows the free-text reason prompt. Wired to the
// close-with-reason button before dispatch since a modal is an interaction
// response, not a controller action.
func (b *Bot) OpenReasonModal(s *discordgo.Session, i *discordgo.InteractionCreate) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: ticket.CloseReasonModalID,
			Title:    "Close ticket",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:    "reason",
							Label:       "Why is this ticket being closed?",
							Style:       discordgo.TextInputParagraph,
							Required:    true,
							MaxLength:   512,
							Placeholder: "resolved, duplicate, ...",
						},
					},
				},
			},
		},
	})
	if err != nil {
		log.Printf("bot: open reason modal: %v", err)
	}
}

func modalInput(data discordgo.ModalSubmitInteractionData) string {
	for _, c := range data.Components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, rc := range row.Components {
			if input, ok := rc.(*discordgo.TextInput); ok {
				return input.Value
			}
		}
	}
	return ""
}

func actorFrom(i *discordgo.InteractionCreate) ticket.Actor {
	if i.Member != nil && i.Member.User != nil {
		return ticket.Actor{
			ID:          i.Member.User.ID,
			DisplayName: i.Member.User.Username,
			Roles:       i.Member.Roles,
		}
	}
	if i.User != nil {
		// DM interactions (rating buttons) carry no member or roles.
		return ticket.Actor{ID: i.User.ID, DisplayName: i.User.Username}
	}
	return ticket.Actor{}
}

func (b *Bot) reply(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("bot: interaction reply: %v", err)
	}
}

func (b *Bot) replyError(s *discordgo.Session, i *discordgo.InteractionCreate, err error) {
	b.reply(s, i, userMessage(err))
	if !isUserError(err) {
		log.Printf("bot: interaction failed: %v", err)
	}
}

func isUserError(err error) bool {
	return errors.Is(err, ticket.ErrPermissionDenied) ||
		errors.Is(err, ticket.ErrInvalidTransition) ||
		errors.Is(err, ticket.ErrTicketsDisabled) ||
		errors.Is(err, ticket.ErrOpenCooldown) ||
		errors.Is(err, ticket.ErrAlreadyRated) ||
		errors.Is(err, ticket.ErrInvalidRating) ||
		errors.Is(err, store.ErrSessionNotFound)
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, ticket.ErrPermissionDenied):
		return "You don't have permission to do that."
	case errors.Is(err, ticket.ErrTicketsDisabled):
		return "Tickets are not enabled on this server."
	case errors.Is(err, ticket.ErrOpenCooldown):
		return "You opened a ticket recently; please wait before opening another."
	case errors.Is(err, ticket.ErrInvalidTransition):
		return "That action isn't available for this ticket right now."
	case errors.Is(err, ticket.ErrAlreadyRated):
		return "This ticket has already been rated."
	case errors.Is(err, ticket.ErrInvalidRating):
		return "Ratings go from 1 to 5."
	case errors.Is(err, store.ErrSessionNotFound):
		return "This doesn't look like a ticket thread."
	default:
		return "Something went wrong, please try again."
	}
}
