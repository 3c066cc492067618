package ticket

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/guildkit/ticketd/internal/gateway"
	"github.com/guildkit/ticketd/internal/kafka"
	"github.com/guildkit/ticketd/internal/model"
	"github.com/guildkit/ticketd/internal/plugincfg"
	"github.com/guildkit/ticketd/internal/store"
)

// Actor is whoever triggered an action: a guild member with their role set,
// or the system itself for timer-driven closes.
type Actor struct {
	ID          string
	DisplayName string
	Roles       []string
	System      bool
}

// SystemActor drives auto-closes and other timer-originated transitions.
var SystemActor = Actor{ID: "system", DisplayName: "Auto-close", System: true}

// Deps are the controller's collaborators. Everything is an interface or a
// small component so tests can substitute fakes.
type Deps struct {
	BotID       string
	Store       store.Store
	Config      plugincfg.Store
	Gateway     gateway.Gateway
	Cards       *AdminCardSync
	Transcripts *TranscriptCompiler
	Events      kafka.EventProducer
	Now         func() time.Time
}

// Controller is the ticket lifecycle state machine. Guards run before any
// mutation; the primary state transition is fatal to the request on
// failure, while side effects past a durable transition are best-effort.
type Controller struct {
	Deps
}

func NewController(deps Deps) *Controller {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Controller{Deps: deps}
}

func (c *Controller) guildConfig(ctx context.Context, guildID string) (*plugincfg.TicketConfig, error) {
	cfg, err := c.Config.Guild(ctx, c.BotID, guildID)
	if err != nil {
		if errors.Is(err, plugincfg.ErrNotConfigured) {
			return nil, ErrTicketsDisabled
		}
		return nil, err
	}
	if !cfg.Enabled {
		return nil, ErrTicketsDisabled
	}
	return cfg, nil
}

func (c *Controller) canModerate(cfg *plugincfg.TicketConfig, actor Actor) bool {
	return actor.System || cfg.IsStaffRole(actor.Roles)
}

func (c *Controller) canClose(cfg *plugincfg.TicketConfig, sess *model.TicketSession, actor Actor) bool {
	return c.canModerate(cfg, actor) || actor.ID == sess.OpenedBy
}

// Open reserves a ticket number, creates the private thread, and persists
// the new session. The number is reserved before anything user-visible
// exists, so a failed reservation aborts cleanly and a failed thread
// creation costs only a gap in the sequence.
func (c *Controller) Open(ctx context.Context, guildID string, actor Actor, category string) (*model.TicketSession, error) {
	cfg, err := c.guildConfig(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if err := c.checkOpenCooldown(ctx, cfg, actor); err != nil {
		return nil, err
	}

	number, err := c.Store.NextTicketNumber(ctx, c.BotID, guildID)
	if err != nil {
		return nil, fmt.Errorf("reserve ticket number: %w", err)
	}

	threadID, err := c.Gateway.CreateTicketThread(ctx, cfg.PanelChannelID, fmt.Sprintf("ticket-%d", number))
	if err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}
	if err := c.Gateway.AddThreadMember(ctx, threadID, actor.ID); err != nil {
		log.Printf("ticket: add opener %s to thread %s: %v", actor.ID, threadID, err)
	}

	now := c.Now()
	sess := &model.TicketSession{
		BotID:        c.BotID,
		GuildID:      guildID,
		ThreadID:     threadID,
		TicketID:     number,
		OpenedBy:     actor.ID,
		OpenTime:     now,
		Category:     category,
		Status:       model.SessionOpen,
		LastActivity: now,
	}
	if err := c.Store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	opening := fmt.Sprintf("Hello <@%s>, ticket **#%d** (%s) is open. Staff will be with you shortly.",
		actor.ID, number, category)
	if _, err := c.Gateway.SendMessage(ctx, threadID, opening, []gateway.Button{
		{Label: "Close", CustomID: idClose},
		{Label: "Close with reason", CustomID: idCloseReason},
	}); err != nil {
		log.Printf("ticket: opening message in %s: %v", threadID, err)
	}

	if cardID, err := c.Cards.Post(ctx, cfg.AdminChannelID, sess); err != nil {
		log.Printf("ticket: admin card for #%d: %v", number, err)
	} else if cardID != "" {
		sess.AdminChannelID = cfg.AdminChannelID
		sess.AdminMessageID = cardID
		if err := c.Store.SaveSession(ctx, sess); err != nil {
			log.Printf("ticket: record admin card ref for #%d: %v", number, err)
		}
	}

	c.emit("ticket.opened", sess)
	return sess, nil
}

func (c *Controller) checkOpenCooldown(ctx context.Context, cfg *plugincfg.TicketConfig, actor Actor) error {
	limit := cfg.OpenLimitFor(actor.Roles)
	if limit <= 0 {
		return nil
	}
	last, err := c.Store.LatestSessionByOpener(ctx, c.BotID, cfg.GuildID, actor.ID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil
		}
		return err
	}
	if c.Now().Sub(last.OpenTime) < limit {
		return ErrOpenCooldown
	}
	return nil
}

// Claim assigns the ticket to a staff member. Re-claiming by the current
// claimant is a no-op; claims are deliberately not serialized, so two
// racing claims resolve last-write-wins.
func (c *Controller) Claim(ctx context.Context, guildID, threadID string, actor Actor) (*model.TicketSession, error) {
	cfg, err := c.guildConfig(ctx, guildID)
	if err != nil {
		return nil, err
	}
	sess, err := c.Store.SessionByThread(ctx, c.BotID, guildID, threadID)
	if err != nil {
		return nil, err
	}
	if !c.canModerate(cfg, actor) {
		return nil, ErrPermissionDenied
	}
	if !ValidTransition(ActionClaim, sess.Status) {
		return nil, ErrInvalidTransition
	}
	if sess.ClaimedBy == actor.ID {
		return sess, nil
	}

	sess.ClaimedBy = actor.ID
	sess.Status = model.SessionClaimed
	sess.LastActivity = c.Now()
	if err := c.Store.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist claim: %w", err)
	}

	if err := c.Cards.Update(ctx, sess); err != nil {
		log.Printf("ticket: card update for #%d: %v", sess.TicketID, err)
	}
	c.emit("ticket.claimed", sess)
	return sess, nil
}

// Join adds a staff member to the thread without touching claimed_by.
func (c *Controller) Join(ctx context.Context, guildID, threadID string, actor Actor) error {
	cfg, err := c.guildConfig(ctx, guildID)
	if err != nil {
		return err
	}
	sess, err := c.Store.SessionByThread(ctx, c.BotID, guildID, threadID)
	if err != nil {
		return err
	}
	if !c.canModerate(cfg, actor) {
		return ErrPermissionDenied
	}
	if !ValidTransition(ActionJoin, sess.Status) {
		return ErrInvalidTransition
	}
	return c.Gateway.AddThreadMember(ctx, threadID, actor.ID)
}

// RequestClose moves the session to pending_close and posts the
// confirmation prompt in-thread.
func (c *Controller) RequestClose(ctx context.Context, guildID, threadID string, actor Actor) (*model.TicketSession, error) {
	cfg, err := c.guildConfig(ctx, guildID)
	if err != nil {
		return nil, err
	}
	sess, err := c.Store.SessionByThread(ctx, c.BotID, guildID, threadID)
	if err != nil {
		return nil, err
	}
	if !c.canClose(cfg, sess, actor) {
		return nil, ErrPermissionDenied
	}
	if !ValidTransition(ActionRequestClose, sess.Status) {
		return nil, ErrInvalidTransition
	}

	sess.Status = model.SessionPendingClose
	sess.LastActivity = c.Now()
	if err := c.Store.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist pending close: %w", err)
	}

	prompt := fmt.Sprintf("<@%s> wants to close this ticket. Confirm?", actor.ID)
	if _, err := c.Gateway.SendMessage(ctx, threadID, prompt, []gateway.Button{
		{Label: "Confirm close", CustomID: idCloseConfirm, Primary: true},
	}); err != nil {
		log.Printf("ticket: close prompt in %s: %v", threadID, err)
	}
	return sess, nil
}

// Close finishes the lifecycle: stamps the close fields (fatal on
// persistence failure), then runs the best-effort tail — closing message,
// transcript, channel summary, thread lock/archive, card retraction,
// rating prompt. A session that is already closed returns success without
// repeating any side effect.
func (c *Controller) Close(ctx context.Context, guildID, threadID string, actor Actor, reason string) (*model.TicketSession, error) {
	cfg, err := c.guildConfig(ctx, guildID)
	if err != nil {
		return nil, err
	}
	sess, err := c.Store.SessionByThread(ctx, c.BotID, guildID, threadID)
	if err != nil {
		return nil, err
	}
	if sess.Status == model.SessionClosed {
		return sess, nil
	}
	if !c.canClose(cfg, sess, actor) {
		return nil, ErrPermissionDenied
	}
	if !ValidTransition(ActionConfirmClose, sess.Status) {
		return nil, ErrInvalidTransition
	}
	if reason == "" {
		reason = "no reason given"
	}

	now := c.Now()
	sess.Status = model.SessionClosed
	sess.ClosedBy = actor.ID
	sess.CloseTime = &now
	sess.CloseReason = reason
	if err := c.Store.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist close: %w", err)
	}

	// The close is durable from here on; everything below logs and moves on.
	closing := fmt.Sprintf("Ticket **#%d** closed by <@%s>: %s", sess.TicketID, actor.ID, reason)
	if _, err := c.Gateway.SendMessage(ctx, threadID, closing, nil); err != nil {
		log.Printf("ticket: closing message in %s: %v", threadID, err)
	}

	msgs, err := c.Transcripts.Compile(ctx, threadID)
	if err != nil {
		log.Printf("ticket: compile transcript for #%d: %v", sess.TicketID, err)
	} else {
		if err := c.Transcripts.Persist(ctx, sess, msgs); err != nil {
			log.Printf("ticket: persist transcript for #%d: %v", sess.TicketID, err)
		}
		c.Transcripts.PostSummary(ctx, cfg.TranscriptChannelID, sess, len(msgs))
	}

	if err := c.Gateway.CloseThread(ctx, threadID); err != nil {
		log.Printf("ticket: lock/archive thread %s: %v", threadID, err)
	}
	if err := c.Cards.Retract(ctx, sess); err != nil {
		log.Printf("ticket: retract card for #%d: %v", sess.TicketID, err)
	}
	c.sendRatingPrompt(ctx, sess)

	c.emit("ticket.closed", sess)
	return sess, nil
}

func (c *Controller) sendRatingPrompt(ctx context.Context, sess *model.TicketSession) {
	buttons := make([]gateway.Button, 0, 5)
	for score := 1; score <= 5; score++ {
		buttons = append(buttons, gateway.Button{
			Label:    fmt.Sprintf("%d", score),
			CustomID: RateCustomID(sess.GuildID, sess.ThreadID, score),
		})
	}
	content := fmt.Sprintf("Your ticket **#%d** was closed. How did we do?", sess.TicketID)
	if _, err := c.Gateway.SendDirectMessage(ctx, sess.OpenedBy, content, buttons); err != nil {
		log.Printf("ticket: rating prompt for #%d: %v", sess.TicketID, err)
	}
}

// Rate records the opener's 1-5 rating, once, after close.
func (c *Controller) Rate(ctx context.Context, guildID, threadID string, actor Actor, score int) (*model.TicketSession, error) {
	sess, err := c.Store.SessionByThread(ctx, c.BotID, guildID, threadID)
	if err != nil {
		return nil, err
	}
	if actor.ID != sess.OpenedBy {
		return nil, ErrPermissionDenied
	}
	if !ValidTransition(ActionRate, sess.Status) {
		return nil, ErrInvalidTransition
	}
	if sess.Rating != nil {
		return nil, ErrAlreadyRated
	}
	if score < 1 || score > 5 {
		return nil, ErrInvalidRating
	}

	sess.Rating = &score
	if err := c.Store.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist rating: %w", err)
	}
	c.emit("ticket.rated", sess)
	return sess, nil
}

// TouchActivity refreshes the idle clock when the thread sees a human
// message. Unknown threads are ignored.
func (c *Controller) TouchActivity(ctx context.Context, guildID, threadID string) {
	sess, err := c.Store.SessionByThread(ctx, c.BotID, guildID, threadID)
	if err != nil {
		return
	}
	if sess.Status == model.SessionClosed {
		return
	}
	sess.LastActivity = c.Now()
	sess.WarnedAt = nil
	if err := c.Store.SaveSession(ctx, sess); err != nil {
		log.Printf("ticket: touch activity for %s: %v", threadID, err)
	}
}

// emit publishes the lifecycle event from a detached context so a cancelled
// request cannot lose it.
func (c *Controller) emit(event string, sess *model.TicketSession) {
	if c.Events == nil {
		return
	}
	payload := kafka.SessionPayload(sess)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.Events.ProduceTicketEvent(ctx, event, payload)
	}()
}
