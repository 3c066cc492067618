package ticket

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/guildkit/ticketd/internal/gateway"
	"github.com/guildkit/ticketd/internal/model"
	"github.com/guildkit/ticketd/internal/plugincfg"
	"github.com/guildkit/ticketd/internal/store"
)

// AutoCloser sweeps idle sessions on a fixed interval: one warning once the
// idle time passes the configured threshold, then a system close on a later
// sweep if the ticket stays quiet. It reads persisted state only — it runs
// outside any request context, so the volatile cache is off limits.
type AutoCloser struct {
	botID    string
	store    store.Store // the uncached store, deliberately
	config   plugincfg.Store
	gw       gateway.Gateway
	ctrl     *Controller
	interval time.Duration
	now      func() time.Time
}

func NewAutoCloser(botID string, st store.Store, cfg plugincfg.Store, gw gateway.Gateway, ctrl *Controller, interval time.Duration) *AutoCloser {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &AutoCloser{
		botID:    botID,
		store:    st,
		config:   cfg,
		gw:       gw,
		ctrl:     ctrl,
		interval: interval,
		now:      time.Now,
	}
}

// Run sweeps until the context is cancelled.
func (a *AutoCloser) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.Sweep(ctx); err != nil {
				log.Printf("autoclose: sweep: %v", err)
			}
		}
	}
}

// Sweep runs one pass over every active session of the bot.
func (a *AutoCloser) Sweep(ctx context.Context) error {
	sessions, err := a.store.ListActiveSessions(ctx, a.botID)
	if err != nil {
		return fmt.Errorf("list active sessions: %w", err)
	}

	configs := make(map[string]*plugincfg.TicketConfig)
	for i := range sessions {
		sess := &sessions[i]
		cfg, ok := configs[sess.GuildID]
		if !ok {
			cfg, err = a.config.Guild(ctx, a.botID, sess.GuildID)
			if err != nil {
				log.Printf("autoclose: config for guild %s: %v", sess.GuildID, err)
				configs[sess.GuildID] = nil
				continue
			}
			configs[sess.GuildID] = cfg
		}
		if cfg == nil || !cfg.Enabled {
			continue
		}
		rule := cfg.ActiveAutoClose()
		if rule == nil {
			continue
		}
		a.sweepSession(ctx, sess, rule)
	}
	return nil
}

func (a *AutoCloser) sweepSession(ctx context.Context, sess *model.TicketSession, rule *plugincfg.AutoClose) {
	idle := a.now().Sub(sess.LastActivity)
	if idle < rule.Threshold() {
		return
	}
	if sess.WarnedAt == nil {
		warning := fmt.Sprintf(
			"This ticket has been inactive for %s and will be closed automatically if it stays quiet.",
			formatIdle(idle),
		)
		if _, err := a.gw.SendMessage(ctx, sess.ThreadID, warning, nil); err != nil {
			log.Printf("autoclose: warn thread %s: %v", sess.ThreadID, err)
			return
		}
		warned := a.now()
		sess.WarnedAt = &warned
		if err := a.store.SaveSession(ctx, sess); err != nil {
			log.Printf("autoclose: record warning for %s: %v", sess.ThreadID, err)
		}
		return
	}

	reason := renderReason(rule.ReasonTemplate, idle)
	if _, err := a.ctrl.Close(ctx, sess.GuildID, sess.ThreadID, SystemActor, reason); err != nil {
		log.Printf("autoclose: close #%d: %v", sess.TicketID, err)
	}
}

// renderReason fills {idle} in the configured template; an empty template
// gets a plain default.
func renderReason(template string, idle time.Duration) string {
	if template == "" {
		template = "automatically closed after {idle} of inactivity"
	}
	return strings.ReplaceAll(template, "{idle}", formatIdle(idle))
}

func formatIdle(d time.Duration) string {
	return d.Truncate(time.Minute).String()
}
