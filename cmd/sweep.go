package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/guildkit/ticketd/internal/config"
	"github.com/guildkit/ticketd/internal/database"
	discordgw "github.com/guildkit/ticketd/internal/gateway/discord"
	"github.com/guildkit/ticketd/internal/plugincfg"
	"github.com/guildkit/ticketd/internal/store"
	"github.com/guildkit/ticketd/internal/ticket"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a single auto-close sweep over idle tickets and exit",
	RunE:  runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.ValidateBot(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	db, err := database.Open(cfg.DSN())
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}

	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	if err := session.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	defer session.Close()
	botID := session.State.User.ID

	sqlStore := store.NewSQLStore(db)
	cfgStore := plugincfg.NewSQLStore(db)
	gw := discordgw.New(session)
	compiler := ticket.NewTranscriptCompiler(gw, sqlStore, nil)
	ctrl := ticket.NewController(ticket.Deps{
		BotID:       botID,
		Store:       sqlStore,
		Config:      cfgStore,
		Gateway:     gw,
		Cards:       ticket.NewAdminCardSync(gw),
		Transcripts: compiler,
	})
	closer := ticket.NewAutoCloser(botID, sqlStore, cfgStore, gw, ctrl, cfg.SweepInterval)

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()
	if err := closer.Sweep(ctx); err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	log.Println("sweep: done")
	return nil
}
