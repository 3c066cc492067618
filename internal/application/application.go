package application

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/guildkit/ticketd/internal/archive"
	"github.com/guildkit/ticketd/internal/bot"
	"github.com/guildkit/ticketd/internal/config"
	"github.com/guildkit/ticketd/internal/database"
	discordgw "github.com/guildkit/ticketd/internal/gateway/discord"
	"github.com/guildkit/ticketd/internal/handler"
	"github.com/guildkit/ticketd/internal/kafka"
	"github.com/guildkit/ticketd/internal/plugincfg"
	"github.com/guildkit/ticketd/internal/router"
	"github.com/guildkit/ticketd/internal/store"
	"github.com/guildkit/ticketd/internal/ticket"
)

// App wires the bot, the lifecycle engine, the auto-closer and the operator
// HTTP API into one process.
type App struct {
	cfg      *config.Config
	httpSrv  *http.Server
	session  *discordgo.Session
	closer   *ticket.AutoCloser
	producer *kafka.Producer
}

func New(cfg *config.Config) (*App, error) {
	if err := cfg.ValidateBot(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := database.MigrateUp(cfg.DatabaseURL()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages
	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord open: %w", err)
	}
	botID := session.State.User.ID

	sqlStore := store.NewSQLStore(db)
	cached := store.NewCachedStore(sqlStore)
	cfgStore := plugincfg.NewSQLStore(db)
	gw := discordgw.New(session)
	producer := kafka.NewProducer(kafka.ParseBrokers(cfg.KafkaBrokers), cfg.KafkaTopicTicketEvents)
	exporter := archive.NewExporter(cfg.ArchiveServiceURL)

	cards := ticket.NewAdminCardSync(gw)
	compiler := ticket.NewTranscriptCompiler(gw, sqlStore, exporter)
	ctrl := ticket.NewController(ticket.Deps{
		BotID:       botID,
		Store:       cached,
		Config:      cfgStore,
		Gateway:     gw,
		Cards:       cards,
		Transcripts: compiler,
		Events:      producer,
	})

	// The sweep reads persisted state only, so it gets the raw store.
	closer := ticket.NewAutoCloser(botID, sqlStore, cfgStore, gw, ctrl, cfg.SweepInterval)

	bot.New(session, ctrl).Register()

	sessionHandler := handler.NewSessionHandler(sqlStore, botID)
	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.New(sessionHandler),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &App{
		cfg:      cfg,
		httpSrv:  httpSrv,
		session:  session,
		closer:   closer,
		producer: producer,
	}, nil
}

// Run serves until the context is cancelled, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	log.Printf("ticketd: logged in as %s", a.session.State.User.Username)
	log.Printf("HTTP server listening on %s", a.httpSrv.Addr)
	log.Printf("  Swagger UI: http://%s/swagger", a.httpSrv.Addr)
	log.Printf("auto-close sweep every %s", a.cfg.SweepInterval)

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http: %v", err)
		}
	}()
	go a.closer.Run(ctx)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := a.session.Close(); err != nil {
		log.Printf("discord close: %v", err)
	}
	if err := a.producer.Close(); err != nil {
		log.Printf("kafka close: %v", err)
	}
	return nil
}
