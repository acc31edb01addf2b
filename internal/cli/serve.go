package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/blockedby/groupinviter/internal/bot"
	"github.com/blockedby/groupinviter/internal/events"
	"github.com/blockedby/groupinviter/internal/inviter"
	"github.com/blockedby/groupinviter/internal/logger"
	"github.com/blockedby/groupinviter/internal/metrics"
	"github.com/blockedby/groupinviter/internal/nats"
	"github.com/blockedby/groupinviter/internal/publisher"
	"github.com/blockedby/groupinviter/internal/repository"
	"github.com/blockedby/groupinviter/internal/scraper"
	"github.com/blockedby/groupinviter/internal/telegram"
	"github.com/blockedby/groupinviter/internal/web"
	"github.com/blockedby/groupinviter/internal/web/handlers"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var noBot bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot, the automation account and the ops server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts, noBot)
		},
	}
	cmd.Flags().BoolVar(&noBot, "no-bot", false, "Run without the chat bot (ops API only)")
	return cmd
}

func runServe(ctx context.Context, opts *rootOptions, noBot bool) error {
	e, err := setup(ctx, opts, true)
	if err != nil {
		return err
	}
	defer e.close()

	cfg, log := e.cfg, e.log
	if err := cfg.Validate(); err != nil {
		return err
	}
	log.Info().Str("version", web.Version).Msg("starting inviter")

	// repositories
	groupsRepo := repository.NewGroupsRepository(e.db.GORM)
	contactsRepo := repository.NewContactsRepository(e.db.GORM)
	invitesRepo := repository.NewInvitesRepository(e.db.GORM)
	usersRepo := repository.NewUsersRepository(e.db.GORM)
	statsRepo := repository.NewStatsRepository(e.db.GORM)

	// event fan-out: websocket hub always, NATS when configured
	m := metrics.New()
	hub := web.NewHub()
	go hub.Run()
	defer hub.Close()

	sinks := events.Multi{hub}
	if cfg.NatsURL != "" {
		nc, err := nats.Connect(ctx, nats.Options{URL: cfg.NatsURL})
		if err != nil {
			log.Warn().Err(err).Msg("nats unavailable, publishing disabled")
		} else {
			defer nc.Close()
			sinks = append(sinks, publisher.NewNATSPublisher(nc))
		}
	}
	pub := events.Publisher(sinks)

	// automation account
	tgManager := telegram.NewManager(cfg, e.db.GORM)
	if err := tgManager.Init(ctx); err != nil {
		// keep serving: the account can still be logged in over /api/v1/auth/qr
		log.Error().Err(err).Msg("telegram manager init failed")
	}
	tgClient := telegram.NewClient(tgManager, telegram.NewRateLimiter(cfg.TGRPS, 1))
	defer tgClient.Close()

	// domain services
	scrapeSvc := scraper.NewService(tgClient, groupsRepo, contactsRepo, usersRepo, pub, m,
		scraper.OptionsFromConfig(cfg), log.Named("scraper"))
	scrapeManager := scraper.NewScrapeManager(scrapeSvc)

	inviteSvc := inviter.NewService(tgClient, groupsRepo, invitesRepo, usersRepo, pub, m,
		inviter.PolicyFromConfig(cfg), log.Named("inviter"))
	campaignManager := inviter.NewCampaignManager(inviteSvc)

	// ops server
	server, serverErr, err := startOpsServer(cfg.HTTPPort, hub, m, log, func(s *web.Server) {
		s.RegisterStatsHandler(handlers.NewStatsHandler(statsRepo, tgClient, campaignManager))
		s.RegisterAuthHandler(handlers.NewAuthHandler(tgClient, pub))
		s.RegisterCampaignsHandler(handlers.NewCampaignsHandler(campaignManager, inviteSvc))
		scraper.Routes(s.API(), scraper.NewHandler(scrapeManager, scrapeSvc, groupsRepo))
	})
	if err != nil {
		return err
	}

	// chat bot
	botErr := make(chan error, 1)
	if !noBot {
		b, err := bot.New(cfg, bot.Deps{
			Groups:    scrapeSvc,
			Store:     groupsRepo,
			Users:     usersRepo,
			Scrapes:   scrapeManager,
			Campaigns: campaignManager,
			Invites:   inviteSvc,
		}, log)
		if err != nil {
			return fmt.Errorf("start bot: %w", err)
		}
		go func() { botErr <- b.Run(ctx) }()
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("received shutdown signal")
	case err := <-serverErr:
		log.Error().Err(err).Msg("server error")
	case err := <-botErr:
		if err != nil {
			log.Error().Err(err).Msg("bot error")
		}
	}

	log.Info().Msg("shutting down services...")
	campaignManager.Stop()
	scrapeManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	// jobs record their last outcome before the database closes
	if err := campaignManager.Wait(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("invite campaign did not finish in time")
	}
	if err := scrapeManager.Wait(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("scrape did not finish in time")
	}
	if server != nil {
		if err := server.Stop(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("failed to stop server")
		}
	}
	tgManager.Stop()

	log.Info().Msg("shutdown complete")
	return nil
}

// startOpsServer binds the ops server on port and serves it in the
// background. Port 0 disables it: the returned server and channel are nil.
func startOpsServer(port int, hub *web.Hub, m *metrics.Metrics, log *logger.Logger, register func(*web.Server)) (*web.Server, <-chan error, error) {
	if port == 0 {
		log.Info().Msg("HTTP_PORT is 0, ops server disabled")
		return nil, nil, nil
	}

	server := web.NewServer(&web.Config{Port: port}, hub, m, log)
	register(server)
	if err := server.Listen(); err != nil {
		return nil, nil, fmt.Errorf("ops server: %w", err)
	}

	errs := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()
	return server, errs, nil
}
