package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"otp_forwarder_bot/internal/app"
	"otp_forwarder_bot/internal/domain/otp"
	"otp_forwarder_bot/internal/infra/browser"
	"otp_forwarder_bot/internal/infra/config"
	idb "otp_forwarder_bot/internal/infra/database"
	"otp_forwarder_bot/internal/infra/health"
	"otp_forwarder_bot/internal/infra/logger"
	"otp_forwarder_bot/internal/infra/scheduler"
	"otp_forwarder_bot/internal/infra/telegram"

	"github.com/chromedp/chromedp"
	"github.com/gin-gonic/gin"
	"gopkg.in/telebot.v3"
)

func main() {
	fmt.Println("Telegram OTP Bot starting...")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load application configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg)

	if err := run(cfg); err != nil {
		logger.For("main").WithError(err).Error("Bot stopped with error")
		os.Exit(1)
	}
}

// run owns every acquired resource; each one is released by a defer so that normal
// stop, SIGINT/SIGTERM and startup errors all close the browser.
func run(cfg *config.AppConfig) error {
	mainLogger := logger.For("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dedupRepo, closeRepo, err := openDedupRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	bot, err := telegram.NewBot(cfg.TelegramToken, "", false, func(err error, c telebot.Context) {
		logCtx := logger.For("telebot").WithError(err)
		if c != nil && c.Chat() != nil {
			logCtx = logCtx.WithField("chat_id", c.Chat().ID)
		}
		logCtx.Error("Telegram bot error")
	})
	if err != nil {
		return err
	}
	dispatcher := app.NewDispatcher(telegram.NewTelebotAdapter(bot), cfg.TelegramChatID, cfg.TelegramRatePerSec, logger.For("dispatcher"))

	if cfg.HealthEnabled {
		if cfg.Environment == "production" {
			gin.SetMode(gin.ReleaseMode)
		}
		healthServer := health.NewServer(cfg.HealthPort, cfg.ServiceName, logger.For("health"))
		healthServer.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := healthServer.Shutdown(shutdownCtx); err != nil {
				mainLogger.WithError(err).Warn("Health server shutdown error")
			}
		}()
	}

	browserLogger := logger.For("browser")
	strategies := browser.DefaultStrategies(browser.LaunchOptions{
		ChromePath: cfg.ChromePath,
		Headless:   cfg.BrowserHeadless,
		UserAgent:  cfg.UserAgent,
	})
	// The browser outlives the signal context so the deferred Close can shut it down gracefully.
	launch := func(ctx context.Context, opts []chromedp.ExecAllocatorOption) (*browser.Session, error) {
		return browser.Start(context.WithoutCancel(ctx), opts, browserLogger.Debugf)
	}
	browserSession, err := browser.LaunchFirst(ctx, launch, strategies, browserLogger)
	if err != nil {
		return err
	}
	defer func() {
		browserSession.Close()
		mainLogger.Info("Browser closed")
	}()

	loc := cfg.Location()
	detector := app.NewChangeDetector()
	page := browser.NewMonitoredPage(browserSession, cfg.LiveSMSURL, cfg.TableSelector, cfg.NavigationTimeout)
	auth := browser.NewPortalAuthenticator(browserSession, cfg.LoginURL, cfg.PortalEmail, cfg.PortalPassword, cfg.NavigationTimeout, logger.For("auth"))
	sessions := app.NewSessionController(auth, page, detector, dispatcher, cfg.AuthAlertAttempts, loc, logger.For("session"))
	otpService := app.NewOTPService(dedupRepo, dispatcher, loc, logger.For("otp"))
	adminService := app.NewAdminService(dedupRepo, sessions, detector, otpService, cfg.DedupRetention, cfg.AdminTelegramID, logger.For("admin"))

	if !cfg.DedupPurgeDisabled {
		purgeScheduler := scheduler.NewDedupPurgeScheduler(adminService, logger.For("scheduler"), cfg.CronSpecDedupPurge, loc)
		if err := purgeScheduler.Start(); err != nil {
			return err
		}
		defer purgeScheduler.Stop()
	}

	if cfg.AdminTelegramID != 0 {
		telegram.RegisterBotCommands(ctx, bot, adminService, logger.For("commands"))
		go bot.Start()
		defer bot.Stop()
		mainLogger.Info("Admin command handlers registered")
	}

	if dispatcher.Dispatch(ctx, app.FormatStartupMessage(cfg.ServiceName, cfg.LiveSMSURL, time.Now(), loc)) {
		mainLogger.Info("Startup message sent to Telegram")
	}

	monitor := app.NewMonitor(sessions, detector, page, otpService, app.MonitorConfig{
		PollInterval:         cfg.PollInterval,
		SessionCheckInterval: cfg.SessionCheckInterval,
		ErrorBackoff:         cfg.ErrorBackoff,
	}, logger.For("monitor"))

	mainLogger.Info("Application setup complete. Monitoring is starting...")
	err = monitor.Run(ctx)
	mainLogger.Info("Shutting down application...")
	return err
}

func openDedupRepository(ctx context.Context, cfg *config.AppConfig) (otp.Repository, func(), error) {
	if cfg.DatabaseURL == "" {
		repo := idb.NewFileDedupRepository(cfg.DuplicatesFile, cfg.DedupMaxEntries, logger.For("dedup"))
		return repo, func() {}, nil
	}

	db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to database: %w", err)
	}
	if err := idb.EnsureDedupSchema(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	logger.For("dedup").Info("Using Postgres dedup store")
	return idb.NewPostgresDedupRepository(db, cfg.DedupMaxEntries), func() { db.Close() }, nil
}
