package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
	"github.com/stake-plus/bandgov/src/api/config"
	"github.com/stake-plus/bandgov/src/api/webserver"
	"github.com/stake-plus/bandgov/src/governance/audit"
	"github.com/stake-plus/bandgov/src/governance/effects"
	"github.com/stake-plus/bandgov/src/governance/effects/finance"
	"github.com/stake-plus/bandgov/src/governance/members"
	"github.com/stake-plus/bandgov/src/governance/notify"
	"github.com/stake-plus/bandgov/src/governance/proposals"
	"github.com/stake-plus/bandgov/src/logging"
	"github.com/stake-plus/bandgov/src/shared/data"
	"github.com/stake-plus/bandgov/src/shared/gov"
	"gorm.io/gorm"
)

func buildRegistry() (*effects.Registry, error) {
	reg := effects.NewRegistry()
	if err := finance.Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

func buildAnnouncers(ctx context.Context, cfg config.Config, db *gorm.DB, settings *data.Settings, logger *log.Logger) []notify.Announcer {
	if cfg.Notify.DiscordToken == "" {
		return nil
	}
	dg, err := discordgo.New("Bot " + cfg.Notify.DiscordToken)
	if err != nil {
		logger.Error("discord session failed, band announcements disabled", "err", err)
		return nil
	}
	dir, err := gov.NewBandDirectory(db)
	if err != nil {
		logger.Error("loading band directory failed, band announcements disabled", "err", err)
		return nil
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := dir.Reload(); err != nil {
					logger.Warn("band directory reload failed", "err", err)
				}
				if err := settings.Reload(ctx); err != nil {
					logger.Warn("settings reload failed", "err", err)
				}
			}
		}
	}()

	return []notify.Announcer{notify.NewDiscordAnnouncer(dg, dir, settings.Get("public_url", cfg.PublicURL))}
}

func serve(ctx context.Context, srv *http.Server, cfg config.Config, logger *log.Logger) error {
	if cfg.TLSCertFile == "" {
		return srv.ListenAndServe()
	}
	watcher, err := webserver.NewCertWatcher(ctx, cfg.TLSCertFile, cfg.TLSKeyFile, 5*time.Minute, logger)
	if err != nil {
		return err
	}
	srv.TLSConfig = watcher.TLSConfig()
	return srv.ListenAndServeTLS("", "")
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration", "err", err)
	}
	logger := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := data.OpenMySQL(cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("database unavailable", "err", err)
	}
	if err := data.Migrate(db); err != nil {
		logger.Fatal("migrate failed", "err", err)
	}
	settings := data.NewSettings(db)
	if err := settings.Reload(ctx); err != nil {
		logger.Warn("loading settings failed", "err", err)
	}
	rdb, err := data.OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis unavailable", "err", err)
	}
	defer rdb.Close()

	reg, err := buildRegistry()
	if err != nil {
		logger.Fatal("registering effect handlers failed", "err", err)
	}
	validator := effects.NewValidator(reg)
	svc := proposals.NewService(proposals.Deps{
		DB:        db,
		Validator: validator,
		Executor:  effects.NewExecutor(db, reg, logger),
		Reviewers: members.NewReviewers(db),
		Standing:  members.NewStanding(db),
		Audit:     audit.NewStore(db),
		Logger:    logger,
		Policy: proposals.Policy{
			MaxSubmissions:     cfg.Governance.MaxSubmissions,
			MinRejectReasonLen: cfg.Governance.MinRejectReasonLen,
		},
	})

	dispatcher := notify.NewDispatcher(
		notify.NewRedisNotifier(rdb, cfg.Notify.Stream),
		logger,
		cfg.Notify.Concurrency,
		buildAnnouncers(ctx, cfg, db, settings, logger)...,
	)

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: webserver.New(ctx, cfg, webserver.Deps{
			DB:         db,
			Service:    svc,
			Validator:  validator,
			Dispatcher: dispatcher,
			Logger:     logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := serve(ctx, srv, cfg, logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", "err", err)
		}
	}()
	logger.Info("band governance API listening", "port", cfg.Port, "tls", cfg.TLSCertFile != "", "effects", reg.Types())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	cancel()

	shutCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Warn("shutdown", "err", err)
	}
}
