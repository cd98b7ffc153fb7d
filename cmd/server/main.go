package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"wakehub/internal/api"
	"wakehub/internal/app"
	"wakehub/internal/config"
	"wakehub/internal/metrics"
	"wakehub/internal/model"
	"wakehub/internal/registry"
	"wakehub/internal/sched"
	"wakehub/internal/settings"
	"wakehub/internal/store"
	"wakehub/internal/wake"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	st, err := store.Open(cfg.DBPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer st.Close()

	if err := st.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}
	log.Info().Str("path", cfg.DBPath).Msg("store ready")

	set := settings.New(st)
	if err := set.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("load settings")
	}

	m := model.New(st, log)

	mets := metrics.New()
	loop := sched.NewLoop(m, log, sched.WithHooks(app.NewLoopHooks(st, mets, log)))

	reg := registry.New()
	reg.RegisterBuiltins(log, cfg.WebhookURL, nil)

	wk := wake.New(set, m, loop, log, wake.WithPostObserver(func(outcome string) {
		mets.WakePosts.WithLabelValues(outcome).Inc()
	}))

	loop.Start()
	defer loop.Stop()

	notifyAhead := time.Duration(cfg.ReplayNotifyMinutes) * time.Minute
	if err := app.Replay(ctx, st, m, loop, reg, notifyAhead, sched.RealClock(), log); err != nil {
		log.Fatal().Err(err).Msg("replay persisted state")
	}

	if err := wk.ScheduleToday(ctx); err != nil {
		log.Error().Err(err).Msg("schedule today's wake")
	}
	if err := wk.ScheduleDailyMaintenance(ctx); err != nil {
		log.Error().Err(err).Msg("schedule daily maintenance")
	}

	deps := app.Deps{
		Cfg:      cfg,
		Log:      log,
		Store:    st,
		Settings: set,
		Model:    m,
		Loop:     loop,
		Registry: reg,
		Wake:     wk,
		Metrics:  mets,
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.Addr).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server")
	}
}
