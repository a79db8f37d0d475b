package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/avoran/gramstream/internal/adapters/httpapi"
	"github.com/avoran/gramstream/internal/adapters/media"
	"github.com/avoran/gramstream/internal/adapters/mtproto"
	"github.com/avoran/gramstream/internal/adapters/rtc"
	"github.com/avoran/gramstream/internal/app"
	"github.com/avoran/gramstream/internal/config"
	"github.com/avoran/gramstream/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	gw, err := mtproto.Dial(ctx, cfg.Gateway)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect gateway")
	}
	defer gw.Close()

	newTransport := func() (core.MediaTransport, error) {
		return rtc.NewTransport(rtc.DefaultConfig())
	}
	newSource := func() (core.MediaSource, error) {
		if cfg.Media.Source == "rtp" {
			return media.NewRTPSource(), nil
		}
		return media.NewOggSource(cfg.Media.SampleRate, cfg.Media.Channels), nil
	}
	var policy app.FinishPolicy = app.StayPolicy{}
	if cfg.OnFinish == "leave" {
		policy = app.LeavePolicy{}
	}

	eng := app.NewStreamer(gw, newTransport, newSource, policy)

	r := httpapi.SetupRouter(cfg, eng)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("gramstream started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	eng.Close()
	log.Info().Msg("Exited gracefully")
}
