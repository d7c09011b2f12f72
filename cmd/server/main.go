package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"campaign-console/internal/api"
	"campaign-console/internal/campaign"
	"campaign-console/internal/config"
	"campaign-console/internal/contacts"
	"campaign-console/internal/database"
	"campaign-console/internal/metrics"
	"campaign-console/internal/sms"
	"campaign-console/internal/vapi"
	"campaign-console/internal/voice"
	"campaign-console/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.InitGorm(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open session store", zap.Error(err))
	}
	history := database.NewHistory(db)

	m := metrics.New()
	if err := m.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Fatal("Failed to register metrics", zap.Error(err))
	}

	hub := ws.NewHub(logger)
	go hub.Run(ctx)

	sender := sms.NewSender(cfg)
	if missing := cfg.MissingSMS(); len(missing) > 0 {
		logger.Warn("SMS capability unavailable", zap.Strings("missing", missing))
	}
	sequencer := campaign.NewSequencer(logger,
		campaign.WithDelay(cfg.SMSDelay),
		campaign.WithPublisher(hub),
		campaign.WithRecorder(history),
		campaign.WithMetrics(m),
	)

	if missing := cfg.MissingVoice(); len(missing) > 0 {
		logger.Warn("Voice capability unavailable", zap.Strings("missing", missing))
	}
	vapiClient := vapi.NewClient(cfg)
	callOpts := []voice.CallOption{
		voice.WithPollInterval(cfg.VoicePollInterval),
		voice.WithTimeout(cfg.VoiceCallTimeout),
		voice.WithCountryCode(cfg.DefaultCountryCode),
	}
	voiceCampaign := voice.NewCampaign(vapiClient, logger,
		voice.WithDelay(cfg.VoiceCallDelay),
		voice.WithCallOptions(callOpts...),
		voice.WithResultTimeout(cfg.VoiceCallTimeout+10*time.Second),
		voice.WithPublisher(hub),
		voice.WithRecorder(history),
		voice.WithMetrics(m),
	)

	handlers := api.NewHandlers(ctx, api.Deps{
		Config:    cfg,
		Log:       logger,
		Store:     contacts.NewStore(),
		Sender:    sender,
		Sequencer: sequencer,
		Vapi:      vapiClient,
		Voice:     voiceCampaign,
		CallOpts:  callOpts,
		History:   history,
		Hub:       hub,
		Metrics:   m,
	})

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.NewRouter(handlers, hub, logger),
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Port), zap.String("sms_provider", sender.Name()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to run server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	handlers.Shutdown(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
