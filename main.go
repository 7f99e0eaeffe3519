package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/pitchcast/pitch-orchestrator/ai"
	"github.com/pitchcast/pitch-orchestrator/assembler"
	"github.com/pitchcast/pitch-orchestrator/assets"
	"github.com/pitchcast/pitch-orchestrator/config"
	"github.com/pitchcast/pitch-orchestrator/pipeline"
	"github.com/pitchcast/pitch-orchestrator/provider"
	_ "github.com/pitchcast/pitch-orchestrator/provider/coqui"
	_ "github.com/pitchcast/pitch-orchestrator/provider/edgetts"
	_ "github.com/pitchcast/pitch-orchestrator/provider/minimax"
	_ "github.com/pitchcast/pitch-orchestrator/provider/sadtalker"
	_ "github.com/pitchcast/pitch-orchestrator/provider/vllm"
	"github.com/pitchcast/pitch-orchestrator/scraper"
	"github.com/pitchcast/pitch-orchestrator/service"
	"github.com/pitchcast/pitch-orchestrator/service/exceptions"
	"github.com/pitchcast/pitch-orchestrator/voiceprofile"
)

const shutdownGrace = 10 * time.Second

func main() {
	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("loading config: ", err)
	}

	reporter, err := exceptions.FromDSN(cfg.SentryDSN, cfg.Env)
	if err != nil {
		logger.Fatal("initializing error reporter: ", err)
	}

	store, err := newStore(cfg)
	if err != nil {
		logger.Fatal("initializing job store: ", err)
	}

	profiles, err := voiceprofile.Open(filepath.Join(cfg.OutputDir, "voice_profiles.json"))
	if err != nil {
		logger.Fatal("opening voice profiles: ", err)
	}

	hoster, err := assets.NewHoster(cfg.Hosting)
	if err != nil {
		logger.Fatal("initializing asset hosting: ", err)
	}

	registry := provider.NewRegistry(cfg, logger)
	aiService := ai.NewService(registry, logger)
	scrape := scraper.NewClient()
	ffmpeg := assembler.New()

	runner := &pipeline.Runner{
		Store:     store,
		AI:        aiService,
		Scraper:   scrape,
		Assembler: ffmpeg,
		Hoster:    hoster,
		Profiles:  profiles,
		OutputDir: cfg.OutputDir,
		UploadDir: cfg.UploadDir,
		Log:       logger,
		Reporter:  reporter,
	}

	srv := &http.Server{
		Addr: cfg.ServerAddr,
		Handler: service.Server{
			Config:      cfg,
			AI:          aiService,
			Scraper:     scrape,
			Runner:      runner,
			Jobs:        store,
			Profiles:    profiles,
			Logger:      logger,
			ErrReporter: reporter,
		},
	}

	go func() {
		logger.WithField("addr", cfg.ServerAddr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server encountered a fatal error: ", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("shutdown: ", err)
	}
	registry.CloseAll()
}

func newStore(cfg *config.Config) (pipeline.Store, error) {
	if cfg.JobStore.Backend == "redis" {
		return pipeline.NewRedisStore(cfg.JobStore.RedisAddr, cfg.JobStore.RedisDB)
	}
	return pipeline.NewMemoryStore(), nil
}
