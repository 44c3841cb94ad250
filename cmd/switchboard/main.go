// Command switchboard runs the live call orchestration server: a WebSocket
// media-stream endpoint for the telephony provider, a call status webhook,
// and a health endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/switchboard-ai/switchboard/internal/config"
	"github.com/switchboard-ai/switchboard/internal/log"
	"github.com/switchboard-ai/switchboard/internal/store"
	"github.com/switchboard-ai/switchboard/pkg/call"
	"github.com/switchboard-ai/switchboard/pkg/dialogue"
	"github.com/switchboard-ai/switchboard/pkg/guard"
	"github.com/switchboard-ai/switchboard/pkg/stt"
	"github.com/switchboard-ai/switchboard/pkg/tts"
)

func main() {
	if err := run(); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	// Local development convenience; missing file is fine.
	godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	log.Init(cfg.Server.LogLevel)
	logger := log.L()

	guards := guard.NewRegistry(guard.Options{
		Timeout:     cfg.Guard.RequestTimeout,
		MaxRetries:  cfg.Guard.MaxRetries,
		BackoffBase: cfg.Guard.BackoffBase,
		TripAfter:   cfg.Guard.BreakerTrip,
		Cooloff:     cfg.Guard.BreakerCooloff,
		Logger:      logger,
	})

	transcriber, err := stt.NewDeepgram(cfg.STT.APIKey, stt.WithDeepgramLogger(logger))
	if err != nil {
		return fmt.Errorf("stt: %w", err)
	}
	defer transcriber.Close()

	responder, err := dialogue.NewOpenAI(cfg.Dialogue.APIKey,
		dialogue.WithOpenAIModel(cfg.Dialogue.Model),
		dialogue.WithOpenAITemperature(float32(cfg.Dialogue.Temperature)),
		dialogue.WithOpenAILogger(logger),
	)
	if err != nil {
		return fmt.Errorf("dialogue: %w", err)
	}
	defer responder.Close()

	var knowledge dialogue.Knowledge
	if cfg.Knowledge.BaseURL != "" {
		knowledge = dialogue.NewHTTPKnowledge(cfg.Knowledge.BaseURL, cfg.Knowledge.APIKey,
			dialogue.WithKnowledgeLogger(logger))
	}

	orchestrator := dialogue.NewOrchestrator(responder, knowledge, guards.Dialogue, dialogue.OrchestratorConfig{
		Persona:       cfg.Dialogue.Persona,
		Greeting:      cfg.Call.Greeting,
		HistoryWindow: cfg.Call.HistoryWindow,
		WordCap:       cfg.Call.WordCap,
	}, logger)

	synth, err := buildSynthesizer(cfg, logger)
	if err != nil {
		return fmt.Errorf("tts: %w", err)
	}
	defer synth.Close()

	recorder, err := store.Open(cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer recorder.Close()

	handler := &call.Handler{
		Registry:     call.NewRegistry(),
		Transcriber:  transcriber,
		Orchestrator: orchestrator,
		Synth:        synth,
		Guards:       guards,
		Recorder:     recorder,
		Config: call.Config{
			SilenceThreshold: cfg.Call.SilenceThreshold,
			MaxIdle:          cfg.Call.MaxIdle,
			MaxDuration:      cfg.Call.MaxDuration,
			STTModel:         cfg.STT.Model,
			STTLanguage:      cfg.STT.Language,
		},
		Logger: logger,
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
	})

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/media", websocket.New(handler.Media))
	app.Post("/webhooks/status", handler.StatusWebhook)
	app.Get("/healthz", handler.Health)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "port", cfg.Server.Port)
		return app.Listen(fmt.Sprintf(":%d", cfg.Server.Port))
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	return g.Wait()
}

// buildSynthesizer assembles the TTS fallback chain from whatever keys are
// configured. ElevenLabs leads when available; OpenAI backs it up.
func buildSynthesizer(cfg *config.Config, logger *slog.Logger) (tts.Synthesizer, error) {
	var synths []tts.Synthesizer

	if cfg.TTS.ElevenLabsKey != "" {
		el, err := tts.NewElevenLabs(
			tts.WithAPIKey(cfg.TTS.ElevenLabsKey),
			tts.WithVoice(cfg.TTS.VoiceID),
			tts.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		synths = append(synths, el)
	}

	if cfg.TTS.OpenAIKey != "" {
		oa, err := tts.NewOpenAI(
			tts.WithAPIKey(cfg.TTS.OpenAIKey),
			tts.WithVoice(cfg.TTS.OpenAIVoice),
			tts.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		synths = append(synths, oa)
	}

	return tts.NewChain(logger, synths...)
}
