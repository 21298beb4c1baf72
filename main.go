package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"kisan-ai-pipeline/internal/agents"
	"kisan-ai-pipeline/internal/config"
	"kisan-ai-pipeline/internal/handlers"
	"kisan-ai-pipeline/internal/pkg/logger"
	"kisan-ai-pipeline/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	gemini, err := services.NewGeminiService(cfg.Gemini, log)
	if err != nil {
		log.WithError(err).Error("failed to initialize Gemini service")
		os.Exit(1)
	}

	sessions, err := services.NewSessionService(cfg.Redis, cfg.Session, log)
	if err != nil {
		log.WithError(err).Error("failed to initialize session service")
		os.Exit(1)
	}

	// The retrieval backend is optional: when it cannot come up, scheme
	// queries get the manager's "not available" answer instead.
	var vector *services.VectorService
	if cfg.Vector.Enabled {
		vector, err = services.NewVectorService(cfg.Vector, gemini, sessions.Client(), log)
		if err != nil {
			log.WithError(err).Warn("vector store unavailable, scheme retrieval disabled")
			vector = nil
		}
	}

	translator := agents.NewTranslator(gemini, log)
	stt := agents.NewSpeechToText(gemini, log)
	detection := agents.NewDiseaseDetection(gemini, log)
	analysis := agents.NewDiseaseAnalysis(gemini, log)
	general := agents.NewGeneralAdvice(gemini, log)
	prices := agents.NewPriceLookup(gemini, log)

	var schemes *agents.SchemeRetrieval
	var retrieval agents.HealthChecker
	if vector != nil {
		schemes = agents.NewSchemeRetrieval(gemini, vector, cfg.Vector.TopK, log)
		retrieval = vector
	}

	manager := agents.NewManager(agents.ManagerDeps{
		Inference:       gemini,
		Translator:      translator,
		STT:             stt,
		Detection:       detection,
		Analysis:        analysis,
		Schemes:         schemes,
		General:         general,
		Prices:          prices,
		Sink:            sessions,
		Sessions:        sessions,
		Retrieval:       retrieval,
		DefaultLanguage: cfg.Session.DefaultLanguage,
		Logger:          log,
	})

	var ingestor handlers.SchemeIngestor
	if vector != nil {
		ingestor = vector
	}
	handler := handlers.NewAssistHandler(manager, sessions, ingestor, cfg.Admin.TokenPrefix, log)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	handler.RegisterRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server listening", "port", cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("HTTP server failed")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown failed")
	}

	if err := sessions.Close(); err != nil {
		log.WithError(err).Warn("error closing session service")
	}
	if err := gemini.Close(); err != nil {
		log.WithError(err).Warn("error closing Gemini client")
	}

	log.Info("Shutdown complete")
}
