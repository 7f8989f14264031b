package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kalambet/electroschematic/internal/analysis"
	"github.com/kalambet/electroschematic/internal/config"
	"github.com/kalambet/electroschematic/internal/diagram"
	"github.com/kalambet/electroschematic/internal/gemini"
	"github.com/kalambet/electroschematic/internal/metrics"
	"github.com/kalambet/electroschematic/internal/pipeline"
	"github.com/kalambet/electroschematic/internal/storage"
)

// geminiTimeout bounds a single request to the generative service. Image
// generation is the slow one.
const geminiTimeout = 3 * time.Minute

// app is everything a command needs to run the pipeline in-process.
type app struct {
	cfg     config.Config
	history *storage.History
	metrics *metrics.Metrics
	orch    *pipeline.Orchestrator
}

func storageOptions(cfg config.Config) storage.Options {
	return storage.Options{
		Backend:       cfg.Storage.Backend,
		DataDir:       cfg.Storage.DataDir,
		RedisAddr:     cfg.Storage.RedisAddr,
		RedisPassword: cfg.Storage.RedisPassword,
		RedisDB:       cfg.Storage.RedisDB,
		RedisPrefix:   cfg.Storage.RedisPrefix,
		Minio: storage.MinioConfig{
			Endpoint:  cfg.Storage.MinioEndpoint,
			Region:    cfg.Storage.MinioRegion,
			Bucket:    cfg.Storage.MinioBucket,
			AccessKey: cfg.Storage.MinioAccessKey,
			SecretKey: cfg.Storage.MinioSecretKey,
			UseSSL:    cfg.Storage.MinioUseSSL,
		},
	}
}

// openHistory returns the lazily opened history store for cfg.
func openHistory(cfg config.Config) *storage.History {
	return storage.NewHistory(storage.OpenerFor(storageOptions(cfg)), storage.WithMaxItems(cfg.Storage.MaxItems))
}

// newApp wires the Gemini client, both pipeline stages, the history store
// and metrics into an orchestrator. The caller must call close.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	client, err := gemini.New(ctx, gemini.Config{
		APIKey:     cfg.Gemini.APIKey,
		BaseURL:    cfg.Gemini.BaseURL,
		HTTPClient: &http.Client{Timeout: geminiTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	history := openHistory(cfg)
	m := metrics.New()
	orch := pipeline.New(pipeline.Deps{
		Analyzer: analysis.NewAnalyzer(client, cfg.Gemini.AnalysisModel),
		Diagrams: diagram.NewGenerator(client, cfg.Gemini.ImageModel),
		History:  history,
		Metrics:  m,
	})

	return &app{cfg: cfg, history: history, metrics: m, orch: orch}, nil
}

func (a *app) close() error {
	return a.history.Close()
}
