package main

import (
	"context"
	"log"

	"github.com/rawblock/scam-investigator/internal/api"
	"github.com/rawblock/scam-investigator/internal/config"
	"github.com/rawblock/scam-investigator/internal/db"
	"github.com/rawblock/scam-investigator/internal/events"
	"github.com/rawblock/scam-investigator/internal/evidence"
	"github.com/rawblock/scam-investigator/internal/investigator"
	"github.com/rawblock/scam-investigator/internal/llm"
)

func main() {
	log.Println("Starting Scam Site Investigator engine...")

	settings, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	ctx := context.Background()

	store, err := openStore(ctx, settings)
	if err != nil {
		log.Fatalf("FATAL: scan store unavailable: %v", err)
	}
	defer store.Close()

	storage, err := newStorage(ctx, settings)
	if err != nil {
		log.Fatalf("FATAL: evidence storage unavailable: %v", err)
	}

	factory := llm.NewFactory(llm.FactoryConfig{
		Provider:    settings.LLM.Provider,
		APIKey:      settings.LLM.APIKey,
		BaseURL:     settings.LLM.BaseURL,
		Model:       settings.LLM.Model,
		CheapModel:  settings.LLM.CheapModel,
		VisionModel: settings.LLM.VisionModel,
		OllamaURL:   settings.LLM.OllamaURL,
	})

	orch := investigator.New(settings, store, factory, storage)

	hub := events.NewHub()
	go hub.Run()

	r := api.SetupRouter(settings, store, orch, hub, storage)

	log.Printf("Engine running on :%s (mode: %s, store: %s, evidence: %s)",
		settings.Port, settings.Mode, settings.Store.Backend, settings.Evidence.StorageBackend)
	if err := r.Run(":" + settings.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// openStore connects the configured scan store and applies the schema.
func openStore(ctx context.Context, settings *config.Settings) (db.Store, error) {
	var store db.Store
	var err error
	switch settings.Store.Backend {
	case "cloudsql":
		store, err = db.Connect(ctx, settings.Store.PostgresDSN)
	default:
		store, err = db.OpenSQLite(settings.Store.SQLitePath)
	}
	if err != nil {
		return nil, err
	}
	if err := store.InitSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func newStorage(ctx context.Context, settings *config.Settings) (evidence.Storage, error) {
	if settings.Evidence.StorageBackend == "gcs" {
		return evidence.NewGCSStorage(ctx, settings.Evidence.GCSBucket, settings.Evidence.GCSPrefix)
	}
	return evidence.NewLocalStorage(settings.Evidence.OutputDir)
}
