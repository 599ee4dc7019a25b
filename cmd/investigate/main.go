// Command investigate is the analyst CLI: single-URL and batch
// investigations, scan store queries and wallet tooling.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/rawblock/scam-investigator/internal/config"
	"github.com/rawblock/scam-investigator/internal/db"
	"github.com/rawblock/scam-investigator/internal/evidence"
	"github.com/rawblock/scam-investigator/internal/investigator"
	"github.com/rawblock/scam-investigator/internal/llm"
)

// errUsage signals exit code 2 without an extra error line.
var errUsage = errors.New("usage")

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "url":
		err = cmdURL(os.Args[2:])
	case "batch":
		err = cmdBatch(os.Args[2:])
	case "list":
		err = cmdList(os.Args[2:])
	case "show":
		err = cmdShow(os.Args[2:])
	case "wallet":
		err = cmdWallet(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err != nil {
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: investigate <command> [flags]

Commands:
  url <url>       Investigate a single URL
  batch <file>    Investigate every URL in a batch file
  list            List stored investigations
  show <id>       Show one investigation (id prefix accepted)
  wallet          Wallet tooling (validate, scan, patterns, allowlist, export)

Run 'investigate <command> -h' for command flags.
`)
}

// loadSettings resolves config once per invocation.
func loadSettings() (*config.Settings, error) {
	return config.Load()
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

// newOrchestrator wires the full pipeline for url/batch commands.
func newOrchestrator(ctx context.Context, settings *config.Settings) (*investigator.Orchestrator, db.Store, error) {
	store, err := openStore(ctx, settings)
	if err != nil {
		return nil, nil, fmt.Errorf("scan store unavailable: %w", err)
	}

	var storage evidence.Storage
	if settings.Evidence.StorageBackend == "gcs" {
		storage, err = evidence.NewGCSStorage(ctx, settings.Evidence.GCSBucket, settings.Evidence.GCSPrefix)
	} else {
		storage, err = evidence.NewLocalStorage(settings.Evidence.OutputDir)
	}
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("evidence storage unavailable: %w", err)
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

	return investigator.New(settings, store, factory, storage), store, nil
}
