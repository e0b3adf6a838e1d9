package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"benefit-scraper/canonical"
	"benefit-scraper/config"
	"benefit-scraper/models"
	"benefit-scraper/ocr"
	"benefit-scraper/scraper/labancaria"
	"benefit-scraper/services"
	"benefit-scraper/storage"
	"benefit-scraper/utils"
)

type options struct {
	ocr         bool
	max         int
	dryRun      bool
	collection  string
	keepMissing bool
	input       string
	output      string
	report      string
	export      string
}

func main() {
	cfg := config.Load()

	var opts options
	flag.BoolVar(&opts.ocr, "ocr", cfg.OCREnabled, "run OCR on flyer images when text evidence is weak")
	flag.IntVar(&opts.max, "max", 0, "maximum number of listings to scrape (0 = no limit)")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "plan the sync without writing records or schema to the store")
	flag.StringVar(&opts.collection, "collection", cfg.Collection, "target collection (table) name")
	flag.BoolVar(&opts.keepMissing, "keep-missing", false, "do not prune records missing from this run")
	flag.StringVar(&opts.input, "input", "", "read ListingSignals from a JSON file instead of scraping")
	flag.StringVar(&opts.output, "output", "", "write the canonical listings to a JSON file")
	flag.StringVar(&opts.report, "report", "", "write an xlsx summary report")
	flag.StringVar(&opts.export, "export", "", "S3 object key for the canonical snapshot")
	flag.Parse()

	logger := utils.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, logger); err != nil {
		logger.Error("%v", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, logger *utils.Logger) error {
	logger.Info("=== Benefit Scraping System starting ===")
	logger.Info("Config: pages %d | concurrency %d | rate %dms | store %s/%s | ocr %v",
		cfg.PagesToScrape, cfg.MaxConcurrency, cfg.RateLimitMs, cfg.StoreDriver, opts.collection, opts.ocr)

	// The store is opened first so a misconfiguration aborts before any write.
	// Dry runs never touch the schema.
	openStore := storage.OpenSQLStore
	if opts.dryRun {
		openStore = storage.OpenSQLStoreReadOnly
	}
	store, err := openStore(ctx, cfg.StoreDriver, cfg.StoreDSN(), opts.collection, cfg.WriteBatchSize,
		&utils.RetryConfig{MaxAttempts: cfg.MaxRetries, BaseDelay: time.Second, Logger: logger})
	if err != nil {
		if cfg.StoreDriver == "postgres" {
			logger.Error("Make sure Docker is running: docker compose up -d")
		}
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	signals, err := loadSignals(ctx, cfg, opts, logger)
	if err != nil {
		return err
	}
	if len(signals) == 0 {
		return fmt.Errorf("no listings were scraped")
	}

	if err := writeRaw(cfg.RawCSVPath, signals); err != nil {
		logger.Warn("CSV write failed: %v", err)
	} else {
		logger.Info("Raw signals saved to %s", cfg.RawCSVPath)
	}

	pipeOpts := services.PipelineOptions{MaxOCRImages: cfg.OCRMaxImages, Workers: cfg.ClassifyWorkers}
	if opts.ocr {
		pipeOpts.Recognizer = ocr.NewCache(ocr.NewHTTPRecognizer(cfg.OCREndpoint, cfg.OCRLang, cfg.OCRTimeout, cfg.OCRRPS))
	}
	classified, procErr := services.NewPipeline(logger, pipeOpts).Process(ctx, signals)
	if procErr != nil {
		// Partial results are still exported but never synced.
		logger.Warn("Classification interrupted: %v", procErr)
	}

	canon := canonical.Options{StripTrackingOnly: cfg.StripTrackingOnly}
	listings := services.NewReconciler(logger, cfg.Provenance, canon).Reconcile(classified)
	if len(listings) == 0 {
		return fmt.Errorf("all listings were dropped during reconciliation")
	}

	if procErr == nil {
		runID := uuid.NewString()
		syncer := services.NewSyncService(store, logger, services.SyncOptions{
			Provenance:  cfg.Provenance,
			DryRun:      opts.dryRun,
			KeepMissing: opts.keepMissing,
			Canonical:   canon,
		})
		if _, err := syncer.Sync(ctx, listings, runID); err != nil {
			return fmt.Errorf("sync: %w", err)
		}
		logger.Info("Run %s stored in %s (collection: %s)", runID, cfg.StoreDriver, opts.collection)
	}

	if opts.output != "" {
		if err := storage.WriteJSONFile(opts.output, listings); err != nil {
			logger.Error("JSON export failed: %v", err)
		} else {
			logger.Info("Canonical listings written to %s", opts.output)
		}
	}

	if opts.export != "" {
		if err := exportSnapshot(ctx, cfg, opts.export, listings); err != nil {
			logger.Error("S3 export failed: %v", err)
		} else {
			logger.Info("Snapshot uploaded to s3://%s/%s", cfg.ExportS3Bucket, opts.export)
		}
	}

	report := reportSource(ctx, store, listings, opts.dryRun, logger)
	insightSvc := services.NewInsightService(logger)
	summary := insightSvc.Generate(report)
	insightSvc.Print(summary)
	if opts.report != "" {
		if err := insightSvc.WriteXLSX(opts.report, summary); err != nil {
			logger.Error("Report write failed: %v", err)
		} else {
			logger.Info("Summary report written to %s", opts.report)
		}
	}
	return nil
}

// loadSignals reads signals from -input when given, otherwise scrapes the site.
func loadSignals(ctx context.Context, cfg *config.Config, opts options, logger *utils.Logger) ([]*models.ListingSignals, error) {
	if opts.input != "" {
		signals, err := storage.ReadSignalsFile(opts.input)
		if err != nil {
			return nil, err
		}
		logger.Info("Loaded %d listings from %s", len(signals), opts.input)
		if opts.max > 0 && len(signals) > opts.max {
			signals = signals[:opts.max]
		}
		return signals, nil
	}

	var fetcher labancaria.Fetcher
	if cfg.ScraperMode == "http" {
		fetcher = labancaria.NewHTTPFetcher(30 * time.Second)
	} else {
		bf, err := labancaria.NewBrowserFetcher(cfg.ChromeBin, 60*time.Second)
		if err != nil {
			return nil, err
		}
		fetcher = bf
	}
	defer fetcher.Close()

	signals, err := labancaria.New(cfg, logger, fetcher, opts.max).Scrape(ctx)
	if err != nil {
		if len(signals) == 0 {
			return nil, fmt.Errorf("scrape failed: %w", err)
		}
		logger.Warn("Scrape interrupted, continuing with %d listings: %v", len(signals), err)
	}
	return signals, nil
}

func writeRaw(path string, signals []*models.ListingSignals) error {
	w, err := storage.NewCSVWriter(path)
	if err != nil {
		return err
	}
	defer w.Close()
	return w.WriteRaw(signals)
}

func exportSnapshot(ctx context.Context, cfg *config.Config, key string, listings []*models.CanonicalListing) error {
	exporter, err := storage.NewS3Exporter(ctx, storage.S3Config{
		Bucket:    cfg.ExportS3Bucket,
		Region:    cfg.ExportS3Region,
		Endpoint:  cfg.ExportS3Endpoint,
		AccessKey: cfg.AWSAccessKeyID,
		SecretKey: cfg.AWSSecretAccessKey,
	})
	if err != nil {
		return err
	}
	return exporter.Export(ctx, key, listings)
}

// reportSource prefers the stored collection so the summary reflects
// records kept from earlier runs.
func reportSource(ctx context.Context, store storage.ListingStore, listings []*models.CanonicalListing, dryRun bool, logger *utils.Logger) []*models.CanonicalListing {
	if dryRun {
		return listings
	}
	stored, err := store.FetchAll(ctx)
	if err != nil {
		logger.Error("Failed to fetch listings from store for insights: %v", err)
		return listings
	}
	return stored
}
