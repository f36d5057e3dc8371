// Command ipdr-import loads an IPDR export into the dashboard database
// without going through the HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"ipdr-dashboard/internal/anomaly"
	"ipdr-dashboard/internal/config"
	"ipdr-dashboard/internal/geoip"
	"ipdr-dashboard/internal/ingest"
	"ipdr-dashboard/internal/models"
	"ipdr-dashboard/internal/pipeline"
	"ipdr-dashboard/internal/rdns"
	"ipdr-dashboard/internal/repository"
	"ipdr-dashboard/internal/service"
)

func main() {
	var (
		cfgPath       = flag.String("config", config.Path(), "path to the YAML config")
		filePath      = flag.String("file", "", "CSV file to import (.gz and .zst are decompressed)")
		user          = flag.String("user", "cli", "name recorded as the uploader")
		verbose       = flag.Bool("v", false, "log enrichment progress")
		detect        = flag.Bool("detect", false, "run anomaly detection after the import")
		contamination = flag.Float64("contamination", 0, "expected outlier fraction for -detect (default from config)")
		mapping       ingest.ColumnMapping
	)
	flag.StringVar(&mapping.SourceIP, "source-col", "", "source IP column")
	flag.StringVar(&mapping.DestinationIP, "dest-col", "", "destination IP column")
	flag.StringVar(&mapping.StartTime, "start-col", "", "session start column")
	flag.StringVar(&mapping.EndTime, "end-col", "", "session end column")
	flag.StringVar(&mapping.Bytes, "bytes-col", "", "bytes transferred column")
	flag.Parse()

	if *filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger := zap.NewNop()
	if *verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			logrus.Fatalf("Failed to create logger: %v", err)
		}
	}
	defer func() { _ = logger.Sync() }()

	db, err := repository.NewDB(cfg.Database.Type, cfg.Database.URL, logger)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logrus.Printf("Error closing database: %v", err)
		}
	}()

	logrus.Info("Applying database migrations...")
	if err := repository.MigrateDB(db, logger); err != nil {
		logrus.Fatalf("Failed to apply migrations: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx = models.WithIdentity(ctx, models.Identity{Username: *user, Authenticated: true})

	geo := geoip.NewClient(
		geoip.WithBaseURL(cfg.GeoIP.BaseURL),
		geoip.WithToken(cfg.GeoIP.Token),
		geoip.WithTimeout(cfg.GeoIPTimeout()),
	)
	names := rdns.NewClient(nil, cfg.DNSTimeout())

	logRepo := repository.NewIPDRLogRepository(db, logger)
	ingestService := service.NewIngestService(
		pipeline.New(geo, names, logger, nil),
		logRepo, repository.NewUploadRepository(db, logger), nil, logger,
	)

	f, err := os.Open(*filePath)
	if err != nil {
		logrus.Fatalf("Failed to open %s: %v", *filePath, err)
	}
	defer f.Close()

	logrus.Infof("Importing %s...", *filePath)
	res, err := ingestService.Ingest(ctx, filepath.Base(*filePath), f, mapping)
	if err != nil {
		var missing *ingest.MissingColumnsError
		if errors.As(err, &missing) {
			logrus.WithField("missing", missing.Columns).Fatal("Input is missing required columns")
		}
		logrus.Fatalf("Import failed: %v", err)
	}
	logrus.WithFields(logrus.Fields{
		"upload_id":  res.Upload.ID,
		"rows":       res.Upload.RowCount,
		"users":      res.Users,
		"geo_calls":  res.Stats.GeoCalls,
		"name_calls": res.Stats.NameCalls,
	}).Info("Import completed.")

	if !*detect {
		return
	}

	scorer := anomaly.NewScorer(
		anomaly.NewIsolationForest(cfg.Anomaly.Trees, cfg.Anomaly.SampleSize),
		logger, nil,
	)
	detector := service.NewAnomalyService(logRepo, scorer, nil, cfg.Anomaly.DefaultContamination, logger)
	out, err := detector.Detect(ctx, *contamination)
	if err != nil {
		logrus.Fatalf("Anomaly detection failed: %v", err)
	}
	logrus.WithFields(logrus.Fields{
		"scored":   out.Scored,
		"excluded": out.Excluded,
		"flagged":  out.Flagged,
	}).Info("Anomaly detection completed.")
	for _, a := range out.Anomalies {
		logrus.WithFields(logrus.Fields{
			"source_ip":        a.SourceIP,
			"session_duration": a.SessionDuration,
			"data_usage_mb":    a.DataUsageMB,
			"hour_of_day":      a.HourOfDay,
		}).Warn("Anomalous session")
	}
}
