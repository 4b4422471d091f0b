// Command audit checks stored recommendations against the extraction
// cascade and optionally rewrites the ones that drifted.
//
//	audit -mode=check    report divergent sessions without writing
//	audit -mode=repair   rewrite every divergent recommendation
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"log/slog"

	_ "github.com/lib/pq"

	"github.com/tradecouncil/tradecouncil/internal/auditor"
	"github.com/tradecouncil/tradecouncil/internal/config"
	"github.com/tradecouncil/tradecouncil/internal/database"
	"github.com/tradecouncil/tradecouncil/internal/logging"
)

func main() {
	mode := flag.String("mode", "check", "check or repair")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall run timeout")
	flag.Parse()

	if *mode != "check" && *mode != "repair" {
		fmt.Fprintf(os.Stderr, "unknown mode %q: expected check or repair\n", *mode)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	if cfg.Database.URL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.Database.URL

	db, err := database.Connect(ctx, dbCfg)
	if err != nil {
		logger.Error("failed to connect to report store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := database.NewPostgresReportRepository(db)
	aud := auditor.New(logger)

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	switch *mode {
	case "check":
		findings, err := aud.Audit(ctx, store)
		if err != nil {
			logger.Error("audit failed", "error", err)
			os.Exit(1)
		}
		if err := encoder.Encode(map[string]any{
			"divergent": len(findings),
			"findings":  findings,
		}); err != nil {
			logger.Error("failed to encode findings", "error", err)
			os.Exit(1)
		}
		// Non-zero exit on drift so cron wrappers can alert.
		if len(findings) > 0 {
			os.Exit(3)
		}
	case "repair":
		result, err := aud.RepairAll(ctx, store)
		if err != nil {
			logger.Error("repair failed", "error", err)
			os.Exit(1)
		}
		if err := encoder.Encode(result); err != nil {
			logger.Error("failed to encode result", "error", err)
			os.Exit(1)
		}
		if len(result.Failures) > 0 {
			os.Exit(3)
		}
	}
}
