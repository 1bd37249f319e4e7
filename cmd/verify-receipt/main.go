package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/payment-receipts/internal/llm"
	"github.com/joseph-ayodele/payment-receipts/internal/llm/openai"
	repo "github.com/joseph-ayodele/payment-receipts/internal/repository"
	"github.com/joseph-ayodele/payment-receipts/internal/tamper"
	"github.com/joseph-ayodele/payment-receipts/internal/verification"
)

// noDuplicates is used when no database is configured.
type noDuplicates struct{}

func (noDuplicates) ReferenceExists(context.Context, string, *uuid.UUID) (bool, error) {
	return false, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if len(os.Args) < 4 {
		logger.Error("usage: verify-receipt <image> <order_total> <seller_wallet> [times]")
		os.Exit(2)
	}
	path := os.Args[1]
	total, err := decimal.NewFromString(os.Args[2])
	if err != nil {
		logger.Error("invalid order_total", "arg", os.Args[2], "error", err)
		os.Exit(2)
	}
	wallet := os.Args[3]
	times := 1
	if len(os.Args) >= 5 {
		if n, err := strconv.Atoi(os.Args[4]); err == nil && n > 0 {
			times = n
		}
	}
	if os.Getenv("OPENAI_API_KEY") == "" {
		logger.Error("OPENAI_API_KEY env var is required")
		os.Exit(2)
	}

	img, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read image", "path", path, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// duplicate checks hit the real table only when DB_URL is set
	var dupes verification.DuplicateChecker = noDuplicates{}
	if dbURL := os.Getenv("DB_URL"); dbURL != "" {
		db, err := repo.Open(ctx, repo.Config{Driver: getenv("DB_DRIVER", "postgres"), URL: dbURL, MaxConns: 2, DialTimeout: 3 * time.Second}, logger)
		if err != nil {
			logger.Error("open db", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		dupes = repo.NewReceiptRepository(db, logger)
	}

	client := openai.NewClient(openai.Config{
		Model:       getenv("OPENAI_MODEL", "gpt-4o-mini"),
		BaseURL:     os.Getenv("OPENAI_BASE_URL"),
		APIKey:      os.Getenv("OPENAI_API_KEY"),
		Temperature: 0.0,
		Timeout:     45 * time.Second,
		JSONMode:    true,
	}, logger)
	engine := verification.NewEngine(dupes, logger)
	assessment := tamper.NewHeuristic(nil, logger).Assess(img)
	imageURL := llm.ImageDataURL(img, llm.ContentTypeForPath(path))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	// Repeated runs show how stable the extraction is for one image.
	for i := 1; i <= times; i++ {
		start := time.Now()
		res, err := client.ExtractFields(ctx, llm.ExtractRequest{ImageURL: imageURL})
		if err != nil {
			logger.Error("verify.run.error", "iter", i, "error", err)
			continue
		}
		data := res.Data
		verdict, err := engine.Validate(ctx, &data, total, wallet, nil)
		if err != nil {
			logger.Error("verify.run.error", "iter", i, "error", err)
			continue
		}
		_ = enc.Encode(map[string]any{
			"iter":             i,
			"extracted":        data,
			"normalized":       res.Normalized,
			"validation":       verdict,
			"tamper":           assessment,
			"rejection_reason": verification.RejectionReason(verdict, assessment.Suspicious),
		})
		logger.Info("verify.run.ok", "iter", i, "status", verdict.OverallStatus(), "elapsed_ms", time.Since(start).Milliseconds())
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
