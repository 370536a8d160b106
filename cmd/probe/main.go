package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/goccy/go-json"

	"github.com/samirrijal/florascope/internal/adapters/predictor"
	"github.com/samirrijal/florascope/internal/core/usecases"
	"github.com/samirrijal/florascope/internal/pkg/config"
	"github.com/samirrijal/florascope/internal/pkg/logging"
	"github.com/samirrijal/florascope/internal/pkg/projection"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: probe <summary|months|check>")
	}

	cfg, err := config.Load("florascope-probe")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, "text", cfg.Telemetry.ServiceName)

	client := predictor.NewClient(predictor.Config{
		URL:             cfg.Upstream.URL,
		Timeout:         cfg.Upstream.Timeout,
		BreakerFailures: cfg.Upstream.BreakerFailures,
		BreakerTimeout:  cfg.Upstream.BreakerTimeout,
	})
	svc := usecases.NewPredictionService(client, projection.NewProjector(projection.Config{
		Margin:            cfg.Projection.Margin,
		NoDataPlaceholder: cfg.Projection.NoDataPlaceholder,
	}), nil)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Upstream.Timeout+5*time.Second)
	defer cancel()

	summary, err := svc.Refresh(ctx)
	if err != nil {
		log.Fatalf("fetch %s: %v", cfg.Upstream.URL, err)
	}

	switch os.Args[1] {
	case "summary":
		printJSON(summary)
	case "months":
		printJSON(svc.Months())
	case "check":
		if err := projection.VerifyPeak(svc.Current()); err != nil {
			if errors.Is(err, projection.ErrPeakMismatch) {
				fmt.Printf("FAIL  %v\n", err)
				os.Exit(1)
			}
			log.Fatalf("check: %v", err)
		}
		fmt.Printf("OK    %d points, %d months, peak %s\n", summary.Points, summary.Months, summary.PeakMonthName)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("encode: %v", err)
	}
	fmt.Println(string(out))
}
