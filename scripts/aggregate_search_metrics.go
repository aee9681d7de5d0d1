package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/yungbote/patternlens-backend/internal/data/db"
	"github.com/yungbote/patternlens-backend/internal/data/repos"
	"github.com/yungbote/patternlens-backend/internal/modules/search"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

type metricsReport struct {
	Window      string                  `json:"window"`
	GeneratedAt time.Time               `json:"generated_at"`
	Summary     search.AnalyticsSummary `json:"summary"`
}

// usage: go run ./scripts/aggregate_search_metrics.go [window] [limit] [out.json]
func main() {
	window := 7 * 24 * time.Hour
	limit := 5000
	if len(os.Args) > 1 {
		d, err := time.ParseDuration(os.Args[1])
		if err != nil {
			exitf("parse window: %v", err)
		}
		window = d
	}
	if len(os.Args) > 2 {
		n, err := strconv.Atoi(os.Args[2])
		if err != nil || n <= 0 {
			exitf("invalid limit %q", os.Args[2])
		}
		limit = n
	}

	log, err := logger.New("production")
	if err != nil {
		exitf("init logger: %v", err)
	}
	defer log.Sync()

	pg, err := db.NewPostgresService(log)
	if err != nil {
		exitf("init postgres: %v", err)
	}
	defer pg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	events, err := repos.NewSearchEventRepo(pg.DB(), log).ListSince(ctx, nil, time.Now().Add(-window), limit)
	if err != nil {
		exitf("list search events: %v", err)
	}

	report := metricsReport{
		Window:      window.String(),
		GeneratedAt: time.Now().UTC(),
		Summary:     search.Summarize(events, 20),
	}
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		exitf("marshal report: %v", err)
	}
	if len(os.Args) > 3 {
		if err := os.WriteFile(os.Args[3], append(out, '\n'), 0o644); err != nil {
			exitf("write report: %v", err)
		}
		return
	}
	fmt.Println(string(out))
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
