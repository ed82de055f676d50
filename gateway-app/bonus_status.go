package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/novunt/client-core/gateway-app/config"
	"github.com/novunt/client-core/x/backend"
	"github.com/novunt/client-core/x/bonus"
)

// printBonusStatus fetches one snapshot through a Tracker, so the printed
// progress uses the same step fallback and ordering as the gateway.
func printBonusStatus(ctx context.Context, w io.Writer, cfg *config.Config, log zerolog.Logger, token string) error {
	client, err := backend.NewClient(cfg.Backend.BaseURL, &http.Client{Timeout: cfg.Backend.Timeout}, log)
	if err != nil {
		return fmt.Errorf("failed to create backend client: %w", err)
	}

	trCfg := bonus.DefaultTrackerConfig(log)
	trCfg.Steps = cfg.BonusSteps()
	tracker := bonus.NewTracker(trCfg)

	seq := tracker.Begin()
	snap, err := client.FetchBonusStatus(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to fetch bonus status: %w", err)
	}
	tracker.Apply(seq, snap)

	progress := tracker.Progress()
	if snap.PeriodID != "" {
		fmt.Fprintf(w, "Period:     %s\n", snap.PeriodID)
	}
	fmt.Fprintf(w, "Completion: %d%%\n", progress.CompletionPercent())
	for _, step := range progress.Steps() {
		mark := " "
		if progress.IsCompleted(step) {
			mark = "x"
		}
		fmt.Fprintf(w, "  [%s] %s\n", mark, step.Label())
	}
	if next, ok := progress.NextIncompleteStep(); ok {
		fmt.Fprintf(w, "Next step:  %s\n", next.Label())
	} else if progress.AllRequirementsMet() {
		fmt.Fprintln(w, "All requirements met")
	}
	return nil
}
