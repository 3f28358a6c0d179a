// Package worker runs the deferred half of the pipeline. One task record
// triggers one run: aggregate costs, recall conversation history, match a
// remediation snippet, ask the reasoning service for a narrative, persist
// the new turn, and deliver the result to the callback URL.
package worker

import (
	"context"
	"errors"
	"log/slog"

	"costbot/internal/domain"
	"costbot/internal/knowledge"
)

const (
	defaultHistoryLimit = 5

	// timeoutAdvice replaces the analysis when the invocation deadline
	// expires mid-pipeline.
	timeoutAdvice = "Cost analysis is taking longer than expected. Try again with fewer days (1-3) for faster results."
)

// CostFetcher aggregates billing data for a day window. Backend failures
// surface as a sentinel summary, never as an error.
type CostFetcher interface {
	Fetch(ctx context.Context, days int) domain.CostSummary
}

// HistoryStore is the per-user append-only interaction log.
type HistoryStore interface {
	Recent(ctx context.Context, userID string, limit int) ([]domain.Interaction, error)
	Append(ctx context.Context, userID, query, response string) error
}

// Analyzer produces narrative text from an assembled prompt. It always
// returns deliverable text, degrading internally on upstream failure.
type Analyzer interface {
	Analyze(ctx context.Context, prompt string) string
}

// Deliverer posts the finished message to the callback URL.
type Deliverer interface {
	Deliver(ctx context.Context, url, text string) error
}

// Worker orchestrates one background analysis run.
type Worker struct {
	costs        CostFetcher
	memory       HistoryStore
	llm          Analyzer
	callback     Deliverer
	historyLimit int
}

// New creates a Worker. historyLimit bounds how many prior turns feed the
// prompt.
func New(costs CostFetcher, memory HistoryStore, llm Analyzer, callback Deliverer, historyLimit int) (*Worker, error) {
	if costs == nil {
		return nil, errors.New("worker: cost fetcher must not be nil")
	}
	if memory == nil {
		return nil, errors.New("worker: history store must not be nil")
	}
	if llm == nil {
		return nil, errors.New("worker: analyzer must not be nil")
	}
	if callback == nil {
		return nil, errors.New("worker: deliverer must not be nil")
	}
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &Worker{
		costs:        costs,
		memory:       memory,
		llm:          llm,
		callback:     callback,
		historyLimit: historyLimit,
	}, nil
}

// Run executes the full pipeline for one task. Every step degrades
// gracefully: sentinel cost data, empty history, fallback analysis text,
// swallowed memory writes. Run never fails upward and always attempts
// callback delivery, even when everything upstream degraded.
func (w *Worker) Run(ctx context.Context, task domain.TaskRecord) {
	summary := w.costs.Fetch(ctx, task.Days)

	history, err := w.memory.Recent(ctx, task.UserID, w.historyLimit)
	if err != nil {
		slog.Warn("history read failed, proceeding without context", "user_id", task.UserID, "err", err)
		history = nil
	}

	snippet := knowledge.Match(summary)
	prompt := buildPrompt(summary, snippet, history, task.Query)

	analysis := w.llm.Analyze(ctx, prompt)
	if ctx.Err() != nil {
		analysis = timeoutAdvice
	}

	if task.UserID != "" {
		if err := w.memory.Append(ctx, task.UserID, task.Query, analysis); err != nil {
			slog.Warn("memory write failed, analysis already produced", "user_id", task.UserID, "err", err)
		}
	}

	// Delivery must still happen after a deadline expiry, so it runs on a
	// detached context with the HTTP client's own timeout as the bound.
	text := formatMessage(task, summary, analysis)
	if err := w.callback.Deliver(context.WithoutCancel(ctx), task.CallbackURL, text); err != nil {
		slog.Error("callback delivery failed", "user_id", task.UserID, "url", task.CallbackURL, "err", err)
		return
	}
	slog.Info("analysis delivered", "user_id", task.UserID, "days", task.Days)
}
