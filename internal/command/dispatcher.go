// Package command implements the synchronous half of the pipeline: parse
// the inbound chat command, hand a task record to the asynchronous worker,
// and acknowledge immediately. The chat platform enforces a short response
// deadline, so nothing here waits on the slow path.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"costbot/internal/domain"
)

const (
	defaultDays     = 7
	defaultMaxDays  = 60
	defaultQuery    = "General cost overview"
	ackTextTemplate = "Analyzing your last %d days of cloud spend. Results will be posted here shortly."
)

// AsyncInvoker dispatches a task record without waiting for the worker.
type AsyncInvoker interface {
	Invoke(ctx context.Context, task domain.TaskRecord) error
}

// Dispatcher turns slash commands into background tasks.
type Dispatcher struct {
	invoker AsyncInvoker
	maxDays int
}

// NewDispatcher creates a Dispatcher. maxDays bounds the requested window.
func NewDispatcher(invoker AsyncInvoker, maxDays int) (*Dispatcher, error) {
	if invoker == nil {
		return nil, errors.New("command: invoker must not be nil")
	}
	if maxDays <= 0 {
		maxDays = defaultMaxDays
	}
	return &Dispatcher{invoker: invoker, maxDays: maxDays}, nil
}

// Handle parses the command, makes exactly one dispatch attempt, and returns
// the acknowledgment text. A failed dispatch is logged, not surfaced: the
// caller has already been promised asynchronous delivery and there is no
// synchronous channel left to report through.
func (d *Dispatcher) Handle(ctx context.Context, cmd domain.SlashCommand) string {
	days, query := ParseText(cmd.Text, d.maxDays)

	task := domain.TaskRecord{
		CallbackURL: cmd.ResponseURL,
		Days:        days,
		Query:       query,
		UserName:    cmd.UserName,
		UserID:      cmd.UserID,
	}
	if err := d.invoker.Invoke(ctx, task); err != nil {
		slog.Error("async dispatch failed", "user_id", cmd.UserID, "days", days, "err", err)
	} else {
		slog.Info("dispatched analysis task", "user_id", cmd.UserID, "days", days)
	}

	return fmt.Sprintf(ackTextTemplate, days)
}

// ParseText splits the command text into a day count and a free-text query.
// A leading token that is entirely numeric becomes the day count, clamped to
// [1, maxDays]; the remainder is the query. Otherwise the whole text is the
// query and the day count defaults to 7. An empty query falls back to a
// generic one.
func ParseText(text string, maxDays int) (int, string) {
	days := defaultDays
	query := strings.TrimSpace(text)

	if query != "" {
		first, rest := query, ""
		if i := strings.IndexFunc(query, unicode.IsSpace); i >= 0 {
			first, rest = query[:i], strings.TrimSpace(query[i:])
		}
		if n, err := strconv.Atoi(first); err == nil {
			days = n
			query = rest
		}
	}

	if days < 1 {
		days = 1
	}
	if maxDays > 0 && days > maxDays {
		days = maxDays
	}
	if query == "" {
		query = defaultQuery
	}
	return days, query
}
