// Package handler adapts raw Lambda payloads to the pipeline. The same
// function serves two invocation shapes: API Gateway proxy requests carry
// inbound chat commands (fast path), and tagged self-invocation payloads
// carry task records for the background worker (slow path).
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"costbot/internal/domain"
)

// defaultDeadline is the wall-clock ceiling for one invocation, kept under
// the platform's own timeout so expiry degrades instead of killing the run.
const defaultDeadline = 25 * time.Second

// CommandService handles the synchronous fast path and returns the
// acknowledgment text.
type CommandService interface {
	Handle(ctx context.Context, cmd domain.SlashCommand) string
}

// TaskRunner executes one background analysis task.
type TaskRunner interface {
	Run(ctx context.Context, task domain.TaskRecord)
}

// Response is the Lambda proxy response shape.
type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

type ackBody struct {
	ResponseType string `json:"response_type"`
	Text         string `json:"text"`
}

// Handler routes raw invocation payloads to the dispatcher or the worker.
type Handler struct {
	commands CommandService
	worker   TaskRunner
	deadline time.Duration
}

// NewHandler creates a Handler with the default invocation deadline.
func NewHandler(commands CommandService, worker TaskRunner) (*Handler, error) {
	if commands == nil {
		return nil, errors.New("handler: command service must not be nil")
	}
	if worker == nil {
		return nil, errors.New("handler: task runner must not be nil")
	}
	return &Handler{commands: commands, worker: worker, deadline: defaultDeadline}, nil
}

// Handle is the Lambda entrypoint. It installs the deadline guard, then
// decides the invocation shape from the payload itself: a task envelope
// runs the worker, anything else is treated as an API Gateway command.
func (h *Handler) Handle(ctx context.Context, raw json.RawMessage) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, h.deadline)
	defer cancel()

	var envelope domain.TaskEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Kind == domain.TaskKindCostAnalysis {
		h.worker.Run(ctx, envelope.Task)
		return jsonResponse(200, map[string]string{"status": "processed"}), nil
	}

	var req events.APIGatewayProxyRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.Body == "" {
		slog.Warn("unrecognized invocation payload")
		return jsonResponse(400, map[string]string{"error": "unrecognized payload"}), nil
	}

	cmd, err := parseSlashCommand(req)
	if err != nil {
		slog.Warn("malformed command payload", "err", err)
		return jsonResponse(400, map[string]string{"error": "malformed command payload"}), nil
	}

	ack := h.commands.Handle(ctx, cmd)
	return jsonResponse(200, ackBody{ResponseType: "ephemeral", Text: ack}), nil
}

// parseSlashCommand decodes the URL-encoded (optionally base64-wrapped)
// form body the chat platform posts.
func parseSlashCommand(req events.APIGatewayProxyRequest) (domain.SlashCommand, error) {
	body := req.Body
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return domain.SlashCommand{}, errors.New("handler: invalid base64 body")
		}
		body = string(decoded)
	}

	values, err := url.ParseQuery(body)
	if err != nil {
		return domain.SlashCommand{}, errors.New("handler: invalid form body")
	}

	cmd := domain.SlashCommand{
		Text:        values.Get("text"),
		UserName:    values.Get("user_name"),
		UserID:      values.Get("user_id"),
		ResponseURL: values.Get("response_url"),
	}
	if strings.TrimSpace(cmd.ResponseURL) == "" {
		return domain.SlashCommand{}, errors.New("handler: missing response_url")
	}
	return cmd, nil
}

func jsonResponse(status int, body any) Response {
	encoded, err := json.Marshal(body)
	if err != nil {
		return Response{
			StatusCode: 500,
			Headers:    map[string]string{"content-type": "application/json"},
			Body:       `{"error":"internal error"}`,
		}
	}
	return Response{
		StatusCode: status,
		Headers:    map[string]string{"content-type": "application/json"},
		Body:       string(encoded),
	}
}
