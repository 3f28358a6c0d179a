package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awscostexplorer "github.com/aws/aws-sdk-go-v2/service/costexplorer"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"costbot/handler"
	"costbot/internal/callback"
	"costbot/internal/command"
	"costbot/internal/costs"
	"costbot/internal/dispatch"
	"costbot/internal/integrations/deepseek"
	"costbot/internal/integrations/paramstore"
	"costbot/internal/memory"
	"costbot/internal/worker"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	memoryTable := mustEnv("MEMORY_TABLE")
	paramPrefix := mustEnv("PARAM_PREFIX")
	workerFunction := mustEnv("WORKER_FUNCTION")
	maxDays := envInt("MAX_DAYS", 60)
	historyLimit := envInt("HISTORY_LIMIT", 5)
	memoryTTLDays := envInt("MEMORY_TTL_DAYS", 0)

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	costClient, err := costs.New(awscostexplorer.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create cost explorer client", "err", err)
		os.Exit(1)
	}
	memoryStore, err := memory.New(awsdynamodb.NewFromConfig(cfg), memoryTable, memoryTTLDays)
	if err != nil {
		slog.Error("failed to create memory store", "err", err)
		os.Exit(1)
	}
	llmClient, err := deepseek.NewClient(ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create reasoning client", "err", err)
		os.Exit(1)
	}
	invoker, err := dispatch.New(awslambda.NewFromConfig(cfg), workerFunction)
	if err != nil {
		slog.Error("failed to create async invoker", "err", err)
		os.Exit(1)
	}

	// ---- Pipeline ----
	dispatcher, err := command.NewDispatcher(invoker, maxDays)
	if err != nil {
		slog.Error("failed to create dispatcher", "err", err)
		os.Exit(1)
	}
	analysisWorker, err := worker.New(costClient, memoryStore, llmClient, callback.New(nil), historyLimit)
	if err != nil {
		slog.Error("failed to create worker", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(dispatcher, analysisWorker)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
