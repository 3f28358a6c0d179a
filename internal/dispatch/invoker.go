// Package dispatch hands task records from the synchronous command path to
// the background worker via asynchronous Lambda self-invocation. Delivery is
// at-most-once: a failed dispatch is logged by the caller and the task is
// lost, which only costs one chat reply.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"costbot/internal/domain"
)

// lambdaAPI is the minimal Lambda interface required by Invoker.
// *lambda.Client from aws-sdk-go-v2 satisfies this interface.
type lambdaAPI interface {
	Invoke(ctx context.Context, in *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// Invoker fires task records at the worker function and does not wait for
// the outcome.
type Invoker struct {
	api          lambdaAPI
	functionName string
}

// New creates an Invoker targeting the given function name or ARN.
func New(api lambdaAPI, functionName string) (*Invoker, error) {
	if api == nil {
		return nil, errors.New("dispatch: api must not be nil")
	}
	if strings.TrimSpace(functionName) == "" {
		return nil, errors.New("dispatch: function name must not be empty")
	}
	return &Invoker{api: api, functionName: functionName}, nil
}

// Invoke dispatches one task asynchronously (InvocationType=Event). An error
// means the handoff itself failed; the worker's later success or failure is
// invisible here.
func (i *Invoker) Invoke(ctx context.Context, task domain.TaskRecord) error {
	payload, err := json.Marshal(domain.TaskEnvelope{
		Kind: domain.TaskKindCostAnalysis,
		Task: task,
	})
	if err != nil {
		return fmt.Errorf("dispatch: marshal task: %w", err)
	}

	_, err = i.api.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(i.functionName),
		InvocationType: types.InvocationTypeEvent,
		Payload:        payload,
	})
	if err != nil {
		return fmt.Errorf("dispatch: invoke %s: %w", i.functionName, err)
	}
	return nil
}
