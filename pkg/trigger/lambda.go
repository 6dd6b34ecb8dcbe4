// Package trigger fires the external batch-notifier function.
package trigger

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

// DefaultFunction is the batch-notifier function name.
const DefaultFunction = "Task9-uploads-batch-notifier"

type API interface {
	Invoke(ctx context.Context, in *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// Result is what the caller learns from an invocation: that it ran, and how.
type Result struct {
	Function        string
	StatusCode      int32
	FunctionError   string
	ExecutedVersion string
}

type Invoker struct {
	api      API
	function string
}

func NewInvoker(api API, function string) *Invoker {
	if function == "" {
		function = DefaultFunction
	}
	return &Invoker{api: api, function: function}
}

// Invoke calls the function synchronously with no payload. The response payload is
// not interpreted.
func (i *Invoker) Invoke(ctx context.Context) (Result, error) {
	out, err := i.api.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(i.function),
		InvocationType: types.InvocationTypeRequestResponse,
	})
	if err != nil {
		return Result{}, fmt.Errorf("invoke %s: %w", i.function, err)
	}
	return Result{
		Function:        i.function,
		StatusCode:      out.StatusCode,
		FunctionError:   aws.ToString(out.FunctionError),
		ExecutedVersion: aws.ToString(out.ExecutedVersion),
	}, nil
}

func (r Result) String() string {
	s := fmt.Sprintf("Lambda function %s invoked, status %d", r.Function, r.StatusCode)
	if r.ExecutedVersion != "" {
		s += ", version " + r.ExecutedVersion
	}
	if r.FunctionError != "" {
		s += ", function error: " + r.FunctionError
	}
	return s
}
