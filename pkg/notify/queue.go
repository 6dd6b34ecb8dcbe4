// Package notify wraps the SQS queue that buffers upload notifications and the SNS
// topic they are fanned out on.
package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// MaxBatch is the largest batch SQS hands out per receive call.
const MaxBatch = 10

// Message is one pending notification. ReceiptHandle is only valid for the receive
// that returned it.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// QueueAPI is the subset of *sqs.Client used here.
type QueueAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type Queue struct {
	api         QueueAPI
	url         string
	batchSize   int32
	waitSeconds int32
}

// NewQueue builds a queue handle. batchSize is clamped to 1..MaxBatch; waitSeconds > 0
// turns receives into long polls.
func NewQueue(api QueueAPI, url string, batchSize, waitSeconds int) *Queue {
	if batchSize < 1 {
		batchSize = 1
	}
	if batchSize > MaxBatch {
		batchSize = MaxBatch
	}
	if waitSeconds < 0 {
		waitSeconds = 0
	}
	return &Queue{api: api, url: url, batchSize: int32(batchSize), waitSeconds: int32(waitSeconds)}
}

func (q *Queue) Send(ctx context.Context, body string) (string, error) {
	out, err := q.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.url),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return "", fmt.Errorf("sqs send: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

// Receive returns whatever the queue has ready. An empty slice is a normal outcome.
func (q *Queue) Receive(ctx context.Context) ([]Message, error) {
	out, err := q.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.url),
		MaxNumberOfMessages: q.batchSize,
		WaitTimeSeconds:     q.waitSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("sqs receive: %w", err)
	}
	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, Message{
			ID:            aws.ToString(m.MessageId),
			Body:          aws.ToString(m.Body),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
		})
	}
	return msgs, nil
}

func (q *Queue) Delete(ctx context.Context, receiptHandle string) error {
	_, err := q.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.url),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("sqs delete: %w", err)
	}
	return nil
}
