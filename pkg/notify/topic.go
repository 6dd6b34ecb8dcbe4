package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// PendingConfirmation is the ARN SNS reports for subscriptions the recipient has not
// confirmed yet. Such subscriptions cannot be unsubscribed.
const PendingConfirmation = "PendingConfirmation"

// ProtocolEmail is the only endpoint protocol this service registers.
const ProtocolEmail = "email"

type Subscription struct {
	ARN      string
	Protocol string
	Endpoint string
}

// Pending reports whether the subscription still waits for the recipient's confirmation.
func (s Subscription) Pending() bool {
	return s.ARN == PendingConfirmation || s.ARN == ""
}

// TopicAPI is the subset of *sns.Client used here.
type TopicAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	Subscribe(ctx context.Context, in *sns.SubscribeInput, optFns ...func(*sns.Options)) (*sns.SubscribeOutput, error)
	ListSubscriptionsByTopic(ctx context.Context, in *sns.ListSubscriptionsByTopicInput, optFns ...func(*sns.Options)) (*sns.ListSubscriptionsByTopicOutput, error)
	Unsubscribe(ctx context.Context, in *sns.UnsubscribeInput, optFns ...func(*sns.Options)) (*sns.UnsubscribeOutput, error)
}

type Topic struct {
	api TopicAPI
	arn string
}

func NewTopic(api TopicAPI, arn string) *Topic {
	return &Topic{api: api, arn: arn}
}

func (t *Topic) ARN() string { return t.arn }

// Publish sends body verbatim to every confirmed subscriber.
func (t *Topic) Publish(ctx context.Context, body string) (string, error) {
	out, err := t.api.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(t.arn),
		Message:  aws.String(body),
	})
	if err != nil {
		return "", fmt.Errorf("sns publish: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

// Subscribe registers an email endpoint and returns its subscription ARN, which exists
// even before confirmation. SNS mails the confirmation link out-of-band.
func (t *Topic) Subscribe(ctx context.Context, email string) (string, error) {
	out, err := t.api.Subscribe(ctx, &sns.SubscribeInput{
		TopicArn:              aws.String(t.arn),
		Protocol:              aws.String(ProtocolEmail),
		Endpoint:              aws.String(email),
		ReturnSubscriptionArn: true,
	})
	if err != nil {
		return "", fmt.Errorf("sns subscribe: %w", err)
	}
	return aws.ToString(out.SubscriptionArn), nil
}

// Subscriptions lists every subscription on the topic, following pagination.
func (t *Topic) Subscriptions(ctx context.Context) ([]Subscription, error) {
	var subs []Subscription
	p := sns.NewListSubscriptionsByTopicPaginator(t.api, &sns.ListSubscriptionsByTopicInput{
		TopicArn: aws.String(t.arn),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("sns list subscriptions: %w", err)
		}
		for _, s := range page.Subscriptions {
			subs = append(subs, Subscription{
				ARN:      aws.ToString(s.SubscriptionArn),
				Protocol: aws.ToString(s.Protocol),
				Endpoint: aws.ToString(s.Endpoint),
			})
		}
	}
	return subs, nil
}

func (t *Topic) Unsubscribe(ctx context.Context, subscriptionARN string) error {
	_, err := t.api.Unsubscribe(ctx, &sns.UnsubscribeInput{
		SubscriptionArn: aws.String(subscriptionARN),
	})
	if err != nil {
		return fmt.Errorf("sns unsubscribe %s: %w", subscriptionARN, err)
	}
	return nil
}
