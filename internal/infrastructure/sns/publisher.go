package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/go-auth-nosql/internal/domain"
)

// EventPublisher fans auth events out to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, e domain.AuthEvent) error
}

// API is the part of the SNS client the publisher uses.
type API interface {
	Publish(ctx context.Context, in *sns.PublishInput, opts ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type publisher struct {
	client   API
	topicARN string
}

func NewPublisher(client API, topicARN string) EventPublisher {
	return &publisher{client: client, topicARN: topicARN}
}

// Publish sends e as a JSON message. The event type is also set as a message
// attribute so subscriptions can filter on it.
func (p *publisher) Publish(ctx context.Context, e domain.AuthEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(e.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

// Noop discards events; used when no topic is configured.
type Noop struct{}

func (Noop) Publish(context.Context, domain.AuthEvent) error { return nil }
