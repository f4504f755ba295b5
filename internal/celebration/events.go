package celebration

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"birthdaybot/internal/types"
)

// EventTypePosted is the type attribute of a celebration.posted event.
const EventTypePosted = "celebration.posted"

// PostedEvent is published after a celebration has been sent.
type PostedEvent struct {
	RunID       string     `json:"run_id"`
	Mode        types.Mode `json:"mode"`
	ChannelID   string     `json:"channel_id"`
	MessageTS   string     `json:"message_ts"`
	UserIDs     []string   `json:"user_ids"`
	Personality string     `json:"personality"`
	ImagesSent  int        `json:"images_sent"`
	PostedAt    time.Time  `json:"posted_at"`
}

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSEventPublisher sends celebration events to an SQS queue.
type SQSEventPublisher struct {
	client   SQSSender
	queueURL string
	logger   types.Logger
}

// NewSQSEventPublisher creates a publisher targeting queueURL.
func NewSQSEventPublisher(client SQSSender, queueURL string, logger types.Logger) *SQSEventPublisher {
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &SQSEventPublisher{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
	}
}

// PublishPosted serializes evt and sends it with an event_type attribute so
// consumers can filter without decoding the body.
func (p *SQSEventPublisher) PublishPosted(ctx context.Context, evt PostedEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("event publisher: failed to marshal event: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(EventTypePosted)},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("event publisher: failed to send message to %s: %w", p.queueURL, err)
	}

	p.logger.Info("celebration event published",
		"run_id", evt.RunID,
		"message_ts", evt.MessageTS,
		"people", len(evt.UserIDs),
	)
	return nil
}
