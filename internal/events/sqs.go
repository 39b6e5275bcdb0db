package events

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSClient is the slice of the SQS API the handler uses.
type SQSClient interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSDeliveryHandler forwards outbox entries to the scheduling event
// queue. Consumers (billing, notifications, metrics) subscribe there.
type SQSDeliveryHandler struct {
	client   SQSClient
	queueURL string
}

func NewSQSDeliveryHandler(client SQSClient, queueURL string) *SQSDeliveryHandler {
	if client == nil {
		panic("events: sqs client required")
	}
	if queueURL == "" {
		panic("events: queue url required")
	}
	return &SQSDeliveryHandler{client: client, queueURL: queueURL}
}

func (h *SQSDeliveryHandler) Handle(ctx context.Context, entry OutboxEntry) error {
	_, err := h.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(h.queueURL),
		MessageBody: aws.String(string(entry.Payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(entry.Type),
			},
			"tenant_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(entry.TenantID.String()),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("events: sqs send: %w", err)
	}
	return nil
}
