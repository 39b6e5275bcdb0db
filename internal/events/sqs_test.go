package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
)

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, params)
	return &sqs.SendMessageOutput{}, nil
}

func TestSQSDeliveryHandler(t *testing.T) {
	client := &fakeSQS{}
	handler := NewSQSDeliveryHandler(client, "https://sqs.test/queue")
	tenantID := uuid.New()

	entry := OutboxEntry{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Type:      "scheduling.booking_confirmed.v1",
		Payload:   json.RawMessage(`{"booking_id":"b-1"}`),
		CreatedAt: time.Now().UTC(),
	}
	if err := handler.Handle(context.Background(), entry); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	if len(client.inputs) != 1 {
		t.Fatalf("expected one send, got %d", len(client.inputs))
	}
	in := client.inputs[0]
	if *in.QueueUrl != "https://sqs.test/queue" {
		t.Fatalf("unexpected queue url: %s", *in.QueueUrl)
	}
	if *in.MessageBody != `{"booking_id":"b-1"}` {
		t.Fatalf("unexpected body: %s", *in.MessageBody)
	}
	if got := *in.MessageAttributes["event_type"].StringValue; got != entry.Type {
		t.Fatalf("unexpected event_type attribute: %s", got)
	}
	if got := *in.MessageAttributes["tenant_id"].StringValue; got != tenantID.String() {
		t.Fatalf("unexpected tenant_id attribute: %s", got)
	}
}

func TestSQSDeliveryHandlerWrapsSendError(t *testing.T) {
	client := &fakeSQS{err: context.DeadlineExceeded}
	handler := NewSQSDeliveryHandler(client, "https://sqs.test/queue")

	err := handler.Handle(context.Background(), OutboxEntry{Type: "scheduling.hold_created.v1"})
	if err == nil {
		t.Fatal("expected error from failed send")
	}
}

func TestNewSQSDeliveryHandlerPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic with empty queue url")
		}
	}()
	NewSQSDeliveryHandler(&fakeSQS{}, "")
}
