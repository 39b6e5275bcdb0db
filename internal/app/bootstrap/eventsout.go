package bootstrap

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	appconfig "github.com/oakwellhealth/scheduling-platform/internal/config"
	"github.com/oakwellhealth/scheduling-platform/internal/events"
	"github.com/oakwellhealth/scheduling-platform/pkg/logging"
)

// BuildPublisher wires the outbox-backed event publisher.
func BuildPublisher(pool *pgxpool.Pool) (*events.OutboxPublisher, *events.OutboxStore) {
	store := events.NewOutboxStore(pool)
	return events.NewOutboxPublisher(store), store
}

// BuildDeliverer wires the outbox poller against SQS. Returns nil when no
// queue is configured; staged events then wait for a deliverer elsewhere.
func BuildDeliverer(ctx context.Context, cfg *appconfig.Config, store *events.OutboxStore, logger *logging.Logger) (*events.Deliverer, error) {
	if cfg == nil || cfg.SchedulingQueueURL == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
	}

	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.AWSEndpointOverride != "" {
			o.BaseEndpoint = &cfg.AWSEndpointOverride
		}
	})
	handler := events.NewSQSDeliveryHandler(client, cfg.SchedulingQueueURL)

	deliverer := events.NewDeliverer(store, handler, logger).
		WithBatchSize(int32(cfg.OutboxBatchSize)).
		WithInterval(cfg.OutboxDrainInterval)
	return deliverer, nil
}
