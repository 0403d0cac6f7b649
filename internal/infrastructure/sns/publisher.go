package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"
	"github.com/sealdrop-api/internal/config"
	"github.com/sealdrop-api/internal/domain"
	"github.com/sealdrop-api/internal/infrastructure/awsconf"
)

// Publisher fans delivery lifecycle events out to subscribers of a topic.
type Publisher interface {
	Publish(ctx context.Context, e domain.DeliveryEvent) error
}

type publishAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type publisher struct {
	client   publishAPI
	topicARN string
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.DeliveryEvent) error { return nil }

// NewPublisher returns a no-op publisher when no topic is configured.
func NewPublisher(ctx context.Context, cfg *config.Config) (Publisher, error) {
	if cfg.SNSTopicARN == "" {
		return nopPublisher{}, nil
	}
	awsCfg, err := awsconf.Load(ctx, cfg, cfg.SNSRegion)
	if err != nil {
		return nil, err
	}
	var opts []func(*sns.Options)
	if cfg.AWSEndpointURL != "" {
		opts = append(opts, func(o *sns.Options) { o.BaseEndpoint = aws.String(cfg.AWSEndpointURL) })
	}
	return &publisher{client: sns.NewFromConfig(awsCfg, opts...), topicARN: cfg.SNSTopicARN}, nil
}

type envelope struct {
	EventID string `json:"event_id"`
	domain.DeliveryEvent
}

func (p *publisher) Publish(ctx context.Context, e domain.DeliveryEvent) error {
	body, err := json.Marshal(envelope{EventID: uuid.NewString(), DeliveryEvent: e})
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
