package main

import (
	"context"
	"fmt"

	"imagehub/pkg/catalog"
	"imagehub/pkg/cloud"
	"imagehub/pkg/config"
	"imagehub/pkg/gallery"
	"imagehub/pkg/metrics"
	"imagehub/pkg/notify"
	"imagehub/pkg/region"
	"imagehub/pkg/relay"
	"imagehub/pkg/storage"
	"imagehub/pkg/trigger"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// app owns every long-lived dependency of the serve command.
type app struct {
	db       *gorm.DB
	gallery  *gallery.Service
	relay    *relay.Relay
	invoker  *trigger.Invoker
	probe    *region.Probe
	registry *prometheus.Registry
}

func newClients(ctx context.Context, cfg *config.Config) (*cloud.Clients, error) {
	awsCfg, err := cloud.LoadConfig(ctx, cloud.Options{
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		EndpointURL:     cfg.AWSEndpointURL,
	})
	if err != nil {
		return nil, err
	}
	return cloud.NewClients(awsCfg), nil
}

func newRelay(cfg *config.Config, clients *cloud.Clients, reg prometheus.Registerer) (*relay.Relay, error) {
	var m *relay.Metrics
	if reg != nil {
		var err error
		if m, err = relay.NewMetrics(reg); err != nil {
			return nil, err
		}
	}
	queue := notify.NewQueue(clients.SQS, cfg.SQSURL, cfg.RelayBatchSize, cfg.RelayWaitSeconds)
	topic := notify.NewTopic(clients.SNS, cfg.SNSTopicARN)
	return relay.New(queue, topic, cfg.RelayInterval, m), nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	clients, err := newClients(ctx, cfg)
	if err != nil {
		return nil, err
	}
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	reg := metrics.NewRegistry()
	galleryMetrics, err := gallery.NewMetrics(reg)
	if err != nil {
		closeDB(db)
		return nil, fmt.Errorf("gallery metrics: %w", err)
	}
	r, err := newRelay(cfg, clients, reg)
	if err != nil {
		closeDB(db)
		return nil, fmt.Errorf("relay metrics: %w", err)
	}

	svc := gallery.NewService(
		storage.NewS3Store(clients.S3, cfg.S3Bucket, cfg.S3Prefix),
		catalog.New(db),
		notify.NewQueue(clients.SQS, cfg.SQSURL, cfg.RelayBatchSize, cfg.RelayWaitSeconds),
		notify.NewTopic(clients.SNS, cfg.SNSTopicARN),
		gallery.Options{PublicURL: cfg.PublicURL},
		galleryMetrics,
	)

	return &app{
		db:       db,
		gallery:  svc,
		relay:    r,
		invoker:  trigger.NewInvoker(clients.Lambda, cfg.LambdaFunction),
		probe:    region.NewProbe(clients.IMDS),
		registry: reg,
	}, nil
}

func (a *app) server() *server {
	return &server{
		gallery:   a.gallery,
		invoker:   a.invoker,
		placement: a.probe,
		registry:  a.registry,
	}
}

func (a *app) Close() {
	closeDB(a.db)
}
