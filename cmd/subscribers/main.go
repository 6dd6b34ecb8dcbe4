package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"imagehub/pkg/applog"
	"imagehub/pkg/cloud"
	"imagehub/pkg/config"
	"imagehub/pkg/notify"

	"github.com/rs/zerolog/log"
)

func main() {
	envFile := flag.String("env-file", config.DefaultEnvFile, "optional KEY=value file")
	email := flag.String("email", "", "only show subscriptions for this endpoint")
	flag.Parse()

	cfg, err := config.NewLoader(*envFile).Load()
	if err != nil {
		_ = applog.Init("info", true)
		log.Fatal().Err(err).Msg("load config")
	}
	_ = applog.Init(cfg.LogLevel, true)

	ctx := context.Background()
	awsCfg, err := cloud.LoadConfig(ctx, cloud.Options{
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		EndpointURL:     cfg.AWSEndpointURL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("aws config")
	}
	topic := notify.NewTopic(cloud.NewClients(awsCfg).SNS, cfg.SNSTopicARN)

	subs, err := topic.Subscriptions(ctx)
	if err != nil {
		log.Fatal().Err(err).Str("topic", topic.ARN()).Msg("list subscriptions")
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENDPOINT\tPROTOCOL\tSTATUS\tARN")
	n := 0
	for _, s := range subs {
		if *email != "" && !strings.EqualFold(s.Endpoint, *email) {
			continue
		}
		status := "confirmed"
		if s.Pending() {
			status = "pending"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Endpoint, s.Protocol, status, s.ARN)
		n++
	}
	_ = w.Flush()
	fmt.Printf("%d subscription(s) on %s\n", n, topic.ARN())
}
