package gallery

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
)

// UnsubscribeReport counts what happened to subscriptions matching an email.
type UnsubscribeReport struct {
	Removed int `json:"removed"`
	Pending int `json:"pending"`
}

// Subscribe registers email on the topic. The confirmation mail is sent by SNS.
func (s *Service) Subscribe(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrInvalidEmail
	}
	arn, err := s.topic.Subscribe(ctx, email)
	if err != nil {
		return "", err
	}
	s.metrics.subscription(actionSubscribe)
	zerolog.Ctx(ctx).Info().Str("email", email).Str("subscription", arn).Msg("subscription requested")
	return arn, nil
}

// Unsubscribe removes every confirmed subscription whose endpoint equals email
// (case-insensitively). Unconfirmed ones have no ARN yet and are only counted.
// No match is not an error.
func (s *Service) Unsubscribe(ctx context.Context, email string) (*UnsubscribeReport, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrInvalidEmail
	}
	subs, err := s.topic.Subscriptions(ctx)
	if err != nil {
		return nil, err
	}

	logger := zerolog.Ctx(ctx)
	report := &UnsubscribeReport{}
	var errs []error
	for _, sub := range subs {
		if !strings.EqualFold(sub.Endpoint, email) {
			continue
		}
		if sub.Pending() {
			report.Pending++
			continue
		}
		if err := s.topic.Unsubscribe(ctx, sub.ARN); err != nil {
			logger.Error().Err(err).Str("subscription", sub.ARN).Msg("unsubscribe")
			errs = append(errs, err)
			continue
		}
		report.Removed++
		s.metrics.subscription(actionUnsubscribe)
	}
	if len(errs) > 0 {
		return report, errors.Join(errs...)
	}
	logger.Info().Str("email", email).Int("removed", report.Removed).Int("pending", report.Pending).Msg("unsubscribed")
	return report, nil
}
