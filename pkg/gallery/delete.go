package gallery

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

const (
	stageRecord = "record"
	stageBlob   = "blob"
)

// ItemFailure describes one matched image that could not be fully removed.
type ItemFailure struct {
	ID    uint   `json:"id"`
	Key   string `json:"key"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// DeleteReport is the per-item outcome of deleting every image with a name.
type DeleteReport struct {
	Name     string        `json:"name"`
	Matched  int           `json:"matched"`
	Removed  int           `json:"removed"`
	Failures []ItemFailure `json:"failures,omitempty"`
}

// Delete removes every catalog row named name and, for each row removed, its blob.
// A row whose delete fails keeps its blob. Blob failures do not stop the remaining
// matches; both kinds are reported rather than returned as an error.
func (s *Service) Delete(ctx context.Context, name string) (*DeleteReport, error) {
	matches, err := s.catalog.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	logger := zerolog.Ctx(ctx)
	report := &DeleteReport{Name: name, Matched: len(matches)}
	for _, rec := range matches {
		key := s.blobs.Key(rec.Filename())
		if err := s.catalog.Delete(ctx, rec.ID); err != nil {
			report.Failures = append(report.Failures, ItemFailure{ID: rec.ID, Key: key, Stage: stageRecord, Error: err.Error()})
			logger.Error().Err(err).Uint("id", rec.ID).Msg("delete catalog row")
			s.metrics.deletion(outcomeFailed)
			continue
		}
		report.Removed++
		if err := s.blobs.Delete(ctx, key); err != nil {
			report.Failures = append(report.Failures, ItemFailure{ID: rec.ID, Key: key, Stage: stageBlob, Error: err.Error()})
			logger.Error().Err(err).Uint("id", rec.ID).Str("key", key).Msg("delete blob")
			s.metrics.deletion(outcomeFailed)
			continue
		}
		s.metrics.deletion(outcomeOK)
	}

	logger.Info().Str("name", name).Int("matched", report.Matched).Int("removed", report.Removed).
		Int("failures", len(report.Failures)).Msg("images deleted")
	return report, nil
}
