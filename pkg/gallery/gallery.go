// Package gallery orchestrates the upload, catalog query, deletion and subscription
// workflows over the object store, catalog and notification channel. Each step is a
// single call to its collaborator; nothing is rolled back across stores.
package gallery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"imagehub/models"
	"imagehub/pkg/notify"

	"github.com/rs/zerolog"
)

// BlobStore keeps uploaded files under keys derived from their sanitized names.
type BlobStore interface {
	Key(filename string) string
	Put(ctx context.Context, key string, body io.Reader) error
	Size(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, key string) error
}

// Catalog holds one metadata row per upload.
type Catalog interface {
	Insert(ctx context.Context, rec *models.ImageMetadata) error
	All(ctx context.Context) ([]models.ImageMetadata, error)
	FindByName(ctx context.Context, name string) ([]models.ImageMetadata, error)
	Delete(ctx context.Context, id uint) error
}

// Queue buffers upload notifications until the relay forwards them.
type Queue interface {
	Send(ctx context.Context, body string) (string, error)
}

// Topic manages the email subscribers notifications fan out to.
type Topic interface {
	Subscribe(ctx context.Context, email string) (string, error)
	Subscriptions(ctx context.Context) ([]notify.Subscription, error)
	Unsubscribe(ctx context.Context, subscriptionARN string) error
}

// Options tune the workflows.
type Options struct {
	// PublicURL is the externally reachable base URL quoted in notification bodies.
	PublicURL string
}

// Service runs the upload, listing, deletion and subscription workflows.
type Service struct {
	blobs   BlobStore
	catalog Catalog
	queue   Queue
	topic   Topic
	opts    Options
	metrics *Metrics
	now     func() time.Time
}

// NewService wires the workflows. metrics may be nil.
func NewService(blobs BlobStore, catalog Catalog, queue Queue, topic Topic, opts Options, metrics *Metrics) *Service {
	return &Service{
		blobs:   blobs,
		catalog: catalog,
		queue:   queue,
		topic:   topic,
		opts:    opts,
		metrics: metrics,
		now:     time.Now,
	}
}

// Upload stores the blob, records its metadata and queues a notification. The stored
// size is read back from the object store rather than trusted from the transport.
// A failure after the blob write leaves whatever already succeeded in place.
func (s *Service) Upload(ctx context.Context, filename string, body io.Reader) (*models.ImageMetadata, error) {
	if body == nil {
		return nil, ErrNoFile
	}
	safe := SecureFilename(filename)
	if safe == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	name, ext := SplitFilename(safe)
	key := s.blobs.Key(safe)
	logger := zerolog.Ctx(ctx).With().Str("key", key).Logger()

	if err := s.blobs.Put(ctx, key, body); err != nil {
		s.metrics.upload(outcomeFailed)
		return nil, fmt.Errorf("store blob: %w", err)
	}
	size, err := s.blobs.Size(ctx, key)
	if err != nil {
		s.metrics.upload(outcomeFailed)
		logger.Warn().Err(err).Msg("blob stored but size probe failed; no catalog row written")
		return nil, fmt.Errorf("probe blob size: %w", err)
	}

	rec := &models.ImageMetadata{
		Name:      name,
		Size:      strconv.FormatInt(size, 10),
		Extension: ext,
	}
	if err := s.catalog.Insert(ctx, rec); err != nil {
		s.metrics.upload(outcomeFailed)
		logger.Warn().Err(err).Msg("blob stored but catalog insert failed")
		return nil, fmt.Errorf("record metadata: %w", err)
	}
	if rec.Uploaded.IsZero() {
		rec.Uploaded = s.now()
	}

	msgID, err := s.queue.Send(ctx, s.notificationBody(safe, rec))
	if err != nil {
		s.metrics.upload(outcomeFailed)
		logger.Warn().Err(err).Uint("id", rec.ID).Msg("image cataloged but notification was not queued")
		return nil, fmt.Errorf("queue notification: %w", err)
	}

	s.metrics.upload(outcomeOK)
	s.metrics.uploadBytes(size)
	logger.Info().Uint("id", rec.ID).Int64("size", size).Str("message_id", msgID).Msg("image uploaded")
	return rec, nil
}

func (s *Service) notificationBody(filename string, rec *models.ImageMetadata) string {
	payload, _ := json.Marshal(map[string]string{"name": rec.Name})
	ext := rec.Extension
	if ext == "" {
		ext = "(none)"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "New image uploaded: %s\n\n", filename)
	fmt.Fprintf(&b, "Name: %s\n", rec.Name)
	fmt.Fprintf(&b, "Size: %s bytes\n", rec.Size)
	fmt.Fprintf(&b, "Extension: %s\n", ext)
	fmt.Fprintf(&b, "Uploaded: %s\n\n", rec.Uploaded.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "To delete this image, send a POST request to %s/delete with the JSON body %s.\n",
		strings.TrimRight(s.opts.PublicURL, "/"), payload)
	return b.String()
}

// List returns every cataloged image.
func (s *Service) List(ctx context.Context) ([]models.ImageMetadata, error) {
	items, err := s.catalog.All(ctx)
	if err != nil {
		return nil, err
	}
	return items, nil
}
