// Package fakes provides in-memory stand-ins for the object store, catalog, queue and
// topic so workflows and handlers can be exercised without cloud accounts.
package fakes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"sync"
	"time"

	"imagehub/models"
	"imagehub/pkg/notify"
	"imagehub/pkg/storage"
)

// Blobs is an in-memory object store keyed like storage.S3Store.
type Blobs struct {
	mu      sync.Mutex
	Prefix  string
	Objects map[string][]byte
	Deleted []string
	// FailPut, FailSize and FailDelete inject errors by key.
	FailPut    map[string]error
	FailSize   map[string]error
	FailDelete map[string]error
}

func NewBlobs() *Blobs {
	return &Blobs{
		Prefix:     storage.DefaultPrefix,
		Objects:    map[string][]byte{},
		FailPut:    map[string]error{},
		FailSize:   map[string]error{},
		FailDelete: map[string]error{},
	}
}

func (b *Blobs) Key(filename string) string { return path.Join(b.Prefix, filename) }

func (b *Blobs) Put(_ context.Context, key string, body io.Reader) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.FailPut[key]; err != nil {
		return err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	b.Objects[key] = data
	return nil
}

func (b *Blobs) Size(_ context.Context, key string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.FailSize[key]; err != nil {
		return 0, err
	}
	data, ok := b.Objects[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return int64(len(data)), nil
}

func (b *Blobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Deleted = append(b.Deleted, key)
	if err := b.FailDelete[key]; err != nil {
		return err
	}
	delete(b.Objects, key)
	return nil
}

func (b *Blobs) Has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.Objects[key]
	return ok
}

// Catalog is an in-memory catalog that assigns ids and upload times like the table.
type Catalog struct {
	mu     sync.Mutex
	nextID uint
	Rows   map[uint]models.ImageMetadata
	Now    func() time.Time
	// FailInsert, FailAll and FailFind fail the whole call; FailDelete fails by id.
	FailInsert error
	FailAll    error
	FailFind   error
	FailDelete map[uint]error
}

func NewCatalog() *Catalog {
	return &Catalog{Rows: map[uint]models.ImageMetadata{}, Now: time.Now, FailDelete: map[uint]error{}}
}

func (c *Catalog) Insert(_ context.Context, rec *models.ImageMetadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailInsert != nil {
		return c.FailInsert
	}
	c.nextID++
	rec.ID = c.nextID
	if rec.Uploaded.IsZero() {
		rec.Uploaded = c.Now()
	}
	c.Rows[rec.ID] = *rec
	return nil
}

func (c *Catalog) All(_ context.Context) ([]models.ImageMetadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailAll != nil {
		return nil, c.FailAll
	}
	return c.sorted(func(models.ImageMetadata) bool { return true }), nil
}

func (c *Catalog) FindByName(_ context.Context, name string) ([]models.ImageMetadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailFind != nil {
		return nil, c.FailFind
	}
	return c.sorted(func(r models.ImageMetadata) bool { return r.Name == name }), nil
}

func (c *Catalog) Delete(_ context.Context, id uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.FailDelete[id]; err != nil {
		return err
	}
	delete(c.Rows, id)
	return nil
}

func (c *Catalog) sorted(keep func(models.ImageMetadata) bool) []models.ImageMetadata {
	out := make([]models.ImageMetadata, 0, len(c.Rows))
	for _, r := range c.Rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ErrUnconfirmed is returned by Unsubscribe for pending subscriptions, as SNS does.
var ErrUnconfirmed = errors.New("subscription is pending confirmation")

// Channel is an in-memory queue plus topic. Received messages stay queued until
// deleted by receipt handle; Batch bounds each receive.
type Channel struct {
	mu        sync.Mutex
	seq       int
	Batch     int
	Queued    []notify.Message
	Published []string
	Subs      []notify.Subscription
	// Confirm makes new subscriptions confirmed immediately.
	Confirm bool

	ReceiveErr error
	SendErr    error
	// PublishErr and DeleteErr fail by message body and receipt handle.
	PublishErr map[string]error
	DeleteErr  map[string]error

	PublishCalls int
	DeleteCalls  int
}

func NewChannel() *Channel {
	return &Channel{Batch: notify.MaxBatch, PublishErr: map[string]error{}, DeleteErr: map[string]error{}}
}

func (ch *Channel) Send(_ context.Context, body string) (string, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.SendErr != nil {
		return "", ch.SendErr
	}
	ch.seq++
	id := "msg-" + strconv.Itoa(ch.seq)
	ch.Queued = append(ch.Queued, notify.Message{ID: id, Body: body, ReceiptHandle: "rh-" + id})
	return id, nil
}

func (ch *Channel) Receive(_ context.Context) ([]notify.Message, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.ReceiveErr != nil {
		return nil, ch.ReceiveErr
	}
	n := len(ch.Queued)
	if ch.Batch > 0 && n > ch.Batch {
		n = ch.Batch
	}
	out := make([]notify.Message, n)
	copy(out, ch.Queued[:n])
	return out, nil
}

func (ch *Channel) Delete(_ context.Context, receiptHandle string) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.DeleteCalls++
	if err := ch.DeleteErr[receiptHandle]; err != nil {
		return err
	}
	for i, m := range ch.Queued {
		if m.ReceiptHandle == receiptHandle {
			ch.Queued = append(ch.Queued[:i], ch.Queued[i+1:]...)
			break
		}
	}
	return nil
}

func (ch *Channel) Publish(_ context.Context, body string) (string, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.PublishCalls++
	if err := ch.PublishErr[body]; err != nil {
		return "", err
	}
	ch.Published = append(ch.Published, body)
	return "pub-" + strconv.Itoa(len(ch.Published)), nil
}

func (ch *Channel) Subscribe(_ context.Context, email string) (string, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.seq++
	arn := notify.PendingConfirmation
	if ch.Confirm {
		arn = "arn:sub:" + strconv.Itoa(ch.seq)
	}
	ch.Subs = append(ch.Subs, notify.Subscription{ARN: arn, Protocol: notify.ProtocolEmail, Endpoint: email})
	if arn == notify.PendingConfirmation {
		return "pending confirmation", nil
	}
	return arn, nil
}

func (ch *Channel) Subscriptions(_ context.Context) ([]notify.Subscription, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	out := make([]notify.Subscription, len(ch.Subs))
	copy(out, ch.Subs)
	return out, nil
}

func (ch *Channel) Unsubscribe(_ context.Context, arn string) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if arn == notify.PendingConfirmation {
		return ErrUnconfirmed
	}
	for i, s := range ch.Subs {
		if s.ARN == arn {
			ch.Subs = append(ch.Subs[:i], ch.Subs[i+1:]...)
			return nil
		}
	}
	return nil
}

// Matching counts subscriptions with the given endpoint.
func (ch *Channel) Matching(email string) int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	n := 0
	for _, s := range ch.Subs {
		if s.Endpoint == email {
			n++
		}
	}
	return n
}
