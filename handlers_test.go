package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"imagehub/pkg/fakes"
	"imagehub/pkg/gallery"
	"imagehub/pkg/metrics"
	"imagehub/pkg/region"
	"imagehub/pkg/trigger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubInvoker struct {
	res trigger.Result
	err error
}

func (s stubInvoker) Invoke(context.Context) (trigger.Result, error) { return s.res, s.err }

type stubPlacement struct {
	p   region.Placement
	err error
}

func (s stubPlacement) Lookup(context.Context) (region.Placement, error) { return s.p, s.err }

type harness struct {
	router  *gin.Engine
	blobs   *fakes.Blobs
	catalog *fakes.Catalog
	channel *fakes.Channel
	srv     *server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := metrics.NewRegistry()
	gm, err := gallery.NewMetrics(reg)
	require.NoError(t, err)

	h := &harness{blobs: fakes.NewBlobs(), catalog: fakes.NewCatalog(), channel: fakes.NewChannel()}
	h.srv = &server{
		gallery: gallery.NewService(h.blobs, h.catalog, h.channel, h.channel,
			gallery.Options{PublicURL: "https://images.example.com"}, gm),
		invoker:   stubInvoker{res: trigger.Result{Function: trigger.DefaultFunction, StatusCode: 200}},
		placement: stubPlacement{p: region.Placement{Region: "eu-west-3", AZ: "eu-west-3b"}},
		registry:  reg,
	}
	h.router = newRouter(h.srv, routerOptions{MaxUploadBytes: 1 << 20, Origins: []string{"*"}})
	return h
}

func (h *harness) upload(t *testing.T, filename string, size int) map[string]any {
	t.Helper()
	body, ct := multipartFile(t, "file", filename, bytes.Repeat([]byte{'x'}, size))
	rec := performRequest(h.router, http.MethodPost, "/upload", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode(t, rec)
}

func (h *harness) postJSON(t *testing.T, path, body string) (int, map[string]any) {
	t.Helper()
	rec := performRequest(h.router, http.MethodPost, path, strings.NewReader(body), "application/json")
	return rec.Code, decode(t, rec)
}

func TestPhotoUploadShowDelete(t *testing.T) {
	h := newHarness(t)

	out := h.upload(t, "photo.jpg", 500)
	assert.Equal(t, "Image photo has been uploaded successfully.", out["message"])
	assert.True(t, h.blobs.Has("image_upload/photo.jpg"))
	require.Len(t, h.channel.Queued, 1)
	assert.Contains(t, h.channel.Queued[0].Body, "photo.jpg")

	rec := performRequest(h.router, http.MethodGet, "/show", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	shown := decode(t, rec)
	assert.EqualValues(t, 1, shown["count"])
	assert.Equal(t, "success", shown["message"])
	img := shown["images"].([]any)[0].(map[string]any)
	assert.Equal(t, "photo", img["name"])
	assert.Equal(t, "jpg", img["extention"])
	assert.Equal(t, "500", img["size"])
	assert.NotEmpty(t, img["uploaded_by"])

	code, del := h.postJSON(t, "/delete", `{"name":"photo"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Image has been deleted successfully.", del["message"])
	assert.EqualValues(t, 1, del["deleted"])
	assert.NotContains(t, del, "failures")
	assert.False(t, h.blobs.Has("image_upload/photo.jpg"))

	shown = decode(t, performRequest(h.router, http.MethodGet, "/show", nil, ""))
	assert.EqualValues(t, 0, shown["count"])
	assert.Empty(t, shown["images"])
}

func TestUpload_NoFile(t *testing.T) {
	h := newHarness(t)

	body, ct := multipartFile(t, "other", "photo.jpg", []byte("data"))
	rec := performRequest(h.router, http.MethodPost, "/upload", body, ct)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec), "error")

	rec = performRequest(h.router, http.MethodPost, "/upload", strings.NewReader(`{}`), "application/json")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec), "error")

	assert.Empty(t, h.blobs.Objects)
	assert.Empty(t, h.catalog.Rows)
	assert.Empty(t, h.channel.Queued)
}

func TestUpload_SanitizedName(t *testing.T) {
	h := newHarness(t)
	out := h.upload(t, "../../my holiday.final.png", 10)
	assert.Equal(t, "Image my_holiday.final has been uploaded successfully.", out["message"])
	assert.True(t, h.blobs.Has("image_upload/my_holiday.final.png"))
}

func TestUpload_TooLarge(t *testing.T) {
	h := newHarness(t)
	body, ct := multipartFile(t, "file", "big.jpg", bytes.Repeat([]byte{'x'}, 2<<20))
	rec := performRequest(h.router, http.MethodPost, "/upload", body, ct)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "1 MB")
	assert.Empty(t, h.blobs.Objects)
}

func TestUpload_ProviderFailureIs500(t *testing.T) {
	h := newHarness(t)
	h.blobs.FailPut["image_upload/photo.jpg"] = errors.New("AccessDenied")

	body, ct := multipartFile(t, "file", "photo.jpg", []byte("data"))
	rec := performRequest(h.router, http.MethodPost, "/upload", body, ct)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, h.catalog.Rows)
}

func TestDelete_Validation(t *testing.T) {
	h := newHarness(t)
	h.upload(t, "photo.jpg", 5)

	rec := performRequest(h.router, http.MethodPost, "/delete", strings.NewReader("name=photo"), "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, errNotJSON, decode(t, rec)["error"])

	code, out := h.postJSON(t, "/delete", `{}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, out, "error")

	code, out = h.postJSON(t, "/delete", `{"name":"nope"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "No image named nope was found.", out["error"])

	assert.Len(t, h.catalog.Rows, 1)
	assert.True(t, h.blobs.Has("image_upload/photo.jpg"))
}

func TestDelete_ReportsPartialFailures(t *testing.T) {
	h := newHarness(t)
	h.upload(t, "photo.jpg", 5)
	h.upload(t, "photo.png", 5)
	h.blobs.FailDelete["image_upload/photo.png"] = errors.New("SlowDown")

	code, out := h.postJSON(t, "/delete", `{"name":"photo"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, out["deleted"])
	failures := out["failures"].([]any)
	require.Len(t, failures, 1)
	f := failures[0].(map[string]any)
	assert.Equal(t, "blob", f["stage"])
	assert.Equal(t, "image_upload/photo.png", f["key"])
	assert.Empty(t, h.catalog.Rows)
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	h := newHarness(t)
	h.channel.Confirm = true

	code, out := h.postJSON(t, "/subscribe", `{"email":"not-an-email"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, out, "error")
	assert.Empty(t, h.channel.Subs)

	code, out = h.postJSON(t, "/subscribe", `{"email":"ada@example.com"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, out["message"], "ada@example.com")
	assert.Equal(t, 1, h.channel.Matching("ada@example.com"))

	code, out = h.postJSON(t, "/unsubscribe", `{"email":"ADA@example.com"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, out["removed"])
	assert.Zero(t, h.channel.Matching("ada@example.com"))

	code, out = h.postJSON(t, "/unsubscribe", `{"email":"ada@example.com"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ada@example.com was not subscribed.", out["message"])
}

func TestUnsubscribe_PendingIsNotReportedAsRemoved(t *testing.T) {
	h := newHarness(t)

	code, _ := h.postJSON(t, "/subscribe", `{"email":"p@example.com"}`)
	require.Equal(t, http.StatusOK, code)

	code, out := h.postJSON(t, "/unsubscribe", `{"email":"p@example.com"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, out["removed"])
	assert.EqualValues(t, 1, out["pending"])
	assert.Contains(t, out["message"], "awaiting confirmation")
	assert.NotContains(t, out["message"], "has been unsubscribed")
	assert.Equal(t, 1, h.channel.Matching("p@example.com"))
}

func TestUnsubscribe_MixedConfirmedAndPending(t *testing.T) {
	h := newHarness(t)
	h.channel.Confirm = true
	h.postJSON(t, "/subscribe", `{"email":"m@example.com"}`)
	h.channel.Confirm = false
	h.postJSON(t, "/subscribe", `{"email":"m@example.com"}`)

	_, out := h.postJSON(t, "/unsubscribe", `{"email":"m@example.com"}`)
	assert.EqualValues(t, 1, out["removed"])
	assert.EqualValues(t, 1, out["pending"])
	assert.Contains(t, out["message"], "could not be removed")
	assert.Equal(t, 1, h.channel.Matching("m@example.com"))
}

func TestLambda(t *testing.T) {
	h := newHarness(t)
	rec := performRequest(h.router, http.MethodGet, "/lambda", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Lambda function Task9-uploads-batch-notifier invoked, status 200", rec.Body.String())

	h.srv.invoker = stubInvoker{err: errors.New("ResourceNotFoundException")}
	rec = performRequest(h.router, http.MethodGet, "/lambda", nil, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "ResourceNotFoundException")
}

func TestIndexReportsPlacement(t *testing.T) {
	h := newHarness(t)
	out := decode(t, performRequest(h.router, http.MethodGet, "/", nil, ""))
	assert.Equal(t, map[string]any{"region": "eu-west-3", "az": "eu-west-3b"}, out)

	h.srv.placement = stubPlacement{err: errors.New("no route to host")}
	rec := performRequest(h.router, http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthzAndMetrics(t *testing.T) {
	h := newHarness(t)
	h.upload(t, "photo.jpg", 5)

	rec := performRequest(h.router, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	rec = performRequest(h.router, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `imagehub_uploads_total{outcome="ok"} 1`)
}

func TestCORSConfig(t *testing.T) {
	assert.True(t, corsConfig([]string{"*"}).AllowAllOrigins)
	assert.True(t, corsConfig(nil).AllowAllOrigins)
	cfg := corsConfig([]string{"https://a.example.com"})
	assert.False(t, cfg.AllowAllOrigins)
	assert.Equal(t, []string{"https://a.example.com"}, cfg.AllowOrigins)
}
