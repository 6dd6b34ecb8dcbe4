package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"imagehub/pkg/applog"
	"imagehub/pkg/gallery"
	"imagehub/pkg/region"
	"imagehub/pkg/trigger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const errNotJSON = "The request payload is not in JSON format"

type functionInvoker interface {
	Invoke(ctx context.Context) (trigger.Result, error)
}

type placementLookup interface {
	Lookup(ctx context.Context) (region.Placement, error)
}

type server struct {
	gallery   *gallery.Service
	invoker   functionInvoker
	placement placementLookup
	registry  *prometheus.Registry
}

type routerOptions struct {
	MaxUploadBytes int64
	Origins        []string
}

func newRouter(srv *server, opts routerOptions) *gin.Engine {
	r := gin.New()
	if opts.MaxUploadBytes > 0 {
		r.MaxMultipartMemory = opts.MaxUploadBytes
	}
	r.Use(applog.Middleware(), gin.CustomRecovery(func(c *gin.Context, rec any) {
		zerolog.Ctx(c.Request.Context()).Error().Interface("panic", rec).Msg("handler panicked")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}))
	r.Use(cors.New(corsConfig(opts.Origins)))
	setupRoutes(r, srv, opts.MaxUploadBytes)
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, applog.RequestIDHeader)
	cfg.ExposeHeaders = []string{applog.RequestIDHeader}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

func setupRoutes(r *gin.Engine, srv *server, maxUpload int64) {
	r.GET("/", srv.indexHandler)
	r.POST("/upload", limitBody(maxUpload), srv.uploadHandler)
	r.GET("/show", srv.showHandler)
	r.POST("/delete", srv.deleteHandler)
	r.POST("/subscribe", srv.subscribeHandler)
	r.POST("/unsubscribe", srv.unsubscribeHandler)
	r.GET("/lambda", srv.lambdaHandler)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if srv.registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(srv.registry, promhttp.HandlerOpts{})))
	}
}

// limitBody caps the request body. Multipart parsing then fails with
// *http.MaxBytesError once the cap is crossed.
func limitBody(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if max > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		}
		c.Next()
	}
}

// internalError logs err and replies 500. Anticipated failures never come here; they
// are answered with 200 and an error message.
func internalError(c *gin.Context, msg string, err error) {
	zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg(msg)
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

// bindJSON decodes a JSON body into dst. It writes the error reply and returns false
// when the body is not JSON or misses required fields.
func bindJSON(c *gin.Context, dst any, invalid string) bool {
	if c.ContentType() != gin.MIMEJSON {
		c.JSON(http.StatusOK, gin.H{"error": errNotJSON})
		return false
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		zerolog.Ctx(c.Request.Context()).Debug().Err(err).Msg("rejected payload")
		c.JSON(http.StatusOK, gin.H{"error": invalid})
		return false
	}
	return true
}

func (s *server) indexHandler(c *gin.Context) {
	p, err := s.placement.Lookup(c.Request.Context())
	if err != nil {
		internalError(c, "instance metadata unavailable", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *server) uploadHandler(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			c.JSON(http.StatusOK, gin.H{"error": fmt.Sprintf("The file exceeds the %d MB upload limit", tooBig.Limit>>20)})
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			c.JSON(http.StatusOK, gin.H{"error": "No file was supplied in the 'file' field"})
		default:
			c.JSON(http.StatusOK, gin.H{"error": "The upload could not be read: " + err.Error()})
		}
		return
	}
	f, err := fh.Open()
	if err != nil {
		internalError(c, "failed to open uploaded file", err)
		return
	}
	defer f.Close()

	rec, err := s.gallery.Upload(c.Request.Context(), fh.Filename, f)
	switch {
	case errors.Is(err, gallery.ErrNoFile), errors.Is(err, gallery.ErrInvalidFilename):
		c.JSON(http.StatusOK, gin.H{"error": "The file name is not usable: " + fh.Filename})
		return
	case err != nil:
		internalError(c, "upload failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Image %s has been uploaded successfully.", rec.Name)})
}

type imageView struct {
	Name       string    `json:"name"`
	Size       string    `json:"size"`
	Extension  string    `json:"extention"`
	UploadedBy time.Time `json:"uploaded_by"`
}

func (s *server) showHandler(c *gin.Context) {
	items, err := s.gallery.List(c.Request.Context())
	if err != nil {
		internalError(c, "failed to list images", err)
		return
	}
	images := make([]imageView, 0, len(items))
	for _, it := range items {
		images = append(images, imageView{
			Name:       it.Name,
			Size:       it.Size,
			Extension:  it.Extension,
			UploadedBy: it.Uploaded,
		})
	}
	c.JSON(http.StatusOK, gin.H{"count": len(images), "images": images, "message": "success"})
}

func (s *server) deleteHandler(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if !bindJSON(c, &req, "The 'name' field is required") {
		return
	}
	report, err := s.gallery.Delete(c.Request.Context(), req.Name)
	switch {
	case errors.Is(err, gallery.ErrNotFound):
		c.JSON(http.StatusOK, gin.H{"error": fmt.Sprintf("No image named %s was found.", req.Name)})
		return
	case err != nil:
		internalError(c, "delete failed", err)
		return
	}
	if len(report.Failures) > 0 {
		c.JSON(http.StatusOK, gin.H{
			"message":  fmt.Sprintf("Image was only partially deleted: %d of %d removed.", report.Removed, report.Matched),
			"deleted":  report.Removed,
			"failures": report.Failures,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Image has been deleted successfully.", "deleted": report.Removed})
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (s *server) subscribeHandler(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, &req, "A valid 'email' field is required") {
		return
	}
	email := strings.TrimSpace(req.Email)
	if _, err := s.gallery.Subscribe(c.Request.Context(), email); err != nil {
		if errors.Is(err, gallery.ErrInvalidEmail) {
			c.JSON(http.StatusOK, gin.H{"error": "A valid 'email' field is required"})
			return
		}
		internalError(c, "subscribe failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Subscription requested for %s. Confirm it from the email that was sent.", email)})
}

func (s *server) unsubscribeHandler(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, &req, "A valid 'email' field is required") {
		return
	}
	email := strings.TrimSpace(req.Email)
	report, err := s.gallery.Unsubscribe(c.Request.Context(), email)
	if err != nil {
		if errors.Is(err, gallery.ErrInvalidEmail) {
			c.JSON(http.StatusOK, gin.H{"error": "A valid 'email' field is required"})
			return
		}
		internalError(c, "unsubscribe failed", err)
		return
	}
	var msg string
	switch {
	case report.Pending > 0:
		msg = fmt.Sprintf("%s has a subscription awaiting confirmation; it cannot be removed until it is confirmed.", email)
		if report.Removed > 0 {
			msg = fmt.Sprintf("%d confirmed subscription(s) for %s removed; %d awaiting confirmation could not be removed.",
				report.Removed, email, report.Pending)
		}
	case report.Removed > 0:
		msg = fmt.Sprintf("%s has been unsubscribed.", email)
	default:
		msg = fmt.Sprintf("%s was not subscribed.", email)
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "removed": report.Removed, "pending": report.Pending})
}

func (s *server) lambdaHandler(c *gin.Context) {
	res, err := s.invoker.Invoke(c.Request.Context())
	if err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("lambda invoke failed")
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, "Lambda invocation failed: %v", err)
		return
	}
	c.String(http.StatusOK, "%s", res.String())
}
