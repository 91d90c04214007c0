package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/image-forensics-go/internal/analyzer"
	"github.com/anime-shed/image-forensics-go/internal/config"
	apperrors "github.com/anime-shed/image-forensics-go/internal/errors"
	"github.com/anime-shed/image-forensics-go/internal/logger"
	"github.com/anime-shed/image-forensics-go/internal/service"
	"github.com/anime-shed/image-forensics-go/pkg/models"
)

// ELA deltas are small; rendered maps are amplified to be visible
const elaRenderScale = 10

// NewHandler builds the HTTP API around the forensics service
func NewHandler(svc service.ForensicsService, cfg *config.Config) http.Handler {
	r := gin.New()

	// Add middleware
	r.Use(
		gin.Recovery(),
		requestLogger(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)
	r.POST("/analyze", analyzeImage(svc, cfg))

	return r
}

func analyzeImage(svc service.ForensicsService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.AnalysisTimeout)
		defer cancel()

		var (
			report    *models.ForensicReport
			artifacts bool
			err       error
		)

		if strings.HasPrefix(c.ContentType(), "multipart/") {
			report, artifacts, err = analyzeUpload(ctx, c, svc, cfg)
		} else {
			report, artifacts, err = analyzeReference(ctx, c, svc, cfg)
		}
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "analysis failed", err)
			return
		}

		// Query parameter takes precedence over the request body
		if q := c.Query("artifacts"); q != "" {
			artifacts, _ = strconv.ParseBool(q)
		}

		resp := models.AnalysisResponse{ForensicReport: report}
		if artifacts {
			rendered, err := renderArtifacts(report)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "failed to render artifacts", err)
				return
			}
			resp.Artifacts = rendered
		}

		logger.WithFields(logrus.Fields{
			"report_id":          report.ID,
			"source":             report.Source,
			"total_score":        report.TotalScore,
			"processing_time_ms": time.Since(startTime).Milliseconds(),
		}).Info("Forensic analysis completed successfully")

		c.JSON(http.StatusOK, resp)
	}
}

// analyzeReference handles a JSON body naming a URL or blob reference
func analyzeReference(ctx context.Context, c *gin.Context, svc service.ForensicsService, cfg *config.Config) (*models.ForensicReport, bool, error) {
	var req models.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, false, apperrors.NewValidationError("invalid request format", err)
	}

	if err := svc.ValidateImageURL(req.Source); err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"source": req.Source,
			"ip":     c.ClientIP(),
		}).Warn("Rejected image reference")
		return nil, false, err
	}

	opts, err := optionsFor(c, req.Quality, cfg)
	if err != nil {
		return nil, false, err
	}

	report, err := svc.Analyze(ctx, req.Source, opts)
	return report, req.Artifacts, err
}

// analyzeUpload handles a multipart form carrying the image under "image"
func analyzeUpload(ctx context.Context, c *gin.Context, svc service.ForensicsService, cfg *config.Config) (*models.ForensicReport, bool, error) {
	header, err := c.FormFile("image")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, false, apperrors.NewValidationError("request body too large", err)
		}
		return nil, false, apperrors.NewValidationError("multipart form must carry an \"image\" file", err)
	}

	var quality *int
	if v, ok := c.GetPostForm("quality"); ok {
		q, err := strconv.Atoi(v)
		if err != nil {
			return nil, false, apperrors.NewValidationError("quality must be an integer", err)
		}
		quality = &q
	}
	opts, err := optionsFor(c, quality, cfg)
	if err != nil {
		return nil, false, err
	}

	path := filepath.Join(cfg.Forensics.TempDir, "upload-"+uuid.NewString()+filepath.Ext(header.Filename))
	if err := c.SaveUploadedFile(header, path); err != nil {
		return nil, false, apperrors.NewInternalError("failed to store upload", err)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.WithError(err).WithField("path", path).Warn("Failed to remove upload")
		}
	}()

	artifacts, _ := strconv.ParseBool(c.PostForm("artifacts"))
	report, err := svc.AnalyzeFile(ctx, path, header.Filename, opts)
	return report, artifacts, err
}

// optionsFor resolves the ELA quality: query, then body, then config
// default. A nil body quality means the body did not set one.
func optionsFor(c *gin.Context, bodyQuality *int, cfg *config.Config) (analyzer.AnalysisOptions, error) {
	quality := cfg.Forensics.ELAQuality
	if bodyQuality != nil {
		quality = *bodyQuality
	}
	if q := c.Query("quality"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil {
			return analyzer.AnalysisOptions{}, apperrors.NewValidationError("quality must be an integer", err)
		}
		quality = v
	}

	opts := analyzer.DefaultOptions()
	if fast, _ := strconv.ParseBool(c.Query("fast")); fast {
		opts = analyzer.FastOptions()
	}
	opts = opts.WithQuality(quality)
	opts.MaxWorkers = cfg.Forensics.MaxWorkers
	return opts, opts.Validate()
}

// renderArtifacts encodes the available pixel maps as base64 PNGs
func renderArtifacts(report *models.ForensicReport) (*models.RenderedArtifacts, error) {
	out := &models.RenderedArtifacts{}
	if report.Edges.Available() {
		s, err := encodePNG(report.Edges.Map.Image())
		if err != nil {
			return nil, fmt.Errorf("edge map: %w", err)
		}
		out.EdgesPNG = s
	}
	if report.ELA.Available() {
		s, err := encodePNG(report.ELA.Map.Image(elaRenderScale))
		if err != nil {
			return nil, fmt.Errorf("difference map: %w", err)
		}
		out.ELAPNG = s
	}
	return out, nil
}

func encodePNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"user_agent":  c.Request.UserAgent(),
			"ip":          c.ClientIP(),
		}).Debug("Request handled")
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err.Err)
		}
	}
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	// Fallback to context-based errors
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	// Log the error with context
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	resp := models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		resp.Type = string(appErr.Type)
	}
	c.AbortWithStatusJSON(code, resp)
}
