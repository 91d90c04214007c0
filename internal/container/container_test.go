package container

import (
	"context"
	"image/color"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anime-shed/image-forensics-go/internal/analyzer"
	"github.com/anime-shed/image-forensics-go/internal/config"
	apperrors "github.com/anime-shed/image-forensics-go/internal/errors"
	"github.com/anime-shed/image-forensics-go/internal/gateway/gatewaytest"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.LogLevel = "error"
	cfg.Forensics.TempDir = t.TempDir()
	cfg.Forensics.ExifToolPath = "definitely-not-installed-tool"
	return cfg
}

func TestNewContainer(t *testing.T) {
	c, err := NewContainer(testConfig(t))
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	defer c.Close()

	if c.Handler() == nil || c.Service() == nil || c.Config() == nil {
		t.Fatal("Expected all components to be wired")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 from /health, got %d", rec.Code)
	}
}

func TestNewContainer_InvalidBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Forensics.ExifBackend = "exifread"
	if _, err := NewContainer(cfg); err == nil {
		t.Error("Expected error for unknown EXIF backend")
	}
}

func TestContainer_LocalSources(t *testing.T) {
	dir := t.TempDir()
	path := gatewaytest.WritePNG(t, dir, "screen.png", gatewaytest.Solid(1280, 720, color.White), nil)

	api, err := NewContainer(testConfig(t))
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	defer api.Close()

	if err := api.Service().ValidateImageURL(path); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected local paths to be rejected by default, got %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{"source":"`+path+`"}`))
	req.Header.Set("Content-Type", "application/json")
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected API to reject local path with 400, got %d", rec.Code)
	}

	cli, err := NewContainer(testConfig(t), WithLocalSources(true))
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	defer cli.Close()

	report, err := cli.Service().Analyze(context.Background(), path, analyzer.FastOptions())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if report.TotalScore != 35 {
		t.Errorf("Expected total 35, got %d", report.TotalScore)
	}

	small := gatewaytest.WritePNG(t, dir, "small.png", gatewaytest.Solid(64, 64, color.Gray{Y: 128}), nil)
	if _, err := cli.Service().Analyze(context.Background(), small, analyzer.DefaultOptions()); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	metrics := cli.Metrics()
	checks := map[string]interface{}{
		"total_analyses":  int64(2),
		"pool_total_jobs": int64(3),
	}
	for key, want := range checks {
		if metrics[key] != want {
			t.Errorf("%s = %v, want %v", key, metrics[key], want)
		}
	}
	for _, key := range []string{"pool_completed_jobs", "pool_active_workers"} {
		if _, ok := metrics[key]; !ok {
			t.Errorf("Expected %s in metrics", key)
		}
	}
}
