package container

import (
	"fmt"
	"net/http"

	"github.com/anime-shed/image-forensics-go/internal/analyzer"
	"github.com/anime-shed/image-forensics-go/internal/config"
	"github.com/anime-shed/image-forensics-go/internal/factory"
	"github.com/anime-shed/image-forensics-go/internal/gateway"
	"github.com/anime-shed/image-forensics-go/internal/logger"
	"github.com/anime-shed/image-forensics-go/internal/observer"
	"github.com/anime-shed/image-forensics-go/internal/repository"
	"github.com/anime-shed/image-forensics-go/internal/service"
	"github.com/anime-shed/image-forensics-go/internal/storage"
	"github.com/anime-shed/image-forensics-go/internal/strategy"
	"github.com/anime-shed/image-forensics-go/internal/transport"
	"github.com/anime-shed/image-forensics-go/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config          *config.Config
	imageFetcher    storage.ImageFetcher
	blobStorage     storage.BlobStorage
	imageRepository repository.ImageRepository
	workerPool      *analyzer.WorkerPool
	events          *observer.EventPublisher
	metrics         *observer.MetricsObserver
	service         service.ForensicsService
	handler         http.Handler
}

type options struct {
	allowLocal bool
	observers  []observer.Observer
}

// Option customises container construction
type Option func(*options)

// WithLocalSources lets references name files on the local disk. The HTTP
// API leaves this off; the CLI turns it on.
func WithLocalSources(allow bool) Option {
	return func(o *options) { o.allowLocal = allow }
}

// WithObserver subscribes an additional analysis observer
func WithObserver(obs observer.Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config, opts ...Option) (*Container, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	logger.SetLevel(cfg.LogLevel)
	f := cfg.Forensics

	// Metadata gateway
	exifReader, err := gateway.NewExifReader(f.ExifBackend)
	if err != nil {
		return nil, fmt.Errorf("failed to create EXIF reader: %w", err)
	}
	gw := gateway.New(exifReader, gateway.NewExifTool(f.ExifToolPath, f.ToolTimeout))

	components := factory.NewComponentFactory(cfg)

	// Sources
	imageFetcher := components.SourceFactory.CreateFetcher()
	blobStorage, err := components.SourceFactory.CreateBlobStorage()
	if err != nil {
		return nil, err
	}
	validator := validation.NewURLValidatorWithOptions(
		[]string{validation.SchemeHTTP, validation.SchemeHTTPS, validation.SchemeAzBlob},
		nil,
		o.allowLocal,
	)
	imageRepository := repository.NewSourceRepository(imageFetcher, blobStorage, validator, f.TempDir)

	// Pixel transforms
	strategies, err := components.StrategyFactory.CreateStrategies(f.Transforms)
	if err != nil {
		return nil, err
	}
	workerPool := analyzer.NewWorkerPool(f.MaxWorkers)
	workerPool.Start()
	transforms := strategy.NewAnalysisContext(workerPool, strategies...)

	// Events
	events := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)
	for _, obs := range o.observers {
		events.Subscribe(obs)
	}

	svc := service.NewForensicsService(service.Dependencies{
		Repository: imageRepository,
		Gateway:    gw,
		Classifier: analyzer.NewScreenshotClassifier(f.ScreenshotMatchRotated),
		Scorer:     analyzer.NewForgeryScorer(),
		Transforms: transforms,
		Events:     events,
	})

	return &Container{
		config:          cfg,
		imageFetcher:    imageFetcher,
		blobStorage:     blobStorage,
		imageRepository: imageRepository,
		workerPool:      workerPool,
		events:          events,
		metrics:         metrics,
		service:         svc,
		handler:         transport.NewHandler(svc, cfg),
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Service returns the forensics service
func (c *Container) Service() service.ForensicsService {
	return c.service
}

// Metrics returns the aggregated analysis counters along with the
// transform pool's job counters
func (c *Container) Metrics() map[string]interface{} {
	m := c.metrics.GetMetrics()
	stats := c.workerPool.GetStats()
	m["pool_total_jobs"] = stats.TotalJobs
	m["pool_completed_jobs"] = stats.CompletedJobs
	m["pool_active_workers"] = stats.ActiveWorkers
	return m
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Close stops the worker pool
func (c *Container) Close() {
	c.workerPool.Close()
}
