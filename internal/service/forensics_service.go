package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/anime-shed/image-forensics-go/internal/analyzer"
	apperrors "github.com/anime-shed/image-forensics-go/internal/errors"
	"github.com/anime-shed/image-forensics-go/internal/gateway"
	"github.com/anime-shed/image-forensics-go/internal/observer"
	"github.com/anime-shed/image-forensics-go/internal/repository"
	"github.com/anime-shed/image-forensics-go/internal/strategy"
	"github.com/anime-shed/image-forensics-go/pkg/models"
)

// ForensicsService runs the single-image forensic analysis pipeline
type ForensicsService interface {
	// Analyze resolves ref, analyzes it and returns the report. Only
	// invalid options, unresolvable sources and undecodable images are
	// returned as errors.
	Analyze(ctx context.Context, ref string, options analyzer.AnalysisOptions) (*models.ForensicReport, error)

	// AnalyzeFile analyzes a file already on local disk, reporting it under
	// the given source label
	AnalyzeFile(ctx context.Context, path, source string, options analyzer.AnalysisOptions) (*models.ForensicReport, error)

	// ValidateImageURL validates an image reference without fetching it
	ValidateImageURL(ref string) error
}

// Dependencies are the collaborators of the forensics service
type Dependencies struct {
	Repository repository.ImageRepository
	Gateway    *gateway.Gateway
	Classifier analyzer.ScreenshotClassifier
	Scorer     analyzer.ForgeryScorer
	Transforms *strategy.AnalysisContext
	Events     observer.Subject
}

type forensicsService struct {
	repo       repository.ImageRepository
	gateway    *gateway.Gateway
	classifier analyzer.ScreenshotClassifier
	scorer     analyzer.ForgeryScorer
	transforms *strategy.AnalysisContext
	events     observer.Subject
}

// NewForensicsService creates the orchestrator
func NewForensicsService(deps Dependencies) ForensicsService {
	s := &forensicsService{
		repo:       deps.Repository,
		gateway:    deps.Gateway,
		classifier: deps.Classifier,
		scorer:     deps.Scorer,
		transforms: deps.Transforms,
		events:     deps.Events,
	}
	if s.gateway == nil {
		s.gateway = gateway.New(nil, nil)
	}
	if s.classifier == nil {
		s.classifier = analyzer.NewScreenshotClassifier(false)
	}
	if s.scorer == nil {
		s.scorer = analyzer.NewForgeryScorer()
	}
	if s.transforms == nil {
		s.transforms = strategy.NewAnalysisContext(nil)
	}
	if s.events == nil {
		s.events = observer.NewEventPublisher()
	}
	return s
}

// ValidateImageURL validates an image reference
func (s *forensicsService) ValidateImageURL(ref string) error {
	if s.repo == nil {
		return apperrors.NewValidationError("no image repository configured", nil)
	}
	return s.repo.ValidateImageURL(ref)
}

// Analyze resolves the reference to a local file and analyzes it
func (s *forensicsService) Analyze(ctx context.Context, ref string, options analyzer.AnalysisOptions) (*models.ForensicReport, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	s.emit(ctx, observer.AnalysisEvent{EventType: observer.AnalysisStarted, Source: ref, Success: true})

	if s.repo == nil {
		err := apperrors.NewValidationError("no image repository configured", nil)
		s.fail(ctx, ref, start, observer.SourceResolveFailed, err)
		return nil, err
	}

	local, err := s.repo.Resolve(ctx, ref)
	if err != nil {
		s.fail(ctx, ref, start, observer.SourceResolveFailed, err)
		return nil, err
	}
	defer local.Release()

	s.emit(ctx, observer.AnalysisEvent{
		EventType: observer.SourceResolved,
		Source:    ref,
		Success:   true,
		Metadata:  map[string]interface{}{"path": local.Path, "temporary": local.Temporary},
	})

	return s.analyze(ctx, local.Path, ref, options, start)
}

// AnalyzeFile analyzes a local file without going through the repository
func (s *forensicsService) AnalyzeFile(ctx context.Context, path, source string, options analyzer.AnalysisOptions) (*models.ForensicReport, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}
	if source == "" {
		source = path
	}

	start := time.Now()
	s.emit(ctx, observer.AnalysisEvent{EventType: observer.AnalysisStarted, Source: source, Success: true})
	return s.analyze(ctx, path, source, options, start)
}

// analyze runs decode, metadata extraction, scoring and the pixel transforms
func (s *forensicsService) analyze(ctx context.Context, path, source string, options analyzer.AnalysisOptions, start time.Time) (*models.ForensicReport, error) {
	handle, err := s.gateway.Decode(path)
	if err != nil {
		s.fail(ctx, source, start, observer.DecodeFailed, err)
		return nil, err
	}
	s.emit(ctx, observer.AnalysisEvent{
		EventType: observer.ImageDecoded,
		Source:    source,
		Success:   true,
		Metadata: map[string]interface{}{
			"format": handle.Format,
			"width":  handle.Width,
			"height": handle.Height,
		},
	})

	bundle := s.gateway.Extract(ctx, handle)
	s.emit(ctx, observer.AnalysisEvent{
		EventType: observer.MetadataExtracted,
		Source:    source,
		Success:   bundle.Basic.OK() && bundle.Exif.OK() && bundle.Tool.OK(),
		Metadata: map[string]interface{}{
			"attributes":       len(bundle.Basic.Value()),
			"exif_tags":        len(bundle.Exif.Value()),
			"tool_output":      bundle.Tool.OK(),
			"attributes_error": bundle.Basic.Message(),
			"exif_error":       bundle.Exif.Message(),
			"tool_error":       bundle.Tool.Message(),
		},
	})

	screenshot := s.classifier.Classify(handle.Width, handle.Height, bundle.Exif)
	s.emit(ctx, observer.AnalysisEvent{
		EventType: observer.ScreenshotClassified,
		Source:    source,
		Success:   true,
		Metadata:  map[string]interface{}{"label": screenshot.Label, "score": screenshot.Score},
	})

	forgery := s.scorer.Score(bundle.Basic, bundle.Tool)
	s.emit(ctx, observer.AnalysisEvent{
		EventType: observer.ForgeryScored,
		Source:    source,
		Success:   true,
		Metadata:  map[string]interface{}{"score": forgery.Score, "rules": len(forgery.Contributions)},
	})

	report := &models.ForensicReport{
		ID:         uuid.NewString(),
		Source:     source,
		Timestamp:  start,
		Width:      handle.Width,
		Height:     handle.Height,
		Format:     handle.Format,
		TotalScore: models.TotalScore(screenshot.Score, forgery.Score),
		Screenshot: screenshot,
		Forgery:    forgery,
		Metadata:   metadataDump(bundle),
	}

	for _, outcome := range s.transforms.ExecuteAnalysis(handle.Image, options, report) {
		event := observer.AnalysisEvent{
			EventType: observer.TransformCompleted,
			Source:    source,
			Success:   outcome.Err == nil,
			Metadata:  map[string]interface{}{"transform": outcome.Strategy},
		}
		if outcome.Err != nil {
			event.EventType = observer.TransformFailed
			event.ErrorMessage = outcome.Err.Error()
		}
		s.emit(ctx, event)
	}

	report.ProcessingTimeSec = time.Since(start).Seconds()
	s.emit(ctx, observer.AnalysisEvent{
		EventType:      observer.AnalysisCompleted,
		Source:         source,
		Success:        true,
		ProcessingTime: time.Since(start),
		Metadata:       map[string]interface{}{"total_score": report.TotalScore, "report_id": report.ID},
	})

	return report, nil
}

func metadataDump(bundle gateway.MetadataBundle) models.MetadataDump {
	dump := models.MetadataDump{
		AttributesError: bundle.Basic.Message(),
		ExifError:       bundle.Exif.Message(),
		ToolError:       bundle.Tool.Message(),
	}
	if bundle.Basic.OK() {
		dump.Attributes = map[string]string(bundle.Basic.Value())
	}
	if bundle.Exif.OK() {
		dump.Exif = map[string]string(bundle.Exif.Value())
	}
	if bundle.Tool.OK() {
		dump.ToolOutput = bundle.Tool.Value()
	}
	return dump
}

func (s *forensicsService) emit(ctx context.Context, event observer.AnalysisEvent) {
	event.Timestamp = time.Now()
	s.events.NotifyObservers(ctx, event)
}

// fail emits the stage failure followed by the terminal failure event
func (s *forensicsService) fail(ctx context.Context, source string, start time.Time, stage observer.EventType, err error) {
	s.emit(ctx, observer.AnalysisEvent{EventType: stage, Source: source, ErrorMessage: err.Error()})
	s.emit(ctx, observer.AnalysisEvent{
		EventType:      observer.AnalysisFailed,
		Source:         source,
		ProcessingTime: time.Since(start),
		ErrorMessage:   err.Error(),
		Metadata:       map[string]interface{}{"stage": string(stage)},
	})
}
