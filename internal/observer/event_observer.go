package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// AnalysisEvent is one step of the forensic analysis progress trace
type AnalysisEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	Source         string                 `json:"source"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of analysis event
type EventType string

const (
	// AnalysisStarted when analysis begins
	AnalysisStarted EventType = "analysis_started"
	// AnalysisCompleted when the report has been assembled
	AnalysisCompleted EventType = "analysis_completed"
	// AnalysisFailed when analysis stops without a report
	AnalysisFailed EventType = "analysis_failed"
	// SourceResolved when the image reference is available as a local file
	SourceResolved EventType = "source_resolved"
	// SourceResolveFailed when the image reference cannot be fetched
	SourceResolveFailed EventType = "source_resolve_failed"
	// ImageDecoded when the image was decoded
	ImageDecoded EventType = "image_decoded"
	// DecodeFailed when the file is not a decodable image
	DecodeFailed EventType = "decode_failed"
	// MetadataExtracted when the three metadata extractions have finished
	MetadataExtracted EventType = "metadata_extracted"
	// ScreenshotClassified when the screenshot sub-score is known
	ScreenshotClassified EventType = "screenshot_classified"
	// ForgeryScored when the metadata heuristic sub-score is known
	ForgeryScored EventType = "forgery_scored"
	// TransformCompleted when a pixel transform produced its artifact
	TransformCompleted EventType = "transform_completed"
	// TransformFailed when a pixel transform could not run
	TransformFailed EventType = "transform_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event AnalysisEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event AnalysisEvent)
}

// LoggingObserver logs analysis events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles analysis events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"source":          event.Source,
		"processing_time": event.ProcessingTime,
		"success":         event.Success,
	}

	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}

	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case AnalysisStarted:
		entry.Info("Forensic analysis started")
	case AnalysisCompleted:
		entry.Info("Forensic analysis completed")
	case AnalysisFailed:
		entry.Error("Forensic analysis failed")
	case SourceResolved:
		entry.Debug("Image source resolved")
	case SourceResolveFailed:
		entry.Error("Image source could not be resolved")
	case ImageDecoded:
		entry.Debug("Image decoded")
	case DecodeFailed:
		entry.Error("Image decode failed")
	case MetadataExtracted:
		entry.Debug("Metadata extracted")
	case ScreenshotClassified:
		entry.Debug("Screenshot classified")
	case ForgeryScored:
		entry.Debug("Forgery heuristics scored")
	case TransformFailed:
		entry.Warn("Pixel transform failed")
	default:
		entry.Debug("Analysis event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver collects counters from analysis events
type MetricsObserver struct {
	mu                  sync.RWMutex
	totalAnalyses       int64
	successfulAnalyses  int64
	failedAnalyses      int64
	decodeFailures      int64
	transformFailures   int64
	totalProcessingTime time.Duration
	totalScore          int64
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles analysis events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case AnalysisStarted:
		o.totalAnalyses++
	case AnalysisCompleted:
		o.successfulAnalyses++
		o.totalProcessingTime += event.ProcessingTime
		if score, ok := event.Metadata["total_score"].(int); ok {
			o.totalScore += int64(score)
		}
	case AnalysisFailed:
		o.failedAnalyses++
	case DecodeFailed:
		o.decodeFailures++
	case TransformFailed:
		o.transformFailures++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avgProcessingTime := time.Duration(0)
	avgScore := 0.0
	if o.successfulAnalyses > 0 {
		avgProcessingTime = o.totalProcessingTime / time.Duration(o.successfulAnalyses)
		avgScore = float64(o.totalScore) / float64(o.successfulAnalyses)
	}

	return map[string]interface{}{
		"total_analyses":        o.totalAnalyses,
		"successful_analyses":   o.successfulAnalyses,
		"failed_analyses":       o.failedAnalyses,
		"decode_failures":       o.decodeFailures,
		"transform_failures":    o.transformFailures,
		"total_processing_time": o.totalProcessingTime,
		"avg_processing_time":   avgProcessingTime,
		"avg_total_score":       avgScore,
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers the event to every observer in subscription
// order before returning, so each observer sees the trace in order
func (p *EventPublisher) NotifyObservers(ctx context.Context, event AnalysisEvent) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	for _, obs := range observers {
		notify(ctx, obs, event)
	}
}

func notify(ctx context.Context, obs Observer, event AnalysisEvent) {
	defer func() {
		if r := recover(); r != nil {
			// Log panic but don't crash the application
			logrus.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}
