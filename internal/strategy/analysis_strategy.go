package strategy

import (
	"fmt"
	"image"
	"sync"

	"github.com/anime-shed/image-forensics-go/internal/analyzer"
	apperrors "github.com/anime-shed/image-forensics-go/internal/errors"
	"github.com/anime-shed/image-forensics-go/pkg/models"
)

// TransformStrategy is one pixel forensics transform. Apply writes only its
// own artifact of the report, recording failures there instead of failing
// the run.
type TransformStrategy interface {
	Apply(img image.Image, opts analyzer.AnalysisOptions, report *models.ForensicReport) error
	Enabled(opts analyzer.AnalysisOptions) bool
	GetStrategyName() string
}

// EdgeStrategy attaches the Canny edge map
type EdgeStrategy struct {
	detector analyzer.EdgeDetector
}

// NewEdgeStrategy creates the edge map transform
func NewEdgeStrategy(detector analyzer.EdgeDetector) TransformStrategy {
	return &EdgeStrategy{detector: detector}
}

// Apply runs edge detection
func (s *EdgeStrategy) Apply(img image.Image, opts analyzer.AnalysisOptions, report *models.ForensicReport) error {
	em, err := s.detector.Detect(img)
	if err != nil {
		report.Edges = models.EdgeArtifact{Error: err.Error()}
		return err
	}
	report.Edges = models.EdgeArtifact{
		Map:     em,
		Count:   em.Count(),
		Density: analyzer.EdgeDensity(em),
	}
	return nil
}

// Enabled reports whether edge detection was requested
func (s *EdgeStrategy) Enabled(opts analyzer.AnalysisOptions) bool {
	return !opts.SkipEdgeDetection
}

// GetStrategyName returns the strategy name
func (s *EdgeStrategy) GetStrategyName() string {
	return "edge_detection"
}

// ErrorLevelStrategy attaches the ELA difference map
type ErrorLevelStrategy struct {
	ela analyzer.ErrorLevelAnalyzer
}

// NewErrorLevelStrategy creates the error level analysis transform
func NewErrorLevelStrategy(ela analyzer.ErrorLevelAnalyzer) TransformStrategy {
	return &ErrorLevelStrategy{ela: ela}
}

// Apply runs error level analysis at opts.ELAQuality
func (s *ErrorLevelStrategy) Apply(img image.Image, opts analyzer.AnalysisOptions, report *models.ForensicReport) error {
	dm, err := s.ela.Analyze(img, opts.ELAQuality)
	if err != nil {
		report.ELA = models.ELAArtifact{Quality: opts.ELAQuality, Error: err.Error()}
		return err
	}
	report.ELA = models.ELAArtifact{
		Map:     dm,
		Quality: opts.ELAQuality,
		Stats:   analyzer.DifferenceStats(dm),
	}
	return nil
}

// Enabled reports whether error level analysis was requested
func (s *ErrorLevelStrategy) Enabled(opts analyzer.AnalysisOptions) bool {
	return !opts.SkipErrorLevel
}

// GetStrategyName returns the strategy name
func (s *ErrorLevelStrategy) GetStrategyName() string {
	return "error_level_analysis"
}

// CloneStrategy attaches duplicated-region candidates
type CloneStrategy struct {
	finder analyzer.CloneFinder
}

// NewCloneStrategy creates the clone candidate transform
func NewCloneStrategy(finder analyzer.CloneFinder) TransformStrategy {
	return &CloneStrategy{finder: finder}
}

// Apply runs the block hash search
func (s *CloneStrategy) Apply(img image.Image, opts analyzer.AnalysisOptions, report *models.ForensicReport) error {
	candidates, err := s.finder.Find(img)
	report.Clones = models.CloneArtifact{BlockSize: s.finder.BlockSize(), Candidates: candidates}
	if err != nil {
		report.Clones.Error = err.Error()
		return err
	}
	return nil
}

// Enabled reports whether clone detection was requested
func (s *CloneStrategy) Enabled(opts analyzer.AnalysisOptions) bool {
	return !opts.SkipCloneDetection
}

// GetStrategyName returns the strategy name
func (s *CloneStrategy) GetStrategyName() string {
	return "clone_detection"
}

// Outcome is the result of one strategy run
type Outcome struct {
	Strategy string
	Err      error
}

// AnalysisContext runs a set of transform strategies against one image
type AnalysisContext struct {
	strategies []TransformStrategy
	pool       *analyzer.WorkerPool
}

// NewAnalysisContext creates a context; a nil pool runs strategies on
// plain goroutines
func NewAnalysisContext(pool *analyzer.WorkerPool, strategies ...TransformStrategy) *AnalysisContext {
	return &AnalysisContext{
		strategies: strategies,
		pool:       pool,
	}
}

// Strategies returns the registered strategy names
func (c *AnalysisContext) Strategies() []string {
	names := make([]string, 0, len(c.strategies))
	for _, s := range c.strategies {
		names = append(names, s.GetStrategyName())
	}
	return names
}

// ExecuteAnalysis runs every enabled strategy concurrently and waits for
// all of them. Outcomes are returned in registration order.
func (c *AnalysisContext) ExecuteAnalysis(img image.Image, opts analyzer.AnalysisOptions, report *models.ForensicReport) []Outcome {
	var enabled []TransformStrategy
	for _, s := range c.strategies {
		if s.Enabled(opts) {
			enabled = append(enabled, s)
		}
	}

	outcomes := make([]Outcome, len(enabled))
	var wg sync.WaitGroup
	for i, s := range enabled {
		i, s := i, s
		job := func() {
			defer wg.Done()
			outcomes[i] = Outcome{Strategy: s.GetStrategyName(), Err: safeApply(s, img, opts, report)}
		}

		wg.Add(1)
		switch {
		case opts.UseWorkerPool && c.pool != nil:
			if !c.pool.Submit(job) {
				job()
			}
		case opts.UseWorkerPool:
			go job()
		default:
			job()
		}
	}
	wg.Wait()
	return outcomes
}

func safeApply(s TransformStrategy, img image.Image, opts analyzer.AnalysisOptions, report *models.ForensicReport) (err error) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("%s panicked: %v", s.GetStrategyName(), r)
			recordPanic(s, msg, opts, report)
			err = apperrors.NewTransformError(msg, nil)
		}
	}()
	return s.Apply(img, opts, report)
}

// recordPanic marks the strategy's own artifact as failed
func recordPanic(s TransformStrategy, msg string, opts analyzer.AnalysisOptions, report *models.ForensicReport) {
	switch st := s.(type) {
	case *EdgeStrategy:
		report.Edges = models.EdgeArtifact{Error: msg}
	case *ErrorLevelStrategy:
		report.ELA = models.ELAArtifact{Quality: opts.ELAQuality, Error: msg}
	case *CloneStrategy:
		report.Clones = models.CloneArtifact{BlockSize: st.finder.BlockSize(), Error: msg}
	}
}
