package strategy

import (
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/anime-shed/image-forensics-go/internal/analyzer"
	"github.com/anime-shed/image-forensics-go/pkg/models"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}
	return img
}

type failingDetector struct{}

func (failingDetector) Detect(image.Image) (*models.EdgeMap, error) {
	return nil, errors.New("detector exploded")
}

type panickingStrategy struct{}

func (panickingStrategy) Apply(image.Image, analyzer.AnalysisOptions, *models.ForensicReport) error {
	panic("boom")
}
func (panickingStrategy) Enabled(analyzer.AnalysisOptions) bool { return true }
func (panickingStrategy) GetStrategyName() string               { return "panicking" }

type panickingFinder struct{}

func (panickingFinder) Find(image.Image) ([]models.CloneCandidate, error) {
	panic("index out of range")
}
func (panickingFinder) BlockSize() int { return 16 }

func newContext(t *testing.T, pool *analyzer.WorkerPool) *AnalysisContext {
	t.Helper()
	return NewAnalysisContext(pool,
		NewEdgeStrategy(analyzer.NewEdgeDetector()),
		NewErrorLevelStrategy(analyzer.NewErrorLevelAnalyzer(t.TempDir())),
		NewCloneStrategy(analyzer.NewCloneFinder(16)),
	)
}

func TestAnalysisContext_AllStrategies(t *testing.T) {
	pool := analyzer.NewWorkerPool(2)
	pool.Start()
	defer pool.Close()

	for _, usePool := range []bool{true, false} {
		ctx := newContext(t, pool)
		opts := analyzer.DefaultOptions()
		opts.UseWorkerPool = usePool

		var report models.ForensicReport
		outcomes := ctx.ExecuteAnalysis(testImage(64, 32), opts, &report)

		if len(outcomes) != 3 {
			t.Fatalf("Expected 3 outcomes, got %d", len(outcomes))
		}
		for _, o := range outcomes {
			if o.Err != nil {
				t.Errorf("%s failed: %v", o.Strategy, o.Err)
			}
		}
		if !report.Edges.Available() || report.Edges.Count != 32 {
			t.Errorf("unexpected edge artifact %+v", report.Edges)
		}
		if !report.ELA.Available() || report.ELA.Quality != 90 {
			t.Errorf("unexpected ELA artifact %+v", report.ELA)
		}
		if report.Clones.BlockSize != 16 {
			t.Errorf("unexpected clone artifact %+v", report.Clones)
		}
	}
}

func TestAnalysisContext_SkipFlags(t *testing.T) {
	ctx := newContext(t, nil)

	var report models.ForensicReport
	outcomes := ctx.ExecuteAnalysis(testImage(16, 16), analyzer.FastOptions(), &report)

	if len(outcomes) != 0 {
		t.Errorf("Expected no outcomes with all transforms skipped, got %d", len(outcomes))
	}
	if report.Edges.Available() || report.ELA.Available() {
		t.Error("Expected no artifacts")
	}
}

func TestAnalysisContext_FailuresAreRecorded(t *testing.T) {
	ctx := NewAnalysisContext(nil, NewEdgeStrategy(failingDetector{}), panickingStrategy{})

	var report models.ForensicReport
	outcomes := ctx.ExecuteAnalysis(testImage(8, 8), analyzer.DefaultOptions(), &report)

	if len(outcomes) != 2 {
		t.Fatalf("Expected 2 outcomes, got %d", len(outcomes))
	}
	for _, o := range outcomes {
		if o.Err == nil {
			t.Errorf("Expected %s to fail", o.Strategy)
		}
	}
	if report.Edges.Error != "detector exploded" || report.Edges.Available() {
		t.Errorf("Expected edge failure in report, got %+v", report.Edges)
	}
}

func TestAnalysisContext_PanicMarksArtifact(t *testing.T) {
	pool := analyzer.NewWorkerPool(1)
	pool.Start()
	defer pool.Close()

	ctx := NewAnalysisContext(pool,
		NewEdgeStrategy(analyzer.NewEdgeDetector()),
		NewCloneStrategy(panickingFinder{}),
	)

	var report models.ForensicReport
	outcomes := ctx.ExecuteAnalysis(testImage(32, 32), analyzer.DefaultOptions(), &report)

	if len(outcomes) != 2 {
		t.Fatalf("Expected 2 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Err != nil {
		t.Errorf("Expected edge detection to succeed, got %v", outcomes[0].Err)
	}
	if outcomes[1].Strategy != "clone_detection" || outcomes[1].Err == nil {
		t.Fatalf("Expected clone detection to fail, got %+v", outcomes[1])
	}
	if !strings.Contains(report.Clones.Error, "index out of range") {
		t.Errorf("Expected panic message in clone artifact, got %q", report.Clones.Error)
	}
	if report.Clones.BlockSize != 16 {
		t.Errorf("Expected block size 16, got %d", report.Clones.BlockSize)
	}
	if !report.Edges.Available() {
		t.Errorf("Expected edge artifact to survive, got %+v", report.Edges)
	}
}

func TestAnalysisContext_ClosedPoolRunsInline(t *testing.T) {
	pool := analyzer.NewWorkerPool(1)
	pool.Start()
	pool.Close()

	ctx := newContext(t, pool)
	var report models.ForensicReport
	outcomes := ctx.ExecuteAnalysis(testImage(64, 32), analyzer.DefaultOptions(), &report)

	if len(outcomes) != 3 {
		t.Fatalf("Expected 3 outcomes, got %d", len(outcomes))
	}
	for _, o := range outcomes {
		if o.Err != nil {
			t.Errorf("%s failed: %v", o.Strategy, o.Err)
		}
	}
	if !report.Edges.Available() || !report.ELA.Available() {
		t.Errorf("Expected artifacts from inline run, got edges=%+v ela=%+v", report.Edges, report.ELA)
	}
	if stats := pool.GetStats(); stats.TotalJobs != 0 {
		t.Errorf("Expected no jobs accepted by a closed pool, got %d", stats.TotalJobs)
	}
}

func TestAnalysisContext_Strategies(t *testing.T) {
	names := newContext(t, nil).Strategies()
	want := []string{"edge_detection", "error_level_analysis", "clone_detection"}
	if len(names) != len(want) {
		t.Fatalf("Expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("strategy %d = %s, want %s", i, names[i], want[i])
		}
	}
}
