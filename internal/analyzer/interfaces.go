package analyzer

import (
	"image"

	"github.com/anime-shed/image-forensics-go/internal/gateway"
	"github.com/anime-shed/image-forensics-go/pkg/models"
)

// ScreenshotClassifier decides whether an image looks like a screen capture
type ScreenshotClassifier interface {
	Classify(width, height int, exif gateway.Result[gateway.ExifTags]) models.ScreenshotVerdict
}

// ForgeryScorer turns metadata signals into an additive forgery sub-score
type ForgeryScorer interface {
	Score(attrs gateway.Result[gateway.Attributes], tool gateway.Result[string]) models.ForgeryVerdict
}

// EdgeDetector produces a binary edge map
type EdgeDetector interface {
	Detect(img image.Image) (*models.EdgeMap, error)
}

// ErrorLevelAnalyzer produces a recompression difference map
type ErrorLevelAnalyzer interface {
	Analyze(img image.Image, quality int) (*models.DifferenceMap, error)
}

// CloneFinder lists candidate duplicated regions
type CloneFinder interface {
	Find(img image.Image) ([]models.CloneCandidate, error)
	BlockSize() int
}
