package analyzer

import (
	"github.com/anime-shed/image-forensics-go/internal/gateway"
	"github.com/anime-shed/image-forensics-go/pkg/models"
)

// Screenshot sub-scores
const (
	ScoreScreenResolution = 35
	ScoreMinimalEXIF      = 50
	ScoreOriginal         = 0
)

// resolutionTolerance is the relative slack applied to each dimension
const resolutionTolerance = 0.10

// Resolution is a width×height pair
type Resolution struct {
	Width  int
	Height int
}

// CommonScreenResolutions are the reference desktop display sizes
var CommonScreenResolutions = []Resolution{
	{1920, 1080},
	{1366, 768},
	{1280, 720},
	{1440, 900},
	{1680, 1050},
	{1280, 800},
	{2560, 1440},
	{3840, 2160},
}

// screenshotClassifier decides whether an image is likely a screen capture
type screenshotClassifier struct {
	resolutions  []Resolution
	matchRotated bool
}

// NewScreenshotClassifier creates a classifier over CommonScreenResolutions.
// With matchRotated, portrait captures of the same screens also match.
func NewScreenshotClassifier(matchRotated bool) ScreenshotClassifier {
	return &screenshotClassifier{
		resolutions:  CommonScreenResolutions,
		matchRotated: matchRotated,
	}
}

// Classify applies the rules in priority order; exactly one fires
func (c *screenshotClassifier) Classify(width, height int, exif gateway.Result[gateway.ExifTags]) models.ScreenshotVerdict {
	if c.matchesScreen(width, height) {
		return models.ScreenshotVerdict{Label: models.LabelScreenResolution, Score: ScoreScreenResolution}
	}

	if !exif.OK() || len(exif.Value()) == 0 || !exif.Value().HasGroup(gateway.GroupImage) {
		return models.ScreenshotVerdict{Label: models.LabelMinimalEXIF, Score: ScoreMinimalEXIF}
	}

	return models.ScreenshotVerdict{Label: models.LabelOriginal, Score: ScoreOriginal}
}

func (c *screenshotClassifier) matchesScreen(width, height int) bool {
	for _, r := range c.resolutions {
		if withinTolerance(width, r.Width) && withinTolerance(height, r.Height) {
			return true
		}
		if c.matchRotated && withinTolerance(width, r.Height) && withinTolerance(height, r.Width) {
			return true
		}
	}
	return false
}

// withinTolerance reports |actual-reference| <= 10% of reference
func withinTolerance(actual, reference int) bool {
	diff := actual - reference
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) <= float64(reference)*resolutionTolerance
}
