package models

import "time"

// Screenshot verdict labels
const (
	LabelScreenResolution = "Possible Screenshot (Common Screen Resolution)"
	LabelMinimalEXIF      = "Possible Screenshot (Missing or Minimal EXIF Data)"
	LabelOriginal         = "Original Image (Not a Screenshot)"
)

// MaxTotalScore caps the aggregated forgery probability
const MaxTotalScore = 100

// ForensicReport is the terminal output of one analysis run
type ForensicReport struct {
	ID                string    `json:"id"`
	Source            string    `json:"source"`
	Timestamp         time.Time `json:"timestamp"`
	ProcessingTimeSec float64   `json:"processing_time_sec"`

	// Decoded image attributes
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`

	// Scores
	TotalScore int               `json:"total_score"`
	Screenshot ScreenshotVerdict `json:"screenshot"`
	Forgery    ForgeryVerdict    `json:"forgery"`

	// Diagnostics
	Metadata MetadataDump  `json:"metadata"`
	Edges    EdgeArtifact  `json:"edges"`
	ELA      ELAArtifact   `json:"ela"`
	Clones   CloneArtifact `json:"clones"`
}

// ScoreContribution is a named, labelled addend of a score
type ScoreContribution struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Score int    `json:"score"`
}

// ScreenshotVerdict is the screenshot classification and its sub-score
type ScreenshotVerdict struct {
	Label string `json:"label"`
	Score int    `json:"score"`
}

// ForgeryVerdict carries the uncapped heuristic sub-score
type ForgeryVerdict struct {
	Score         int                 `json:"score"`
	Contributions []ScoreContribution `json:"contributions,omitempty"`
}

// MetadataDump is the best-effort metadata collected for the report.
// Each *Error field is set when the matching extraction failed.
type MetadataDump struct {
	Attributes      map[string]string `json:"attributes,omitempty"`
	AttributesError string            `json:"attributes_error,omitempty"`
	Exif            map[string]string `json:"exif,omitempty"`
	ExifError       string            `json:"exif_error,omitempty"`
	ToolOutput      string            `json:"tool_output,omitempty"`
	ToolError       string            `json:"tool_error,omitempty"`
}

// EdgeArtifact holds the edge map or the reason it is unavailable
type EdgeArtifact struct {
	Map     *EdgeMap `json:"-"`
	Error   string   `json:"error,omitempty"`
	Count   int      `json:"edge_count"`
	Density float64  `json:"edge_density"`
}

// Available reports whether the edge map was produced
func (a EdgeArtifact) Available() bool {
	return a.Map != nil && a.Error == ""
}

// ELAArtifact holds the difference map or the reason it is unavailable
type ELAArtifact struct {
	Map     *DifferenceMap `json:"-"`
	Error   string         `json:"error,omitempty"`
	Quality int            `json:"quality"`
	Stats   ELAStats       `json:"stats"`
}

// Available reports whether the difference map was produced
func (a ELAArtifact) Available() bool {
	return a.Map != nil && a.Error == ""
}

// ELAStats summarises a difference map
type ELAStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Max    float64 `json:"max"`
}

// CloneArtifact lists candidate duplicated regions
type CloneArtifact struct {
	Error      string           `json:"error,omitempty"`
	BlockSize  int              `json:"block_size"`
	Candidates []CloneCandidate `json:"candidates,omitempty"`
}

// CloneCandidate is a pair of blocks with near-identical perceptual hashes
type CloneCandidate struct {
	SourceX  int `json:"source_x"`
	SourceY  int `json:"source_y"`
	TargetX  int `json:"target_x"`
	TargetY  int `json:"target_y"`
	Size     int `json:"size"`
	Distance int `json:"distance"`
}

// TotalScore aggregates the two sub-scores: min(100, screenshot + forgery)
func TotalScore(screenshot, forgery int) int {
	total := screenshot + forgery
	if total > MaxTotalScore {
		total = MaxTotalScore
	}
	if total < 0 {
		total = 0
	}
	return total
}
