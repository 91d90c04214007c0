package analyzer

import (
	"strings"

	"github.com/anime-shed/image-forensics-go/internal/gateway"
	"github.com/anime-shed/image-forensics-go/pkg/models"
)

// Forgery rule weights
const (
	ScoreSoftwareTag  = 40
	ScoreEditingTrace = 40
)

// editorSignatures are matched case-sensitively against tool output
var editorSignatures = []string{"Inkscape", "Photoshop"}

// forgeryScorer sums independent metadata-based editing signals
type forgeryScorer struct{}

// NewForgeryScorer creates the metadata heuristic scorer
func NewForgeryScorer() ForgeryScorer {
	return &forgeryScorer{}
}

// Score returns the uncapped sum of all fired rules. Failed extractions
// contribute nothing.
func (s *forgeryScorer) Score(attrs gateway.Result[gateway.Attributes], tool gateway.Result[string]) models.ForgeryVerdict {
	var verdict models.ForgeryVerdict

	if attrs.OK() {
		if software := attrs.Value()["Software"]; software != "" {
			verdict.Contributions = append(verdict.Contributions, models.ScoreContribution{
				Name:  "software_tag",
				Label: "Software attribute present: " + software,
				Score: ScoreSoftwareTag,
			})
		}
	}

	if tool.OK() {
		for _, sig := range editorSignatures {
			if strings.Contains(tool.Value(), sig) {
				verdict.Contributions = append(verdict.Contributions, models.ScoreContribution{
					Name:  "editing_software_trace",
					Label: "Metadata mentions " + sig,
					Score: ScoreEditingTrace,
				})
				break
			}
		}
	}

	for _, c := range verdict.Contributions {
		verdict.Score += c.Score
	}
	return verdict
}
