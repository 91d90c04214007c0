package analyzer

import (
	"testing"

	apperrors "github.com/anime-shed/image-forensics-go/internal/errors"
	"github.com/anime-shed/image-forensics-go/internal/gateway"
)

func TestForgeryScorer_Score(t *testing.T) {
	failedAttrs := gateway.Failure[gateway.Attributes](apperrors.NewExtractionError("bad", nil))
	failedTool := gateway.Failure[string](apperrors.NewExtractionError("exiftool not found", nil))

	tests := []struct {
		name  string
		attrs gateway.Result[gateway.Attributes]
		tool  gateway.Result[string]
		want  int
	}{
		{"no signals", gateway.Success(gateway.Attributes{}), gateway.Success("File Type : PNG"), 0},
		{"software attribute", gateway.Success(gateway.Attributes{"Software": "GIMP"}), gateway.Success(""), 40},
		{"empty software attribute", gateway.Success(gateway.Attributes{"Software": ""}), gateway.Success(""), 0},
		{"photoshop trace", gateway.Success(gateway.Attributes{}), gateway.Success("Creator Tool : Adobe Photoshop 2024"), 40},
		{"inkscape trace", gateway.Success(gateway.Attributes{}), gateway.Success("Generator : Inkscape 1.3"), 40},
		{"both editors count once", gateway.Success(gateway.Attributes{}), gateway.Success("Inkscape then Photoshop"), 40},
		{"case sensitive", gateway.Success(gateway.Attributes{}), gateway.Success("photoshop"), 0},
		{"both rules", gateway.Success(gateway.Attributes{"Software": "Adobe Photoshop"}), gateway.Success("Software : Adobe Photoshop"), 80},
		{"all failures", failedAttrs, failedTool, 0},
		{"tool failure only", gateway.Success(gateway.Attributes{"Software": "x"}), failedTool, 40},
	}

	scorer := NewForgeryScorer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.Score(tt.attrs, tt.tool)
			if got.Score != tt.want {
				t.Errorf("Score = %d, want %d (contributions %+v)", got.Score, tt.want, got.Contributions)
			}

			sum := 0
			for _, c := range got.Contributions {
				sum += c.Score
			}
			if sum != got.Score {
				t.Errorf("contributions sum to %d, score is %d", sum, got.Score)
			}
		})
	}
}
