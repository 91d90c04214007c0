package models

// AnalysisRequest represents a JSON request for forensic analysis of a
// remote or server-local image reference
type AnalysisRequest struct {
	Source    string `json:"source" binding:"required"`
	Quality   *int   `json:"quality,omitempty"`
	Artifacts bool   `json:"artifacts,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
}

// AnalysisResponse wraps a report with optional rendered artifacts
type AnalysisResponse struct {
	*ForensicReport
	Artifacts *RenderedArtifacts `json:"artifacts,omitempty"`
}

// RenderedArtifacts carries base64-encoded PNG renderings of the pixel maps
type RenderedArtifacts struct {
	EdgesPNG string `json:"edges_png,omitempty"`
	ELAPNG   string `json:"ela_png,omitempty"`
}
