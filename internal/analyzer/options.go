package analyzer

// AnalysisOptions configures one forensic analysis run
type AnalysisOptions struct {
	// JPEG quality used for error level analysis, 1..100
	ELAQuality int

	// Feature toggles
	SkipEdgeDetection  bool
	SkipErrorLevel     bool
	SkipCloneDetection bool

	// Performance options
	UseWorkerPool bool
	MaxWorkers    int
}

// DefaultOptions returns default analysis options
func DefaultOptions() AnalysisOptions {
	return AnalysisOptions{
		ELAQuality:         DefaultELAQuality,
		SkipEdgeDetection:  false,
		SkipErrorLevel:     false,
		SkipCloneDetection: false,
		UseWorkerPool:      true,
		MaxWorkers:         0, // Use default CPU count
	}
}

// FastOptions returns options for metadata-only triage
func FastOptions() AnalysisOptions {
	opts := DefaultOptions()
	opts.SkipEdgeDetection = true
	opts.SkipErrorLevel = true
	opts.SkipCloneDetection = true
	return opts
}

// WithQuality returns options with the given ELA quality
func (opts AnalysisOptions) WithQuality(quality int) AnalysisOptions {
	opts.ELAQuality = quality
	return opts
}

// WithoutCloneDetection disables the block hash clone search
func (opts AnalysisOptions) WithoutCloneDetection() AnalysisOptions {
	opts.SkipCloneDetection = true
	return opts
}

// Validate checks option ranges
func (opts AnalysisOptions) Validate() error {
	return ValidateQuality(opts.ELAQuality)
}
