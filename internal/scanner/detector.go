package scanner

// Detector inspects one file's content and reports issues. Detectors
// are stateless and pure: they never touch the filesystem, never share
// state between calls, and may be invoked concurrently for different
// files. New detectors plug into the pipeline through this interface
// without the pipeline knowing their concrete type.
type Detector interface {
	// Name identifies the detector in diagnostics.
	Name() string

	// Scan returns all issues found in content. path is the
	// slash-separated file path relative to the scan root and is used
	// only for labeling issues.
	Scan(path, content string) []Issue
}

// DefaultDetectors returns the standard detector set in registration
// order. The pipeline preserves this order when collecting issues.
func DefaultDetectors(cfg *Config) []Detector {
	return []Detector{
		NewSecretDetector(cfg),
		NewPatternDetector(),
	}
}
