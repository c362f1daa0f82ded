package scanner

// Process exit codes. CI systems rely on findings and scanner failures
// being distinguishable, so these must never be conflated.
const (
	ExitOK       = 0
	ExitError    = 1
	ExitFindings = 3
)

// Gate applies the fail-on severity policy to a scan result and returns
// the process exit code. An empty threshold means the run is
// informational only and always passes.
func Gate(result *ScanResult, failOn Severity) int {
	if failOn == "" {
		return ExitOK
	}
	if result.HasSeverity(failOn) {
		return ExitFindings
	}
	return ExitOK
}
