package validation

// Enum values - these MUST match DB CHECK constraints in database package.
var (
	ValidCableStatuses = []string{"in_progress", "qc_passed", "qc_failed", "completed"}
	ValidQCStatuses    = []string{"pass", "fail"}
)
