package constants

// DocStatus is the canonical status for a document moving through a batch.
type DocStatus string

// Stable values (these exact strings are stored in the batch log).
const (
	DocStatusQueued    DocStatus = "QUEUED"     // waiting its turn
	DocStatusRunning   DocStatus = "RUNNING"    // in progress
	DocStatusConvertOK DocStatus = "CONVERT_OK" // stage 1 completed (ASCII text obtained)
	DocStatusExtractOK DocStatus = "EXTRACT_OK" // stage 2 completed (JSON extracted)
	DocStatusSucceeded DocStatus = "SUCCEEDED"  // flat record produced and stored
	DocStatusFailed    DocStatus = "FAILED"     // terminal failure
)

// FailureKind distinguishes which boundary a document failed at.
type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailureConversion FailureKind = "CONVERSION_FAILURE"
	FailureExtraction FailureKind = "EXTRACTION_FAILURE"
	FailurePersist    FailureKind = "PERSIST_FAILURE"
)
