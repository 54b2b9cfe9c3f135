package constants

// RunStatus is the canonical status for rows in the extraction table.
type RunStatus string

// Stable values (store these exact strings in DB).
const (
	RunStatusRunning RunStatus = "RUNNING" // in progress
	RunStatusTextOK  RunStatus = "TEXT_OK" // text assembled, fields not extracted
	RunStatusLLMOK   RunStatus = "LLM_OK"  // fields extracted
	RunStatusFailed  RunStatus = "FAILED"  // terminal failure, text may still be present
)

// RunStatuses lists every RunStatus as stored strings.
var RunStatuses = []string{
	string(RunStatusRunning),
	string(RunStatusTextOK),
	string(RunStatusLLMOK),
	string(RunStatusFailed),
}

// PageMethod records how a page's text was obtained.
type PageMethod string

const (
	PageMethodDirect    PageMethod = "direct"
	PageMethodOCR       PageMethod = "ocr"
	PageMethodOCRStrong PageMethod = "ocr-strong"
	PageMethodEmpty     PageMethod = "empty"
)
