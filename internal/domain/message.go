package domain

// JobMessage is the payload published to the processing queue for each job.
// It carries everything the worker needs to locate the job row and the
// uploaded document; the optional context fields ride along unchanged.
type JobMessage struct {
	JobID         string `json:"job_id"`
	StoragePath   string `json:"storage_path"`
	LedgerName    string `json:"ledger_name,omitempty"`
	FinancialYear string `json:"financial_year,omitempty"`
}
