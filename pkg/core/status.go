package core

import "time"

// TableState is the processing state of a table or view index.
type TableState string

// Table states.
const (
	TableStateProcessing       TableState = "PROCESSING"
	TableStateAvailable        TableState = "AVAILABLE"
	TableStateProcessingFailed TableState = "PROCESSING_FAILED"
)

// TableStatus is the persisted status of a table index.
type TableStatus struct {
	ID                  IDAndVersion
	State               TableState
	ResetToken          string
	LastTableChangeEtag string
	ProgressMessage     string
	ProgressCurrent     int64
	ProgressTotal       int64
	ErrorMessage        string
	ErrorDetails        string
	ChangedOn           time.Time
}

// MaterializedView is a table whose content is defined by a query over
// other tables.
type MaterializedView struct {
	ID          IDAndVersion
	DefiningSQL string
}
