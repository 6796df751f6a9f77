package usage

import (
	"time"

	"github.com/hession/exatool/internal/tools"
)

// Store invocation ledger interface
type Store interface {
	// Recording
	RecordInvocation(inv tools.Invocation) error

	// Reporting
	Recent(limit int) ([]*Record, error)
	Summary() ([]*ToolSummary, error)
	Prune(before time.Time) (int64, error)

	// Close connection
	Close() error
}

// Record one stored invocation
type Record struct {
	ID         string
	Tool       string
	Status     string // "succeeded" | "failed"
	Stage      string
	ErrorKind  string
	ErrorCode  string
	DurationMS int64
	Items      int
	CreatedAt  time.Time
}

// ToolSummary aggregated usage of one tool
type ToolSummary struct {
	Tool          string
	Calls         int
	Failures      int
	AvgDurationMS float64
	Items         int
}
