package store

import (
	"context"
	"errors"

	"github.com/kiranshivaraju/pulsehound/pkg/models"
)

var ErrNotFound = errors.New("resource not found")

// Store is the data access interface over the raw telemetry store and the
// permanent analysis store. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	// Windowed aggregate reads. Each covers the trailing windowMinutes from now.
	LogCounts(ctx context.Context, windowMinutes int) ([]models.LogLevelCount, error)
	ServiceMetrics(ctx context.Context, windowMinutes int) ([]models.ServiceMetrics, error)
	OperationTraces(ctx context.Context, windowMinutes int) ([]models.OperationTrace, error)

	// Root-cause context reads: bounded lookback, bounded count.
	RecentErrorLogs(ctx context.Context, lookbackMinutes, limit int) ([]models.ErrorLogLine, error)
	RecentFailedSpans(ctx context.Context, lookbackMinutes, limit int) ([]models.TraceSample, error)

	CreateAnalysisRecord(ctx context.Context, rec *models.AnalysisRecord) error
	ListAnalysisRecords(ctx context.Context, limit int) ([]*models.AnalysisRecord, error)
}
