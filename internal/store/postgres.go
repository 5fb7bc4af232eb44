package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/pulsehound/pkg/models"
)

// slowSpanThresholdMs marks a span as "slow" for root-cause context pulls.
const slowSpanThresholdMs = 1000

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Windowed aggregates ---

func (s *PostgresStore) LogCounts(ctx context.Context, windowMinutes int) ([]models.LogLevelCount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT service, level, COUNT(*)
		 FROM log_events
		 WHERE ts >= NOW() - make_interval(mins => $1)
		 GROUP BY service, level
		 ORDER BY service, level`, windowMinutes)
	if err != nil {
		return nil, fmt.Errorf("query log counts: %w", err)
	}
	defer rows.Close()

	var counts []models.LogLevelCount
	for rows.Next() {
		var c models.LogLevelCount
		if err := rows.Scan(&c.Service, &c.Level, &c.Count); err != nil {
			return nil, fmt.Errorf("scan log count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// ServiceMetrics aggregates request metrics per service. Percentiles are
// exact quantiles computed over the raw per-request rows in the window, and
// throughput is the plain sum of per-sample bytes/sec (not time-normalized).
func (s *PostgresStore) ServiceMetrics(ctx context.Context, windowMinutes int) ([]models.ServiceMetrics, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT service,
		        COUNT(*),
		        COUNT(*) FILTER (WHERE status_code >= 500),
		        COALESCE(AVG(latency_ms), 0),
		        COALESCE(PERCENTILE_CONT(0.95) WITHIN GROUP (ORDER BY latency_ms), 0),
		        COALESCE(PERCENTILE_CONT(0.99) WITHIN GROUP (ORDER BY latency_ms), 0),
		        COALESCE(AVG(cpu_percent), 0),
		        COALESCE(AVG(memory_percent), 0),
		        COALESCE(MAX(concurrent_connections), 0),
		        COALESCE(SUM(throughput_bytes), 0)
		 FROM request_metrics
		 WHERE ts >= NOW() - make_interval(mins => $1)
		 GROUP BY service
		 ORDER BY service`, windowMinutes)
	if err != nil {
		return nil, fmt.Errorf("query service metrics: %w", err)
	}
	defer rows.Close()

	var metrics []models.ServiceMetrics
	for rows.Next() {
		var m models.ServiceMetrics
		if err := rows.Scan(&m.Service, &m.RequestCount, &m.ErrorCount,
			&m.AvgLatencyMs, &m.P95LatencyMs, &m.P99LatencyMs,
			&m.AvgCPUPercent, &m.AvgMemoryPercent, &m.MaxConnections,
			&m.TotalThroughput); err != nil {
			return nil, fmt.Errorf("scan service metrics: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

func (s *PostgresStore) OperationTraces(ctx context.Context, windowMinutes int) ([]models.OperationTrace, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT service, operation,
		        COUNT(*),
		        COALESCE(AVG(duration_ms), 0),
		        COALESCE(PERCENTILE_CONT(0.95) WITHIN GROUP (ORDER BY duration_ms), 0),
		        COALESCE(PERCENTILE_CONT(0.99) WITHIN GROUP (ORDER BY duration_ms), 0),
		        COUNT(*) FILTER (WHERE status_code BETWEEN 400 AND 499),
		        COUNT(*) FILTER (WHERE status_code >= 500)
		 FROM trace_spans
		 WHERE ts >= NOW() - make_interval(mins => $1)
		 GROUP BY service, operation
		 ORDER BY service, operation`, windowMinutes)
	if err != nil {
		return nil, fmt.Errorf("query operation traces: %w", err)
	}
	defer rows.Close()

	var traces []models.OperationTrace
	for rows.Next() {
		var t models.OperationTrace
		if err := rows.Scan(&t.Service, &t.Operation, &t.TraceCount,
			&t.AvgDurationMs, &t.P95DurationMs, &t.P99DurationMs,
			&t.Status4xx, &t.Status5xx); err != nil {
			return nil, fmt.Errorf("scan operation trace: %w", err)
		}
		traces = append(traces, t)
	}
	return traces, rows.Err()
}

// --- Root-cause context ---

func (s *PostgresStore) RecentErrorLogs(ctx context.Context, lookbackMinutes, limit int) ([]models.ErrorLogLine, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ts, service, level, message
		 FROM log_events
		 WHERE ts >= NOW() - make_interval(mins => $1)
		   AND level IN ('error', 'critical', 'fatal')
		 ORDER BY ts DESC
		 LIMIT $2`, lookbackMinutes, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent error logs: %w", err)
	}
	defer rows.Close()

	var lines []models.ErrorLogLine
	for rows.Next() {
		var l models.ErrorLogLine
		if err := rows.Scan(&l.Timestamp, &l.Service, &l.Level, &l.Message); err != nil {
			return nil, fmt.Errorf("scan error log: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (s *PostgresStore) RecentFailedSpans(ctx context.Context, lookbackMinutes, limit int) ([]models.TraceSample, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ts, service, operation, duration_ms, status_code
		 FROM trace_spans
		 WHERE ts >= NOW() - make_interval(mins => $1)
		   AND (status_code >= 400 OR duration_ms > $2)
		 ORDER BY ts DESC
		 LIMIT $3`, lookbackMinutes, slowSpanThresholdMs, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent failed spans: %w", err)
	}
	defer rows.Close()

	var spans []models.TraceSample
	for rows.Next() {
		var sp models.TraceSample
		if err := rows.Scan(&sp.Timestamp, &sp.Service, &sp.Operation, &sp.DurationMs, &sp.StatusCode); err != nil {
			return nil, fmt.Errorf("scan failed span: %w", err)
		}
		spans = append(spans, sp)
	}
	return spans, rows.Err()
}

// --- Analysis records ---

func (s *PostgresStore) CreateAnalysisRecord(ctx context.Context, rec *models.AnalysisRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO analysis_records (id, provider, metric, severity, message, analysis, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.Provider, rec.Metric, rec.Severity, rec.Message, rec.Analysis, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("create analysis record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAnalysisRecords(ctx context.Context, limit int) ([]*models.AnalysisRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, provider, metric, severity, message, analysis, created_at
		 FROM analysis_records
		 ORDER BY created_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list analysis records: %w", err)
	}
	defer rows.Close()

	var recs []*models.AnalysisRecord
	for rows.Next() {
		var r models.AnalysisRecord
		if err := rows.Scan(&r.ID, &r.Provider, &r.Metric, &r.Severity, &r.Message, &r.Analysis, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan analysis record: %w", err)
		}
		recs = append(recs, &r)
	}
	return recs, rows.Err()
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
