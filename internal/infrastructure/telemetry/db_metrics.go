package telemetry

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBMetricsConfig holds database metrics settings
type DBMetricsConfig struct {
	SlowQueryThreshold time.Duration // default 200ms
	PoolStatsInterval  time.Duration // default 15s
}

type queryStartKey struct{}

// DBMetrics counts statements per SQL verb, times them, flags slow ones per
// table and samples connection pool usage
type DBMetrics struct {
	pool     *Gauge
	poolMax  *Gauge
	queries  *Counter
	latency  *Histogram
	slow     *Counter
	slowOver time.Duration
	every    time.Duration

	logger  *zap.Logger
	sqlDB   *sql.DB
	sampler *sampler
}

// NewDBMetrics declares the database instruments on meter
func NewDBMetrics(meter metric.Meter, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	in := NewInstruments(meter)
	m := &DBMetrics{
		pool:     in.Gauge("db_pool_connections", "Connections in the pool by state", "{connection}"),
		poolMax:  in.Gauge("db_pool_connections_max", "Maximum open connections", "{connection}"),
		queries:  in.Counter("db_query_total", "Database queries by operation", "{query}"),
		latency:  in.Histogram("db_query_duration_seconds", "Database query latency", "s", DBDurationBuckets...),
		slow:     in.Counter("db_slow_query_total", "Queries slower than the slow query threshold", "{query}"),
		slowOver: orDefault(cfg.SlowQueryThreshold, 200*time.Millisecond),
		every:    orDefault(cfg.PoolStatsInterval, 15*time.Second),
		logger:   logger,
		sampler:  newSampler(),
	}
	if err := in.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordQuery records one statement
func (m *DBMetrics) RecordQuery(ctx context.Context, operation, table string, d time.Duration) {
	op := AttrDBOperation.String(orUnknown(strings.ToUpper(operation), "UNKNOWN"))
	m.queries.Inc(ctx, op)
	m.latency.Seconds(ctx, d, op)
	if d > m.slowOver {
		m.slow.Inc(ctx, AttrDBTable.String(orUnknown(table, "unknown")))
	}
}

func orUnknown(s, unknown string) string {
	if s == "" {
		return unknown
	}
	return s
}

// Register hooks every GORM processor on db and keeps its pool for sampling
func (m *DBMetrics) Register(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	m.sqlDB = sqlDB

	after := func(processor string, tx *gorm.DB) {
		if d, ok := elapsed(tx, queryStartKey{}); ok {
			m.RecordQuery(tx.Statement.Context, operationFor(processor, tx.Statement.SQL.String()), tx.Statement.Table, d)
		}
	}
	return registerAround(db, "db_metrics", stampStart(queryStartKey{}), after)
}

// StartPoolStatsCollection samples pool usage until Stop or ctx is done
func (m *DBMetrics) StartPoolStatsCollection(ctx context.Context) {
	if m.sqlDB == nil {
		m.logger.Warn("pool stats collection skipped: metrics not registered on a database")
		return
	}
	m.sampler.start(ctx, m.every, m.samplePool)
}

func (m *DBMetrics) samplePool(ctx context.Context) {
	s := m.sqlDB.Stats()
	m.poolMax.Set(ctx, int64(s.MaxOpenConnections))
	for state, n := range map[string]int{"idle": s.Idle, "in_use": s.InUse, "open": s.OpenConnections} {
		m.pool.Set(ctx, int64(n), AttrDBState.String(state))
	}
}

// Stop ends pool sampling. Safe to call more than once.
func (m *DBMetrics) Stop() {
	m.sampler.halt()
}

var sqlVerbs = map[string]string{
	"create": "INSERT",
	"query":  "SELECT",
	"update": "UPDATE",
	"delete": "DELETE",
}

// operationFor maps a GORM processor to a SQL verb. Row and raw statements
// are classified by their leading keyword.
func operationFor(processor, statement string) string {
	if verb, ok := sqlVerbs[processor]; ok {
		return verb
	}
	head := strings.ToUpper(strings.TrimSpace(statement))
	for _, verb := range sqlVerbs {
		if strings.HasPrefix(head, verb) {
			return verb
		}
	}
	return "OTHER"
}
