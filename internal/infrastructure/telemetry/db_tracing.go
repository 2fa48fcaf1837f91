package telemetry

import (
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig controls the spans opened for plan and execution statements
type DBTracingConfig struct {
	Enabled    bool
	LogFullSQL bool          // bind variables go into db.statement
	SlowQuery  time.Duration // default 200ms
	System     string        // db.system, default postgresql
}

type spanStartKey struct{}

// DBTracingPlugin installs otelgorm and adds row counts, the table and a
// slow-statement marker to each span it opens
type DBTracingPlugin struct {
	cfg    DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin fills in the defaults; call Register to install it
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	cfg.SlowQuery = orDefault(cfg.SlowQuery, 200*time.Millisecond)
	if cfg.System == "" {
		cfg.System = "postgresql"
	}
	return &DBTracingPlugin{cfg: cfg, logger: logger}
}

// Register installs the plugin on db. Disabled plugins register nothing.
func (p *DBTracingPlugin) Register(db *gorm.DB) error {
	if !p.cfg.Enabled {
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.cfg.System)}
	if !p.cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	err := registerAround(db, "otel_annotate", stampStart(spanStartKey{}), func(_ string, tx *gorm.DB) {
		p.annotate(tx)
	})
	if err != nil {
		return err
	}

	p.logger.Info("tracing sql statements",
		zap.String("system", p.cfg.System),
		zap.Duration("slow_query", p.cfg.SlowQuery),
	)
	return nil
}

func (p *DBTracingPlugin) annotate(tx *gorm.DB) {
	if tx.Statement.Context == nil {
		return
	}
	span := trace.SpanFromContext(tx.Statement.Context)
	if !span.IsRecording() {
		return
	}

	attrs := []attribute.KeyValue{attribute.Int64("db.rows_affected", tx.Statement.RowsAffected)}
	if tx.Statement.Table != "" {
		attrs = append(attrs, attribute.String("db.sql.table", tx.Statement.Table))
	}
	if d, ok := elapsed(tx, spanStartKey{}); ok && d > p.cfg.SlowQuery {
		attrs = append(attrs,
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", d.Milliseconds()))
		span.AddEvent("slow_query", trace.WithAttributes(attribute.Int64("threshold_ms", p.cfg.SlowQuery.Milliseconds())))
	}
	span.SetAttributes(attrs...)

	if err := tx.Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
