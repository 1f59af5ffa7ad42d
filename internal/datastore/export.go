package datastore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nilomr/majorvocal/internal/errors"
	"github.com/nilomr/majorvocal/internal/logger"
)

// defaultExportBatchSize is used when ExportOptions.BatchSize is not set.
const defaultExportBatchSize = 1000

// ExportOptions controls Export.
type ExportOptions struct {
	BatchSize int  // rows per batch, 0 for the default
	Clean     bool // delete all target rows before copying
	Verify    bool // compare row counts after copying
}

// ExportStats reports what Export copied.
type ExportStats struct {
	StartTime time.Time
	EndTime   time.Time
	Tables    []TableStats
}

// TableStats tracks per-table export counters.
type TableStats struct {
	Name     string
	Copied   int64
	Skipped  int64 // rows already present in the target
	Errors   int64 // rows in batches that failed to insert
	Duration time.Duration
}

// Totals sums the counters over all tables.
func (s *ExportStats) Totals() (copied, skipped, failed int64) {
	for _, t := range s.Tables {
		copied += t.Copied
		skipped += t.Skipped
		failed += t.Errors
	}
	return copied, skipped, failed
}

// exportTables lists the tables in copy order.
var exportTables = []struct {
	name   string
	model  any
	export func(ctx context.Context, e *exporter, name string) (*TableStats, error)
}{
	{"runs", &Run{}, exportTable[Run]},
	{"detection_records", &DetectionRecord{}, exportTable[DetectionRecord]},
	{"daily_counts", &DailyCount{}, exportTable[DailyCount]},
}

type exporter struct {
	source    *gorm.DB
	target    *gorm.DB
	batchSize int
	log       logger.Logger
}

// Export copies every run with its detections and daily counts from source
// to target, typically a local SQLite database into a shared MySQL server.
// Rows whose primary key already exists in the target are skipped, so an
// interrupted export can be repeated. Both databases must already carry the
// schema, which Open ensures.
func Export(ctx context.Context, source, target *gorm.DB, opts ExportOptions, log logger.Logger) (*ExportStats, error) {
	if source == nil || target == nil {
		return nil, dbError(fmt.Errorf("export needs open source and target databases"), "export")
	}
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	e := &exporter{source: source, target: target, batchSize: opts.BatchSize, log: log}
	if e.batchSize <= 0 {
		e.batchSize = defaultExportBatchSize
	}

	stats := &ExportStats{StartTime: time.Now()}

	if opts.Clean {
		if err := e.clean(ctx); err != nil {
			return nil, err
		}
	}

	for _, t := range exportTables {
		ts, err := t.export(ctx, e, t.name)
		if err != nil {
			return stats, dbError(fmt.Errorf("failed to export %s: %w", t.name, err), "export")
		}
		stats.Tables = append(stats.Tables, *ts)
	}
	stats.EndTime = time.Now()

	if opts.Verify {
		if err := e.verify(ctx); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// clean deletes target rows in reverse copy order.
func (e *exporter) clean(ctx context.Context) error {
	for i := len(exportTables) - 1; i >= 0; i-- {
		t := exportTables[i]
		err := e.target.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(t.model).Error
		if err != nil {
			return dbError(fmt.Errorf("failed to clean %s: %w", t.name, err), "export_clean")
		}
		e.log.Debug("cleaned target table", logger.String("table", t.name))
	}
	return nil
}

// exportTable copies one table in primary key batches. A failed batch is
// counted and logged, and the copy continues with the next one.
func exportTable[T any](ctx context.Context, e *exporter, name string) (*TableStats, error) {
	start := time.Now()
	stats := &TableStats{Name: name}

	var sourceCount int64
	if err := e.source.WithContext(ctx).Model(new(T)).Count(&sourceCount).Error; err != nil {
		return stats, fmt.Errorf("failed to count source rows: %w", err)
	}
	if sourceCount == 0 {
		stats.Duration = time.Since(start)
		e.log.Debug("no rows to export", logger.String("table", name))
		return stats, nil
	}

	var processed int64
	err := e.source.WithContext(ctx).Model(new(T)).FindInBatches(new([]T), e.batchSize, func(tx *gorm.DB, batch int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows := tx.Statement.Dest.(*[]T)

		result := e.target.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rows)
		if result.Error != nil {
			stats.Errors += int64(len(*rows))
			e.log.Warn("export batch failed",
				logger.String("table", name),
				logger.Int("batch", batch),
				logger.Error(result.Error))
			return nil
		}

		stats.Copied += result.RowsAffected
		stats.Skipped += int64(len(*rows)) - result.RowsAffected
		processed += int64(len(*rows))
		e.log.Debug("export progress",
			logger.String("table", name),
			logger.Int64("rows", processed),
			logger.Int64("total", sourceCount))
		return nil
	}).Error
	if err != nil {
		return stats, err
	}

	stats.Duration = time.Since(start)
	e.log.Info("exported table",
		logger.String("table", name),
		logger.Int64("copied", stats.Copied),
		logger.Int64("skipped", stats.Skipped),
		logger.Int64("errors", stats.Errors),
		logger.Duration("duration", stats.Duration))
	return stats, nil
}

// verify checks that the target holds at least as many rows as the source
// in every table. The target may hold more when other projects export into
// it too.
func (e *exporter) verify(ctx context.Context) error {
	for _, t := range exportTables {
		var sourceCount, targetCount int64
		if err := e.source.WithContext(ctx).Model(t.model).Count(&sourceCount).Error; err != nil {
			return dbError(fmt.Errorf("failed to count source %s: %w", t.name, err), "export_verify")
		}
		if err := e.target.WithContext(ctx).Model(t.model).Count(&targetCount).Error; err != nil {
			return dbError(fmt.Errorf("failed to count target %s: %w", t.name, err), "export_verify")
		}
		if targetCount < sourceCount {
			return errors.Newf("target %s has %d rows, source has %d", t.name, targetCount, sourceCount).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Context("operation", "export_verify").
				Context("table", t.name).
				Build()
		}
	}
	return nil
}
