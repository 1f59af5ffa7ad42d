// Package datastore persists pipeline runs and their derived tables through
// GORM to SQLite or MySQL.
package datastore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nilomr/majorvocal/internal/aggregate"
	"github.com/nilomr/majorvocal/internal/conf"
	"github.com/nilomr/majorvocal/internal/detection"
	"github.com/nilomr/majorvocal/internal/errors"
	"github.com/nilomr/majorvocal/internal/logger"
)

// batchSize is the number of rows per INSERT statement.
const batchSize = 500

// slowQueryThreshold is the duration above which queries are logged at WARN.
const slowQueryThreshold = 500 * time.Millisecond

// Interface is the persistence API used by the pipeline.
type Interface interface {
	Open() error
	Close() error
	StartRun(ctx context.Context, stage, species string) (*Run, error)
	FinishRun(ctx context.Context, run *Run) error
	SaveDetections(ctx context.Context, runID string, records []detection.NormalizedDetection) error
	SaveDailyCounts(ctx context.Context, runID string, days []aggregate.Day) error
	GetRun(ctx context.Context, id string) (*Run, error)
	GetDailyCounts(ctx context.Context, runID string) ([]DailyCount, error)
}

// DataStore implements the shared part of Interface over a *gorm.DB.
type DataStore struct {
	DB     *gorm.DB
	Logger logger.Logger
}

// New returns the store selected by settings, or nil when no database
// output is enabled. SQLite wins when both are enabled.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return NewSQLiteStore(settings)
	case settings.Output.MySQL.Enabled:
		return NewMySQLStore(settings)
	default:
		return nil
	}
}

func (ds *DataStore) logger() logger.Logger {
	if ds.Logger == nil {
		return logger.NewDiscardLogger()
	}
	return ds.Logger
}

func (ds *DataStore) gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(ds.logger(), slowQueryThreshold),
	}
}

func (ds *DataStore) checkOpen(operation string) error {
	if ds.DB == nil {
		return dbError(fmt.Errorf("database connection is not initialized"), operation)
	}
	return nil
}

// performAutoMigration creates or updates the schema.
func performAutoMigration(db *gorm.DB, log logger.Logger, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&Run{}, &DetectionRecord{}, &DailyCount{}); err != nil {
		return dbError(fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err), "auto_migrate")
	}
	log.Debug("database connection initialized",
		logger.String("type", dbType),
		logger.String("connection", connectionInfo))
	return nil
}

// StartRun inserts a new run with a random UUID.
func (ds *DataStore) StartRun(ctx context.Context, stage, species string) (*Run, error) {
	if err := ds.checkOpen("start_run"); err != nil {
		return nil, err
	}
	run := &Run{
		ID:        uuid.NewString(),
		Stage:     stage,
		Species:   species,
		StartedAt: time.Now().UTC(),
	}
	if err := ds.DB.WithContext(ctx).Create(run).Error; err != nil {
		return nil, dbError(err, "start_run")
	}
	return run, nil
}

// FinishRun stamps the run's finish time and saves its counters.
func (ds *DataStore) FinishRun(ctx context.Context, run *Run) error {
	if err := ds.checkOpen("finish_run"); err != nil {
		return err
	}
	now := time.Now().UTC()
	run.FinishedAt = &now
	if err := ds.DB.WithContext(ctx).Save(run).Error; err != nil {
		return dbError(err, "finish_run")
	}
	return nil
}

// SaveDetections inserts records for runID in one transaction.
func (ds *DataStore) SaveDetections(ctx context.Context, runID string, records []detection.NormalizedDetection) error {
	if err := ds.checkOpen("save_detections"); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	rows := make([]DetectionRecord, 0, len(records))
	for i := range records {
		r := &records[i]
		rows = append(rows, DetectionRecord{
			RunID:         runID,
			Timestamp:     r.Timestamp,
			PNum:          r.PNum,
			Date:          r.Date,
			StartTime:     r.StartTime,
			EndTime:       r.EndTime,
			Confidence:    r.Confidence,
			StartDatetime: r.StartDatetime,
			EndDatetime:   r.EndDatetime,
			Location:      r.Location,
			Year:          r.Year,
			DayOfYear:     r.DayOfYear,
		})
	}

	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, batchSize).Error
	})
	if err != nil {
		return dbError(err, "save_detections")
	}
	ds.logger().Debug("saved detections", logger.String("run_id", runID), logger.Int("rows", len(rows)))
	return nil
}

// SaveDailyCounts inserts the joined daily counts for runID in one transaction.
func (ds *DataStore) SaveDailyCounts(ctx context.Context, runID string, days []aggregate.Day) error {
	if err := ds.checkOpen("save_daily_counts"); err != nil {
		return err
	}
	if len(days) == 0 {
		return nil
	}

	rows := make([]DailyCount, 0, len(days))
	for _, d := range days {
		rows = append(rows, DailyCount{
			RunID:       runID,
			PNum:        d.PNum,
			Date:        d.Date,
			Count:       d.Count,
			LayDate:     d.LayDate,
			DaysFromLay: d.DaysFromLay,
		})
	}

	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, batchSize).Error
	})
	if err != nil {
		return dbError(err, "save_daily_counts")
	}
	ds.logger().Debug("saved daily counts", logger.String("run_id", runID), logger.Int("rows", len(rows)))
	return nil
}

// GetRun returns the run with the given id.
func (ds *DataStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if err := ds.checkOpen("get_run"); err != nil {
		return nil, err
	}
	var run Run
	if err := ds.DB.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(fmt.Errorf("run %s not found: %w", id, err)).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Context("operation", "get_run").
				Build()
		}
		return nil, dbError(err, "get_run")
	}
	return &run, nil
}

// GetDailyCounts returns the daily counts of a run ordered by pnum and date.
func (ds *DataStore) GetDailyCounts(ctx context.Context, runID string) ([]DailyCount, error) {
	if err := ds.checkOpen("get_daily_counts"); err != nil {
		return nil, err
	}
	var counts []DailyCount
	err := ds.DB.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("pnum ASC").Order("date ASC").
		Find(&counts).Error
	if err != nil {
		return nil, dbError(err, "get_daily_counts")
	}
	return counts, nil
}

func closeDB(db *gorm.DB) error {
	if db == nil {
		return dbError(fmt.Errorf("database connection is not initialized"), "close")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return dbError(fmt.Errorf("failed to retrieve generic DB object: %w", err), "close")
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close")
	}
	return nil
}

func dbError(err error, operation string) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}
