package datastore

import "time"

// Run is one pipeline invocation. Every persisted row carries its RunID, so
// repeated runs over the same project can be told apart.
type Run struct {
	ID         string `gorm:"primaryKey;size:36"`
	Stage      string `gorm:"size:16"` // infer, process or run
	Species    string
	StartedAt  time.Time
	FinishedAt *time.Time
	Files      int // recordings submitted to the classifier
	Failures   int // recordings that failed
	Records    int // normalized detection records
}

// DetectionRecord is one row of all_detections.csv.
type DetectionRecord struct {
	ID            uint       `gorm:"primaryKey;autoIncrement"`
	RunID         string     `gorm:"index;size:36"`
	Timestamp     string     `gorm:"size:15"`
	PNum          string     `gorm:"column:pnum;index;size:32"`
	Date          time.Time  `gorm:"index"`
	StartTime     *float64
	EndTime       *float64
	Confidence    *float64
	StartDatetime *time.Time
	EndDatetime   *time.Time
	Location      string `gorm:"size:32"`
	Year          *int
	DayOfYear     *int
}

// DailyCount is one row of daily_counts.csv without the pass-through
// breeding columns.
type DailyCount struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	RunID       string    `gorm:"uniqueIndex:idx_daily_run_pnum_date;size:36"`
	PNum        string    `gorm:"column:pnum;uniqueIndex:idx_daily_run_pnum_date;size:32"`
	Date        time.Time `gorm:"uniqueIndex:idx_daily_run_pnum_date"`
	Count       int
	LayDate     *time.Time
	DaysFromLay *int
}
