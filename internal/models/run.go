package models

import "time"

// PipelineRun records one batch execution of the ETL. The data-quality KPIs
// are computed from the most recent run, so the run report lives in the same
// store as the data it describes.
type PipelineRun struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	StartedAt      time.Time `gorm:"not null" json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Status         string    `gorm:"size:12;not null" json:"status"`
	PatientsLoaded int       `gorm:"not null" json:"patients_loaded"`

	SourceStats []SourceStat `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"source_stats"`
}

func (PipelineRun) TableName() string { return "pipeline_run" }

// SourceStat is the per-source breakdown of a pipeline run.
type SourceStat struct {
	ID            uint   `gorm:"primaryKey" json:"-"`
	RunID         uint   `gorm:"not null;index" json:"-"`
	Source        string `gorm:"size:16;not null" json:"source"`
	RowsRead      int    `gorm:"not null" json:"rows_read"`
	RowsRejected  int    `gorm:"not null" json:"rows_rejected"`
	DuplicateKeys int    `gorm:"not null" json:"duplicate_keys"`
	RowsLoaded    int    `gorm:"not null" json:"rows_loaded"`

	// Rejection reason breakdown.
	MissingField   int `gorm:"not null" json:"missing_field"`
	TypeErrors     int `gorm:"not null" json:"type_errors"`
	OutOfDomain    int `gorm:"not null" json:"out_of_domain"`
	ReferentialErr int `gorm:"not null" json:"referential_errors"`
}

func (SourceStat) TableName() string { return "source_stat" }

// RejectionRate returns the fraction of read rows that were rejected.
func (s SourceStat) RejectionRate() float64 {
	if s.RowsRead == 0 {
		return 0
	}
	return float64(s.RowsRejected) / float64(s.RowsRead)
}
