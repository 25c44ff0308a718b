package etl

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mspr-sante/backend/internal/models"
)

// LoadStats summarizes what one load wrote, per target table.
type LoadStats struct {
	Patients       int
	Sante          int
	Nutrition      int
	Activity       int
	SessionsNew    int
	SessionsKnown  int
	OrphansSkipped int
}

// Load writes a resolution into the store inside one transaction, parents
// before children. Patients and their one-row satellites are upserted on
// patient_id so re-running a batch converges instead of duplicating; gym
// sessions insert-or-ignore on their deterministic key, making the session
// log append-only across runs.
func Load(db *gorm.DB, res *Resolution) (*LoadStats, error) {
	stats := &LoadStats{}

	err := db.Transaction(func(tx *gorm.DB) error {
		known := make(map[string]bool, len(res.Patients))

		for _, p := range res.Patients {
			patient := p.Patient
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "patient_id"}},
				UpdateAll: true,
			}).Create(&patient).Error; err != nil {
				return fmt.Errorf("upsert patient %s: %w", p.Patient.PatientID, err)
			}
			known[p.Patient.PatientID] = true
			stats.Patients++
		}

		upsertSatellite := func(value interface{}, table, patientID string) (bool, error) {
			if !known[patientID] {
				stats.OrphansSkipped++
				return false, nil
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "patient_id"}},
				UpdateAll: true,
			}).Create(value).Error; err != nil {
				return false, fmt.Errorf("upsert %s for patient %s: %w", table, patientID, err)
			}
			return true, nil
		}

		for _, p := range res.Patients {
			if p.Sante != nil {
				sante := *p.Sante
				ok, err := upsertSatellite(&sante, "sante", sante.PatientID)
				if err != nil {
					return err
				}
				if ok {
					stats.Sante++
				}
			}
			if p.Nutrition != nil {
				nutrition := *p.Nutrition
				ok, err := upsertSatellite(&nutrition, "nutrition", nutrition.PatientID)
				if err != nil {
					return err
				}
				if ok {
					stats.Nutrition++
				}
			}
			if p.Activity != nil {
				activity := *p.Activity
				ok, err := upsertSatellite(&activity, "activite_physique", activity.PatientID)
				if err != nil {
					return err
				}
				if ok {
					stats.Activity++
				}
			}
			for _, s := range p.Sessions {
				session := s
				result := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "session_id"}},
					DoNothing: true,
				}).Create(&session)
				if result.Error != nil {
					return fmt.Errorf("insert session %s: %w", s.SessionID, result.Error)
				}
				if result.RowsAffected > 0 {
					stats.SessionsNew++
				} else {
					stats.SessionsKnown++
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// RecordRun persists the run report next to the loaded data.
func RecordRun(db *gorm.DB, run *models.PipelineRun) error {
	if err := db.Create(run).Error; err != nil {
		return fmt.Errorf("record pipeline run: %w", err)
	}
	return nil
}
