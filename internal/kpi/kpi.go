package kpi

import (
	"database/sql"
	"errors"
	"fmt"
	"math"

	"gorm.io/gorm"

	"github.com/mspr-sante/backend/config"
	"github.com/mspr-sante/backend/internal/models"
)

// Engine computes the aggregate metric groups from the loaded store. Every
// group runs inside one read transaction so its numbers describe a single
// snapshot even while a load is in progress.
type Engine struct {
	db  *gorm.DB
	cfg *config.Config
}

// NewEngine wires a KPI engine against the store.
func NewEngine(db *gorm.DB, cfg *config.Config) *Engine {
	return &Engine{db: db, cfg: cfg}
}

// Overview is the population-level summary. Averages over an empty
// population are null, never zero; avg_cholesterol averages only patients
// that have a health record.
type Overview struct {
	TotalPatients     int64            `json:"total_patients"`
	AvgAge            *float64         `json:"avg_age"`
	AvgBMI            *float64         `json:"avg_bmi"`
	AvgCholesterol    *float64         `json:"avg_cholesterol"`
	DiseaseHistogram  map[string]int64 `json:"disease_type_histogram"`
	SeverityHistogram map[string]int64 `json:"severity_histogram"`
}

// Engagement describes gym activity across the population.
type Engagement struct {
	TotalPatients         int64    `json:"total_patients"`
	ActivePatients        int64    `json:"active_patients"`
	EngagementRate        *float64 `json:"engagement_rate"`
	TotalSessions         int64    `json:"total_sessions"`
	AvgSessionsPerPatient *float64 `json:"avg_sessions_per_patient"`
	AvgCaloriesBurned     *float64 `json:"avg_calories_burned"`
}

// Conversion reports how much of the population sits in the configured
// "high" adherence and activity bands.
type Conversion struct {
	NutritionPatients          int64    `json:"nutrition_patients"`
	HighAdherenceNutrition     int64    `json:"high_adherence_nutrition"`
	HighAdherenceNutritionRate *float64 `json:"high_adherence_nutrition_rate"`
	ActivityPatients           int64    `json:"activity_patients"`
	HighAdherenceActivity      int64    `json:"high_adherence_activity"`
	HighAdherenceActivityRate  *float64 `json:"high_adherence_activity_rate"`
}

// Satisfaction scores the population's clinical health: the share of health
// records in the healthy cholesterol and glucose ranges, the share with low
// severity, and the mean of the three.
type Satisfaction struct {
	HealthRecords          int64    `json:"health_records"`
	HealthyCholesterolRate *float64 `json:"healthy_cholesterol_rate"`
	HealthyGlucoseRate     *float64 `json:"healthy_glucose_rate"`
	LowSeverityRate        *float64 `json:"low_severity_rate"`
	OverallScore           *float64 `json:"overall_score"`
}

// SourceQuality is the per-source slice of the data-quality report.
type SourceQuality struct {
	Source        string  `json:"source"`
	RowsRead      int     `json:"rows_read"`
	RowsRejected  int     `json:"rows_rejected"`
	RejectionRate float64 `json:"rejection_rate"`
	DuplicateKeys int     `json:"duplicate_keys"`
	MissingField  int     `json:"missing_field"`
	TypeErrors    int     `json:"type_errors"`
	OutOfDomain   int     `json:"out_of_domain"`
}

// DataQuality combines the latest run report with completeness of the
// loaded store. LastRun is null when no pipeline has run yet.
type DataQuality struct {
	LastRun             *models.PipelineRun `json:"last_run"`
	Sources             []SourceQuality     `json:"sources"`
	MissingHealthPct    *float64            `json:"missing_health_pct"`
	MissingNutritionPct *float64            `json:"missing_nutrition_pct"`
	MissingActivityPct  *float64            `json:"missing_activity_pct"`
}

// Overview computes the overview group.
func (e *Engine) Overview() (*Overview, error) {
	out := &Overview{
		DiseaseHistogram:  map[string]int64{},
		SeverityHistogram: map[string]int64{},
	}
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Patient{}).Count(&out.TotalPatients).Error; err != nil {
			return err
		}
		var err error
		if out.AvgAge, err = avg(tx.Model(&models.Patient{}), "AVG(age)"); err != nil {
			return err
		}
		if out.AvgBMI, err = avg(tx.Model(&models.Patient{}), "AVG(bmi_calculated)"); err != nil {
			return err
		}
		if out.AvgCholesterol, err = avg(tx.Model(&models.Sante{}), "AVG(cholesterol)"); err != nil {
			return err
		}
		if out.DiseaseHistogram, err = histogram(tx, &models.Sante{}, "disease_type"); err != nil {
			return err
		}
		out.SeverityHistogram, err = histogram(tx, &models.Sante{}, "severity")
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("overview KPIs: %w", err)
	}
	return out, nil
}

// Engagement computes the engagement group. Per-patient averages use the
// total patient count as the denominator, not just active patients.
func (e *Engine) Engagement() (*Engagement, error) {
	out := &Engagement{}
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Patient{}).Count(&out.TotalPatients).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.GymSession{}).
			Distinct("patient_id").Count(&out.ActivePatients).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.GymSession{}).Count(&out.TotalSessions).Error; err != nil {
			return err
		}
		var err error
		if out.AvgCaloriesBurned, err = avg(tx.Model(&models.GymSession{}), "AVG(calories_burned)"); err != nil {
			return err
		}
		out.EngagementRate = rate(out.ActivePatients, out.TotalPatients)
		out.AvgSessionsPerPatient = ratio(out.TotalSessions, out.TotalPatients)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("engagement KPIs: %w", err)
	}
	return out, nil
}

// Conversion computes the conversion group against the configured bands.
func (e *Engine) Conversion() (*Conversion, error) {
	out := &Conversion{}
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Nutrition{}).Count(&out.NutritionPatients).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Nutrition{}).
			Where("adherence_to_diet_plan IN ?", e.cfg.NutritionHighBand).
			Count(&out.HighAdherenceNutrition).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ActivitePhysique{}).Count(&out.ActivityPatients).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ActivitePhysique{}).
			Where("physical_activity_level IN ?", e.cfg.ActivityHighBand).
			Count(&out.HighAdherenceActivity).Error; err != nil {
			return err
		}
		out.HighAdherenceNutritionRate = rate(out.HighAdherenceNutrition, out.NutritionPatients)
		out.HighAdherenceActivityRate = rate(out.HighAdherenceActivity, out.ActivityPatients)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("conversion KPIs: %w", err)
	}
	return out, nil
}

// Healthy clinical ranges for the satisfaction score.
const (
	healthyCholesterolMin, healthyCholesterolMax = 100, 200
	healthyGlucoseMin, healthyGlucoseMax         = 70, 100
)

// Satisfaction computes the satisfaction group over health record holders.
func (e *Engine) Satisfaction() (*Satisfaction, error) {
	out := &Satisfaction{}
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Sante{}).Count(&out.HealthRecords).Error; err != nil {
			return err
		}
		var healthyChol, healthyGluc, lowSev int64
		if err := tx.Model(&models.Sante{}).
			Where("cholesterol BETWEEN ? AND ?", healthyCholesterolMin, healthyCholesterolMax).
			Count(&healthyChol).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Sante{}).
			Where("glucose BETWEEN ? AND ?", healthyGlucoseMin, healthyGlucoseMax).
			Count(&healthyGluc).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Sante{}).
			Where("severity = ?", "Low").
			Count(&lowSev).Error; err != nil {
			return err
		}
		out.HealthyCholesterolRate = rate(healthyChol, out.HealthRecords)
		out.HealthyGlucoseRate = rate(healthyGluc, out.HealthRecords)
		out.LowSeverityRate = rate(lowSev, out.HealthRecords)
		if out.HealthyCholesterolRate != nil {
			score := round2((*out.HealthyCholesterolRate + *out.HealthyGlucoseRate + *out.LowSeverityRate) / 3)
			out.OverallScore = &score
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("satisfaction KPIs: %w", err)
	}
	return out, nil
}

// DataQuality reports the latest run plus completeness of the loaded store.
func (e *Engine) DataQuality() (*DataQuality, error) {
	out := &DataQuality{Sources: []SourceQuality{}}
	err := e.db.Transaction(func(tx *gorm.DB) error {
		var run models.PipelineRun
		err := tx.Preload("SourceStats").Order("id DESC").First(&run).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// No run yet; completeness below still describes the store.
		case err != nil:
			return err
		default:
			out.LastRun = &run
			for _, s := range run.SourceStats {
				out.Sources = append(out.Sources, SourceQuality{
					Source:        s.Source,
					RowsRead:      s.RowsRead,
					RowsRejected:  s.RowsRejected,
					RejectionRate: round2(s.RejectionRate() * 100),
					DuplicateKeys: s.DuplicateKeys,
					MissingField:  s.MissingField,
					TypeErrors:    s.TypeErrors,
					OutOfDomain:   s.OutOfDomain,
				})
			}
		}

		var patients, withHealth, withNutrition, withActivity int64
		if err := tx.Model(&models.Patient{}).Count(&patients).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Sante{}).Count(&withHealth).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Nutrition{}).Count(&withNutrition).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ActivitePhysique{}).Count(&withActivity).Error; err != nil {
			return err
		}
		out.MissingHealthPct = rate(patients-withHealth, patients)
		out.MissingNutritionPct = rate(patients-withNutrition, patients)
		out.MissingActivityPct = rate(patients-withActivity, patients)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("data quality KPIs: %w", err)
	}
	return out, nil
}

// avg evaluates an SQL aggregate expression, mapping SQL NULL to nil.
func avg(q *gorm.DB, expr string) (*float64, error) {
	var v sql.NullFloat64
	if err := q.Select(expr).Scan(&v).Error; err != nil {
		return nil, err
	}
	if !v.Valid {
		return nil, nil
	}
	r := round2(v.Float64)
	return &r, nil
}

// rate is numerator/denominator as a percentage, nil on an empty denominator.
func rate(numerator, denominator int64) *float64 {
	if denominator == 0 {
		return nil
	}
	r := round2(float64(numerator) / float64(denominator) * 100)
	return &r
}

// ratio is numerator/denominator, nil on an empty denominator.
func ratio(numerator, denominator int64) *float64 {
	if denominator == 0 {
		return nil
	}
	r := round2(float64(numerator) / float64(denominator))
	return &r
}

func histogram(tx *gorm.DB, model interface{}, column string) (map[string]int64, error) {
	var rows []struct {
		Label string
		N     int64
	}
	if err := tx.Model(model).
		Select(column + " AS label, COUNT(*) AS n").
		Group(column).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Label] = r.N
	}
	return out, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
