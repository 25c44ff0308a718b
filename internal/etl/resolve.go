package etl

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/mspr-sante/backend/internal/models"
)

// sessionNamespace seeds the deterministic gym session identifiers so the
// same extract always produces the same session IDs.
var sessionNamespace = uuid.MustParse("8f9d6a3e-2b41-4c7a-9e15-0d2f6b8c4a17")

// ResolvedPatient is one patient assembled from every source that mentions
// them: the merged demographic record plus whichever satellites exist.
type ResolvedPatient struct {
	Patient   models.Patient
	Sante     *models.Sante
	Nutrition *models.Nutrition
	Activity  *models.ActivitePhysique
	Sessions  []models.GymSession
}

// Resolution is the cross-source merge result, ready for loading.
type Resolution struct {
	// Patients in first-seen order across the diet, nutrition and gym
	// sources, in that precedence.
	Patients []*ResolvedPatient

	// DuplicateKeys counts patient IDs that appeared more than once within
	// the diet or nutrition source. The later row won.
	DuplicateKeys map[string]int

	// Superseded describes each within-source duplicate that lost.
	Superseded []string
}

// Resolve merges the validated records of the three sources on patient_id.
// Demographics follow source precedence diet, then nutrition, then gym: the
// first source to mention a patient fixes age, gender, weight and height.
// Within the diet and nutrition sources a repeated patient_id keeps the
// later row. BMI is computed here; a blank severity is derived from the
// clinical measurements.
func Resolve(diet, nutrition, gym *SourceReport) *Resolution {
	res := &Resolution{
		DuplicateKeys: map[string]int{SourceDiet: 0, SourceNutrition: 0, SourceGym: 0},
	}
	byID := make(map[string]*ResolvedPatient)

	ensure := func(rec Record) *ResolvedPatient {
		id := rec.Str("patient_id")
		if p, ok := byID[id]; ok {
			return p
		}
		p := &ResolvedPatient{
			Patient: models.Patient{
				PatientID:     id,
				Age:           rec.Int("age"),
				Gender:        rec.Str("gender"),
				WeightKg:      rec.Float("weight_kg"),
				HeightCm:      rec.Float("height_cm"),
				BMICalculated: ComputeBMI(rec.Float("weight_kg"), rec.Float("height_cm")),
			},
		}
		byID[id] = p
		res.Patients = append(res.Patients, p)
		return p
	}

	for _, rec := range dedupe(diet, res) {
		p := ensure(rec)
		severity := rec.Str("severity")
		if severity == "" {
			severity = ClassifySeverity(rec.Int("cholesterol"), rec.Int("glucose"), rec.Str("blood_pressure"))
		}
		p.Sante = &models.Sante{
			PatientID:     p.Patient.PatientID,
			Cholesterol:   rec.Int("cholesterol"),
			BloodPressure: rec.Str("blood_pressure"),
			DiseaseType:   rec.Str("disease_type"),
			Glucose:       rec.Int("glucose"),
			Severity:      severity,
		}
		p.Activity = &models.ActivitePhysique{
			PatientID:             p.Patient.PatientID,
			PhysicalActivityLevel: rec.Str("physical_activity_level"),
			WeeklyExerciseHours:   rec.Float("weekly_exercise_hours"),
		}
	}

	for _, rec := range dedupe(nutrition, res) {
		p := ensure(rec)
		p.Nutrition = &models.Nutrition{
			PatientID:           p.Patient.PatientID,
			DailyCaloricIntake:  rec.Int("daily_caloric_intake"),
			DietaryRestrictions: rec.OptStr("dietary_restrictions"),
			Allergies:           rec.OptStr("allergies"),
			PreferredCuisine:    rec.OptStr("preferred_cuisine"),
			DietRecommendation:  rec.OptStr("diet_recommendation"),
			AdherenceToDietPlan: rec.Str("adherence_to_diet_plan"),
		}
	}

	ordinals := make(map[string]int)
	for _, rec := range gym.Records {
		p := ensure(rec)
		id := p.Patient.PatientID
		ordinals[id]++
		p.Sessions = append(p.Sessions, models.GymSession{
			SessionID:                sessionID(rec, ordinals[id]),
			PatientID:                id,
			DurationHours:            rec.Float("session_duration_hours"),
			CaloriesBurned:           rec.Int("calories_burned"),
			WorkoutType:              rec.Str("workout_type"),
			MaxBPM:                   rec.Int("max_bpm"),
			AvgBPM:                   rec.Int("avg_bpm"),
			RestingBPM:               rec.Int("resting_bpm"),
			FatPercentage:            rec.Float("fat_percentage"),
			WaterIntakeLiters:        rec.Float("water_intake_liters"),
			WorkoutFrequencyDaysWeek: rec.Int("workout_frequency_days_week"),
			ExperienceLevel:          rec.Int("experience_level"),
		})
	}

	return res
}

// dedupe collapses repeated patient IDs within one source, keeping the last
// row for each ID and preserving the surviving rows' relative order.
func dedupe(report *SourceReport, res *Resolution) []Record {
	last := make(map[string]int, len(report.Records))
	for i, rec := range report.Records {
		last[rec.Str("patient_id")] = i
	}

	out := make([]Record, 0, len(last))
	for i, rec := range report.Records {
		id := rec.Str("patient_id")
		if last[id] != i {
			res.DuplicateKeys[report.Source]++
			res.Superseded = append(res.Superseded, fmt.Sprintf(
				"%s line %d: patient %s superseded by a later row", report.Source, rec.Line, id))
			continue
		}
		out = append(out, rec)
	}
	return out
}

// sessionID derives a stable session identifier from the session's content
// plus its ordinal among the patient's rows, so reloading the same extract
// reproduces the same keys while repeated identical sessions stay distinct.
func sessionID(rec Record, ordinal int) string {
	fingerprint := fmt.Sprintf("%s|%d|%g|%d|%s|%d|%d|%d",
		rec.Str("patient_id"), ordinal,
		rec.Float("session_duration_hours"), rec.Int("calories_burned"),
		rec.Str("workout_type"),
		rec.Int("max_bpm"), rec.Int("avg_bpm"), rec.Int("resting_bpm"))
	return uuid.NewSHA1(sessionNamespace, []byte(fingerprint)).String()
}
