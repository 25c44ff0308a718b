package etl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dietRow(line int, overrides map[string]string) Row {
	values := map[string]string{
		"patient_id":              "P001",
		"age":                     "42",
		"gender":                  "Female",
		"weight_kg":               "70",
		"height_cm":               "175",
		"cholesterol":             "180",
		"blood_pressure":          "120/80",
		"disease_type":            "Diabetes",
		"glucose":                 "90",
		"severity":                "Low",
		"physical_activity_level": "Moderate",
		"weekly_exercise_hours":   "3.5",
	}
	for k, v := range overrides {
		values[k] = v
	}
	return Row{Line: line, Values: values}
}

func gymRow(line int, overrides map[string]string) Row {
	values := map[string]string{
		"patient_id":                  "P001",
		"age":                         "42",
		"gender":                      "Male",
		"weight_kg":                   "80",
		"height_cm":                   "180",
		"session_duration_hours":      "1.0",
		"calories_burned":             "500",
		"workout_type":                "Cardio",
		"max_bpm":                     "180",
		"avg_bpm":                     "140",
		"resting_bpm":                 "60",
		"fat_percentage":              "20",
		"water_intake_liters":         "2.0",
		"workout_frequency_days_week": "3",
		"experience_level":            "2",
	}
	for k, v := range overrides {
		values[k] = v
	}
	return Row{Line: line, Values: values}
}

func TestValidateAcceptsCleanRow(t *testing.T) {
	report := ValidateSource(DietSchema(), []Row{dietRow(2, nil)})

	require.Len(t, report.Records, 1)
	assert.Empty(t, report.Rejections)

	rec := report.Records[0]
	assert.Equal(t, "P001", rec.Str("patient_id"))
	assert.Equal(t, 180, rec.Int("cholesterol"))
	assert.Equal(t, 3.5, rec.Float("weekly_exercise_hours"))
}

func TestValidateRejectsBlankRequiredField(t *testing.T) {
	report := ValidateSource(DietSchema(), []Row{
		dietRow(2, map[string]string{"cholesterol": ""}),
	})

	assert.Empty(t, report.Records)
	require.Len(t, report.Rejections, 1)
	assert.Equal(t, ReasonMissingField, report.Rejections[0].Reason)
	assert.Equal(t, "cholesterol", report.Rejections[0].Field)
	assert.Equal(t, 1, report.MissingField)
}

func TestValidateRejectsUnknownSeverity(t *testing.T) {
	report := ValidateSource(DietSchema(), []Row{
		dietRow(2, map[string]string{"severity": "Critical"}),
	})

	assert.Empty(t, report.Records)
	require.Len(t, report.Rejections, 1)
	assert.Equal(t, ReasonOutOfDomain, report.Rejections[0].Reason)
	assert.Equal(t, "severity", report.Rejections[0].Field)
}

func TestValidateAllowsBlankSeverity(t *testing.T) {
	report := ValidateSource(DietSchema(), []Row{
		dietRow(2, map[string]string{"severity": ""}),
	})

	require.Len(t, report.Records, 1)
	assert.Equal(t, "", report.Records[0].Str("severity"))
}

func TestValidateRejectsTypeCoercionFailure(t *testing.T) {
	report := ValidateSource(DietSchema(), []Row{
		dietRow(2, map[string]string{"age": "forty"}),
	})

	require.Len(t, report.Rejections, 1)
	assert.Equal(t, ReasonTypeCoercion, report.Rejections[0].Reason)
	assert.Equal(t, 1, report.TypeErrors)
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value string
	}{
		{"age below minimum", "age", "15"},
		{"weight above maximum", "weight_kg", "350"},
		{"glucose above maximum", "glucose", "500"},
		{"malformed blood pressure", "blood_pressure", "high"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := ValidateSource(DietSchema(), []Row{
				dietRow(2, map[string]string{tt.field: tt.value}),
			})
			require.Len(t, report.Rejections, 1)
			assert.Equal(t, ReasonOutOfDomain, report.Rejections[0].Reason)
			assert.Equal(t, tt.field, report.Rejections[0].Field)
		})
	}
}

func TestValidateStopsAtFirstViolation(t *testing.T) {
	report := ValidateSource(DietSchema(), []Row{
		dietRow(2, map[string]string{"age": "", "glucose": "999"}),
	})

	require.Len(t, report.Rejections, 1)
	assert.Equal(t, "age", report.Rejections[0].Field)
}

func TestGymCoherenceWarnings(t *testing.T) {
	report := ValidateSource(GymSchema(), []Row{
		gymRow(2, map[string]string{"max_bpm": "120", "avg_bpm": "150"}),
		gymRow(3, map[string]string{"session_duration_hours": "4.0", "calories_burned": "200"}),
	})

	// Warned rows still pass validation.
	assert.Len(t, report.Records, 2)
	require.Len(t, report.Warnings, 2)
	assert.Contains(t, report.Warnings[0], "BPM")
	assert.Contains(t, report.Warnings[1], "burn rate")
}

func TestRejectionRate(t *testing.T) {
	report := ValidateSource(DietSchema(), []Row{
		dietRow(2, nil),
		dietRow(3, map[string]string{"gender": "Unknown"}),
		dietRow(4, map[string]string{"cholesterol": "50"}),
		dietRow(5, nil),
	})

	assert.InDelta(t, 0.5, report.RejectionRate(), 1e-9)
}
