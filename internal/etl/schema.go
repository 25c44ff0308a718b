package etl

import "regexp"

// Kind is the declared type of a source column.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
)

// FieldRule describes the validation contract for one source column:
// type, nullability and domain. Numeric bounds apply when Bounded is set;
// Enum, when non-empty, is a closed set and anything outside it rejects
// the row.
type FieldRule struct {
	Name     string
	Kind     Kind
	Required bool
	Bounded  bool
	Min, Max float64
	Enum     []string
	Pattern  *regexp.Regexp
}

// SourceSchema binds a fixed input file to its per-field rules.
type SourceSchema struct {
	Name     string
	Filename string
	Fields   []FieldRule
}

// Source names. They key rejection logs, source stats and log lines.
const (
	SourceDiet      = "diet"
	SourceNutrition = "nutrition"
	SourceGym       = "gym"
)

// Fixed input file names. All three must be present in the data directory
// before a run starts.
const (
	DietFile      = "diet_recommendations.csv"
	NutritionFile = "daily_food_nutrition.csv"
	GymFile       = "gym_members_exercise.csv"
)

// Closed enumerations. Values outside these sets are rejected at
// validation, never coerced.
var (
	Genders        = []string{"Male", "Female"}
	DiseaseTypes   = []string{"Obesity", "Diabetes", "Hypertension"}
	Severities     = []string{"Low", "Moderate", "High"}
	Restrictions   = []string{"Low_Sugar", "Low_Sodium", "Low_Fat", "Gluten_Free"}
	Allergens      = []string{"Peanuts", "Gluten", "Dairy", "Shellfish"}
	Cuisines       = []string{"Mexican", "Chinese", "Italian", "Indian", "American", "Mediterranean"}
	DietPlans      = []string{"Balanced", "Low_Carb", "Low_Sodium", "Low_Fat", "High_Protein"}
	AdherenceBands = []string{"Low", "Medium", "High"}
	ActivityLevels = []string{"Sedentary", "Moderate", "Active", "Very_Active"}
	WorkoutTypes   = []string{"Cardio", "HIIT", "Strength", "Yoga", "Cycling"}
)

var (
	patientIDPattern     = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	bloodPressurePattern = regexp.MustCompile(`^\d{2,3}/\d{2,3}$`)
)

// demographicRules are shared by every extract: each source carries enough
// demographic data to create the patient on its own.
func demographicRules() []FieldRule {
	return []FieldRule{
		{Name: "patient_id", Kind: KindString, Required: true, Pattern: patientIDPattern},
		{Name: "age", Kind: KindInt, Required: true, Bounded: true, Min: 18, Max: 120},
		{Name: "gender", Kind: KindString, Required: true, Enum: Genders},
		{Name: "weight_kg", Kind: KindFloat, Required: true, Bounded: true, Min: 30, Max: 300},
		{Name: "height_cm", Kind: KindFloat, Required: true, Bounded: true, Min: 100, Max: 250},
	}
}

// DietSchema covers the diet/health extract: clinical measurements plus the
// self-reported activity profile. Severity is optional; when absent it is
// derived downstream from the clinical measurements.
func DietSchema() SourceSchema {
	fields := demographicRules()
	fields = append(fields,
		FieldRule{Name: "cholesterol", Kind: KindInt, Required: true, Bounded: true, Min: 100, Max: 400},
		FieldRule{Name: "blood_pressure", Kind: KindString, Required: true, Pattern: bloodPressurePattern},
		FieldRule{Name: "disease_type", Kind: KindString, Required: true, Enum: DiseaseTypes},
		FieldRule{Name: "glucose", Kind: KindInt, Required: true, Bounded: true, Min: 50, Max: 300},
		FieldRule{Name: "severity", Kind: KindString, Enum: Severities},
		FieldRule{Name: "physical_activity_level", Kind: KindString, Required: true, Enum: ActivityLevels},
		FieldRule{Name: "weekly_exercise_hours", Kind: KindFloat, Required: true, Bounded: true, Min: 0, Max: 40},
	)
	return SourceSchema{Name: SourceDiet, Filename: DietFile, Fields: fields}
}

// NutritionSchema covers the nutrition extract.
func NutritionSchema() SourceSchema {
	fields := demographicRules()
	fields = append(fields,
		FieldRule{Name: "daily_caloric_intake", Kind: KindInt, Required: true, Bounded: true, Min: 800, Max: 5000},
		FieldRule{Name: "dietary_restrictions", Kind: KindString, Enum: Restrictions},
		FieldRule{Name: "allergies", Kind: KindString, Enum: Allergens},
		FieldRule{Name: "preferred_cuisine", Kind: KindString, Enum: Cuisines},
		FieldRule{Name: "diet_recommendation", Kind: KindString, Enum: DietPlans},
		FieldRule{Name: "adherence_to_diet_plan", Kind: KindString, Required: true, Enum: AdherenceBands},
	)
	return SourceSchema{Name: SourceNutrition, Filename: NutritionFile, Fields: fields}
}

// GymSchema covers the gym extract. Each row is one workout session.
func GymSchema() SourceSchema {
	fields := demographicRules()
	fields = append(fields,
		FieldRule{Name: "session_duration_hours", Kind: KindFloat, Required: true, Bounded: true, Min: 0.1, Max: 5},
		FieldRule{Name: "calories_burned", Kind: KindInt, Required: true, Bounded: true, Min: 50, Max: 2000},
		FieldRule{Name: "workout_type", Kind: KindString, Required: true, Enum: WorkoutTypes},
		FieldRule{Name: "max_bpm", Kind: KindInt, Required: true, Bounded: true, Min: 100, Max: 220},
		FieldRule{Name: "avg_bpm", Kind: KindInt, Required: true, Bounded: true, Min: 60, Max: 200},
		FieldRule{Name: "resting_bpm", Kind: KindInt, Required: true, Bounded: true, Min: 40, Max: 100},
		FieldRule{Name: "fat_percentage", Kind: KindFloat, Required: true, Bounded: true, Min: 5, Max: 50},
		FieldRule{Name: "water_intake_liters", Kind: KindFloat, Required: true, Bounded: true, Min: 0, Max: 5},
		FieldRule{Name: "workout_frequency_days_week", Kind: KindInt, Required: true, Bounded: true, Min: 1, Max: 7},
		FieldRule{Name: "experience_level", Kind: KindInt, Required: true, Bounded: true, Min: 1, Max: 3},
	)
	return SourceSchema{Name: SourceGym, Filename: GymFile, Fields: fields}
}

// Schemas returns the three source schemas in their load order.
func Schemas() []SourceSchema {
	return []SourceSchema{DietSchema(), NutritionSchema(), GymSchema()}
}

// columnAliases maps normalized-but-unit-suffixed headers to canonical
// field names. Extracts in the wild carry unit suffixes on some columns.
var columnAliases = map[string]string{
	"cholesterol_mg_dl":      "cholesterol",
	"blood_pressure_mmhg":    "blood_pressure",
	"glucose_mg_dl":          "glucose",
	"session_duration":       "session_duration_hours",
	"water_intake":           "water_intake_liters",
	"workout_frequency":      "workout_frequency_days_week",
	"weekly_exercice_hours":  "weekly_exercise_hours",
	"bmi":                    "bmi_calculated",
	"bmi_calc":               "bmi_calculated",
	"adherence":              "adherence_to_diet_plan",
	"physical_activity":      "physical_activity_level",
	"daily_calories":         "daily_caloric_intake",
	"session_duration_hour":  "session_duration_hours",
	"water_intake_liter":     "water_intake_liters",
	"workout_frequency_days": "workout_frequency_days_week",
}
