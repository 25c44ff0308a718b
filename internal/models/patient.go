package models

// Patient is the aggregation root. One row per distinct patient identifier
// seen across any source extract.
type Patient struct {
	PatientID     string  `gorm:"column:patient_id;primaryKey;size:16" json:"patient_id"`
	Age           int     `gorm:"not null" json:"age"`
	Gender        string  `gorm:"size:12;not null" json:"gender"`
	WeightKg      float64 `gorm:"not null" json:"weight_kg"`
	HeightCm      float64 `gorm:"not null" json:"height_cm"`
	BMICalculated float64 `gorm:"column:bmi_calculated;not null" json:"bmi_calculated"`

	Sante            *Sante            `gorm:"foreignKey:PatientID;references:PatientID;constraint:OnDelete:CASCADE" json:"-"`
	Nutrition        *Nutrition        `gorm:"foreignKey:PatientID;references:PatientID;constraint:OnDelete:CASCADE" json:"-"`
	ActivitePhysique *ActivitePhysique `gorm:"foreignKey:PatientID;references:PatientID;constraint:OnDelete:CASCADE" json:"-"`
	GymSessions      []GymSession      `gorm:"foreignKey:PatientID;references:PatientID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Patient) TableName() string { return "patient" }

// Sante holds the clinical measurements from the diet/health extract.
// At most one row per patient.
type Sante struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	Cholesterol   int    `gorm:"not null" json:"cholesterol"`
	BloodPressure string `gorm:"size:8;not null" json:"blood_pressure"`
	DiseaseType   string `gorm:"size:32;not null" json:"disease_type"`
	Glucose       int    `gorm:"not null" json:"glucose"`
	Severity      string `gorm:"size:12;not null" json:"severity"`
	PatientID     string `gorm:"column:patient_id;size:16;not null;uniqueIndex" json:"patient_id"`
}

func (Sante) TableName() string { return "sante" }

// Nutrition holds the dietary profile from the nutrition extract.
// At most one row per patient.
type Nutrition struct {
	ID                  uint    `gorm:"primaryKey" json:"id"`
	DailyCaloricIntake  int     `gorm:"not null" json:"daily_caloric_intake"`
	DietaryRestrictions *string `gorm:"size:32" json:"dietary_restrictions"`
	Allergies           *string `gorm:"size:32" json:"allergies"`
	PreferredCuisine    *string `gorm:"size:32" json:"preferred_cuisine"`
	DietRecommendation  *string `gorm:"size:32" json:"diet_recommendation"`
	AdherenceToDietPlan string  `gorm:"size:12;not null" json:"adherence_to_diet_plan"`
	PatientID           string  `gorm:"column:patient_id;size:16;not null;uniqueIndex" json:"patient_id"`
}

func (Nutrition) TableName() string { return "nutrition" }

// ActivitePhysique holds the self-reported activity profile.
// At most one row per patient.
type ActivitePhysique struct {
	ID                    uint    `gorm:"primaryKey" json:"id"`
	PhysicalActivityLevel string  `gorm:"size:16;not null" json:"physical_activity_level"`
	WeeklyExerciseHours   float64 `gorm:"not null" json:"weekly_exercise_hours"`
	PatientID             string  `gorm:"column:patient_id;size:16;not null;uniqueIndex" json:"patient_id"`
}

func (ActivitePhysique) TableName() string { return "activite_physique" }

// GymSession is a single recorded workout. Sessions are append-only events:
// a patient may have any number, and re-loading the same extract must not
// duplicate them. SessionID is a deterministic UUID derived from the session's
// natural fields so the same input row always maps to the same key.
type GymSession struct {
	SessionID                string  `gorm:"column:session_id;primaryKey;size:36" json:"session_id"`
	DurationHours            float64 `gorm:"not null" json:"duration_hours"`
	CaloriesBurned           int     `gorm:"not null" json:"calories_burned"`
	WorkoutType              string  `gorm:"size:16;not null" json:"workout_type"`
	MaxBPM                   int     `gorm:"column:max_bpm;not null" json:"max_bpm"`
	AvgBPM                   int     `gorm:"column:avg_bpm;not null" json:"avg_bpm"`
	RestingBPM               int     `gorm:"column:resting_bpm;not null" json:"resting_bpm"`
	FatPercentage            float64 `gorm:"not null" json:"fat_percentage"`
	WaterIntakeLiters        float64 `gorm:"not null" json:"water_intake_liters"`
	WorkoutFrequencyDaysWeek int     `gorm:"not null" json:"workout_frequency_days_week"`
	ExperienceLevel          int     `gorm:"not null" json:"experience_level"`
	PatientID                string  `gorm:"column:patient_id;size:16;not null;index" json:"patient_id"`
}

func (GymSession) TableName() string { return "gym_session" }
