package etl

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mspr-sante/backend/config"
	"github.com/mspr-sante/backend/internal/database"
	"github.com/mspr-sante/backend/internal/models"
)

const dietHeader = "Patient_ID,Age,Gender,Weight_kg,Height_cm,Cholesterol_mg/dL,Blood_Pressure_mmHg,Disease_Type,Glucose_mg/dL,Severity,Physical_Activity_Level,Weekly_Exercise_Hours\n"

const nutritionHeader = "Patient_ID,Age,Gender,Weight_kg,Height_cm,Daily_Caloric_Intake,Dietary_Restrictions,Allergies,Preferred_Cuisine,Diet_Recommendation,Adherence_to_Diet_Plan\n"

const gymHeader = "Patient_ID,Age,Gender,Weight_kg,Height_cm,Session_Duration (hours),Calories_Burned,Workout_Type,Max_BPM,Avg_BPM,Resting_BPM,Fat_Percentage,Water_Intake (liters),Workout_Frequency (days/week),Experience_Level\n"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "etl_test.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func testConfig(dataDir string) *config.Config {
	return &config.Config{
		DataDir:           dataDir,
		MaxRejectionRate:  0.5,
		Parallel:          false,
		NutritionHighBand: []string{"High"},
		ActivityHighBand:  []string{"Active", "Very_Active"},
	}
}

func writeFixtures(t *testing.T, dir string) {
	t.Helper()
	writeFile(t, dir, DietFile, dietHeader+
		"P001,42,Female,70,175,180,120/80,Diabetes,90,,Moderate,3.5\n"+
		"P002,55,Male,90,180,300,150/95,Hypertension,140,High,Sedentary,1.0\n")
	writeFile(t, dir, NutritionFile, nutritionHeader+
		"P001,42,Female,70,175,2000,Low_Sugar,Peanuts,Italian,Balanced,High\n"+
		"P003,30,Female,60,165,1800,,,,,Medium\n")
	writeFile(t, dir, GymFile, gymHeader+
		"P001,42,Female,70,175,1.0,500,Cardio,180,140,60,25,2.0,3,2\n"+
		"P001,42,Female,70,175,1.5,600,HIIT,190,150,60,25,2.5,3,2\n"+
		"P002,55,Male,90,180,1.0,400,Yoga,150,110,70,30,1.5,2,1\n")
}

func count(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestPipelineRunLoadsAllSources(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	db := newTestDB(t)

	pipeline := NewPipeline(testConfig(dir), db, nil, zerolog.Nop())
	result, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Stats.Patients)
	assert.Equal(t, 3, result.Stats.SessionsNew)

	assert.EqualValues(t, 3, count(t, db, &models.Patient{}))
	assert.EqualValues(t, 2, count(t, db, &models.Sante{}))
	assert.EqualValues(t, 2, count(t, db, &models.Nutrition{}))
	assert.EqualValues(t, 2, count(t, db, &models.ActivitePhysique{}))
	assert.EqualValues(t, 3, count(t, db, &models.GymSession{}))

	var p1 models.Patient
	require.NoError(t, db.First(&p1, "patient_id = ?", "P001").Error)
	assert.Equal(t, 22.86, p1.BMICalculated)

	// P001's blank severity is derived from its healthy measurements;
	// P002 keeps the value from the extract.
	var s1, s2 models.Sante
	require.NoError(t, db.First(&s1, "patient_id = ?", "P001").Error)
	require.NoError(t, db.First(&s2, "patient_id = ?", "P002").Error)
	assert.Equal(t, "Low", s1.Severity)
	assert.Equal(t, "High", s2.Severity)

	assert.Equal(t, "succeeded", result.Run.Status)
	require.Len(t, result.Run.SourceStats, 3)
	assert.Equal(t, 2, result.Run.SourceStats[0].RowsRead)
	assert.Equal(t, 3, result.Run.SourceStats[2].RowsRead)
}

func TestPipelineRunIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	db := newTestDB(t)
	pipeline := NewPipeline(testConfig(dir), db, nil, zerolog.Nop())

	_, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	second, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	// Re-loading the same extracts converges: no new sessions, no
	// duplicated rows anywhere.
	assert.Equal(t, 0, second.Stats.SessionsNew)
	assert.Equal(t, 3, second.Stats.SessionsKnown)
	assert.EqualValues(t, 3, count(t, db, &models.Patient{}))
	assert.EqualValues(t, 2, count(t, db, &models.Sante{}))
	assert.EqualValues(t, 3, count(t, db, &models.GymSession{}))
}

func TestPipelineParallelMatchesSequential(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	db := newTestDB(t)

	cfg := testConfig(dir)
	cfg.Parallel = true
	pipeline := NewPipeline(cfg, db, nil, zerolog.Nop())

	result, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Stats.Patients)
	assert.Equal(t, 3, result.Stats.SessionsNew)
}

func TestPipelineAbortsAboveRejectionThreshold(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, DietFile, dietHeader+
		"P001,42,Female,70,175,180,120/80,Diabetes,90,,Moderate,3.5\n"+
		"P002,nope,Male,90,180,300,150/95,Hypertension,140,High,Sedentary,1.0\n"+
		"P003,55,Male,90,180,,150/95,Hypertension,140,High,Sedentary,1.0\n")
	writeFile(t, dir, NutritionFile, nutritionHeader)
	writeFile(t, dir, GymFile, gymHeader)
	db := newTestDB(t)

	pipeline := NewPipeline(testConfig(dir), db, nil, zerolog.Nop())
	_, err := pipeline.Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsFatal(err))

	// Nothing was loaded, but the failed run is on record.
	assert.EqualValues(t, 0, count(t, db, &models.Patient{}))
	var run models.PipelineRun
	require.NoError(t, db.Order("id DESC").First(&run).Error)
	assert.Equal(t, "failed", run.Status)
}

func TestPipelineFailsFastOnMissingFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, DietFile, dietHeader)
	// Nutrition and gym extracts absent.
	db := newTestDB(t)

	pipeline := NewPipeline(testConfig(dir), db, nil, zerolog.Nop())
	_, err := pipeline.Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.EqualValues(t, 0, count(t, db, &models.Patient{}))
}

func TestPipelineCountsDuplicateKeys(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, DietFile, dietHeader+
		"P001,42,Female,70,175,150,120/80,Diabetes,90,Low,Moderate,3.5\n"+
		"P001,42,Female,70,175,320,120/80,Diabetes,90,Low,Moderate,3.5\n")
	writeFile(t, dir, NutritionFile, nutritionHeader)
	writeFile(t, dir, GymFile, gymHeader)
	db := newTestDB(t)

	pipeline := NewPipeline(testConfig(dir), db, nil, zerolog.Nop())
	result, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Run.SourceStats[0].DuplicateKeys)

	// The later row won.
	var s models.Sante
	require.NoError(t, db.First(&s, "patient_id = ?", "P001").Error)
	assert.Equal(t, 320, s.Cholesterol)
}
