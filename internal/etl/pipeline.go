package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/mspr-sante/backend/config"
	"github.com/mspr-sante/backend/internal/models"
)

// Pipeline runs one batch: extract and validate the three sources, resolve
// identities across them, derive metrics and load the result. Nothing is
// written unless every source clears the rejection threshold.
type Pipeline struct {
	cfg   *config.Config
	db    *gorm.DB
	cache *redis.Client
	log   zerolog.Logger
}

// NewPipeline wires a pipeline. cache may be nil when no KPI cache is
// configured.
func NewPipeline(cfg *config.Config, db *gorm.DB, cache *redis.Client, log zerolog.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, db: db, cache: cache, log: log}
}

// RunResult is the outcome of one completed batch.
type RunResult struct {
	Run     models.PipelineRun
	Reports map[string]*SourceReport
	Stats   LoadStats
}

// Run executes the batch. On a fatal input condition (missing file,
// rejection rate above the threshold) it records a failed run and returns a
// FatalInputError without writing any patient data.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	started := time.Now().UTC()
	schemas := Schemas()

	if err := CheckInputs(p.cfg.DataDir, schemas); err != nil {
		p.recordFailure(started, nil)
		return nil, err
	}

	reports, err := p.extractAll(ctx, schemas)
	if err != nil {
		p.recordFailure(started, reports)
		return nil, err
	}

	for _, schema := range schemas {
		report := reports[schema.Name]
		p.log.Info().
			Str("source", schema.Name).
			Int("rows_read", report.RowsRead).
			Int("rejected", len(report.Rejections)).
			Msg("source validated")
		for _, rej := range report.Rejections {
			p.log.Warn().Str("source", rej.Source).Int("line", rej.Line).
				Str("field", rej.Field).Str("reason", rej.Reason).
				Msg(rej.Detail)
		}
		for _, w := range report.Warnings {
			p.log.Warn().Str("source", schema.Name).Msg(w)
		}
		if rate := report.RejectionRate(); rate > p.cfg.MaxRejectionRate {
			p.recordFailure(started, reports)
			return nil, &FatalInputError{Reason: fmt.Sprintf(
				"source %s rejected %.0f%% of rows (threshold %.0f%%), aborting batch",
				schema.Name, rate*100, p.cfg.MaxRejectionRate*100)}
		}
	}

	res := Resolve(reports[SourceDiet], reports[SourceNutrition], reports[SourceGym])
	for _, msg := range res.Superseded {
		p.log.Warn().Msg(msg)
	}

	stats, err := Load(p.db, res)
	if err != nil {
		p.recordFailure(started, reports)
		return nil, err
	}
	if stats.OrphansSkipped > 0 {
		p.log.Warn().Int("count", stats.OrphansSkipped).
			Msg("satellite rows referencing unknown patients were skipped")
	}

	run := models.PipelineRun{
		StartedAt:      started,
		FinishedAt:     time.Now().UTC(),
		Status:         "succeeded",
		PatientsLoaded: stats.Patients,
		SourceStats:    sourceStats(reports, res, stats),
	}
	if err := RecordRun(p.db, &run); err != nil {
		return nil, err
	}

	p.invalidateCache(ctx)

	p.log.Info().
		Int("patients", stats.Patients).
		Int("sessions_new", stats.SessionsNew).
		Int("sessions_known", stats.SessionsKnown).
		Msg("batch loaded")

	return &RunResult{Run: run, Reports: reports, Stats: *stats}, nil
}

// extractAll reads and validates the three sources, concurrently when the
// configuration allows it. Validation is per source and independent, so the
// goroutines never share state.
func (p *Pipeline) extractAll(ctx context.Context, schemas []SourceSchema) (map[string]*SourceReport, error) {
	reports := make(map[string]*SourceReport, len(schemas))

	if !p.cfg.Parallel {
		for _, schema := range schemas {
			rows, err := ReadSource(p.cfg.DataDir, schema)
			if err != nil {
				return reports, err
			}
			reports[schema.Name] = ValidateSource(schema, rows)
		}
		return reports, nil
	}

	results := make([]*SourceReport, len(schemas))
	g, _ := errgroup.WithContext(ctx)
	for i, schema := range schemas {
		i, schema := i, schema
		g.Go(func() error {
			rows, err := ReadSource(p.cfg.DataDir, schema)
			if err != nil {
				return err
			}
			results[i] = ValidateSource(schema, rows)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return reports, err
	}
	for i, schema := range schemas {
		reports[schema.Name] = results[i]
	}
	return reports, nil
}

// recordFailure persists a failed run so the data-quality KPIs can report
// on aborted batches too. Recording is best-effort.
func (p *Pipeline) recordFailure(started time.Time, reports map[string]*SourceReport) {
	run := models.PipelineRun{
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Status:     "failed",
	}
	if reports != nil {
		run.SourceStats = sourceStats(reports, nil, nil)
	}
	if err := RecordRun(p.db, &run); err != nil {
		p.log.Error().Err(err).Msg("failed to record run report")
	}
}

// invalidateCache drops cached KPI responses after a successful load.
func (p *Pipeline) invalidateCache(ctx context.Context) {
	if p.cache == nil {
		return
	}
	iter := p.cache.Scan(ctx, 0, "kpi:*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		p.log.Warn().Err(err).Msg("KPI cache scan failed")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := p.cache.Del(ctx, keys...).Err(); err != nil {
		p.log.Warn().Err(err).Msg("KPI cache invalidation failed")
	}
}

func sourceStats(reports map[string]*SourceReport, res *Resolution, stats *LoadStats) []models.SourceStat {
	var out []models.SourceStat
	for _, name := range []string{SourceDiet, SourceNutrition, SourceGym} {
		report, ok := reports[name]
		if !ok || report == nil {
			continue
		}
		stat := models.SourceStat{
			Source:       name,
			RowsRead:     report.RowsRead,
			RowsRejected: len(report.Rejections),
			MissingField: report.MissingField,
			TypeErrors:   report.TypeErrors,
			OutOfDomain:  report.OutOfDomain,
		}
		if res != nil {
			stat.DuplicateKeys = res.DuplicateKeys[name]
		}
		if stats != nil {
			switch name {
			case SourceDiet:
				stat.RowsLoaded = stats.Sante
			case SourceNutrition:
				stat.RowsLoaded = stats.Nutrition
			case SourceGym:
				stat.RowsLoaded = stats.SessionsNew + stats.SessionsKnown
			}
		}
		out = append(out, stat)
	}
	return out
}
