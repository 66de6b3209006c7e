package dataset

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stephenschott/affluence-cli/internal/config"
	"github.com/stephenschott/affluence-cli/internal/model"
	"github.com/stephenschott/affluence-cli/internal/region"
	"github.com/stephenschott/affluence-cli/internal/sampler"
	"github.com/stephenschott/affluence-cli/internal/spatial"
	"github.com/stephenschott/affluence-cli/internal/store"
)

// Assembler runs the dataset generation pipeline.
type Assembler struct {
	cfg     config.DatasetConfig
	locator *region.Locator
	store   store.Store
}

// New creates an Assembler.
func New(cfg config.DatasetConfig, locator *region.Locator, st store.Store) *Assembler {
	return &Assembler{cfg: cfg, locator: locator, store: st}
}

// Result summarizes a completed run.
type Result struct {
	RunID     string
	Params    model.RunParams
	Points    []model.SampledPoint
	Sampled   int // coordinates drawn
	Unlocated int // sampled points outside every region, discarded pre-compute
	Dropped   int // points dropped by the missing-demographics policy
}

// Run executes the full pipeline against the given business records and
// demographics figures, checkpointing every point through the store.
func (a *Assembler) Run(ctx context.Context, businesses []model.BusinessRecord, figures map[string]model.DemographicFigures) (*Result, error) {
	located := a.assignRegions(businesses)
	if len(located) == 0 {
		return nil, eris.New("dataset: no business records fall inside a known region")
	}

	demo := BuildDemographics(located, figures, a.cfg.Tiers)

	bbox, err := spatial.BoundsOf(located)
	if err != nil {
		return nil, err
	}

	params := model.RunParams{
		SampleCount: a.cfg.SampleCount,
		Radii:       a.cfg.Radii,
		Tiers:       a.cfg.Tiers,
		Precision:   a.cfg.Precision,
		Seed:        a.cfg.Seed,
	}
	coords, err := sampler.New(params.Seed, params.Precision).Sample(params.SampleCount, bbox)
	if err != nil {
		return nil, err
	}

	// Resolve regions up front and discard NotFound points before any
	// distance work is queued.
	var pending []model.StoredPoint
	var unlocated int
	for i, c := range coords {
		name, ok := a.locator.Locate(c)
		if !ok {
			unlocated++
			continue
		}
		pending = append(pending, model.StoredPoint{Index: i, Coordinate: c, Region: name})
	}

	run, err := a.store.CreateRun(ctx, params)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("run_id", run.ID))
	log.Info("sampled points",
		zap.Int("sampled", len(coords)),
		zap.Int("retained", len(pending)),
		zap.Int("unlocated", unlocated),
	)

	batch := a.cfg.CheckpointEvery
	if batch <= 0 {
		batch = len(pending)
	}
	for start := 0; start < len(pending); start += batch {
		end := start + batch
		if end > len(pending) {
			end = len(pending)
		}
		if err := a.store.InsertPendingPoints(ctx, run.ID, pending[start:end]); err != nil {
			return nil, err
		}
	}

	result, err := a.process(ctx, run, located, demo)
	if err != nil {
		return nil, err
	}
	result.Sampled = len(coords)
	result.Unlocated = unlocated
	return result, nil
}

// Resume reprocesses the pending points of an interrupted run. Reference data
// is rebuilt from the inputs; feature computation uses the run's original
// parameters so resumed features stay commensurate with finished ones.
func (a *Assembler) Resume(ctx context.Context, runID string, businesses []model.BusinessRecord, figures map[string]model.DemographicFigures) (*Result, error) {
	run, err := a.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status == model.RunStatusComplete {
		return nil, eris.Errorf("dataset: run %s is already complete", runID)
	}

	located := a.assignRegions(businesses)
	if len(located) == 0 {
		return nil, eris.New("dataset: no business records fall inside a known region")
	}
	demo := BuildDemographics(located, figures, run.Params.Tiers)

	return a.process(ctx, run, located, demo)
}

// assignRegions resolves each business record to its containing region and
// drops the ones outside every known region.
func (a *Assembler) assignRegions(businesses []model.BusinessRecord) []model.BusinessRecord {
	located := make([]model.BusinessRecord, 0, len(businesses))
	var dropped int
	for _, b := range businesses {
		name, ok := a.locator.Locate(b.Coordinate)
		if !ok {
			dropped++
			continue
		}
		b.Region = name
		located = append(located, b)
	}
	if dropped > 0 {
		zap.L().Info("dropped business records outside known regions",
			zap.Int("dropped", dropped),
			zap.Int("retained", len(located)),
		)
	}
	return located
}

// process computes features for every pending point of the run. Points are
// independent, so the per-point work fans out across a bounded worker pool;
// each completion is persisted immediately so an interrupt loses at most the
// in-flight points.
func (a *Assembler) process(ctx context.Context, run *model.Run, businesses []model.BusinessRecord, demo map[string]*model.RegionDemographics) (*Result, error) {
	if err := a.store.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
		return nil, err
	}

	pending, err := a.store.PendingPoints(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("run_id", run.ID))
	log.Info("computing point features",
		zap.Int("pending", len(pending)),
		zap.Int("concurrency", a.cfg.Concurrency),
		zap.Int("business_records", len(businesses)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(a.cfg.Concurrency, 1))

	var dropped atomic.Int64
	for _, p := range pending {
		g.Go(func() error {
			entry, ok := demo[p.Region]
			if !ok || entry.Figures == nil {
				if a.cfg.OnMissingDemographics == config.OnMissingDrop {
					log.Warn("dropping point with no demographics entry",
						zap.Int("index", p.Index),
						zap.String("region", p.Region),
					)
					dropped.Add(1)
					return a.store.DropPoint(gctx, p.ID)
				}
				return &MissingDemographicsError{Region: p.Region}
			}

			features := ComputeFeatures(p.Coordinate, businesses, run.Params.Radii, run.Params.Tiers)
			return a.store.CompletePoint(gctx, p.ID, features, entry)
		})
	}

	if err := g.Wait(); err != nil {
		if statusErr := a.store.UpdateRunStatus(ctx, run.ID, model.RunStatusFailed); statusErr != nil {
			log.Error("failed to mark run failed", zap.Error(statusErr))
		}
		return nil, err
	}

	completed, err := a.store.CompletedPoints(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	points := make([]model.SampledPoint, 0, len(completed))
	for _, p := range completed {
		points = append(points, p.Sampled())
	}

	if err := a.store.UpdateRunStatus(ctx, run.ID, model.RunStatusComplete); err != nil {
		return nil, err
	}
	log.Info("run complete",
		zap.Int("points", len(points)),
		zap.Int64("dropped", dropped.Load()),
	)

	return &Result{
		RunID:   run.ID,
		Params:  run.Params,
		Points:  points,
		Dropped: int(dropped.Load()),
	}, nil
}

// ComputeFeatures returns the radius×tier proportion features for one point,
// measured against the full business record set. Each radius filters once and
// the tier proportions share the filtered subset.
func ComputeFeatures(center model.Coordinate, businesses []model.BusinessRecord, radii []float64, tiers []int) map[string]float64 {
	features := make(map[string]float64, len(radii)*len(tiers))
	for _, radius := range radii {
		nearby := spatial.WithinRadius(center, radius, businesses)
		for _, tier := range tiers {
			features[model.FeatureName(radius, tier)] = spatial.Proportion(nearby, tier)
		}
	}
	return features
}
