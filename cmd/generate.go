package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/stephenschott/affluence-cli/internal/dataset"
	"github.com/stephenschott/affluence-cli/internal/ingest"
	"github.com/stephenschott/affluence-cli/internal/region"
)

var (
	generateCount  int
	generateSeed   int64
	generateOutput string
	generateResume string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the affluence training dataset",
	Long:  "Loads business records, neighborhood boundaries, and demographics, samples points across the business bounding box, and writes the feature CSV. Progress is checkpointed per point; use --resume to pick up an interrupted run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		dsCfg := cfg.Dataset
		if cmd.Flags().Changed("count") {
			dsCfg.SampleCount = generateCount
		}
		if cmd.Flags().Changed("seed") {
			dsCfg.Seed = generateSeed
		}
		output := cfg.Output.Path
		if generateOutput != "" {
			output = generateOutput
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		businesses, err := ingest.LoadBusinesses(ctx, cfg.Inputs.BusinessCSV, dsCfg.Tiers)
		if err != nil {
			return err
		}
		figures, err := ingest.LoadDemographics(ctx, cfg.Inputs.DemographicsPath)
		if err != nil {
			return err
		}
		locator, err := region.LoadShapefile(cfg.Inputs.RegionsShapefile, cfg.Inputs.RegionNameField)
		if err != nil {
			return err
		}
		zap.L().Info("inputs loaded",
			zap.Int("businesses", len(businesses)),
			zap.Int("demographics_rows", len(figures)),
			zap.Int("regions", locator.Len()),
		)

		asm := dataset.New(dsCfg, locator, st)

		var result *dataset.Result
		if generateResume != "" {
			result, err = asm.Resume(ctx, generateResume, businesses, figures)
		} else {
			result, err = asm.Run(ctx, businesses, figures)
		}
		if err != nil {
			return err
		}

		// Resumed runs keep their original radii and tiers, so export
		// always follows the run parameters rather than current config.
		if err := dataset.ExportFile(output, result.Points, result.Params.Radii, result.Params.Tiers); err != nil {
			return err
		}
		zap.L().Info("dataset written",
			zap.String("path", output),
			zap.Int("rows", len(result.Points)),
			zap.Int("dropped", result.Dropped),
		)

		if cfg.Output.Manifest {
			if err := writeManifest(output+".manifest.yaml", result); err != nil {
				return err
			}
		}

		return nil
	},
}

// runManifest records how a dataset file was produced, next to the file.
type runManifest struct {
	RunID       string    `yaml:"run_id"`
	GeneratedAt time.Time `yaml:"generated_at"`
	Rows        int       `yaml:"rows"`
	Sampled     int       `yaml:"sampled"`
	Unlocated   int       `yaml:"unlocated"`
	Dropped     int       `yaml:"dropped"`
	Columns     []string  `yaml:"columns"`
}

func writeManifest(path string, result *dataset.Result) error {
	m := runManifest{
		RunID:       result.RunID,
		GeneratedAt: time.Now().UTC(),
		Rows:        len(result.Points),
		Sampled:     result.Sampled,
		Unlocated:   result.Unlocated,
		Dropped:     result.Dropped,
		Columns:     dataset.Header(result.Params.Radii, result.Params.Tiers),
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "marshal manifest")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "write manifest %s", path)
	}
	return nil
}

func init() {
	generateCmd.Flags().IntVar(&generateCount, "count", 0, "number of points to sample (default from config)")
	generateCmd.Flags().Int64Var(&generateSeed, "seed", 0, "RNG seed for reproducible sampling (default from config)")
	generateCmd.Flags().StringVar(&generateOutput, "output", "", "output CSV path (default from config)")
	generateCmd.Flags().StringVar(&generateResume, "resume", "", "run ID to resume instead of starting a new run")
	rootCmd.AddCommand(generateCmd)
}
