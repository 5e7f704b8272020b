package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"idftprep/internal/logging"
	"idftprep/pkg/arraystore"
	"idftprep/pkg/config"
	"idftprep/pkg/datasetio"
	"idftprep/pkg/preparation"
	"idftprep/pkg/visualization"
)

// Root carries state shared by all subcommands.
type Root struct {
	configPath string
	logLevel   string

	cfg *config.Config
	log *slog.Logger
}

// NewRootCmd creates the root Cobra command
func NewRootCmd() *cobra.Command {
	root := &Root{}

	rootCmd := &cobra.Command{
		Use:   "idftprep",
		Short: "Prepare interferometric visibilities for direct Fourier imaging",
		Long: `idftprep predicts model visibilities on a reference image grid, subtracts them
from the observed data and writes per-partition pixel coordinates, baselines in
wavelengths, residual visibilities and flag-masked weights to an array group.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return root.setup()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&root.configPath, "config", "c", "",
		"config file (default $"+config.EnvConfigPath+" or "+config.DefaultConfigPath+")")
	rootCmd.PersistentFlags().StringVar(&root.logLevel, "log-level", "", "override logging.level (debug|info|warn|error)")

	rootCmd.AddCommand(newPrepareCmd(root))
	rootCmd.AddCommand(newSynthCmd(root))
	rootCmd.AddCommand(newInspectCmd(root))
	rootCmd.AddCommand(newConfigCmd(root))

	return rootCmd
}

func (r *Root) setup() error {
	cfg, err := config.LoadConfig(config.ResolvePath(r.configPath))
	if err != nil {
		return err
	}
	if r.logLevel != "" {
		cfg.Logging.Level = r.logLevel
	}
	r.cfg = cfg
	r.log = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(r.log)
	return nil
}

func newPrepareCmd(root *Root) *cobra.Command {
	var (
		output    string
		cellsize  string
		imageSize int
		workers   int
		fitsPath  string
		quicklook string
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "prepare <dataset_dir> [output_path]",
		Short: "Turn a dataset into IDFT inputs",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			if len(args) > 1 {
				output = args[1]
			}
			if output != "" {
				cfg.Store.Path = output
			}
			if cmd.Flags().Changed("cellsize") {
				cfg.Processing.Cellsize = cellsize
			}
			if cmd.Flags().Changed("image-size") {
				cfg.Processing.ImageSize = imageSize
			}
			if cmd.Flags().Changed("workers") {
				cfg.Processing.Workers = workers
			}
			if cmd.Flags().Changed("fits") {
				cfg.Output.FITS = fitsPath
			}
			if cmd.Flags().Changed("quicklook") {
				cfg.Output.Quicklook = quicklook
			}
			if cmd.Flags().Changed("overwrite") {
				cfg.Store.Overwrite = overwrite
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			params, err := prepareParams(cfg, args[0], root.log)
			if err != nil {
				return err
			}

			start := time.Now()
			preparer := preparation.NewPreparer(params)
			if err := preparer.Process(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Prepared %d partitions in %.2f seconds\n",
				len(preparer.Inputs()), time.Since(start).Seconds())
			fmt.Fprintf(cmd.OutOrStdout(), "Image: %dx%d, cellsize %s\n",
				preparer.Image().Size, preparer.Image().Size, preparer.Image().Cellsize[0])
			fmt.Fprintf(cmd.OutOrStdout(), "IDFT inputs saved to: %s\n", cfg.Store.Path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "array group path (overrides store.path)")
	cmd.Flags().StringVar(&cellsize, "cellsize", "", "pixel size, e.g. 0.5arcsec (default derived from resolution)")
	cmd.Flags().IntVar(&imageSize, "image-size", 0, "pixels per image side")
	cmd.Flags().IntVarP(&workers, "workers", "j", 0, "partitions processed concurrently")
	cmd.Flags().StringVar(&fitsPath, "fits", "", "write the reference image to this FITS file")
	cmd.Flags().StringVar(&quicklook, "quicklook", "", "write uv-coverage quicklooks to this .png/.jpg")
	cmd.Flags().BoolVar(&overwrite, "overwrite", true, "replace an existing array group")

	return cmd
}

// prepareParams maps the configuration onto preparer parameters.
func prepareParams(cfg *config.Config, inputDir string, log *slog.Logger) (*preparation.Params, error) {
	cell, err := cfg.Cellsize()
	if err != nil {
		return nil, err
	}
	store, err := cfg.StoreOptions()
	if err != nil {
		return nil, err
	}

	opts := preparation.DefaultOptions()
	opts.Oversampling = cfg.Processing.Oversampling
	opts.ImageSize = cfg.Processing.ImageSize
	opts.Cellsize = cell
	opts.PaddingFactor = cfg.Processing.PaddingFactor
	opts.Workers = cfg.Processing.Workers
	opts.Logger = log

	return &preparation.Params{
		InputDir:      inputDir,
		OutputPath:    cfg.Store.Path,
		Options:       opts,
		Store:         store,
		FITSPath:      cfg.Output.FITS,
		QuicklookPath: cfg.Output.Quicklook,
	}, nil
}

func newSynthCmd(root *Root) *cobra.Command {
	var overwrite bool
	opts := datasetio.DefaultSynthOptions()

	cmd := &cobra.Command{
		Use:   "synth <output_dir>",
		Short: "Write a synthetic point-source dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := datasetio.Synthesize(opts)
			if err != nil {
				return err
			}
			store, err := root.cfg.StoreOptions()
			if err != nil {
				return err
			}
			err = datasetio.Write(cmd.Context(), args[0], ds, datasetio.WriteOptions{
				Overwrite: overwrite,
				Arrays: arraystore.ArrayOptions{
					Compressor: store.Compressor,
					Level:      store.Level,
					ChunkRows:  store.ChunkRows,
				},
			})
			if err != nil {
				return err
			}

			res, err := ds.Resolution()
			if err != nil {
				return err
			}
			root.log.Info("synthetic dataset written",
				"path", args[0],
				"partitions", len(ds.Partitions),
				"resolution", res.String(),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d partitions to %s (resolution %s)\n",
				len(ds.Partitions), args[0], res)
			return nil
		},
	}

	cmd.Flags().Uint64Var(&opts.Seed, "seed", opts.Seed, "random seed")
	cmd.Flags().IntVar(&opts.Fields, "fields", opts.Fields, "number of fields")
	cmd.Flags().IntVar(&opts.SpectralWindows, "spws", opts.SpectralWindows, "number of spectral windows")
	cmd.Flags().IntVar(&opts.Channels, "channels", opts.Channels, "channels per spectral window")
	cmd.Flags().IntVar(&opts.Rows, "rows", opts.Rows, "rows per partition")
	cmd.Flags().IntVar(&opts.Antennas, "antennas", opts.Antennas, "number of antennas")
	cmd.Flags().Float64Var(&opts.MaxBaseline, "max-baseline", opts.MaxBaseline, "array diameter in metres")
	cmd.Flags().Float64Var(&opts.NoiseSigma, "noise", opts.NoiseSigma, "gaussian noise per visibility component")
	cmd.Flags().Float64Var(&opts.FlagFraction, "flag-fraction", opts.FlagFraction, "probability of flagging a sample")
	cmd.Flags().BoolVar(&opts.FullPolarization, "full-pol", false, "write XX, XY, YX, YY instead of XX, YY")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing dataset")

	return cmd
}

func newInspectCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <array_group>",
		Short: "Summarise a stored set of IDFT inputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := root.cfg.StoreOptions()
			if err != nil {
				return err
			}
			inputs, err := arraystore.Open(args[0], store).Load(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "GROUP\tROWS\tCHANS\tCORRS\tFLAGGED\tWEIGHT\tAMPLITUDE\tMAX UV")
			for _, s := range visualization.Summarize(inputs) {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d/%d\t%.3g±%.2g\t%.3g±%.2g\t%.4g\n",
					arraystore.PartitionGroupName(s.Index), s.Rows, s.Channels, s.Selected,
					s.Flagged, s.Samples, s.WeightMean, s.WeightStd,
					s.AmplitudeMean, s.AmplitudeStd, s.MaxBaseline)
			}
			return tw.Flush()
		},
	}
}

func newConfigCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ResolvePath(root.configPath)
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to replace it)", path)
			}
			if err := config.CreateDefaultConfigFile(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default configuration written to %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context, args []string) error {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}
