package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/thesavant42/hawkmap/internal/config"
	"github.com/thesavant42/hawkmap/internal/modes"
	"github.com/thesavant42/hawkmap/internal/ui"
	"github.com/thesavant42/hawkmap/internal/upload"
)

var (
	version = "1.0.0"

	configPath   string
	tokenFlag    string
	releaseFlag  string
	endpointFlag string
	keepMaps     bool
	removeFailed bool
	timeout      time.Duration
	verbose      bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hawkmap",
		Short: "Tag bundles with a Hawk release and upload their sourcemaps",
		Long: `hawkmap bundles JavaScript with esbuild, injects the release id as
HAWK_RELEASE, and uploads the emitted sourcemaps to the Hawk collector.

Settings are read from hawkmap.yaml, then HAWK_TOKEN / HAWK_RELEASE,
then the flags below.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.FileName, "Project configuration file")
	rootCmd.PersistentFlags().StringVarP(&tokenFlag, "token", "t", "", "Hawk integration token")
	rootCmd.PersistentFlags().StringVarP(&releaseFlag, "release", "r", "", "Release id (default: current timestamp)")
	rootCmd.PersistentFlags().StringVar(&endpointFlag, "endpoint", "", "Collector endpoint (default: derived from token)")
	rootCmd.PersistentFlags().BoolVar(&keepMaps, "keep-maps", false, "Keep sourcemaps on disk after upload")
	rootCmd.PersistentFlags().BoolVar(&removeFailed, "remove-failed", false, "Also delete sourcemaps whose upload failed")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Per-upload timeout (0 = none)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(buildCmd())
	rootCmd.AddCommand(uploadCmd())

	return rootCmd
}

// loadConfig layers flags over hawkmap.yaml and the environment.
func loadConfig(cmd *cobra.Command) (*modes.Config, error) {
	file, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}
	opts, err := file.Options()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("token") {
		opts.Token = tokenFlag
	}
	if flags.Changed("release") {
		opts.Release = releaseFlag
	}
	if flags.Changed("endpoint") {
		opts.CollectorEndpoint = endpointFlag
	}
	if flags.Changed("keep-maps") {
		opts.RemoveSourceMaps = config.Bool(!keepMaps)
	}
	if flags.Changed("remove-failed") {
		opts.RemoveFailedUploads = removeFailed
	}
	if flags.Changed("timeout") {
		opts.Timeout = timeout
	}

	cfg := modes.DefaultConfig()
	cfg.Plugin = opts
	cfg.Build = file.Build
	cfg.Verbose = verbose
	return cfg, nil
}

func buildCmd() *cobra.Command {
	var outdir string
	var minify bool

	cmd := &cobra.Command{
		Use:   "build [entry...]",
		Short: "Bundle with esbuild and upload the emitted sourcemaps",
		Long: `Bundles the entry points with the Hawk plugin attached. Every application
module imports virtual:hawk/globals, which sets HAWK_RELEASE. After the
bundle is written, each emitted .map file is uploaded and, unless
--keep-maps is set, deleted once the collector accepts it.

HTML entries contribute the local scripts they reference.

Examples:
  hawkmap build                         # Entries from hawkmap.yaml
  hawkmap build src/main.ts --minify
  hawkmap build index.html -o public`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				fmt.Fprintln(os.Stderr, ui.Error(err.Error()))
				return err
			}
			if len(args) > 0 {
				cfg.Build.EntryPoints = args
			}
			if cmd.Flags().Changed("outdir") {
				cfg.Build.Outdir = outdir
			}
			if cmd.Flags().Changed("minify") {
				cfg.Build.Minify = minify
			}

			fmt.Print(ui.Banner(version))

			result, err := runBuild(cfg)
			if err != nil {
				fmt.Fprintln(os.Stderr, ui.Error(err.Error()))
				return err
			}

			fmt.Println(ui.SummaryHeader())
			fmt.Println(ui.SummaryLine("Output dir:", result.OutDir))
			fmt.Println(ui.SummaryLine("Files emitted:", len(result.Outputs)))
			if result.PluginDisabled {
				fmt.Println(ui.SummaryLine("Hawk plugin:", "disabled"))
			} else {
				fmt.Println(ui.SummaryLine("Release:", result.Release))
				printReport(result.Report)
			}
			if len(result.Warnings) > 0 {
				fmt.Println(ui.SummaryLine("Warnings:", len(result.Warnings)))
				if verbose {
					for _, w := range result.Warnings {
						fmt.Printf("      %s\n", ui.DimStyle.Render(fmt.Sprintf("- %s", w)))
					}
				}
			}

			fmt.Println()
			return nil
		},
	}

	cmd.Flags().StringVarP(&outdir, "outdir", "o", config.DefaultOutDir, "Output directory")
	cmd.Flags().BoolVar(&minify, "minify", false, "Minify the bundle")

	return cmd
}

// runBuild shows a spinner on interactive terminals. Plugin output is
// buffered meanwhile and printed once the spinner is gone.
func runBuild(cfg *modes.Config) (*modes.BuildResult, error) {
	if verbose || !isatty.IsTerminal(os.Stdout.Fd()) {
		return modes.RunBuild(cfg)
	}

	var out, errOut bytes.Buffer
	cfg.Out = &out
	cfg.Err = &errOut

	result, err := ui.RunWithSpinnerSimple("Bundling", func() (*modes.BuildResult, error) {
		return modes.RunBuild(cfg)
	})

	io.Copy(os.Stdout, &out)
	io.Copy(os.Stderr, &errOut)
	return result, err
}

func uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload [dir]",
		Short: "Upload sourcemaps already present in an output directory",
		Long: `Uploads every .map file under the directory without bundling. Use this
when another tool produced the build.

Examples:
  hawkmap upload                # Configured outdir (default: dist)
  hawkmap upload ./build --keep-maps`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				fmt.Fprintln(os.Stderr, ui.Error(err.Error()))
				return err
			}

			var dir string
			if len(args) > 0 {
				dir = args[0]
			}

			fmt.Print(ui.Banner(version))

			result, err := modes.RunUpload(cfg, dir)
			if err != nil {
				fmt.Fprintln(os.Stderr, ui.Error(err.Error()))
				return err
			}

			fmt.Println(ui.SummaryHeader())
			fmt.Println(ui.SummaryLine("Directory:", result.Dir))
			fmt.Println(ui.SummaryLine("Files scanned:", result.FilesScanned))
			fmt.Println(ui.SummaryLine("Release:", result.Release))
			printReport(result.Report)

			fmt.Println()
			return nil
		},
	}
}

func printReport(r upload.Report) {
	fmt.Println(ui.SummaryLine("Sourcemaps:", len(r.Outcomes)))
	fmt.Println(ui.SummaryLine("Sent:", r.Sent()))
	fmt.Println(ui.SummaryLine("Removed:", r.Removed()))
	if r.Failed() > 0 {
		fmt.Println(ui.SummaryLine("Failed:", r.Failed()))
		if verbose {
			for _, o := range r.Outcomes {
				if o.Err != nil {
					fmt.Printf("      %s\n", ui.DimStyle.Render(fmt.Sprintf("- %s: %v", o.File, o.Err)))
				}
			}
		}
	}
}
