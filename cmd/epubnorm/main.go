package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/yuanying/epubnorm/internal/config"
	"github.com/yuanying/epubnorm/internal/converter"
)

// cliOptions is the resolved configuration of one invocation.
type cliOptions struct {
	InputPath  string
	OutputPath string
	Extract    bool
	Config     *config.Config
	Logger     *slog.Logger
}

// flagBindings maps config keys to the flags that override them.
var flagBindings = map[string]string{
	"image.max_width":    "max-image-width",
	"image.jpeg_quality": "quality",
	"preserve":           "preserve",
	"log.level":          "log-level",
	"log.format":         "log-format",
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "epubnorm [flags] <input>",
		Short: "Flatten an EPUB into content-addressed paths",
		Long: `epubnorm rewrites an EPUB package so that every manifest item lives
directly under OEBPS/ with a name derived from the MD5 digest of its
original path, and every reference in the package document, the NCX,
the XHTML documents and the stylesheets points at the new locations.

The input may be an .epub archive or an unpacked EPUB directory. The
input is never modified unless the output path equals the input
directory.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd, args)
			if err != nil {
				return err
			}
			return runNormalize(cmd.OutOrStdout(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringP("output", "o", "", "Output path (default: input with .normalized suffix)")
	flags.Bool("extract", false, "Write an archive input as an unpacked directory")
	flags.Int("quality", config.DefaultJPEGQuality, "JPEG quality for recompressed images (1-100)")
	flags.Int("max-image-width", config.DefaultMaxImageWidth, "Downscale images wider than this many pixels")
	flags.Bool("no-images", false, "Leave image content untouched")
	flags.StringSlice("preserve", nil, "Glob of package paths whose content is left untouched (repeatable)")
	addCommonFlags(cmd)

	cmd.AddCommand(newInspectCmd())
	return cmd
}

// addCommonFlags registers the flags shared by every command.
func addCommonFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("config", "", "Config file (default: ./epubnorm.yaml)")
	flags.String("log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")
	flags.String("log-format", config.DefaultLogFormat, "Log format (text, json)")
	flags.BoolP("verbose", "v", false, "Shorthand for --log-level debug")
}

func readCLIOptions(cmd *cobra.Command, args []string) (cliOptions, error) {
	if err := validateFlags(cmd); err != nil {
		return cliOptions{}, err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return cliOptions{}, err
	}

	inputPath := args[0]
	outputPath, _ := cmd.Flags().GetString("output")
	extract, _ := cmd.Flags().GetBool("extract")
	if outputPath == "" {
		outputPath = defaultOutputPath(inputPath, extract)
	}

	return cliOptions{
		InputPath:  inputPath,
		OutputPath: outputPath,
		Extract:    extract,
		Config:     cfg,
		Logger:     buildLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format),
	}, nil
}

// validateFlags reports bad flag values by flag name before they are
// merged with the config file.
func validateFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()

	if flags.Changed("quality") {
		quality, _ := flags.GetInt("quality")
		if quality < 1 || quality > 100 {
			return fmt.Errorf("--quality must be between 1 and 100, got %d", quality)
		}
	}
	if flags.Changed("max-image-width") {
		width, _ := flags.GetInt("max-image-width")
		if width <= 0 {
			return fmt.Errorf("--max-image-width must be positive, got %d", width)
		}
	}
	if flags.Changed("log-level") {
		level, _ := flags.GetString("log-level")
		if _, ok := parseLevel(level); !ok {
			return fmt.Errorf("--log-level must be one of debug, info, warn, error, got %q", level)
		}
	}
	if flags.Changed("log-format") {
		format, _ := flags.GetString("log-format")
		switch strings.ToLower(format) {
		case "text", "json":
		default:
			return fmt.Errorf("--log-format must be text or json, got %q", format)
		}
	}
	return nil
}

// loadConfig merges defaults, the config file, EPUBNORM_* variables and
// the command line, in increasing order of precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	configFile, _ := flags.GetString("config")

	v, err := config.New(configFile)
	if err != nil {
		return nil, err
	}
	if err := bindFlags(cmd, v); err != nil {
		return nil, err
	}
	if noImages, _ := flags.GetBool("no-images"); noImages {
		v.Set("image.enabled", false)
	}
	if verbose, _ := flags.GetBool("verbose"); verbose {
		v.Set("log.level", "debug")
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	for key, name := range flagBindings {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	return nil
}

func runNormalize(w io.Writer, opts cliOptions) error {
	opts.Logger.Info("normalizing", "input", opts.InputPath, "output", opts.OutputPath)

	p := converter.NewPipeline(converter.NormalizeOptions{
		InputPath:  opts.InputPath,
		OutputPath: opts.OutputPath,
		Extract:    opts.Extract,
		Images:     opts.Config.ImageOptions(),
		Preserve:   opts.Config.Preserve,
		Logger:     opts.Logger,
	})

	summary, err := p.Normalize()
	if err != nil {
		return fmt.Errorf("normalization failed: %w", err)
	}

	opts.Logger.Info("done", "output", summary.OutputPath, "opf", summary.OPFPath)
	fmt.Fprintln(w, summary.OutputPath)
	return nil
}

func parseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// buildLogger returns a text or JSON logger writing to w. Unknown levels
// fall back to info.
func buildLogger(w io.Writer, level, format string) *slog.Logger {
	lvl, _ := parseLevel(level)
	handlerOpts := &slog.HandlerOptions{Level: lvl}

	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// defaultOutputPath derives the output path from the input path:
// book.epub becomes book.normalized.epub, a directory book becomes
// book.normalized. With extract the archive suffix is dropped.
func defaultOutputPath(inputPath string, extract bool) string {
	trimmed := strings.TrimRight(inputPath, `/\`)
	ext := filepath.Ext(trimmed)
	if !strings.EqualFold(ext, ".epub") {
		return trimmed + ".normalized"
	}
	base := strings.TrimSuffix(trimmed, ext)
	if extract {
		return base + ".normalized"
	}
	return base + ".normalized" + ext
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
