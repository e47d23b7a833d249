package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/JonMunkholm/sweeper/internal/archive"
	"github.com/JonMunkholm/sweeper/internal/config"
	"github.com/JonMunkholm/sweeper/internal/core"
	"github.com/JonMunkholm/sweeper/internal/history"
	"github.com/JonMunkholm/sweeper/internal/recipe"
)

// errNothingConverted makes the command exit non-zero when every input failed.
var errNothingConverted = errors.New("no files converted")

var convertCmd = &cobra.Command{
	Use:   "convert [files...]",
	Short: "Clean and convert files",
	Long: `Convert runs the cleaning steps on each input file and writes the result
to the output directory. Steps come from --recipe and from flags; flags win.
A file that fails is reported and skipped; the command fails only when no
file could be converted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := buildRecipe(cmd)
		if err != nil {
			return err
		}
		opts := convertOptions{
			OutDir:      viper.GetString("out"),
			HistoryDSN:  viper.GetString("history"),
			MaxFileSize: viper.GetInt64("max-file-size"),
		}
		_, err = runConvert(cmd.Context(), args, r, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		return err
	},
}

func init() {
	f := convertCmd.Flags()
	f.String("to", "csv", "output format: csv or xlsx")
	f.Bool("dedupe", false, "remove duplicate rows")
	f.Bool("fill-missing", false, "fill empty numeric cells with the column mean")
	f.String("filter", "", `keep rows matching an expression, e.g. "age > 30 and city == 'Oslo'"`)
	f.StringArray("rename", nil, "rename a column, old=new (repeatable)")
	f.String("recipe", "", "YAML recipe file")
	f.StringP("out", "o", "processed", "output directory")
	f.Bool("zip", false, "also write processed_files.zip")
	f.String("history", "", "history DSN (sqlite://path or postgres://...); empty keeps it in memory")
	f.Int64("max-file-size", 0, "maximum input size in bytes (default 100MB)")

	for _, name := range []string{"to", "dedupe", "fill-missing", "filter", "recipe", "out", "zip", "history", "max-file-size"} {
		_ = viper.BindPFlag(name, f.Lookup(name))
	}

	rootCmd.AddCommand(convertCmd)
}

// buildRecipe loads --recipe and applies flag overrides on top.
func buildRecipe(cmd *cobra.Command) (*recipe.Recipe, error) {
	r := &recipe.Recipe{}
	if path := viper.GetString("recipe"); path != "" {
		loaded, err := recipe.Load(path)
		if err != nil {
			return nil, err
		}
		r = loaded
	}

	if viper.IsSet("to") || r.Format == "" {
		r.Format = viper.GetString("to")
	}
	if viper.IsSet("dedupe") {
		r.Dedupe = viper.GetBool("dedupe")
	}
	if viper.IsSet("fill-missing") {
		r.FillMissing = viper.GetBool("fill-missing")
	}
	if viper.IsSet("filter") {
		r.Filter = viper.GetString("filter")
	}
	if viper.IsSet("zip") {
		r.Archive = viper.GetBool("zip")
	}

	pairs, err := cmd.Flags().GetStringArray("rename")
	if err != nil {
		return nil, err
	}
	mapping, err := parseRenames(pairs)
	if err != nil {
		return nil, err
	}
	if len(mapping) > 0 {
		if r.Rename == nil {
			r.Rename = make(map[string]string, len(mapping))
		}
		for from, to := range mapping {
			r.Rename[from] = to
		}
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// parseRenames turns "old=new" pairs into a mapping. Only the first "=" splits.
func parseRenames(pairs []string) (map[string]string, error) {
	mapping := make(map[string]string, len(pairs))
	for _, p := range pairs {
		from, to, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --rename %q: want old=new", p)
		}
		mapping[strings.TrimSpace(from)] = strings.TrimSpace(to)
	}
	return mapping, nil
}

type convertOptions struct {
	OutDir      string
	HistoryDSN  string
	MaxFileSize int64
}

// runConvert processes files through one working session and writes the
// exports into opts.OutDir. It returns the number of files written.
func runConvert(ctx context.Context, files []string, r *recipe.Recipe, opts convertOptions, stdout, stderr io.Writer) (int, error) {
	cfg := config.Default()
	cfg.History.DSN = opts.HistoryDSN
	if opts.MaxFileSize > 0 {
		cfg.Upload.MaxFileSize = opts.MaxFileSize
	}
	if err := cfg.Validate(); err != nil {
		return 0, err
	}

	rec, err := history.Open(ctx, cfg.History)
	if err != nil {
		return 0, fmt.Errorf("open history: %w", err)
	}
	defer rec.Close()

	svc, err := core.NewService(cfg, rec)
	if err != nil {
		return 0, err
	}
	sess, err := svc.NewSession(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = svc.EndSession(ctx, sess.ID) }()

	var exports []core.ExportRecord
	for _, path := range files {
		exp, err := convertOne(ctx, svc, sess.ID, r, path)
		if err != nil {
			slog.Debug("convert failed", "file", path, "error", err)
			fmt.Fprintf(stderr, "%s: %s\n", path, describeError(err))
			continue
		}
		exports = append(exports, exp)
	}
	if len(exports) == 0 {
		return 0, errNothingConverted
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return 0, fmt.Errorf("creating %s: %w", opts.OutDir, err)
	}

	names := make([]string, len(exports))
	for i, exp := range exports {
		names[i] = exp.Name
	}
	for i, name := range archive.UniqueNames(names) {
		out := filepath.Join(opts.OutDir, name)
		if err := os.WriteFile(out, exports[i].Data, 0o644); err != nil {
			return i, fmt.Errorf("writing %s: %w", out, err)
		}
		fmt.Fprintf(stdout, "wrote %s (%d bytes)\n", out, exports[i].Size)
	}

	if r.Archive {
		bundle, err := svc.Package(ctx, sess.ID)
		if err != nil {
			return len(exports), err
		}
		out := filepath.Join(opts.OutDir, bundle.Name)
		if err := os.WriteFile(out, bundle.Data, 0o644); err != nil {
			return len(exports), fmt.Errorf("writing %s: %w", out, err)
		}
		fmt.Fprintf(stdout, "wrote %s (%d files)\n", out, bundle.Files)
	}

	if failed := len(files) - len(exports); failed > 0 {
		fmt.Fprintf(stderr, "%d of %d files failed\n", failed, len(files))
	}
	return len(exports), nil
}

func convertOne(ctx context.Context, svc *core.Service, sessionID string, r *recipe.Recipe, path string) (core.ExportRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.ExportRecord{}, err
	}
	report, err := svc.Ingest(ctx, sessionID, []core.UploadedFile{{Name: filepath.Base(path), Data: data}})
	if err != nil {
		return core.ExportRecord{}, err
	}
	out := report.Files[0]
	if out.Err != nil {
		return core.ExportRecord{}, out.Err
	}
	return r.Apply(ctx, svc, sessionID, out.File.ID)
}

// describeError prefers the user-facing message and falls back to the raw
// error for failures such as a missing input file.
func describeError(err error) string {
	if core.IsUserFacing(err) {
		return core.FormatUserError(err)
	}
	return err.Error()
}
