package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-udf-splitter/internal/log"
	"github.com/l3aro/go-udf-splitter/internal/scanner"
	"github.com/l3aro/go-udf-splitter/pkg/cache"
	"github.com/l3aro/go-udf-splitter/pkg/compiler"
)

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Compile every UDF under a directory",
	Long: `Finds the .py files under a directory, honoring .udfsplitignore files,
and compiles them in parallel. Each file's first-line directive applies to
that file. Results are cached by content hash so unchanged files are not
recompiled. A failing file does not stop the others; all failures are
reported at the end.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat(cmd)
		if err != nil {
			return err
		}

		opts := batchOptions{
			Root:    args[0],
			Workers: cfg.BatchWorkers,
			Compile: compileOptions(),
			Logger:  logger,
		}
		opts.OutDir, _ = cmd.Flags().GetString("out")
		if cmd.Flags().Changed("workers") {
			opts.Workers, _ = cmd.Flags().GetInt("workers")
		}
		if noCache, _ := cmd.Flags().GetBool("no-cache"); !noCache {
			opts.Store = cache.NewStore(cfg.CacheDir, cfg.CacheMaxBytes)
			if err := opts.Store.Load(); err != nil {
				logger.Warn("ignoring unreadable cache", "path", opts.Store.Path(), "error", err)
				opts.Store = cache.NewStore(cfg.CacheDir, cfg.CacheMaxBytes)
			}
		}

		rep, runErr := runBatch(cmd.Context(), opts)
		if rep == nil {
			return runErr
		}
		if opts.Store != nil {
			if err := opts.Store.Save(); err != nil {
				logger.Warn("saving cache failed", "error", err)
			}
		}

		if err := writeResult(cmd.OutOrStdout(), format, rep, func(w io.Writer) error {
			printBatch(w, rep)
			return nil
		}); err != nil {
			return err
		}
		return runErr
	},
}

type batchOptions struct {
	Root    string
	OutDir  string // generated sources are written here when set
	Workers int
	Store   *cache.Store // nil disables caching
	Compile compiler.Options
	Logger  log.Logger
}

// batchFile is the outcome for one source file.
type batchFile struct {
	Path     string `json:"path" yaml:"path" msgpack:"path"`
	Cuts     []int  `json:"cuts" yaml:"cuts" msgpack:"cuts"`
	Cached   bool   `json:"cached" yaml:"cached" msgpack:"cached"`
	Warnings int    `json:"warnings,omitempty" yaml:"warnings,omitempty" msgpack:"warnings,omitempty"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty" msgpack:"error,omitempty"`
}

// batchReport summarizes a batch run.
type batchReport struct {
	Files    []batchFile   `json:"files" yaml:"files" msgpack:"files"`
	Failed   int           `json:"failed" yaml:"failed" msgpack:"failed"`
	Elapsed  time.Duration `json:"elapsed" yaml:"elapsed" msgpack:"elapsed"`
	Cache    *cache.Stats  `json:"cache,omitempty" yaml:"cache,omitempty" msgpack:"cache,omitempty"`
	InputDir string        `json:"input_dir" yaml:"input_dir" msgpack:"input_dir"`
}

// runBatch compiles every UDF under opts.Root. Per-file failures are
// collected into the returned error and recorded in the report; only
// scanning errors and cancellation return a nil report.
func runBatch(ctx context.Context, opts batchOptions) (*batchReport, error) {
	start := time.Now()
	files, err := scanner.Scan(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", opts.Root, err)
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	opts.Logger.Debug("scanned", "root", opts.Root, "files", len(files))

	rep := &batchReport{Files: make([]batchFile, len(files)), InputDir: opts.Root}
	var (
		mu     sync.Mutex
		merr   *multierror.Error
		writer sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			out, err := compileFile(gctx, f, opts, &writer)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				opts.Logger.Warn("compile failed", "file", f.Path, "error", err)
				out.Error = err.Error()
				mu.Lock()
				merr = multierror.Append(merr, fmt.Errorf("%s: %w", f.Path, err))
				mu.Unlock()
			}
			rep.Files[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, f := range rep.Files {
		if f.Error != "" {
			rep.Failed++
		}
	}
	if opts.Store != nil {
		stats := opts.Store.Stats()
		rep.Cache = &stats
	}
	rep.Elapsed = time.Since(start)
	return rep, merr.ErrorOrNil()
}

// cacheKey identifies a compilation of source under opts.
func cacheKey(source string, opts compiler.Options) string {
	cutLine := "auto"
	if opts.CutLine != nil {
		cutLine = fmt.Sprint(*opts.CutLine)
	}
	fingerprint := fmt.Sprintf("%s|%+v|%v|%v|%+v|%+v",
		cutLine, opts.CostModel, opts.StrictCutRequests, opts.Baseline, opts.Normalize, opts.Partition)
	return cache.Key(source, fingerprint)
}

func compileFile(ctx context.Context, f scanner.FileInfo, opts batchOptions, writer *sync.Mutex) (batchFile, error) {
	out := batchFile{Path: f.Path}
	data, err := os.ReadFile(f.FullPath)
	if err != nil {
		return out, err
	}
	src := string(data)

	copts := opts.Compile
	directive, _ := compiler.ParseDirective(src)
	directive.Apply(&copts)
	key := cacheKey(src, copts)

	var res *compiler.Result
	if opts.Store != nil {
		var cached compiler.Result
		ok, err := opts.Store.Lookup(key, &cached)
		if err != nil {
			opts.Logger.Debug("dropping cache entry", "file", f.Path, "error", err)
		}
		if ok {
			res = &cached
			out.Cached = true
		}
	}
	if res == nil {
		res, err = compiler.Compile(ctx, src, copts)
		if err != nil {
			return out, err
		}
		if opts.Store != nil {
			if err := opts.Store.Put(key, res); err != nil {
				opts.Logger.Debug("not caching result", "file", f.Path, "error", err)
			}
		}
	}

	for _, c := range res.ChosenCuts {
		out.Cuts = append(out.Cuts, c.Line)
	}
	out.Warnings = len(res.Warnings)

	if opts.OutDir != "" {
		dest := filepath.Join(opts.OutDir, filepath.FromSlash(f.Path))
		writer.Lock()
		defer writer.Unlock()
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return out, err
		}
		if err := os.WriteFile(dest, []byte(res.GeneratedSource), 0644); err != nil {
			return out, err
		}
	}
	opts.Logger.Debug("compiled", "file", f.Path, "cached", out.Cached)
	return out, nil
}

func printBatch(w io.Writer, rep *batchReport) {
	fmt.Fprintf(w, "=== Batch: %s ===\n\n", rep.InputDir)
	for _, f := range rep.Files {
		switch {
		case f.Error != "":
			fmt.Fprintf(w, "  FAIL    %s\n          %s\n", f.Path, f.Error)
		case f.Cached:
			fmt.Fprintf(w, "  cached  %s  cuts=%v\n", f.Path, f.Cuts)
		default:
			fmt.Fprintf(w, "  ok      %s  cuts=%v\n", f.Path, f.Cuts)
		}
	}
	fmt.Fprintf(w, "\n%d files, %d failed, in %s\n", len(rep.Files), rep.Failed, rep.Elapsed.Round(time.Millisecond))
	if rep.Cache != nil {
		fmt.Fprintf(w, "Cache: %d entries, %s, %.0f%% hit rate\n",
			rep.Cache.Length, humanize.Bytes(uint64(rep.Cache.CurrentBytes)), rep.Cache.HitRate()*100)
	}
}

func init() {
	batchCmd.Flags().String("out", "", "Directory for generated sources (mirrors the input tree)")
	batchCmd.Flags().Int("workers", 0, "Parallel compilations (default from config)")
	batchCmd.Flags().Bool("no-cache", false, "Do not read or write the result cache")
	addFormatFlag(batchCmd)
}
