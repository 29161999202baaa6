package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/shotdiff/internal/compare"
	"github.com/nao1215/shotdiff/internal/config"
	"github.com/nao1215/shotdiff/internal/imageio"
	"github.com/nao1215/shotdiff/internal/model"
	"github.com/nao1215/shotdiff/internal/report"
	"github.com/nao1215/shotdiff/internal/worker"
)

// Reason prefixes of items that could not be compared.
const (
	reasonNoBaseline    = "Trainer image not found: "
	reasonNoCurrent     = "Current screenshot not found: "
	reasonCompareFailed = "Comparison error: "
)

// Params are the inputs of a run. Paths are used as given; see
// ParamsFromConfig for resolution against the data directory.
type Params struct {
	URLsFile   string
	OutDir     string
	TrainerDir string
	DiffDir    string
	ReportsDir string

	Timeout time.Duration
	Wait    time.Duration
	Headful bool

	// SSIMThreshold is the pass mark for URLs without an override.
	SSIMThreshold float64

	// ThresholdFor returns the pass mark of a URL. Nil means SSIMThreshold
	// for every URL.
	ThresholdFor func(url string) float64

	UniqueKeys bool
	ConfigFile string
	Verbose    bool
}

// TrainerParams are the inputs of a baseline refresh.
type TrainerParams struct {
	URLsFile   string
	TrainerDir string

	Timeout time.Duration
	Wait    time.Duration
	Headful bool

	UniqueKeys bool
	ConfigFile string
	Verbose    bool
}

// ParamsFromConfig builds run parameters from cfg, resolving relative
// paths against the data directory.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		URLsFile:      cfg.ResolvePath(cfg.URLsFile),
		OutDir:        cfg.ResolvePath(cfg.OutDir),
		TrainerDir:    cfg.ResolvePath(cfg.TrainerDir),
		DiffDir:       cfg.ResolvePath(cfg.DiffDir),
		ReportsDir:    cfg.ResolvePath(cfg.ReportsDir),
		Timeout:       cfg.Timeout,
		Wait:          cfg.Wait,
		Headful:       cfg.Headful,
		SSIMThreshold: cfg.SSIMThreshold,
		ThresholdFor:  func(url string) float64 { return cfg.Site(url).Threshold },
		UniqueKeys:    cfg.UniqueKeys,
		ConfigFile:    cfg.ConfigFilePath,
		Verbose:       cfg.Verbose,
	}
}

// TrainerParamsFromConfig builds trainer parameters from cfg.
func TrainerParamsFromConfig(cfg *config.Config) TrainerParams {
	return TrainerParams{
		URLsFile:   cfg.ResolvePath(cfg.URLsFile),
		TrainerDir: cfg.ResolvePath(cfg.TrainerDir),
		Timeout:    cfg.Timeout,
		Wait:       cfg.Wait,
		Headful:    cfg.Headful,
		UniqueKeys: cfg.UniqueKeys,
		ConfigFile: cfg.ConfigFilePath,
		Verbose:    cfg.Verbose,
	}
}

// HistoryStore persists finished runs.
type HistoryStore interface {
	SaveRun(ctx context.Context, report *model.RunReport) error
}

// Runner executes runs and baseline refreshes.
type Runner struct {
	executor worker.Executor
	history  HistoryStore
	locks    *dirLocks
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithHistory saves every finished run to store.
func WithHistory(store HistoryStore) Option {
	return func(r *Runner) {
		r.history = store
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithClock replaces the time source used for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDFunc replaces the run ID generator.
func WithIDFunc(fn func() string) Option {
	return func(r *Runner) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// New creates a Runner capturing through executor.
func New(executor worker.Executor, opts ...Option) *Runner {
	r := &Runner{
		executor: executor,
		locks:    newDirLocks(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Run captures the URL list, compares every page with its baseline and
// writes the report artifact.
//
// A missing URL list fails with model.ErrURLListNotFound before anything
// is captured. Page level problems never fail the run; they are recorded
// as items.
func (r *Runner) Run(ctx context.Context, p Params) (*model.RunReport, error) {
	if err := config.ValidateThreshold(p.SSIMThreshold); err != nil {
		return nil, err
	}
	if err := imageio.EnsureDirs(p.OutDir, p.TrainerDir, p.DiffDir, p.ReportsDir); err != nil {
		return nil, err
	}
	if !imageio.Exists(p.URLsFile) {
		return nil, fmt.Errorf("%w: %s", model.ErrURLListNotFound, p.URLsFile)
	}

	runID := r.newID()
	release, err := r.locks.acquire(runID, p.OutDir, p.TrainerDir)
	if err != nil {
		return nil, err
	}
	defer release()

	rep := model.NewRunReport(runID, r.now())
	rep.URLsFile = p.URLsFile
	rep.ScreenshotsDir = p.OutDir
	rep.TrainerDir = p.TrainerDir
	rep.DiffDir = p.DiffDir
	rep.SSIMThreshold = p.SSIMThreshold

	r.logger.Info("starting run", "run_id", runID, "urls", p.URLsFile)

	r.purge(p.OutDir)
	rep.Execution = r.executor.Execute(ctx, worker.Job{
		URLsFile:   p.URLsFile,
		OutDir:     p.OutDir,
		Timeout:    p.Timeout,
		Wait:       p.Wait,
		Headful:    p.Headful,
		UniqueKeys: p.UniqueKeys,
		ConfigFile: p.ConfigFile,
		Verbose:    p.Verbose,
	})
	if !rep.Execution.OK {
		r.logger.Warn("capture worker failed", "returncode", rep.Execution.ReturnCode)
	}

	urls, err := model.LoadURLList(p.URLsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}

	keyFunc := model.KeyFuncFor(p.UniqueKeys)
	for _, url := range urls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rep.AddItem(r.check(ctx, p, keyFunc(url), url))
	}

	path, err := report.SaveArtifact(p.ReportsDir, rep)
	if err != nil {
		return nil, err
	}
	rep.ReportPath = path

	if r.history != nil {
		if err := r.history.SaveRun(ctx, rep); err != nil {
			r.logger.Warn("failed to save run history", "run_id", runID, "error", err)
		}
	}

	r.logger.Info("run complete",
		"run_id", runID,
		"ok", rep.Totals.OK,
		"fail", rep.Totals.Fail,
		"no_baseline", rep.Totals.NoBaseline,
		"report", path,
	)
	return rep, nil
}

// check produces the verdict of one URL.
func (r *Runner) check(ctx context.Context, p Params, name, url string) model.Item {
	currentPath := filepath.Join(p.OutDir, name)
	baselinePath := filepath.Join(p.TrainerDir, name)
	item := model.Item{URL: url, Trainer: baselinePath}

	if !imageio.Exists(baselinePath) {
		item.Status = model.StatusNoBaseline
		item.Reason = reasonNoBaseline + name
		if imageio.Exists(currentPath) {
			item.Current = model.StringPtr(currentPath)
		}
		return item
	}

	item.Current = model.StringPtr(currentPath)
	if !imageio.Exists(currentPath) {
		item.Status = model.StatusFail
		item.Reason = reasonNoCurrent + name
		return item
	}

	threshold := p.SSIMThreshold
	if p.ThresholdFor != nil {
		threshold = p.ThresholdFor(url)
	}

	res, err := r.compare(ctx, baselinePath, currentPath)
	if err != nil {
		r.logger.Warn("comparison failed", "url", url, "error", err)
		item.Status = model.StatusFail
		item.Reason = reasonCompareFailed + err.Error()
		return item
	}

	item.Metrics = res.Metrics()
	item.Status = compare.Classify(res.SSIM, threshold)
	if item.Status == model.StatusOK {
		return item
	}

	diffPath := filepath.Join(p.DiffDir, model.DiffKey(name))
	if err := imageio.SavePNG(diffPath, res.Diff); err != nil {
		r.logger.Warn("failed to write diff image", "url", url, "error", err)
		item.Metrics = nil
		item.Status = model.StatusFail
		item.Reason = reasonCompareFailed + err.Error()
		return item
	}
	item.Diff = model.StringPtr(diffPath)
	return item
}

func (r *Runner) compare(ctx context.Context, baselinePath, currentPath string) (compare.Result, error) {
	baseline, current, err := imageio.LoadPair(ctx, baselinePath, currentPath)
	if err != nil {
		return compare.Result{}, err
	}
	return compare.Compare(baseline, current)
}

// Trainer replaces the baselines with a fresh capture of the URL list.
func (r *Runner) Trainer(ctx context.Context, p TrainerParams) (*model.TrainerResult, error) {
	if err := imageio.EnsureDirs(p.TrainerDir); err != nil {
		return nil, err
	}
	if !imageio.Exists(p.URLsFile) {
		return nil, fmt.Errorf("%w: %s", model.ErrURLListNotFound, p.URLsFile)
	}

	owner := "trainer-" + r.newID()
	release, err := r.locks.acquire(owner, p.TrainerDir)
	if err != nil {
		return nil, err
	}
	defer release()

	r.logger.Info("refreshing baselines", "dir", p.TrainerDir)
	r.purge(p.TrainerDir)

	exec := r.executor.Execute(ctx, worker.Job{
		URLsFile:   p.URLsFile,
		OutDir:     p.TrainerDir,
		Timeout:    p.Timeout,
		Wait:       p.Wait,
		Headful:    p.Headful,
		UniqueKeys: p.UniqueKeys,
		ConfigFile: p.ConfigFile,
		Verbose:    p.Verbose,
	})

	return &model.TrainerResult{
		OK:         exec.OK,
		Details:    exec,
		TrainerDir: p.TrainerDir,
	}, nil
}

// purge deletes stale PNGs, logging the ones that could not be removed.
func (r *Runner) purge(dir string) {
	res, err := imageio.PurgeImages(dir)
	if err != nil {
		r.logger.Warn("failed to purge directory", "dir", dir, "error", err)
		return
	}
	for path, err := range res.Failed {
		r.logger.Warn("could not delete image", "path", path, "error", err)
	}
}

// IsConfigError reports whether err is a problem with the request rather
// than with the run itself.
func IsConfigError(err error) bool {
	return errors.Is(err, model.ErrURLListNotFound) ||
		errors.Is(err, config.ErrInvalidThreshold) ||
		errors.Is(err, ErrRunInProgress)
}
