package scanner

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pipeline owns the scan orchestration: one walk, every detector run
// exactly once per file, and the ordering and aggregation guarantees of
// the result. Detectors must not assume anything about run order
// relative to each other.
type Pipeline struct {
	cfg       *Config
	detectors []Detector
	log       *zap.SugaredLogger

	// changedOnly restricts the scan to these relative paths when set.
	changedOnly []string
}

func NewPipeline(cfg *Config, detectors []Detector, log *zap.SugaredLogger) *Pipeline {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Pipeline{cfg: cfg, detectors: detectors, log: log}
}

// RestrictTo limits the scan to the given relative paths (e.g. files
// changed since a git revision).
func (p *Pipeline) RestrictTo(paths []string) {
	p.changedOnly = paths
}

// fileBatch holds one file's scan output, keyed by walk index so the
// collector can restore walk order after parallel execution.
type fileBatch struct {
	issues []Issue
	diags  []Diagnostic
}

// Run executes a full scan of root. Fatal errors (missing root, not a
// directory, cancelled context) return an error; everything per-file is
// downgraded to a diagnostic on the result.
func (p *Pipeline) Run(ctx context.Context, root string) (*ScanResult, error) {
	start := time.Now()

	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("root path does not exist: %s", root)
		}
		return nil, fmt.Errorf("cannot stat root path %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", root)
	}

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	walker := NewWalker(root, p.cfg)
	if p.changedOnly != nil {
		walker.Restrict(p.changedOnly)
	}

	var (
		mu      sync.Mutex
		batches = make(map[int]fileBatch)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Threads)

	filesScanned := 0
	walkDiags, walkErr := walker.Walk(gctx, func(entry FileEntry) error {
		filesScanned++
		g.Go(func() error {
			batch := p.scanFile(entry)
			mu.Lock()
			batches[entry.Index] = batch
			mu.Unlock()
			return nil
		})
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if walkErr != nil {
		return nil, walkErr
	}

	result := &ScanResult{
		RootPath:     root,
		Issues:       []Issue{},
		Diagnostics:  walkDiags,
		FilesScanned: filesScanned,
	}

	// Flatten per-file batches in walk order so repeated runs over the
	// same tree produce identical issue ordering.
	indices := make([]int, 0, len(batches))
	for idx := range batches {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	for _, idx := range indices {
		result.Issues = append(result.Issues, batches[idx].issues...)
		result.Diagnostics = append(result.Diagnostics, batches[idx].diags...)
	}

	result.Duration = time.Since(start)
	p.log.Debugw("scan complete",
		"root", root,
		"files", result.FilesScanned,
		"issues", len(result.Issues),
		"diagnostics", len(result.Diagnostics),
		"duration", result.Duration,
	)
	return result, nil
}

// scanFile runs every detector on one file, in registration order. A
// panicking detector is skipped for that file only and recorded as a
// diagnostic; it never aborts the scan.
func (p *Pipeline) scanFile(entry FileEntry) fileBatch {
	var batch fileBatch
	for _, det := range p.detectors {
		issues, diag := scanWithRecover(det, entry.Path, entry.Content)
		batch.issues = append(batch.issues, issues...)
		if diag != nil {
			p.log.Warnw("detector failed", "detector", det.Name(), "file", entry.Path, "detail", diag.Detail)
			batch.diags = append(batch.diags, *diag)
		}
	}
	return batch
}

func scanWithRecover(det Detector, path, content string) (issues []Issue, diag *Diagnostic) {
	defer func() {
		if r := recover(); r != nil {
			issues = nil
			diag = &Diagnostic{
				FilePath: path,
				Reason:   DiagDetectorPanic,
				Detail:   fmt.Sprintf("%s: %v", det.Name(), r),
			}
		}
	}()
	return det.Scan(path, content), nil
}
