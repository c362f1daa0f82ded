package scanner

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// binarySniffLen is how many leading bytes are checked for a NUL byte
// to classify a file as binary, mirroring git's heuristic.
const binarySniffLen = 8000

// FileEntry is one candidate file yielded by the walker. Index records
// walk order so parallel scanning can restore the deterministic issue
// ordering.
type FileEntry struct {
	Index   int
	Path    string // relative to the root, forward slashes
	Content string
}

// Walker traverses a root directory once, depth-first in sorted order,
// and yields each scannable file's content exactly once. It is strictly
// read-only and never follows symlinks, so cyclic trees terminate.
type Walker struct {
	root string
	cfg  *Config

	// allow, when non-nil, restricts the walk to the listed relative
	// paths (used for --since scans).
	allow map[string]bool
}

func NewWalker(root string, cfg *Config) *Walker {
	return &Walker{root: root, cfg: cfg}
}

// Restrict limits the walk to the given relative paths.
func (w *Walker) Restrict(paths []string) {
	w.allow = make(map[string]bool, len(paths))
	for _, p := range paths {
		w.allow[filepath.ToSlash(p)] = true
	}
}

// Walk visits every candidate file under the root and calls fn once per
// file. Per-file failures (unreadable, binary, oversized) are recorded
// as diagnostics and never abort the walk; only a failure on the root
// itself or a cancelled context stops it. The returned diagnostics are
// in walk order.
func (w *Walker) Walk(ctx context.Context, fn func(FileEntry) error) ([]Diagnostic, error) {
	var diags []Diagnostic
	index := 0

	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err != nil {
			if path == w.root {
				return err
			}
			diags = append(diags, Diagnostic{FilePath: w.relPath(path), Reason: DiagReadError, Detail: err.Error()})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != w.root && w.cfg.IgnoresDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		// Symlinks are skipped outright, whether they point at files
		// or directories.
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		if !w.cfg.IncludesExt(filepath.Ext(path)) || w.cfg.IgnoresFile(d.Name()) {
			return nil
		}

		rel := w.relPath(path)
		if w.allow != nil && !w.allow[rel] {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			diags = append(diags, Diagnostic{FilePath: rel, Reason: DiagReadError, Detail: err.Error()})
			return nil
		}
		if info.Size() > w.cfg.MaxFileSize {
			diags = append(diags, Diagnostic{
				FilePath: rel,
				Reason:   DiagOversize,
				Detail:   fmt.Sprintf("file size %d exceeds limit %d", info.Size(), w.cfg.MaxFileSize),
			})
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			diags = append(diags, Diagnostic{FilePath: rel, Reason: DiagReadError, Detail: err.Error()})
			return nil
		}
		if isBinary(data) {
			diags = append(diags, Diagnostic{FilePath: rel, Reason: DiagBinary})
			return nil
		}

		entry := FileEntry{Index: index, Path: rel, Content: string(data)}
		index++
		return fn(entry)
	})
	if err != nil {
		return diags, err
	}
	return diags, nil
}

func (w *Walker) relPath(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func isBinary(data []byte) bool {
	if len(data) > binarySniffLen {
		data = data[:binarySniffLen]
	}
	return bytes.IndexByte(data, 0) >= 0
}
