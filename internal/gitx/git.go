package gitx

import (
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// ChangedFiles returns the slash-relative paths of files changed
// between the given revision and HEAD, for scoping a scan to recent
// work. The revision accepts anything git rev-parse does (branch, tag,
// short hash).
func ChangedFiles(repoPath, since string) ([]string, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository at %s: %w", repoPath, err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	headCommit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, err
	}

	sinceHash, err := repo.ResolveRevision(plumbing.Revision(since))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve revision %q: %w", since, err)
	}
	sinceCommit, err := repo.CommitObject(*sinceHash)
	if err != nil {
		return nil, err
	}

	patch, err := sinceCommit.Patch(headCommit)
	if err != nil {
		return nil, fmt.Errorf("failed to diff %s..HEAD: %w", since, err)
	}

	var files []string
	for _, stat := range patch.Stats() {
		files = append(files, filepath.ToSlash(stat.Name))
	}
	return files, nil
}
