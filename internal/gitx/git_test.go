package gitx

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commitFile(t *testing.T, repo *git.Repository, dir, name, content, msg string) {
	t.Helper()

	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)
	_, err = wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
}

func TestChangedFiles(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	commitFile(t, repo, dir, "base.js", "const a = 1;", "initial commit")
	commitFile(t, repo, dir, "feature.js", "const b = 2;", "add feature")

	files, err := ChangedFiles(dir, "HEAD~1")
	require.NoError(t, err)
	assert.Equal(t, []string{"feature.js"}, files)
}

func TestChangedFiles_NoChanges(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	commitFile(t, repo, dir, "base.js", "const a = 1;", "initial commit")

	files, err := ChangedFiles(dir, "HEAD")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestChangedFiles_NotARepository(t *testing.T) {
	_, err := ChangedFiles(t.TempDir(), "HEAD~1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "git repository")
}

func TestChangedFiles_UnknownRevision(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	commitFile(t, repo, dir, "base.js", "const a = 1;", "initial commit")

	_, err = ChangedFiles(dir, "does-not-exist")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does-not-exist")
}
