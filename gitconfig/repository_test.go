package gitconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeGitDir(t *testing.T, gitDir string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Join(gitDir, "objects"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(gitDir, "HEAD"), []byte("ref: refs/heads/main\n"), 0o644))
}

func TestFindRepository(t *testing.T) {
	t.Parallel()

	td := t.TempDir()
	root := filepath.Join(td, "repo")
	makeGitDir(t, filepath.Join(root, ".git"))
	deep := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	for _, dir := range []string{root, deep, filepath.Join(root, "a")} {
		repo, err := FindRepository(dir)
		require.NoError(t, err, dir)
		assert.Equal(t, root, repo.Root)
		assert.Equal(t, filepath.Join(root, ".git"), repo.GitDir)
		assert.Equal(t, filepath.Join(root, ".git", "config"), repo.ConfigPath)
	}

	// the walk may start at a path that does not exist (yet)
	repo, err := FindRepository(filepath.Join(root, "missing", "dir"))
	require.NoError(t, err)
	assert.Equal(t, root, repo.Root)

	_, err = FindRepository(td)
	assert.ErrorIs(t, err, ErrNotARepository)
}

func TestFindRepositoryRejectsIncompleteGitDir(t *testing.T) {
	t.Parallel()

	td := t.TempDir()
	// an empty .git directory is not a repository
	require.NoError(t, os.MkdirAll(filepath.Join(td, ".git"), 0o755))

	_, err := FindRepository(td)
	assert.ErrorIs(t, err, ErrNotARepository)
}

func TestFindRepositoryWorktree(t *testing.T) {
	t.Parallel()

	td := t.TempDir()
	main := filepath.Join(td, "main")
	mainGit := filepath.Join(main, ".git")
	makeGitDir(t, mainGit)

	// linked worktree: .git file -> .git/worktrees/wt, which links back
	// to the main git dir via commondir
	wtGit := filepath.Join(mainGit, "worktrees", "wt")
	require.NoError(t, os.MkdirAll(wtGit, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(wtGit, "HEAD"), []byte("ref: refs/heads/feature\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(wtGit, "commondir"), []byte("../..\n"), 0o644))

	wt := filepath.Join(td, "wt")
	require.NoError(t, os.MkdirAll(wt, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(wt, ".git"), []byte("gitdir: "+wtGit+"\n"), 0o644))

	repo, err := FindRepository(wt)
	require.NoError(t, err)
	assert.Equal(t, wt, repo.Root)
	assert.Equal(t, wtGit, repo.GitDir)
	assert.Equal(t, filepath.Join(mainGit, "config"), repo.ConfigPath)
}

func TestFindRepositorySubmodule(t *testing.T) {
	t.Parallel()

	td := t.TempDir()
	parent := filepath.Join(td, "parent")
	modGit := filepath.Join(parent, ".git", "modules", "lib")
	makeGitDir(t, filepath.Join(parent, ".git"))
	makeGitDir(t, modGit)

	sub := filepath.Join(parent, "lib")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	// relative gitdir as written by git submodule
	require.NoError(t, os.WriteFile(filepath.Join(sub, ".git"), []byte("gitdir: ../.git/modules/lib\n"), 0o644))

	repo, err := FindRepository(sub)
	require.NoError(t, err)
	assert.Equal(t, sub, repo.Root)
	assert.Equal(t, filepath.Join(modGit, "config"), repo.ConfigPath)

	// a broken .git file does not stop the walk
	require.NoError(t, os.WriteFile(filepath.Join(sub, ".git"), []byte("garbage\n"), 0o644))
	repo, err = FindRepository(sub)
	require.NoError(t, err)
	assert.Equal(t, parent, repo.Root)
}

func TestRemotes(t *testing.T) {
	t.Parallel()

	c := Parse(strings.NewReader(`[core]
	bare = false
[remote "upstream"]
	url = https://github.com/corp/api.git
	fetch = +refs/heads/*:refs/remotes/upstream/*
[remote "fork"]
	url = git@github.com:jane/api.git
[remote "nourl"]
	fetch = +refs/heads/*:refs/remotes/nourl/*
[remote "origin"]
	url = git@github.com:corp/api.git
	url = git@gitlab.example.com:corp/api.git
	fetch = +refs/heads/*:refs/remotes/origin/*
`))

	assert.Equal(t, []Remote{
		{Name: "origin", URL: "git@github.com:corp/api.git"},
		{Name: "fork", URL: "git@github.com:jane/api.git"},
		{Name: "upstream", URL: "https://github.com/corp/api.git"},
	}, Remotes(c))

	assert.Nil(t, Remotes(nil))
	assert.Empty(t, Remotes(Parse(strings.NewReader("[core]\n\tbare = true\n"))))
}
