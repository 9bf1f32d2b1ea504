package boogiewoogie

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePrecedence(t *testing.T) {
	t.Parallel()

	td := t.TempDir()
	repo := initRepo(t, filepath.Join(td, "api"), map[string]string{
		"origin":   "git@github.com:corp/api.git",
		"upstream": "https://gitlab.example.com/mirror/api.git",
	})
	sub := filepath.Join(repo, "cmd", "server")
	require.NoError(t, mkdirAll(sub))

	s := newTestStore(t)
	mustCreate(t, s, Profile{Name: "cli", Email: "cli@example.com"})
	mustCreate(t, s, Profile{Name: "repo", Email: "repo@example.com"})
	mustCreate(t, s, Profile{Name: "corp", Email: "corp@example.com", HostPatterns: []string{"github.com:corp/*"}})
	mustCreate(t, s, Profile{Name: "home", Email: "home@example.com"})

	bt := s.Bindings()
	require.NoError(t, bt.Bind(GlobalScope(), "home"))
	require.NoError(t, bt.Bind(RepositoryScope(repo), "repo"))

	r := NewResolver(s)
	scope := RepositoryScope(repo)

	ri, err := r.Resolve(sub, "cli")
	require.NoError(t, err)
	assert.Equal(t, "cli", ri.Profile.Name)
	assert.Equal(t, SourceExplicit, ri.Source)
	assert.Equal(t, scope, ri.Scope)

	ri, err = r.Resolve(sub, "")
	require.NoError(t, err)
	assert.Equal(t, "repo", ri.Profile.Name)
	assert.Equal(t, SourceExplicitBinding, ri.Source)
	assert.Equal(t, scope.String(), ri.Binding)

	require.NoError(t, bt.Unbind(scope))
	ri, err = r.Resolve(sub, "")
	require.NoError(t, err)
	assert.Equal(t, "corp", ri.Profile.Name)
	assert.Equal(t, SourcePatternBinding, ri.Source)
	assert.Equal(t, "github.com:corp/*", ri.Binding)
	assert.Equal(t, "github.com:corp/api", ri.Remote)

	require.NoError(t, bt.UnbindPattern("github.com:corp/*", "corp"))
	ri, err = r.Resolve(sub, "")
	require.NoError(t, err)
	assert.Equal(t, "home", ri.Profile.Name)
	assert.Equal(t, SourceDefault, ri.Source)
	assert.Equal(t, scope, ri.Scope, "the scope stays the repository")

	require.NoError(t, bt.Unbind(GlobalScope()))
	_, err = r.Resolve(sub, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoIdentityResolved)
	assert.Equal(t, KindNoIdentityResolved, KindOf(err))
}

func TestResolvePatternOnSecondaryRemote(t *testing.T) {
	t.Parallel()

	td := t.TempDir()
	repo := initRepo(t, filepath.Join(td, "fork"), map[string]string{
		"origin":   "git@github.com:jane/fork.git",
		"upstream": "git@github.com:corp/fork.git",
	})

	s := newTestStore(t)
	mustCreate(t, s, Profile{Name: "corp", Email: "corp@example.com", HostPatterns: []string{"github.com:corp/*"}})
	mustCreate(t, s, Profile{Name: "jane", Email: "jane@example.com", HostPatterns: []string{"github.com:jane/*"}})

	r := NewResolver(s)

	// origin wins over other remotes
	ri, err := r.Resolve(repo, "")
	require.NoError(t, err)
	assert.Equal(t, "jane", ri.Profile.Name)

	require.NoError(t, s.Bindings().UnbindPattern("github.com:jane/*", "jane"))
	ri, err = r.Resolve(repo, "")
	require.NoError(t, err)
	assert.Equal(t, "corp", ri.Profile.Name)
	assert.Equal(t, "github.com:corp/fork", ri.Remote)
}

func TestResolveDanglingBinding(t *testing.T) {
	t.Parallel()

	td := t.TempDir()
	repo := initRepo(t, filepath.Join(td, "api"), map[string]string{"origin": "git@github.com:corp/api.git"})

	s := newTestStore(t)
	mustCreate(t, s, Profile{Name: "gone", Email: "gone@example.com"})
	mustCreate(t, s, Profile{Name: "corp", Email: "corp@example.com", HostPatterns: []string{"github.com:corp/*"}})
	mustCreate(t, s, Profile{Name: "home", Email: "home@example.com"})
	require.NoError(t, s.Bindings().Bind(GlobalScope(), "home"))
	require.NoError(t, s.Bindings().Bind(RepositoryScope(repo), "gone"))
	require.NoError(t, s.Profiles().Delete("gone"))

	r := NewResolver(s)

	// neither the pattern nor the global binding may take over
	_, err := r.Resolve(repo, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDanglingBinding)
	assert.Equal(t, KindDanglingBinding, KindOf(err))

	// outside of the repository only the global binding counts
	ri, err := r.Resolve(td, "")
	require.NoError(t, err)
	assert.Equal(t, "home", ri.Profile.Name)

	require.NoError(t, s.Profiles().Delete("home"))
	_, err = r.Resolve(td, "")
	assert.ErrorIs(t, err, ErrDanglingBinding)
}

func TestResolveUnreadableRepositoryConfig(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("needs unix permissions enforced for the current user")
	}

	td := t.TempDir()
	repo := initRepo(t, filepath.Join(td, "api"), map[string]string{"origin": "git@github.com:corp/api.git"})
	cfg := filepath.Join(repo, ".git", "config")
	require.NoError(t, os.Chmod(cfg, 0o000))
	t.Cleanup(func() { _ = os.Chmod(cfg, 0o644) })

	s := newTestStore(t)
	mustCreate(t, s, Profile{Name: "corp", Email: "corp@example.com", HostPatterns: []string{"github.com:corp/*"}})
	mustCreate(t, s, Profile{Name: "home", Email: "home@example.com"})
	require.NoError(t, s.Bindings().Bind(GlobalScope(), "home"))

	r := NewResolver(s)

	// the global default must not stand in for the pattern
	ri, err := r.Resolve(repo, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.Empty(t, ri.Profile.Name)

	_, _, err = r.Route(repo, "")
	assert.ErrorIs(t, err, fs.ErrPermission)

	// rules above the patterns do not need the remotes
	ri, err = r.Resolve(repo, "home")
	require.NoError(t, err)
	assert.Equal(t, SourceExplicit, ri.Source)

	require.NoError(t, s.Bindings().Bind(RepositoryScope(repo), "corp"))
	ri, err = r.Resolve(repo, "")
	require.NoError(t, err)
	assert.Equal(t, SourceExplicitBinding, ri.Source)
}

func TestResolveUnknownOverride(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	mustCreate(t, s, Profile{Name: "home", Email: "home@example.com"})
	require.NoError(t, s.Bindings().Bind(GlobalScope(), "home"))

	_, err := NewResolver(s).Resolve(t.TempDir(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestResolveOutsideRepository(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	mustCreate(t, s, Profile{Name: "work", Email: "a@b.com"})
	r := NewResolver(s)

	_, err := r.Resolve("/any/path", "")
	assert.ErrorIs(t, err, ErrNoIdentityResolved)

	require.NoError(t, s.Bindings().Bind(GlobalScope(), "work"))

	ri, err := r.Resolve("/any/path", "")
	require.NoError(t, err)
	assert.Equal(t, "work", ri.Profile.Name)
	assert.Equal(t, SourceDefault, ri.Source)
	assert.True(t, ri.Scope.IsGlobal())
	assert.Equal(t, "work (default: global)", ri.String())

	a := newTestApplier(t)
	change, err := a.Apply(ri, ri.Scope)
	require.NoError(t, err)
	assert.False(t, change.IsNoop())

	change, err = a.Apply(ri, ri.Scope)
	require.NoError(t, err)
	assert.True(t, change.IsNoop())
}

func TestResolveRoute(t *testing.T) {
	t.Parallel()

	td := t.TempDir()
	repo := initRepo(t, filepath.Join(td, "api"), map[string]string{"origin": "git@github.com:corp/api.git"})
	key := writeKey(t, td, "id_corp", 0o600)

	s := newTestStore(t)
	mustCreate(t, s, Profile{Name: "corp", Email: "corp@example.com", SSHKeyPath: key, HostPatterns: []string{"github.com:corp/**"}})
	mustCreate(t, s, Profile{Name: "home", Email: "home@example.com"})
	require.NoError(t, s.Bindings().Bind(GlobalScope(), "home"))

	r := NewResolver(s)

	ri, params, err := r.Route(repo, "")
	require.NoError(t, err)
	assert.Equal(t, "corp", ri.Profile.Name)
	assert.Equal(t, canonicalPath(key), params.IdentityFile)

	ri, params, err = r.Route(td, "")
	require.NoError(t, err)
	assert.Equal(t, "home", ri.Profile.Name)
	assert.True(t, params.IsDefault())

	require.NoError(t, s.Profiles().Delete("corp"))
	mustCreate(t, s, Profile{Name: "corp", Email: "corp@example.com", SSHKeyPath: filepath.Join(td, "missing"), HostPatterns: []string{"github.com:corp/**"}})
	_, _, err = r.Route(repo, "")
	assert.ErrorIs(t, err, ErrMissingKeyFile)
}
