package gitconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopasspw/gopass/pkg/appdir"
	"github.com/gopasspw/gopass/pkg/debug"
)

const (
	name         = "git"
	globalConfig = ".gitconfig"
	localConfig  = "config"
	envGlobal    = "GIT_CONFIG_GLOBAL"
)

// Scope names accepted by GetFrom.
const (
	ScopeGlobal = "global"
	ScopeLocal  = "local"
)

// Configs holds the per-user (global) and per-repository (local) configs
// that decide which identity git uses inside a working tree.
//
// Lookup order (highest first):
// 1. Local/repository config (.git/config)
// 2. Global/user config (~/.gitconfig or $XDG_CONFIG_HOME/git/config)
//
// Usage:
//
//	cs, err := gitconfig.LoadAllWithGlobal("/path/to/repo", "")
//	email, scope := cs.Lookup("user.email")
type Configs struct {
	global *Config
	local  *Config
	repo   *Repository

	// GlobalConfig overrides the location of the per-user config.
	GlobalConfig string
}

// LoadAllWithGlobal loads the global config and, if workdir is inside a git
// repository, its local config. workdir may be empty. An empty global means
// the file `git config --global` would use.
func LoadAllWithGlobal(workdir, global string) (*Configs, error) {
	cs := &Configs{GlobalConfig: global}

	return cs, cs.load(workdir)
}

func (cs *Configs) load(workdir string) error {
	gp := cs.GlobalConfig
	if gp == "" {
		gp = GlobalPath()
	}

	g, err := Load(gp)
	if err != nil {
		return err
	}
	cs.global = g
	debug.V(1).Log("[%s] loaded global config from %s", name, gp)

	if workdir == "" {
		return nil
	}

	repo, err := FindRepository(workdir)
	if err != nil {
		debug.V(1).Log("[%s] no repository at %s: %s", name, workdir, err)

		return nil
	}
	cs.repo = &repo

	l, err := Load(repo.ConfigPath)
	if err != nil {
		return err
	}
	cs.local = l
	debug.V(1).Log("[%s] loaded local config from %s", name, repo.ConfigPath)

	return nil
}

// String implements fmt.Stringer for debugging.
func (cs *Configs) String() string {
	var gp, lp string
	if cs.global != nil {
		gp = cs.global.Path()
	}
	if cs.local != nil {
		lp = cs.local.Path()
	}

	return fmt.Sprintf("GitConfigs{Global: %s - Local: %s}", gp, lp)
}

// Repository returns the repository the local config belongs to, if any.
func (cs *Configs) Repository() (Repository, bool) {
	if cs.repo == nil {
		return Repository{}, false
	}

	return *cs.repo, true
}

// Lookup returns the value and the scope it was found in.
func (cs *Configs) Lookup(key string) (string, string) {
	for _, sc := range []string{ScopeLocal, ScopeGlobal} {
		if v, found := cs.GetFrom(key, sc); found {
			return v, sc
		}
	}

	debug.V(3).Log("[%s] no value for %s found", name, key)

	return "", ""
}

// GetFrom returns the value for the given key from the given scope.
// Valid scopes are local and global.
func (cs *Configs) GetFrom(key string, scope string) (string, bool) {
	var cfg *Config
	switch strings.ToLower(scope) {
	case ScopeLocal:
		cfg = cs.local
	case ScopeGlobal:
		cfg = cs.global
	default:
		debug.V(3).Log("[%s] unknown config scope %s for key %s", name, scope, key)

		return "", false
	}
	if cfg == nil {
		return "", false
	}

	return cfg.Get(key)
}

// GlobalPath returns the config file `git config --global` writes to.
//
// Order: $GIT_CONFIG_GLOBAL, ~/.gitconfig if it exists,
// $XDG_CONFIG_HOME/git/config if it exists, else ~/.gitconfig.
func GlobalPath() string {
	if p := os.Getenv(envGlobal); p != "" {
		return p
	}

	home := filepath.Join(appdir.UserHome(), globalConfig)
	if fi, err := os.Stat(home); err == nil && !fi.IsDir() {
		return home
	}

	xdg := filepath.Join(appdir.New(name).UserConfig(), localConfig)
	if fi, err := os.Stat(xdg); err == nil && !fi.IsDir() {
		return xdg
	}

	return home
}
