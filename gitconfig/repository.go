package gitconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopasspw/gopass/pkg/debug"
)

// Repository describes where a working tree keeps its git metadata.
type Repository struct {
	// Root is the top level of the working tree.
	Root string
	// GitDir is the git directory of this working tree. For linked
	// worktrees and submodules it lives outside of Root.
	GitDir string
	// ConfigPath is the repository-local config file. Linked worktrees
	// share the config of their main repository.
	ConfigPath string
}

// FindRepository walks up from dir to the closest directory containing
// a .git directory or a .git file pointing at one.
func FindRepository(dir string) (Repository, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Repository{}, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	for cur := abs; ; {
		if repo, ok := repositoryAt(cur); ok {
			debug.V(2).Log("found repository %s for %s", repo.Root, dir)

			return repo, nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}

	return Repository{}, fmt.Errorf("%w: %s", ErrNotARepository, dir)
}

func repositoryAt(dir string) (Repository, bool) {
	dotGit := filepath.Join(dir, ".git")

	fi, err := os.Stat(dotGit)
	if err != nil {
		return Repository{}, false
	}

	gitDir := dotGit
	if !fi.IsDir() {
		gitDir = readGitFile(dotGit)
		if gitDir == "" {
			return Repository{}, false
		}
	}

	if !isGitDir(gitDir) {
		return Repository{}, false
	}

	return Repository{
		Root:       dir,
		GitDir:     gitDir,
		ConfigPath: filepath.Join(commonDir(gitDir), localConfig),
	}, true
}

// readGitFile resolves a "gitdir: <path>" file as written for linked
// worktrees and submodules.
func readGitFile(fn string) string {
	buf, err := os.ReadFile(fn)
	if err != nil {
		return ""
	}

	p, found := strings.CutPrefix(strings.TrimSpace(string(buf)), "gitdir:")
	if !found {
		return ""
	}
	p = strings.TrimSpace(p)
	if !filepath.IsAbs(p) {
		p = filepath.Join(filepath.Dir(fn), p)
	}

	return filepath.Clean(p)
}

func commonDir(gitDir string) string {
	buf, err := os.ReadFile(filepath.Join(gitDir, "commondir"))
	if err != nil {
		return gitDir
	}

	p := strings.TrimSpace(string(buf))
	if !filepath.IsAbs(p) {
		p = filepath.Join(gitDir, p)
	}

	return filepath.Clean(p)
}

// isGitDir does the cheap part of git's own check: a HEAD file next to
// an objects directory, or a commondir link for linked worktrees.
func isGitDir(dir string) bool {
	if fi, err := os.Stat(filepath.Join(dir, "HEAD")); err != nil || fi.IsDir() {
		return false
	}
	if _, err := os.Stat(filepath.Join(dir, "commondir")); err == nil {
		return true
	}
	if fi, err := os.Stat(filepath.Join(dir, "objects")); err == nil && fi.IsDir() {
		return true
	}

	return false
}

// Remotes returns the configured remote URLs of a config, origin first
// and the others sorted by name. A remote with several urls fetches from
// the first one.
func Remotes(c *Config) []Remote {
	if c == nil {
		return nil
	}

	var out []Remote
	var origin *Remote
	for _, n := range c.Subsections("remote") {
		us, found := c.GetAll("remote." + n + ".url")
		if !found || len(us) == 0 || us[0] == "" {
			continue
		}
		r := Remote{Name: n, URL: us[0]}
		if n == "origin" {
			origin = &r

			continue
		}
		out = append(out, r)
	}

	if origin != nil {
		out = append([]Remote{*origin}, out...)
	}

	return out
}

// Remote is a named remote and its fetch URL.
type Remote struct {
	Name string
	URL  string
}
