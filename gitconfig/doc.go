// Package gitconfig reads and edits Git SCM config files in pure Go. It only
// covers what an identity switcher needs: the per-user (global) config, the
// per-repository (local) config and locating both. Includes, the system
// config and GIT_CONFIG_* environment overlays are not evaluated.
//
// The reference for the file format is https://git-scm.com/docs/git-config#_syntax
//
// # Locations
//
//   - `global` - $GIT_CONFIG_GLOBAL, `~/.gitconfig` or `$XDG_CONFIG_HOME/git/config`
//   - `local` - `<gitdir>/config`, found by walking up from a working directory.
//     Linked worktrees (a `.git` file with `gitdir:`) use the config of their
//     main repository.
//
// # Editing
//
// Edits keep the original text of the file. Only the lines of keys that change
// are rewritten, comments and unknown sections stay where they are. Changes are
// buffered in memory until Write, which replaces the file atomically:
//
//	cfg, _ := gitconfig.Load(".git/config")
//	_, _ = cfg.Set("user.name", "John Doe")
//	_, _ = cfg.Set("user.email", "john@example.com")
//	_ = cfg.Unset("core.sshcommand")
//	if err := cfg.Write(); err != nil { ... }
//
// # Error Handling
//
// Use errors.Is to detect common error categories:
//
//	if _, err := gitconfig.FindRepository(dir); errors.Is(err, gitconfig.ErrNotARepository) {
//		// not inside a working tree
//	}
package gitconfig
