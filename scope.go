package boogiewoogie

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/boogiewoogie/boogiewoogie/gitconfig"
)

// GlobalScopeName is the binding key of the global default.
const GlobalScopeName = "global"

// Scope is either the global git configuration or one repository.
// The zero value is the global scope.
type Scope struct {
	path string
}

// GlobalScope returns the global scope.
func GlobalScope() Scope {
	return Scope{}
}

// RepositoryScope returns the scope of the repository at path. The path is
// made absolute. Use ParseScope to also snap it to the repository root.
func RepositoryScope(path string) Scope {
	return Scope{path: canonicalPath(path)}
}

// ParseScope accepts "global" or a directory, "~" is expanded. An existing
// directory inside a git repository is replaced by the repository root, so
// binding any subdirectory binds the whole repository.
func ParseScope(s string) (Scope, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Scope{}, fmt.Errorf("%w: empty scope", ErrInvalidScope)
	}
	if s == GlobalScopeName {
		return GlobalScope(), nil
	}

	s = expandHome(s)
	if _, err := os.Stat(s); err != nil {
		return RepositoryScope(s), nil
	}
	if repo, err := gitconfig.FindRepository(s); err == nil {
		return RepositoryScope(repo.Root), nil
	}

	return RepositoryScope(s), nil
}

// IsGlobal reports whether this is the global scope.
func (s Scope) IsGlobal() bool {
	return s.path == ""
}

// Path returns the repository path, empty for the global scope.
func (s Scope) Path() string {
	return s.path
}

// String returns the binding key of the scope.
func (s Scope) String() string {
	if s.IsGlobal() {
		return GlobalScopeName
	}

	return s.path
}

// canonicalPath returns an absolute, clean path with symlinks resolved
// where possible.
func canonicalPath(p string) string {
	p = expandHome(p)
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	if real, err := filepath.EvalSymlinks(p); err == nil {
		p = real
	}

	return filepath.Clean(p)
}
