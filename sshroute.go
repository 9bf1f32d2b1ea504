package boogiewoogie

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strings"

	"github.com/gopasspw/gopass/pkg/debug"
)

// SSHParams is the SSH invocation a profile requires. The zero value means
// "use the system default": no key is forced and git's normal ssh setup
// applies.
type SSHParams struct {
	// IdentityFile is the absolute path of the private key.
	IdentityFile string
	// ExtraOptions are additional "-o" options, e.g. "IdentitiesOnly=yes".
	ExtraOptions []string
}

// IsDefault reports whether no key is forced.
func (p SSHParams) IsDefault() bool {
	return p.IdentityFile == ""
}

// Command renders the value for core.sshCommand / GIT_SSH_COMMAND. It is
// empty for the system default.
func (p SSHParams) Command() string {
	if p.IsDefault() {
		return ""
	}

	parts := []string{"ssh", "-i", shellQuote(p.IdentityFile)}
	for _, o := range p.ExtraOptions {
		parts = append(parts, "-o", shellQuote(o))
	}

	return strings.Join(parts, " ")
}

// Env returns the environment entries a push or fetch wrapper should add
// so git uses this key without touching any config file.
func (p SSHParams) Env() []string {
	if p.IsDefault() {
		return nil
	}

	return []string{"GIT_SSH_COMMAND=" + p.Command()}
}

// Route returns the SSH parameters for a profile. A configured key must be
// an existing regular file that only its owner can access. IdentitiesOnly
// is always set so an agent holding keys of other profiles can not offer
// them instead.
func Route(p Profile) (SSHParams, error) {
	if p.SSHKeyPath == "" {
		debug.V(1).Log("profile %s uses the system ssh default", p.Name)

		return SSHParams{}, nil
	}

	key := canonicalPath(p.SSHKeyPath)
	if err := checkKeyFile(key); err != nil {
		return SSHParams{}, fmt.Errorf("profile %s: %w", p.Name, err)
	}

	params := SSHParams{
		IdentityFile: key,
		ExtraOptions: []string{"IdentitiesOnly=yes"},
	}
	if p.KnownHostsFile != "" {
		params.ExtraOptions = append(params.ExtraOptions, "UserKnownHostsFile="+canonicalPath(p.KnownHostsFile))
	}

	debug.V(1).Log("profile %s routes ssh through %s", p.Name, key)

	return params, nil
}

func checkKeyFile(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissingKeyFile, path)
		}

		return fmt.Errorf("failed to stat ssh key %s: %w", path, err)
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrMissingKeyFile, path)
	}

	// windows has no meaningful mode bits
	if runtime.GOOS == "windows" {
		return nil
	}
	if perm := fi.Mode().Perm(); perm&0o077 != 0 {
		return fmt.Errorf("%w: %s has mode %04o, want 0600 or stricter", ErrInsecureKeyPermissions, path, perm)
	}

	return nil
}

// shellQuote quotes s for a POSIX shell unless it only contains safe
// characters. git runs core.sshCommand through the shell.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./=:@+,%", r))
	}) < 0 {
		return s
	}

	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
