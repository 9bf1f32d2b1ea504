package boogiewoogie

import (
	"errors"
	"fmt"
	"strings"

	"github.com/boogiewoogie/boogiewoogie/gitconfig"
	"github.com/gopasspw/gopass/pkg/debug"
)

// Identity keys written by the applier. Nothing else is ever modified.
const (
	keyUserName   = "user.name"
	keyUserEmail  = "user.email"
	keySigningKey = "user.signingkey"
	keyGPGFormat  = "gpg.format"
	keyGPGSign    = "commit.gpgsign"
	keySSHCommand = "core.sshCommand"
)

// IdentityKeys lists the git config keys an applied identity consists of.
var IdentityKeys = []string{keyUserName, keyUserEmail, keySigningKey, keyGPGFormat, keyGPGSign, keySSHCommand}

// KeyChange is one config key written or removed by Apply.
type KeyChange struct {
	Key   string
	Old   string
	New   string
	Unset bool
}

func (k KeyChange) String() string {
	if k.Unset {
		return fmt.Sprintf("-%s (was %q)", k.Key, k.Old)
	}
	if k.Old == "" {
		return fmt.Sprintf("+%s=%q", k.Key, k.New)
	}

	return fmt.Sprintf("~%s=%q (was %q)", k.Key, k.New, k.Old)
}

// AppliedChange reports what Apply changed.
type AppliedChange struct {
	Scope       Scope
	ConfigPath  string
	KeysWritten []KeyChange
}

// IsNoop reports whether the config already carried the identity.
func (a AppliedChange) IsNoop() bool {
	return len(a.KeysWritten) == 0
}

// Applier writes resolved identities into git configuration files.
type Applier struct {
	// GlobalConfig overrides the location of the global git config.
	// Empty means the file `git config --global` would use.
	GlobalConfig string
	// DryRun computes and reports the change set of Apply without
	// writing any file.
	DryRun bool
}

// NewApplier returns an applier for the user's real git configuration.
func NewApplier() *Applier {
	return &Applier{}
}

type wantKey struct {
	key   string
	value string
	unset bool
}

// Apply writes the identity of resolved into scope. All keys are changed
// in one atomic file replacement: on error the config file is unchanged.
// Applying an identity the config already carries writes nothing and
// returns an empty change set.
func (a *Applier) Apply(resolved ResolvedIdentity, scope Scope) (AppliedChange, error) {
	p := resolved.Profile
	if err := p.Validate(); err != nil {
		return AppliedChange{}, err
	}

	params, err := Route(p)
	if err != nil {
		return AppliedChange{}, err
	}

	cfg, err := a.load(scope)
	if err != nil {
		return AppliedChange{}, err
	}

	out := AppliedChange{
		Scope:      scope,
		ConfigPath: cfg.Path(),
	}

	for _, w := range desiredKeys(p, params) {
		old, _ := cfg.Get(w.key)

		if w.unset {
			if cfg.Unset(w.key) {
				out.KeysWritten = append(out.KeysWritten, KeyChange{Key: w.key, Old: old, Unset: true})
			}

			continue
		}

		changed, err := cfg.Set(w.key, w.value)
		if err != nil {
			return AppliedChange{}, fmt.Errorf("failed to set %s: %w", w.key, err)
		}
		if changed {
			out.KeysWritten = append(out.KeysWritten, KeyChange{Key: w.key, Old: old, New: w.value})
		}
	}

	if !cfg.Dirty() {
		debug.Log("profile %s already applied to %s", p.Name, scope)

		return out, nil
	}

	if err := cfg.Write(); err != nil {
		return AppliedChange{}, err
	}

	if a.DryRun {
		debug.Log("would apply profile %s to %s (%d keys)", p.Name, scope, len(out.KeysWritten))

		return out, nil
	}
	debug.Log("applied profile %s to %s (%d keys)", p.Name, scope, len(out.KeysWritten))

	return out, nil
}

func (a *Applier) load(scope Scope) (*gitconfig.Config, error) {
	path := a.GlobalConfig
	if scope.IsGlobal() {
		if path == "" {
			path = gitconfig.GlobalPath()
		}
	} else {
		repo, err := findRepository(scope.Path())
		if err != nil {
			return nil, err
		}
		path = repo.ConfigPath
	}

	cfg, err := gitconfig.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.NoWrites = a.DryRun

	return cfg, nil
}

func findRepository(dir string) (gitconfig.Repository, error) {
	repo, err := gitconfig.FindRepository(dir)
	if err != nil {
		if errors.Is(err, gitconfig.ErrNotARepository) {
			return gitconfig.Repository{}, fmt.Errorf("%w: %s", ErrNotAGitRepository, dir)
		}

		return gitconfig.Repository{}, err
	}

	return repo, nil
}

// desiredKeys returns the identity keys in the order they are written.
// Keys a profile does not need are removed, so no value of a previously
// applied profile survives a switch.
func desiredKeys(p Profile, params SSHParams) []wantKey {
	keys := []wantKey{
		{key: keyUserName, value: p.GitUserName()},
		{key: keyUserEmail, value: p.Email},
	}

	if p.SigningKey != "" {
		format := "openpgp"
		if isSSHSigningKey(p.SigningKey) {
			format = "ssh"
		}
		keys = append(keys,
			wantKey{key: keySigningKey, value: p.SigningKey},
			wantKey{key: keyGPGFormat, value: format},
			wantKey{key: keyGPGSign, value: "true"},
		)
	} else {
		keys = append(keys,
			wantKey{key: keySigningKey, unset: true},
			wantKey{key: keyGPGSign, value: "false"},
		)
	}

	if params.IsDefault() {
		keys = append(keys, wantKey{key: keySSHCommand, unset: true})
	} else {
		keys = append(keys, wantKey{key: keySSHCommand, value: params.Command()})
	}

	return keys
}

func isSSHSigningKey(k string) bool {
	for _, prefix := range []string{"ssh-", "ecdsa-sha2-", "sk-ssh-", "sk-ecdsa-", "key::"} {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}

	return strings.HasSuffix(k, ".pub")
}

// ConfiguredIdentity is the identity git currently uses in a scope.
type ConfiguredIdentity struct {
	UserName   string
	Email      string
	SigningKey string
	SSHCommand string
	// Origin maps each identity key that is set to the config scope
	// ("local" or "global") it comes from.
	Origin map[string]string
}

// Current reads the effective identity keys of scope. For a repository
// the local config takes precedence over the global one.
func (a *Applier) Current(scope Scope) (ConfiguredIdentity, error) {
	workdir := ""
	if !scope.IsGlobal() {
		workdir = scope.Path()
	}

	cs, err := gitconfig.LoadAllWithGlobal(workdir, a.GlobalConfig)
	if err != nil {
		return ConfiguredIdentity{}, err
	}
	if _, ok := cs.Repository(); workdir != "" && !ok {
		return ConfiguredIdentity{}, fmt.Errorf("%w: %s", ErrNotAGitRepository, workdir)
	}
	debug.V(1).Log("reading identity of %s from %s", scope, cs)

	ci := ConfiguredIdentity{Origin: make(map[string]string, len(IdentityKeys))}
	for _, k := range IdentityKeys {
		v, origin := cs.Lookup(k)
		if origin == "" {
			continue
		}
		ci.Origin[k] = origin

		switch k {
		case keyUserName:
			ci.UserName = v
		case keyUserEmail:
			ci.Email = v
		case keySigningKey:
			ci.SigningKey = v
		case keySSHCommand:
			ci.SSHCommand = v
		}
	}

	return ci, nil
}
