package boogiewoogie

import (
	"errors"
	"fmt"

	"github.com/boogiewoogie/boogiewoogie/gitconfig"
	"github.com/gopasspw/gopass/pkg/debug"
)

// Source records which rule selected a profile.
type Source string

// Resolution sources, highest precedence first.
const (
	SourceExplicit        Source = "explicit"
	SourceExplicitBinding Source = "explicit-binding"
	SourcePatternBinding  Source = "pattern-binding"
	SourceDefault         Source = "default"
)

// ResolvedIdentity is the outcome of a resolution. It is computed on every
// call and never cached.
type ResolvedIdentity struct {
	Profile Profile
	// Scope is the repository containing the working directory, or the
	// global scope outside of a repository.
	Scope  Scope
	Source Source
	// Binding is the binding key or host pattern that selected the
	// profile. Empty for explicit overrides.
	Binding string
	// Remote is the normalized remote a pattern matched, if any.
	Remote string
}

func (r ResolvedIdentity) String() string {
	if r.Binding == "" {
		return fmt.Sprintf("%s (%s)", r.Profile.Name, r.Source)
	}

	return fmt.Sprintf("%s (%s: %s)", r.Profile.Name, r.Source, r.Binding)
}

// Resolver answers which identity applies to a working directory.
type Resolver struct {
	profiles *ProfileStore
	bindings *BindingTable
}

// NewResolver returns a resolver over the profiles and bindings of s.
func NewResolver(s *Store) *Resolver {
	return &Resolver{
		profiles: s.Profiles(),
		bindings: s.Bindings(),
	}
}

// Resolve determines the profile for cwd. Precedence:
//
//  1. override, if not empty
//  2. the binding of the repository containing cwd
//  3. the best host pattern matching one of the repository's remotes
//  4. the global binding
//
// If nothing applies the error is ErrNoIdentityResolved. A binding whose
// profile was deleted fails with ErrDanglingBinding instead of falling
// through to a lower rule.
func (r *Resolver) Resolve(cwd, override string) (ResolvedIdentity, error) {
	scope := GlobalScope()

	repo, err := findRepository(cwd)
	switch {
	case err == nil:
		scope = RepositoryScope(repo.Root)
	case errors.Is(err, ErrNotAGitRepository):
		debug.V(1).Log("%s is not inside a repository, only global rules apply", cwd)
	default:
		return ResolvedIdentity{}, err
	}

	if override != "" {
		p, err := r.profiles.Get(override)
		if err != nil {
			return ResolvedIdentity{}, err
		}

		return ResolvedIdentity{Profile: p, Scope: scope, Source: SourceExplicit}, nil
	}

	if !scope.IsGlobal() {
		ri, found, err := r.fromBinding(scope, scope, SourceExplicitBinding)
		if err != nil || found {
			return ri, err
		}

		// the patterns can not be checked, so the global binding must not
		// be used either
		remotes, err := readRemotes(repo)
		if err != nil {
			return ResolvedIdentity{}, err
		}
		for _, rm := range remotes {
			m, ok, err := r.bindings.MatchByRemote(rm.URL)
			if err != nil {
				return ResolvedIdentity{}, err
			}
			if !ok {
				continue
			}

			return ResolvedIdentity{
				Profile: m.Profile,
				Scope:   scope,
				Source:  SourcePatternBinding,
				Binding: m.Pattern,
				Remote:  m.Remote,
			}, nil
		}
	}

	ri, found, err := r.fromBinding(GlobalScope(), scope, SourceDefault)
	if err != nil || found {
		return ri, err
	}

	return ResolvedIdentity{}, fmt.Errorf("%w: %s", ErrNoIdentityResolved, cwd)
}

// fromBinding looks up the binding of key and then, separately, the
// profile it names. A missing binding is not an error, a missing profile is.
func (r *Resolver) fromBinding(key, scope Scope, src Source) (ResolvedIdentity, bool, error) {
	name, err := r.bindings.ResolveBinding(key)
	if err != nil {
		if errors.Is(err, ErrBindingNotFound) {
			return ResolvedIdentity{}, false, nil
		}

		return ResolvedIdentity{}, false, err
	}

	p, err := r.profiles.Get(name)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return ResolvedIdentity{}, false, fmt.Errorf("%w: %s is bound to %q", ErrDanglingBinding, key, name)
		}

		return ResolvedIdentity{}, false, err
	}

	return ResolvedIdentity{
		Profile: p,
		Scope:   scope,
		Source:  src,
		Binding: key.String(),
	}, true, nil
}

// Route resolves the identity for cwd and returns its SSH parameters, for
// wrappers that only need to run git with the right key.
func (r *Resolver) Route(cwd, override string) (ResolvedIdentity, SSHParams, error) {
	ri, err := r.Resolve(cwd, override)
	if err != nil {
		return ResolvedIdentity{}, SSHParams{}, err
	}

	params, err := Route(ri.Profile)
	if err != nil {
		return ResolvedIdentity{}, SSHParams{}, err
	}

	return ri, params, nil
}

func readRemotes(repo gitconfig.Repository) ([]gitconfig.Remote, error) {
	cfg, err := gitconfig.Load(repo.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read remotes of %s: %w", repo.Root, err)
	}

	return gitconfig.Remotes(cfg), nil
}
