package boogiewoogie

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/gopasspw/gopass/pkg/debug"
)

// BindingTable manages the scope to profile bindings of a Store.
type BindingTable struct {
	s *Store
}

// Bind binds scope to a profile, replacing an existing binding of the
// same scope. The profile must exist when the binding is made.
func (bt *BindingTable) Bind(scope Scope, profile string) error {
	key := scope.String()

	err := bt.s.mutate(func(doc *document) error {
		if doc.profileIndex(profile) < 0 {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, profile)
		}

		if i := doc.bindingIndex(key); i >= 0 {
			doc.Bindings[i].Profile = profile

			return nil
		}
		doc.Bindings = append(doc.Bindings, Binding{Scope: key, Profile: profile})

		return nil
	})
	if err != nil {
		return err
	}

	debug.Log("bound %s to profile %s", key, profile)

	return nil
}

// Unbind removes the binding of scope.
func (bt *BindingTable) Unbind(scope Scope) error {
	key := scope.String()

	err := bt.s.mutate(func(doc *document) error {
		i := doc.bindingIndex(key)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrBindingNotFound, key)
		}
		doc.Bindings = slices.Delete(doc.Bindings, i, i+1)

		return nil
	})
	if err != nil {
		return err
	}

	debug.Log("unbound %s", key)

	return nil
}

// ResolveBinding returns the profile name bound to scope. It does not
// check that the profile still exists.
func (bt *BindingTable) ResolveBinding(scope Scope) (string, error) {
	doc, err := bt.s.snapshot()
	if err != nil {
		return "", err
	}

	i := doc.bindingIndex(scope.String())
	if i < 0 {
		return "", fmt.Errorf("%w: %s", ErrBindingNotFound, scope)
	}

	return doc.Bindings[i].Profile, nil
}

// ListBindings returns all bindings, the global one first and the
// repositories sorted by path.
func (bt *BindingTable) ListBindings() ([]Binding, error) {
	doc, err := bt.s.snapshot()
	if err != nil {
		return nil, err
	}

	sortBindings(doc.Bindings)

	return doc.Bindings, nil
}

// BindPattern adds a host pattern to a profile so that repositories with
// a matching remote resolve to it.
func (bt *BindingTable) BindPattern(pattern, profile string) error {
	if _, err := compilePattern(pattern); err != nil {
		return err
	}

	err := bt.s.mutate(func(doc *document) error {
		i := doc.profileIndex(profile)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, profile)
		}
		if slices.Contains(doc.Profiles[i].HostPatterns, pattern) {
			return nil
		}
		doc.Profiles[i].HostPatterns = append(doc.Profiles[i].HostPatterns, pattern)

		return nil
	})
	if err != nil {
		return err
	}

	debug.Log("bound pattern %q to profile %s", pattern, profile)

	return nil
}

// UnbindPattern removes a host pattern from a profile.
func (bt *BindingTable) UnbindPattern(pattern, profile string) error {
	return bt.s.mutate(func(doc *document) error {
		i := doc.profileIndex(profile)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, profile)
		}
		j := slices.Index(doc.Profiles[i].HostPatterns, pattern)
		if j < 0 {
			return fmt.Errorf("%w: pattern %q on %s", ErrBindingNotFound, pattern, profile)
		}
		doc.Profiles[i].HostPatterns = slices.Delete(doc.Profiles[i].HostPatterns, j, j+1)

		return nil
	})
}

// MatchByRemote evaluates the host patterns of all profiles against a
// remote ("host:path" or any git remote URL) and returns the best match.
// See matchPatterns for the ordering rules.
func (bt *BindingTable) MatchByRemote(hostAndPath string) (PatternMatch, bool, error) {
	doc, err := bt.s.snapshot()
	if err != nil {
		return PatternMatch{}, false, err
	}

	m, ok := matchPatterns(doc.Profiles, hostAndPath)

	return m, ok, nil
}

func sortBindings(bs []Binding) {
	slices.SortFunc(bs, func(a, b Binding) int {
		ag, bg := a.Scope == GlobalScopeName, b.Scope == GlobalScopeName
		switch {
		case ag && !bg:
			return -1
		case bg && !ag:
			return 1
		}

		return cmp.Compare(a.Scope, b.Scope)
	})
}
