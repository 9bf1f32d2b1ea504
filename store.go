package boogiewoogie

import (
	"fmt"
	"slices"

	"github.com/gopasspw/gopass/pkg/debug"
)

// ProfileStore manages the profiles of a Store.
type ProfileStore struct {
	s *Store
}

// Create adds a new profile. It fails with ErrInvalidProfile if the profile
// does not validate and with ErrDuplicateProfile if the name is taken. On
// failure the store is not modified.
func (ps *ProfileStore) Create(p Profile) (Profile, error) {
	p = p.clone()
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}

	err := ps.s.mutate(func(doc *document) error {
		if doc.profileIndex(p.Name) >= 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateProfile, p.Name)
		}
		doc.Profiles = append(doc.Profiles, p)

		return nil
	})
	if err != nil {
		return Profile{}, err
	}

	debug.Log("created profile %s <%s>", p.Name, p.Email)

	return p.clone(), nil
}

// Get returns the profile with the given name.
func (ps *ProfileStore) Get(name string) (Profile, error) {
	doc, err := ps.s.snapshot()
	if err != nil {
		return Profile{}, err
	}

	i := doc.profileIndex(name)
	if i < 0 {
		return Profile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}

	return doc.Profiles[i], nil
}

// List returns all profiles in creation order.
func (ps *ProfileStore) List() ([]Profile, error) {
	doc, err := ps.s.snapshot()
	if err != nil {
		return nil, err
	}

	return doc.Profiles, nil
}

// Update applies a partial update to an existing profile. The merged
// profile is validated before anything is written. The position of the
// profile in the creation order does not change.
func (ps *ProfileStore) Update(name string, patch ProfilePatch) (Profile, error) {
	var updated Profile

	err := ps.s.mutate(func(doc *document) error {
		i := doc.profileIndex(name)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
		}

		merged := patch.apply(doc.Profiles[i])
		if err := merged.Validate(); err != nil {
			return err
		}
		doc.Profiles[i] = merged
		updated = merged

		return nil
	})
	if err != nil {
		return Profile{}, err
	}

	debug.Log("updated profile %s", name)

	return updated.clone(), nil
}

// Delete removes a profile. Bindings to it are kept and show up as
// dangling bindings during resolution.
func (ps *ProfileStore) Delete(name string) error {
	err := ps.s.mutate(func(doc *document) error {
		i := doc.profileIndex(name)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
		}
		doc.Profiles = slices.Delete(doc.Profiles, i, i+1)

		return nil
	})
	if err != nil {
		return err
	}

	debug.Log("deleted profile %s", name)

	return nil
}
