package boogiewoogie

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidProfile indicates a profile failed validation.
	ErrInvalidProfile = errors.New("invalid profile")
	// ErrDuplicateProfile indicates a profile with the same name already exists.
	ErrDuplicateProfile = errors.New("profile already exists")
	// ErrProfileNotFound indicates no profile with the requested name exists.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrDanglingBinding indicates a binding refers to a profile that was deleted.
	ErrDanglingBinding = errors.New("binding refers to a missing profile")
	// ErrNoIdentityResolved indicates no override, binding or pattern applies.
	ErrNoIdentityResolved = errors.New("no identity resolved")
	// ErrMissingKeyFile indicates a profile's SSH key file does not exist.
	ErrMissingKeyFile = errors.New("ssh key file missing")
	// ErrInsecureKeyPermissions indicates a key file is accessible by group or others.
	ErrInsecureKeyPermissions = errors.New("ssh key file has insecure permissions")
	// ErrNotAGitRepository indicates the target path is not inside a git repository.
	ErrNotAGitRepository = errors.New("not a git repository")
	// ErrStoreLocked indicates the store lock could not be acquired in time.
	ErrStoreLocked = errors.New("store is locked")
	// ErrStoreCorrupt indicates the store file could not be parsed.
	ErrStoreCorrupt = errors.New("store is corrupt")
	// ErrBindingNotFound indicates no binding exists for a scope.
	ErrBindingNotFound = errors.New("binding not found")
	// ErrInvalidScope indicates a scope is neither "global" nor a usable path.
	ErrInvalidScope = errors.New("invalid scope")
	// ErrInvalidPattern indicates a host pattern does not compile.
	ErrInvalidPattern = errors.New("invalid host pattern")
)

// CorruptError is returned when the store file can not be parsed. The file
// is left untouched and its content is kept in Raw.
type CorruptError struct {
	Path string
	Raw  []byte
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrStoreCorrupt, e.Path, e.Err)
}

// Unwrap allows errors.Is(err, ErrStoreCorrupt) and access to the parse error.
func (e *CorruptError) Unwrap() []error {
	return []error{ErrStoreCorrupt, e.Err}
}

// Kind classifies an error returned by this package.
type Kind int

// Error kinds. KindUnknown covers I/O and other unexpected failures.
const (
	KindUnknown Kind = iota
	KindInvalidProfile
	KindDuplicateProfile
	KindProfileNotFound
	KindDanglingBinding
	KindNoIdentityResolved
	KindMissingKeyFile
	KindInsecureKeyPermissions
	KindNotAGitRepository
	KindStoreLocked
	KindStoreCorrupt
	KindBindingNotFound
	KindInvalidScope
	KindInvalidPattern
)

var kinds = []struct {
	kind Kind
	err  error
	name string
}{
	{KindInvalidProfile, ErrInvalidProfile, "InvalidProfile"},
	{KindDuplicateProfile, ErrDuplicateProfile, "DuplicateProfile"},
	{KindProfileNotFound, ErrProfileNotFound, "ProfileNotFound"},
	{KindDanglingBinding, ErrDanglingBinding, "DanglingBinding"},
	{KindNoIdentityResolved, ErrNoIdentityResolved, "NoIdentityResolved"},
	{KindMissingKeyFile, ErrMissingKeyFile, "MissingKeyFile"},
	{KindInsecureKeyPermissions, ErrInsecureKeyPermissions, "InsecureKeyPermissions"},
	{KindNotAGitRepository, ErrNotAGitRepository, "NotAGitRepository"},
	{KindStoreLocked, ErrStoreLocked, "StoreLocked"},
	{KindStoreCorrupt, ErrStoreCorrupt, "StoreCorrupt"},
	{KindBindingNotFound, ErrBindingNotFound, "BindingNotFound"},
	{KindInvalidScope, ErrInvalidScope, "InvalidScope"},
	{KindInvalidPattern, ErrInvalidPattern, "InvalidPattern"},
}

func (k Kind) String() string {
	for _, e := range kinds {
		if e.kind == k {
			return e.name
		}
	}

	return "Unknown"
}

// KindOf returns the kind of err. Every error of this package wraps exactly
// one sentinel, so the result is never ambiguous.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, e := range kinds {
		if errors.Is(err, e.err) {
			return e.kind
		}
	}

	return KindUnknown
}

// ExitCode maps err to a process exit code: 0 for nil, a distinct
// code per kind and 1 for anything unclassified.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	k := KindOf(err)
	if k == KindUnknown {
		return 1
	}

	return 10 + int(k)
}
