package gitconfig

import "errors"

var (
	// ErrInvalidKey indicates a config key missing section or key name.
	ErrInvalidKey = errors.New("invalid key")
	// ErrNotARepository indicates no git repository was found at or above a directory.
	ErrNotARepository = errors.New("not a git repository")
	// ErrWriteConfig indicates a config file could not be written.
	ErrWriteConfig = errors.New("failed to write config")
)
