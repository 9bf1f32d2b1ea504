package boogiewoogie

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/boogiewoogie/boogiewoogie/internal/fileutil"
	"github.com/goccy/go-yaml"
	"github.com/gofrs/flock"
	"github.com/gopasspw/gopass/pkg/appdir"
	"github.com/gopasspw/gopass/pkg/debug"
	"github.com/sethvargo/go-retry"
)

const (
	storeFile    = "config"
	lockSuffix   = ".lock"
	storeVersion = 1
	envHome      = "BOOGIEWOOGIE_HOME"
	dirName      = ".boogiewoogie"

	// DefaultLockTimeout bounds how long a mutation waits for another
	// invocation to release the store.
	DefaultLockTimeout = 5 * time.Second
	lockRetryDelay     = 25 * time.Millisecond
)

var errLockBusy = errors.New("lock held by another process")

// document is the on-disk layout of the store file. Profiles are kept in
// creation order, bindings sorted by scope.
type document struct {
	Version  int       `yaml:"version"`
	Profiles []Profile `yaml:"profiles"`
	Bindings []Binding `yaml:"bindings"`
}

// Binding associates a scope ("global" or a repository path) with a profile name.
type Binding struct {
	Scope   string `yaml:"scope"`
	Profile string `yaml:"profile"`
}

func (d *document) profileIndex(name string) int {
	for i, p := range d.Profiles {
		if p.Name == name {
			return i
		}
	}

	return -1
}

func (d *document) bindingIndex(scope string) int {
	for i, b := range d.Bindings {
		if b.Scope == scope {
			return i
		}
	}

	return -1
}

func (d *document) clone() *document {
	c := &document{
		Version:  d.Version,
		Profiles: make([]Profile, len(d.Profiles)),
		Bindings: append([]Binding(nil), d.Bindings...),
	}
	for i, p := range d.Profiles {
		c.Profiles[i] = p.clone()
	}

	return c
}

// Store is the per-user state file holding profiles and bindings. Both
// maps share one file and one lock, ProfileStore and BindingTable are
// views on it.
//
// The file is read lazily on first access and cached for the lifetime of
// the Store. Every mutation takes an exclusive lock on "<file>.lock",
// re-reads the file, applies the change and replaces the file atomically
// before the lock is released. Reads never lock.
type Store struct {
	// Dir is the state directory holding the store file.
	Dir string
	// LockTimeout bounds the wait for the store lock. Zero means DefaultLockTimeout.
	LockTimeout time.Duration

	mu  sync.Mutex
	doc *document
}

// NewStore returns a store rooted at dir. Nothing is read or created yet.
func NewStore(dir string) *Store {
	return &Store{
		Dir:         dir,
		LockTimeout: DefaultLockTimeout,
	}
}

// Open returns the store in the default state directory, creating the
// directory if needed.
func Open() (*Store, error) {
	s := NewStore(DefaultDir())
	if err := s.Init(); err != nil {
		return nil, err
	}

	return s, nil
}

// DefaultDir returns $BOOGIEWOOGIE_HOME or ~/.boogiewoogie.
func DefaultDir() string {
	if d := os.Getenv(envHome); d != "" {
		return d
	}

	return filepath.Join(appdir.UserHome(), dirName)
}

// Init creates the state directory. It is safe to call repeatedly.
func (s *Store) Init() error {
	if err := fileutil.EnsureDir(s.Dir, 0o700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	return nil
}

// Path returns the location of the store file.
func (s *Store) Path() string {
	return filepath.Join(s.Dir, storeFile)
}

// Profiles returns the profile view of the store.
func (s *Store) Profiles() *ProfileStore {
	return &ProfileStore{s: s}
}

// Bindings returns the binding view of the store.
func (s *Store) Bindings() *BindingTable {
	return &BindingTable{s: s}
}

// snapshot returns a private copy of the current state, loading it on first use.
func (s *Store) snapshot() (*document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		doc, err := s.read()
		if err != nil {
			return nil, err
		}
		s.doc = doc
	}

	return s.doc.clone(), nil
}

// mutate runs fn on the current on-disk state under the store lock and
// persists the result. If fn fails nothing is written.
func (s *Store) mutate(fn func(*document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Init(); err != nil {
		return err
	}

	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}

	if err := fn(doc); err != nil {
		// keep what we just read, it is the freshest state
		s.doc = doc

		return err
	}

	if err := s.write(doc); err != nil {
		return err
	}
	s.doc = doc

	return nil
}

func (s *Store) read() (*document, error) {
	buf, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			debug.V(1).Log("store %s does not exist yet", s.Path())

			return &document{Version: storeVersion}, nil
		}

		return nil, fmt.Errorf("failed to read store %s: %w", s.Path(), err)
	}

	doc := &document{}
	if len(bytes.TrimSpace(buf)) == 0 {
		doc.Version = storeVersion

		return doc, nil
	}

	if err := yaml.Unmarshal(buf, doc); err != nil {
		return nil, &CorruptError{Path: s.Path(), Raw: buf, Err: err}
	}
	if err := doc.check(); err != nil {
		return nil, &CorruptError{Path: s.Path(), Raw: buf, Err: err}
	}
	if doc.Version == 0 {
		doc.Version = storeVersion
	}

	debug.V(2).Log("loaded %d profiles and %d bindings from %s", len(doc.Profiles), len(doc.Bindings), s.Path())

	return doc, nil
}

// check rejects states that can not be interpreted unambiguously. Invalid
// field values are tolerated so a hand-edited file stays usable, they are
// reported when the profile is next updated.
func (d *document) check() error {
	if d.Version > storeVersion {
		return fmt.Errorf("unsupported store version %d", d.Version)
	}

	names := make(map[string]struct{}, len(d.Profiles))
	for i, p := range d.Profiles {
		if p.Name == "" {
			return fmt.Errorf("profile #%d has no name", i+1)
		}
		if _, dup := names[p.Name]; dup {
			return fmt.Errorf("profile %q is defined more than once", p.Name)
		}
		names[p.Name] = struct{}{}
	}

	scopes := make(map[string]struct{}, len(d.Bindings))
	for i, b := range d.Bindings {
		if b.Scope == "" || b.Profile == "" {
			return fmt.Errorf("binding #%d needs a scope and a profile", i+1)
		}
		if _, dup := scopes[b.Scope]; dup {
			return fmt.Errorf("scope %q is bound more than once", b.Scope)
		}
		scopes[b.Scope] = struct{}{}
	}

	return nil
}

func (s *Store) write(doc *document) error {
	sortBindings(doc.Bindings)

	buf, err := yaml.MarshalWithOptions(doc, yaml.IndentSequence(true))
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	if err := fileutil.WriteAtomic(s.Path(), buf, 0o600); err != nil {
		return fmt.Errorf("failed to write store: %w", err)
	}

	debug.V(1).Log("wrote store %s", s.Path())

	return nil
}

// lock takes the exclusive store lock, retrying until LockTimeout expires.
func (s *Store) lock() (func(), error) {
	timeout := s.LockTimeout
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}

	fl := flock.New(s.Path() + lockSuffix)

	b := retry.WithMaxDuration(timeout, retry.NewConstant(lockRetryDelay))
	err := retry.Do(context.Background(), b, func(_ context.Context) error {
		ok, err := fl.TryLock()
		if err != nil {
			return fmt.Errorf("failed to lock %s: %w", fl.Path(), err)
		}
		if !ok {
			return retry.RetryableError(errLockBusy)
		}

		return nil
	})
	if err != nil {
		if cerr := fl.Close(); cerr != nil {
			debug.Log("failed to close lock file %s: %s", fl.Path(), cerr)
		}
		if errors.Is(err, errLockBusy) {
			return nil, fmt.Errorf("%w: %s is held by another invocation (waited %s)", ErrStoreLocked, fl.Path(), timeout)
		}

		return nil, err
	}

	debug.V(2).Log("acquired store lock %s", fl.Path())

	return func() {
		if err := fl.Unlock(); err != nil {
			debug.Log("failed to release store lock %s: %s", fl.Path(), err)

			return
		}
		debug.V(2).Log("released store lock %s", fl.Path())
	}, nil
}
