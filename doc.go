// Package boogiewoogie is the engine of a git profile manager for switching
// between multiple git identities.
//
// A profile is a named identity: author name, email, an optional SSH key that
// is forced for SSH remotes, an optional signing key and optional host
// patterns. Profiles and the bindings that select them live in a single
// YAML file in the per-user state directory (`~/.boogiewoogie/config`, or
// `$BOOGIEWOOGIE_HOME/config`).
//
// # Components
//
//   - ProfileStore - create, get, list, update and delete profiles
//   - BindingTable - bind "global" or a repository to a profile, and match
//     remotes against the host patterns of all profiles
//   - Route - the SSH key routing of a profile (`ssh -i <key> -o IdentitiesOnly=yes`)
//   - Applier - write an identity into the global or a repository config
//   - Resolver - decide which profile applies to a working directory
//
// # Usage
//
//	st, err := boogiewoogie.Open()
//	if err != nil { ... }
//	_, err = st.Profiles().Create(boogiewoogie.Profile{Name: "work", Email: "me@corp.example"})
//	_ = st.Bindings().Bind(boogiewoogie.GlobalScope(), "work")
//
//	ri, err := boogiewoogie.NewResolver(st).Resolve(".", "")
//	if err != nil { ... }
//	change, err := boogiewoogie.NewApplier().Apply(ri, ri.Scope)
//
// # Resolution
//
// The first rule that applies wins:
//
//  1. an explicit profile name given by the caller
//  2. the binding of the repository containing the working directory
//  3. the most specific host pattern matching a remote of that repository
//     (ties go to the most recently created profile)
//  4. the global binding
//
// A binding that names a deleted profile is reported as ErrDanglingBinding.
// It never silently falls through to the next rule.
//
// # Concurrency
//
// Every mutation holds an exclusive file lock on the store for its
// read-modify-write cycle and replaces the file with an atomic rename.
// Waiting for the lock is bounded by Store.LockTimeout, after which
// ErrStoreLocked is returned. Readers never lock.
//
// # Error Handling
//
// All failures wrap one of the exported Err* sentinels. Use errors.Is, or
// KindOf and ExitCode in command line front ends:
//
//	if _, err := ps.Get("work"); errors.Is(err, boogiewoogie.ErrProfileNotFound) {
//		// ...
//	}
package boogiewoogie
