package boogiewoogie

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"unicode"

	"github.com/asaskevich/govalidator"
	"github.com/gopasspw/gopass/pkg/appdir"
)

// Profile is a named git identity.
type Profile struct {
	// Name identifies the profile. It is unique within a store.
	Name string `yaml:"name"`
	// UserName is written to user.name. Empty means Name.
	UserName string `yaml:"user_name,omitempty"`
	// Email is written to user.email.
	Email string `yaml:"email"`
	// SSHKeyPath is the private key forced for SSH remotes. Empty means
	// the system default (ssh config and agent).
	SSHKeyPath string `yaml:"ssh_key,omitempty"`
	// KnownHostsFile optionally replaces the user's known_hosts for this profile.
	KnownHostsFile string `yaml:"known_hosts,omitempty"`
	// SigningKey is a GPG key id or an SSH signing key for commit signing.
	SigningKey string `yaml:"signing_key,omitempty"`
	// HostPatterns are glob patterns over "host:path" remotes that bind
	// repositories to this profile automatically.
	HostPatterns []string `yaml:"host_patterns,omitempty"`
}

// GitUserName returns the value for user.name.
func (p Profile) GitUserName() string {
	if p.UserName != "" {
		return p.UserName
	}

	return p.Name
}

// Validate checks the syntax of all fields. It does not touch the file system.
func (p Profile) Validate() error {
	if err := validateName(p.Name); err != nil {
		return err
	}
	if p.Email == "" {
		return fmt.Errorf("%w: %s: email is required", ErrInvalidProfile, p.Name)
	}
	if !govalidator.IsEmail(p.Email) {
		return fmt.Errorf("%w: %s: %q is not a valid email address", ErrInvalidProfile, p.Name, p.Email)
	}
	if strings.ContainsAny(p.UserName, "\n\r") {
		return fmt.Errorf("%w: %s: user name must be a single line", ErrInvalidProfile, p.Name)
	}
	for _, f := range []struct{ name, value string }{
		{"ssh key", p.SSHKeyPath},
		{"known hosts", p.KnownHostsFile},
		{"signing key", p.SigningKey},
	} {
		if f.value != strings.TrimSpace(f.value) || strings.ContainsAny(f.value, "\n\r") {
			return fmt.Errorf("%w: %s: %s has surrounding whitespace or line breaks", ErrInvalidProfile, p.Name, f.name)
		}
	}

	seen := make(map[string]struct{}, len(p.HostPatterns))
	for _, hp := range p.HostPatterns {
		if _, err := compilePattern(hp); err != nil {
			return fmt.Errorf("%w: %s: %s", ErrInvalidProfile, p.Name, err.Error())
		}
		if _, dup := seen[hp]; dup {
			return fmt.Errorf("%w: %s: duplicate host pattern %q", ErrInvalidProfile, p.Name, hp)
		}
		seen[hp] = struct{}{}
	}

	return nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidProfile)
	}
	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: name %q must not contain whitespace", ErrInvalidProfile, name)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: name %q must not contain path separators", ErrInvalidProfile, name)
	}

	return nil
}

func (p Profile) clone() Profile {
	p.HostPatterns = slices.Clone(p.HostPatterns)

	return p
}

// ProfilePatch is a partial update. Nil fields are left alone, pointers to
// the empty string clear optional fields.
type ProfilePatch struct {
	UserName       *string
	Email          *string
	SSHKeyPath     *string
	KnownHostsFile *string
	SigningKey     *string
	HostPatterns   *[]string
}

func (pp ProfilePatch) apply(p Profile) Profile {
	p = p.clone()

	for dst, src := range map[*string]*string{
		&p.UserName:       pp.UserName,
		&p.Email:          pp.Email,
		&p.SSHKeyPath:     pp.SSHKeyPath,
		&p.KnownHostsFile: pp.KnownHostsFile,
		&p.SigningKey:     pp.SigningKey,
	} {
		if src != nil {
			*dst = *src
		}
	}
	if pp.HostPatterns != nil {
		p.HostPatterns = slices.Clone(*pp.HostPatterns)
	}

	return p
}

// expandHome resolves a leading "~/" against the user's home directory.
func expandHome(p string) string {
	if p == "~" {
		return appdir.UserHome()
	}
	if rest, found := strings.CutPrefix(p, "~/"); found {
		return filepath.Join(appdir.UserHome(), rest)
	}

	return p
}
