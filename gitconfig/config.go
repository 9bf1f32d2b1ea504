package gitconfig

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/boogiewoogie/boogiewoogie/internal/fileutil"
	"github.com/gopasspw/gopass/pkg/debug"
	"github.com/gopasspw/gopass/pkg/set"
)

var (
	keyValueTpl     = "\t%s = %s%s"
	keyTpl          = "\t%s%s"
	reQuotedComment = regexp.MustCompile(`"[^"]*[#;][^"]*"`)
	// "The variable names are case-insensitive, allow only alphanumeric characters and -, and must start with an alphabetic character.".
	reValidKey = regexp.MustCompile(`^[a-z]+[a-z0-9-]*$`)

	valueEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`, "\b", `\b`)
)

// Config is a single git configuration file.
//
// Set and Unset only change the in-memory copy. The raw text of the file is
// kept so that comments, ordering and keys this package never touches survive
// a rewrite. Nothing reaches the disk until Write is called, and Write replaces
// the file in one atomic rename, so a batch of changes lands either completely
// or not at all.
//
// Config is not safe for concurrent use.
type Config struct {
	path  string
	dirty bool
	raw   strings.Builder
	vars  map[string][]string

	// NoWrites turns Write into a no-op. Changes are still tracked in memory.
	NoWrites bool
}

// Path returns the file this config was loaded from (or will be written to).
func (c *Config) Path() string {
	return c.path
}

// Dirty reports whether the in-memory copy differs from what was loaded.
func (c *Config) Dirty() bool {
	return c.dirty
}

// Get returns the value of the key git would use, i.e. the last one.
//
// Section and key names are case-insensitive, subsection names are not.
func (c *Config) Get(key string) (string, bool) {
	vs, found := c.vars[canonicalizeKey(key)]
	if !found || len(vs) < 1 {
		return "", false
	}

	return vs[len(vs)-1], true
}

// GetAll returns all values of the key.
func (c *Config) GetAll(key string) ([]string, bool) {
	vs, found := c.vars[canonicalizeKey(key)]
	if !found {
		return nil, false
	}

	return vs, true
}

// IsSet returns true if the key is present, even with an empty value.
func (c *Config) IsSet(key string) bool {
	_, present := c.vars[canonicalizeKey(key)]

	return present
}

// Keys returns all keys of this config, sorted.
func (c *Config) Keys() []string {
	keys := make([]string, 0, len(c.vars))
	for k := range c.vars {
		keys = append(keys, k)
	}

	return set.Sorted(keys)
}

// Subsections returns the sorted subsection names of a section,
// e.g. the remote names for "remote".
func (c *Config) Subsections(wantSection string) []string {
	wantSection = strings.ToLower(wantSection)

	return slices.Compact(set.SortedFiltered(set.Apply(c.Keys(), func(k string) string {
		section, subsection, _ := splitKey(k)
		if section != wantSection {
			return ""
		}

		return subsection
	}), func(s string) bool {
		return s != ""
	}))
}

// Set updates or adds a key. A key with several values ends up with exactly
// one: the last occurrence is rewritten and the earlier ones are dropped.
// Setting a key to the single value it already has is a no-op and reports
// changed = false.
func (c *Config) Set(key, value string) (bool, error) {
	section, _, subkey := splitKey(key)
	if section == "" || subkey == "" {
		return false, fmt.Errorf("%w: %s", ErrInvalidKey, key)
	}
	if !reValidKey.MatchString(strings.ToLower(subkey)) {
		return false, fmt.Errorf("%w: %s", ErrInvalidKey, key)
	}

	ckey := canonicalizeKey(key)
	if c.vars == nil {
		c.vars = make(map[string][]string, 16)
	}

	vs, present := c.vars[ckey]
	if present && len(vs) == 1 && vs[0] == value {
		debug.V(1).Log("key %q with value %q already present. Not re-writing.", ckey, value)

		return false, nil
	}

	c.vars[ckey] = []string{value}
	c.dirty = true

	debug.V(3).Log("set %q to %q (replacing %d values)", ckey, value, len(vs))

	if !present {
		c.insertValue(key, value)

		return true, nil
	}

	drop := len(vs) - 1
	c.rewriteRaw(ckey, func(_, sKey, _, comment, _ string) (string, bool) {
		if drop > 0 {
			drop--

			return "", true
		}

		return formatKeyValue(sKey, value, comment), false
	})

	return true, nil
}

// Unset removes every value of a key. Removing an absent key is a no-op and
// reports changed = false. Empty sections are left in place.
func (c *Config) Unset(key string) bool {
	ckey := canonicalizeKey(key)
	if _, present := c.vars[ckey]; !present {
		return false
	}

	delete(c.vars, ckey)
	c.dirty = true

	c.rewriteRaw(ckey, func(_, _, _, _, _ string) (string, bool) {
		return "", true
	})

	return true
}

// Bytes returns the serialized config.
func (c *Config) Bytes() []byte {
	return []byte(c.raw.String())
}

// Write persists the config if it has unsaved changes. The file is replaced
// atomically and keeps the permissions of the file it replaces.
func (c *Config) Write() error {
	if !c.dirty {
		return nil
	}
	if c.NoWrites || c.path == "" {
		debug.V(3).Log("not writing changes to disk (NoWrites %t, path %q)", c.NoWrites, c.path)

		return nil
	}

	perm := fs.FileMode(0o644)
	if fi, err := os.Stat(c.path); err == nil {
		perm = fi.Mode().Perm()
	}

	debug.V(3).Log("writing config to %s: \n--------------\n%s\n--------------", c.path, c.raw.String())

	if err := fileutil.WriteAtomic(c.path, c.Bytes(), perm); err != nil {
		return fmt.Errorf("%w to %s: %w", ErrWriteConfig, c.path, err)
	}
	c.dirty = false

	debug.V(1).Log("wrote config to %s", c.path)

	return nil
}

func (c *Config) insertValue(key, value string) {
	wSection, wSubsection, wKey := splitKey(key)
	wSection = strings.ToLower(wSection)

	s := bufio.NewScanner(strings.NewReader(c.raw.String()))

	lines := make([]string, 0, 128)
	// insert after the last key of the first matching section
	insertAt := -1
	var inSection, seen bool
	for s.Scan() {
		line := s.Text()
		lines = append(lines, line)

		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") {
			sec, subs, skip := parseSectionHeader(trimmed)
			if skip {
				continue
			}
			inSection = !seen && sec == wSection && subs == wSubsection
			if inSection {
				seen = true
				insertAt = len(lines)
			}

			continue
		}

		if inSection && trimmed != "" && !strings.HasPrefix(trimmed, "#") && !strings.HasPrefix(trimmed, ";") {
			insertAt = len(lines)
		}
	}

	kv := formatKeyValue(wKey, value, "")
	if insertAt < 0 {
		// no matching section yet, append one
		sect := fmt.Sprintf("[%s]", wSection)
		if wSubsection != "" {
			sect = fmt.Sprintf("[%s \"%s\"]", wSection, wSubsection)
		}
		lines = append(lines, sect, kv)
	} else {
		lines = slices.Insert(lines, insertAt, kv)
	}

	c.setRaw(lines)
}

func (c *Config) rewriteRaw(key string, cb parseFunc) {
	c.setRaw(parseConfig(strings.NewReader(c.raw.String()), key, cb))
}

func (c *Config) setRaw(lines []string) {
	c.raw = strings.Builder{}
	if len(lines) == 0 {
		return
	}
	c.raw.WriteString(strings.Join(lines, "\n"))
	c.raw.WriteString("\n")
}

func formatKeyValue(key, value, comment string) string {
	if strings.TrimSpace(value) == "" {
		return fmt.Sprintf(keyTpl, key, comment)
	}

	return fmt.Sprintf(keyValueTpl, key, escapeValue(value), comment)
}

// escapeValue quotes values that would otherwise be cut short by a comment
// character or lose surrounding whitespace.
func escapeValue(value string) string {
	if !strings.ContainsAny(value, "#;\"\\\n\t\b") && strings.TrimSpace(value) == value {
		return value
	}

	return `"` + valueEscaper.Replace(value) + `"`
}

func parseSectionHeader(line string) (section, subsection string, skip bool) { //nolint:nonamedreturns
	if i := strings.Index(line, "]"); i > 0 {
		line = line[:i+1]
	}
	line = strings.Trim(line, "[]")
	if line == "" {
		return "", "", true
	}
	wsp := strings.Index(line, " ")
	if wsp < 0 {
		// legacy [section.subsection] syntax
		if sec, subs, found := strings.Cut(line, "."); found {
			return strings.ToLower(sec), strings.ToLower(subs), false
		}

		return strings.ToLower(line), "", false
	}

	section = strings.ToLower(line[:wsp])
	subsection = strings.TrimSpace(line[wsp+1:])
	subsection = strings.TrimPrefix(subsection, "\"")
	subsection = strings.TrimSuffix(subsection, "\"")

	return section, unescapeSubsection(subsection), false
}

// unescapeSubsection drops the backslash of every escape sequence, git
// knows no other escapes in subsection names.
func unescapeSubsection(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	escaped := false
	for _, r := range s {
		if r == '\\' && !escaped {
			escaped = true

			continue
		}
		escaped = false
		b.WriteRune(r)
	}

	return b.String()
}

type parseFunc func(fqkn, skn, value, comment, fullLine string) (newLine string, skipLine bool)

// parseConfig walks the config line by line and keeps every line unaltered
// unless the callback replaces or drops it. With an empty key the callback
// sees every key-value pair (loading), otherwise only the lines of that key
// (updating or deleting).
func parseConfig(in io.Reader, key string, cb parseFunc) []string {
	s := bufio.NewScanner(in)

	lines := make([]string, 0, 128)
	var section string
	var subsection string
	for s.Scan() {
		fullLine := s.Text()
		lines = append(lines, fullLine)

		line := strings.TrimSpace(fullLine)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if strings.HasPrefix(line, "[") {
			sec, subs, skip := parseSectionHeader(line)
			if skip {
				continue
			}
			section, subsection = sec, subs

			continue
		}

		if section == "" {
			continue
		}

		// Reference: https://git-scm.com/docs/git-config#_syntax.
		k, v, found := strings.Cut(line, "=")
		if !found {
			// bare boolean
			v = ""
		}
		// "Whitespace characters surrounding name, = and value are discarded."
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)

		// keep the original spelling of the key for serialization
		origKey := k
		// "The variable names are case-insensitive"
		k = strings.ToLower(k)

		if !reValidKey.MatchString(k) {
			debug.V(3).Log("invalid key %q in line: %q", k, line)

			continue
		}

		fKey := section + "."
		if subsection != "" {
			fKey += subsection + "."
		}
		fKey += k

		if key != "" && key != fKey {
			continue
		}

		oValue, comment := splitValueComment(v)
		oValue = unescapeValue(oValue)

		newLine, skip := cb(fKey, origKey, oValue, comment, fullLine)
		if skip {
			lines = lines[:len(lines)-1]

			continue
		}
		if key != "" {
			lines[len(lines)-1] = newLine
		}
	}

	return lines
}

func splitValueComment(rValue string) (string, string) {
	if !strings.ContainsAny(rValue, "#;") {
		// "If value needs to contain leading or trailing whitespace characters, it must be enclosed in double quotation marks (")."
		return trimQuotes(rValue), ""
	}

	// comment present, value not quoted
	if !reQuotedComment.MatchString(rValue) {
		idx := strings.IndexAny(rValue, "#;")
		comment := " " + rValue[idx:]

		return trimQuotes(strings.TrimSpace(rValue[:idx])), comment
	}

	value, comment := parseLineForComment(rValue)
	if comment != "" {
		comment = " # " + comment
	}

	return value, comment
}

func trimQuotes(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && closingQuote(s) {
		return s[1 : len(s)-1]
	}

	return s
}

func unescapeValue(value string) string {
	// Recognized escapes besides \" and \\: \n, \t and \b.
	var b strings.Builder
	b.Grow(len(value))

	escaped := false
	for _, r := range value {
		if !escaped {
			if r == '\\' {
				escaped = true

				continue
			}
			b.WriteRune(r)

			continue
		}
		escaped = false
		switch r {
		case 'n':
			b.WriteRune('\n')
		case 't':
			b.WriteRune('\t')
		case 'b':
			b.WriteRune('\b')
		default:
			b.WriteRune(r)
		}
	}
	if escaped {
		b.WriteRune('\\')
	}

	return b.String()
}

// Load reads a config file. A missing file yields an empty config that will
// create the file on the first Write.
func Load(fn string) (*Config, error) {
	buf, err := os.ReadFile(fn)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			debug.V(2).Log("config %s does not exist yet", fn)

			return &Config{
				path: fn,
				vars: make(map[string][]string, 8),
			}, nil
		}

		return nil, fmt.Errorf("failed to read config %s: %w", fn, err)
	}

	c := Parse(bytes.NewReader(buf))
	c.path = fn

	return c, nil
}

// Parse reads a config from r. It never fails, lines it does not understand
// are kept verbatim but contribute no keys.
func Parse(r io.Reader) *Config {
	c := &Config{
		vars: make(map[string][]string, 42),
	}

	lines := parseConfig(r, "", func(fk, _, v, _, line string) (string, bool) {
		fk = canonicalizeKey(fk)
		c.vars[fk] = append(c.vars[fk], v)

		return line, false
	})
	c.setRaw(lines)

	debug.V(3).Log("processed config: %s\nvars: %+v", c.raw.String(), c.vars)

	return c
}
