package boogiewoogie

import (
	"cmp"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/gobwas/glob"
	"github.com/gopasspw/gopass/pkg/debug"
)

// PatternMatch is the result of matching a remote against host patterns.
type PatternMatch struct {
	Profile Profile
	Pattern string
	// Remote is the normalized "host:path" form that was matched.
	Remote string
}

// compilePattern compiles a host pattern. '/' separates path segments, so
// "*" stays within one segment and "**" crosses them.
func compilePattern(pattern string) (glob.Glob, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}
	if pattern != strings.TrimSpace(pattern) {
		return nil, fmt.Errorf("%w: %q has surrounding whitespace", ErrInvalidPattern, pattern)
	}

	g, err := glob.Compile(strings.ToLower(pattern), '/')
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidPattern, pattern, err)
	}

	return g, nil
}

// specificity scores a pattern by its literal characters and its wildcard
// tokens. More literals is more specific, fewer wildcards breaks ties.
func specificity(pattern string) (literals, wildcards int) { //nolint:nonamedreturns
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '\\':
			literals++
			i++
		case '*':
			wildcards++
			for i+1 < len(pattern) && pattern[i+1] == '*' {
				i++
			}
		case '?':
			wildcards++
		case '[':
			wildcards++
			if j := strings.IndexByte(pattern[i:], ']'); j > 0 {
				i += j
			}
		case '{':
			wildcards++
			if j := strings.IndexByte(pattern[i:], '}'); j > 0 {
				i += j
			}
		default:
			literals++
		}
	}

	return literals, wildcards
}

type patternCandidate struct {
	profile   Profile
	pattern   string
	created   int
	position  int
	literals  int
	wildcards int
}

// matchPatterns evaluates every pattern of every profile against remote.
// profiles must be in creation order. The winner is the most specific
// pattern, then the most recently created profile, then the earlier
// pattern of that profile.
func matchPatterns(profiles []Profile, remote string) (PatternMatch, bool) {
	target, ok := NormalizeRemote(remote)
	if !ok {
		debug.V(1).Log("remote %q has no host, skipping pattern match", remote)

		return PatternMatch{}, false
	}

	var candidates []patternCandidate
	for created, p := range profiles {
		for pos, hp := range p.HostPatterns {
			g, err := compilePattern(hp)
			if err != nil {
				debug.Log("ignoring invalid pattern %q of profile %s: %s", hp, p.Name, err)

				continue
			}
			if !g.Match(target) {
				continue
			}
			lit, wild := specificity(hp)
			candidates = append(candidates, patternCandidate{
				profile:   p,
				pattern:   hp,
				created:   created,
				position:  pos,
				literals:  lit,
				wildcards: wild,
			})
		}
	}

	if len(candidates) == 0 {
		return PatternMatch{}, false
	}

	slices.SortStableFunc(candidates, func(a, b patternCandidate) int {
		return cmp.Or(
			cmp.Compare(b.literals, a.literals),
			cmp.Compare(a.wildcards, b.wildcards),
			cmp.Compare(b.created, a.created),
			cmp.Compare(a.position, b.position),
		)
	})

	best := candidates[0]
	debug.V(1).Log("remote %s matched pattern %q of profile %s (%d candidates)", target, best.pattern, best.profile.Name, len(candidates))

	return PatternMatch{
		Profile: best.profile.clone(),
		Pattern: best.pattern,
		Remote:  target,
	}, true
}

// NormalizeRemote turns a remote URL into the "host:path" form host
// patterns are matched against, e.g. "git@github.com:org/repo.git",
// "ssh://git@github.com:22/org/repo" and "https://github.com/org/repo.git"
// all become "github.com:org/repo". Local paths and file URLs have no
// host and report false.
func NormalizeRemote(remote string) (string, bool) {
	remote = strings.TrimSpace(remote)
	if remote == "" {
		return "", false
	}

	var host, path string
	if strings.Contains(remote, "://") {
		u, err := url.Parse(remote)
		if err != nil || u.Hostname() == "" {
			return "", false
		}
		host = u.Hostname()
		path = u.Path
	} else {
		// scp-like syntax: [user@]host:path, only if no slash comes before the colon
		colon := strings.Index(remote, ":")
		if colon <= 0 || strings.Contains(remote[:colon], "/") {
			return "", false
		}
		// windows drive letter
		if colon == 1 && len(remote) > 2 && (remote[2] == '\\' || remote[2] == '/') {
			return "", false
		}
		host = remote[:colon]
		if at := strings.LastIndex(host, "@"); at >= 0 {
			host = host[at+1:]
		}
		path = remote[colon+1:]
	}

	host = strings.ToLower(strings.Trim(host, "[]"))
	if host == "" {
		return "", false
	}

	path = strings.Trim(path, "/")
	path = strings.TrimSuffix(path, ".git")
	path = strings.TrimSuffix(path, "/")

	return strings.ToLower(host + ":" + path), true
}
