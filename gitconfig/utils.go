package gitconfig

import (
	"strings"
)

// splitKey splits a fully qualified gitconfig key into two or three parts.
// A valid key consists of either a section and a key separated by a dot
// or section, subsection and key, all separated by a dot. Note that
// the subsection might contain dots itself.
//
// Valid examples:
// - user.email
// - remote.origin.url
// - includeif.gitdir:~/src/github.com/.path
func splitKey(key string) (section, subsection, skey string) { //nolint:nonamedreturns
	n := strings.Index(key, ".")
	if n > 0 {
		section = key[:n]
	}

	if m := strings.LastIndex(key, "."); n != m && m > 0 && len(key) > m+1 {
		subsection = key[n+1 : m]
		skey = key[m+1:]

		return
	}

	skey = key[n+1:]

	return
}

func canonicalizeKey(key string) string {
	section, subsection, skey := splitKey(key)
	// "Section names are case-insensitive."
	section = strings.ToLower(section)
	// "Subsection names are case sensitive."
	// "The variable names are case-insensitive."
	skey = strings.ToLower(skey)

	if section == "" || skey == "" {
		return ""
	}

	if subsection == "" {
		return section + "." + skey
	}

	return section + "." + subsection + "." + skey
}

// parseLineForComment separates a quoted value from a trailing comment.
// It finds the first unquoted comment character (# or ;) and returns the
// value without its surrounding quotes and the comment without its
// delimiter, both trimmed.
func parseLineForComment(line string) (string, string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, `"`) {
		if value, comment, found := strings.Cut(line, "#"); found {
			return strings.TrimSpace(value), strings.TrimSpace(comment)
		}
		if value, comment, found := strings.Cut(line, ";"); found {
			return strings.TrimSpace(value), strings.TrimSpace(comment)
		}

		return line, ""
	}

	commentStart := -1
	inQuotes := false
	escaped := false

loop:
	for i, r := range line {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			inQuotes = !inQuotes
		case (r == '#' || r == ';') && !inQuotes:
			commentStart = i

			break loop
		}
	}

	content := line
	comment := ""
	if commentStart >= 0 {
		content = line[:commentStart]
		comment = strings.TrimSpace(line[commentStart+1:])
	}

	content = strings.TrimPrefix(strings.TrimSpace(content), `"`)
	if closingQuote(content) {
		content = content[:len(content)-1]
	}

	return content, comment
}

// closingQuote reports whether s ends in a double quote that is not
// escaped by a backslash.
func closingQuote(s string) bool {
	if !strings.HasSuffix(s, `"`) {
		return false
	}

	n := 0
	for i := len(s) - 2; i >= 0 && s[i] == '\\'; i-- {
		n++
	}

	return n%2 == 0
}
