// Package build flattens a target's sources into a single directory the compiler can resolve.
package build

import (
	"strings"
)

// externalMarker identifies package-qualified imports (e.g. @openzeppelin/...).
// Those are left for the compiler's own remapping and never rewritten.
const externalMarker = "@"

// RewriteImportLine rewrites a local import path on a single source line to
// "./<basename>" so every source can be resolved from one flat directory.
//
// A line is an import statement when its first non-blank token is the keyword
// "import" followed by whitespace, a quote, '{' or '*'. The first quoted literal
// on the line is the import path. Only that literal changes; the quote style,
// symbol list, alias, trailing text and line terminator are preserved.
// Lines that are not single-line imports are returned unchanged.
func RewriteImportLine(line string) string {
	body, terminator := splitTerminator(line)

	trimmed := strings.TrimLeft(body, " \t")
	if !isImportStatement(trimmed) {
		return line
	}

	offset := len(body) - len(trimmed)
	start, end, ok := firstQuoted(trimmed)
	if !ok {
		return line
	}

	path := trimmed[start+1 : end]
	if path == "" || strings.Contains(path, externalMarker) {
		return line
	}

	rewritten := "./" + basename(path)
	if rewritten == path {
		return line
	}

	start += offset
	end += offset
	return body[:start+1] + rewritten + body[end:] + terminator
}

// IsLocalImport reports whether an import path would be rewritten
func IsLocalImport(path string) bool {
	return path != "" && !strings.Contains(path, externalMarker)
}

func isImportStatement(s string) bool {
	const keyword = "import"
	if !strings.HasPrefix(s, keyword) || len(s) == len(keyword) {
		return false
	}
	switch s[len(keyword)] {
	case ' ', '\t', '"', '\'', '{', '*':
		return true
	}
	return false
}

// firstQuoted returns the indexes of the opening and closing quote of the
// first complete string literal in s.
func firstQuoted(s string) (start, end int, ok bool) {
	start = strings.IndexAny(s, `"'`)
	if start < 0 {
		return 0, 0, false
	}
	closing := strings.IndexByte(s[start+1:], s[start])
	if closing < 0 {
		return 0, 0, false
	}
	return start, start + 1 + closing, true
}

func splitTerminator(line string) (body, terminator string) {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return line[:len(line)-2], "\r\n"
	case strings.HasSuffix(line, "\n"):
		return line[:len(line)-1], "\n"
	}
	return line, ""
}

// basename handles both separators since import paths come from arbitrary projects
func basename(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
