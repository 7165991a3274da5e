package capture

import (
	"path/filepath"
	"regexp"
	"strings"
)

// PathFilter rejects paths that are noise for file-change capture, such as
// database journals and editor swap files. The zero value accepts everything.
type PathFilter struct {
	patterns []*regexp.Regexp
}

var namedPathPatterns = map[string]string{
	"sqlite":  `(?i)\.(db|sqlite3?)-(journal|wal|shm)$`,
	"tmp":     `(?i)\.(tmp|temp|part|crdownload)$`,
	"swap":    `(?i)\.sw[a-p]$`,
	"backup":  `~$`,
	"lock":    `(^|/)\.~lock\..*#$|(^|/)~\$`,
	"dsstore": `(^|/)\.DS_Store$`,
}

// DefaultIgnore is the pattern set applied when none is configured.
var DefaultIgnore = []string{"sqlite", "tmp", "swap", "backup", "lock", "dsstore"}

// NewPathFilter compiles the given expressions. Each entry is either a
// named pattern from DefaultIgnore or a regular expression matched against
// the slash-separated path.
func NewPathFilter(exprs []string) (PathFilter, error) {
	patterns := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		trimmed := strings.TrimSpace(expr)
		if trimmed == "" {
			continue
		}
		candidate := trimmed
		if mapped, ok := namedPathPatterns[strings.ToLower(trimmed)]; ok {
			candidate = mapped
		}
		rx, err := regexp.Compile(candidate)
		if err != nil {
			return PathFilter{}, err
		}
		patterns = append(patterns, rx)
	}
	return PathFilter{patterns: patterns}, nil
}

// Ignored reports whether path matches any pattern.
func (f PathFilter) Ignored(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, rx := range f.patterns {
		if rx.MatchString(slashed) {
			return true
		}
	}
	return false
}
