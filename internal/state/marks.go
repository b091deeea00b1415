package state

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Marks of the unified form scoped:<project>:<window_id> are the only marks
// the daemon authors. Scratchpad terminals use the same form with the
// project name or the "global" sentinel. Project names permit slashes and
// colons for worktree-qualified names (account/repo:branch), so the mark is
// parsed from both ends: the prefix and the trailing numeric id.

const markPrefix = "scoped:"

var projectNameRe = regexp.MustCompile(`^[A-Za-z0-9_\-/:]+$`)

// ValidProjectName reports whether name is acceptable inside a mark.
func ValidProjectName(name string) bool {
	return name != "" && projectNameRe.MatchString(name)
}

// ScopedMark builds the unified mark for a window.
func ScopedMark(project string, windowID int64) string {
	return fmt.Sprintf("%s%s:%d", markPrefix, project, windowID)
}

// ParseScopedMark splits a unified mark into project and window id.
// Returns ok=false for marks not authored by the daemon.
func ParseScopedMark(mark string) (project string, windowID int64, ok bool) {
	rest, found := strings.CutPrefix(mark, markPrefix)
	if !found {
		return "", 0, false
	}
	idx := strings.LastIndex(rest, ":")
	if idx <= 0 || idx == len(rest)-1 {
		return "", 0, false
	}
	project = rest[:idx]
	id, err := strconv.ParseInt(rest[idx+1:], 10, 64)
	if err != nil || !ValidProjectName(project) {
		return "", 0, false
	}
	return project, id, true
}

// FindScopedMark returns the first unified mark in marks, if any.
func FindScopedMark(marks []string) (project string, windowID int64, ok bool) {
	for _, m := range marks {
		if p, id, found := ParseScopedMark(m); found {
			return p, id, true
		}
	}
	return "", 0, false
}
