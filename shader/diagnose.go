package shader

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	errorLineRe = regexp.MustCompile(`ERROR:\s*\d+:(\d+):`)
	sentinelRe  = regexp.MustCompile(`^\s*#line\s+1\b`)
)

// Diagnostic locates a device compile error in an expanded source.
type Diagnostic struct {
	// LogicalLine is the 1-based line reported by the device, 0 if none.
	LogicalLine int
	// PhysicalLine is the 0-based index into the expanded source, -1 if unknown.
	PhysicalLine int
	// Line is the offending line, prefixed with its logical number.
	Line string
	// Listing is the numbered expanded source with the offending line marked.
	Listing string
}

// Diagnose maps the first error reported in log back to the expanded source.
// Line numbers count from the line after the #line 1 sentinel; without a
// sentinel they count from the top of src.
func Diagnose(src, log string) Diagnostic {
	lines := strings.Split(src, "\n")
	d := Diagnostic{PhysicalLine: -1}

	if m := errorLineRe.FindStringSubmatch(log); m != nil {
		d.LogicalLine, _ = strconv.Atoi(m[1])
	}
	userStart := 0
	for i, l := range lines {
		if sentinelRe.MatchString(l) {
			userStart = i + 1
			break
		}
	}
	if d.LogicalLine > 0 {
		if p := userStart + d.LogicalLine - 1; p < len(lines) {
			d.PhysicalLine = p
			d.Line = fmt.Sprintf(">>> Line %02d | %s", d.LogicalLine, lines[p])
		}
	}

	var b strings.Builder
	for i, l := range lines {
		mark := "   "
		if i == d.PhysicalLine {
			mark = ">>>"
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s %4d | %s", mark, i+1, l)
	}
	d.Listing = b.String()
	return d
}
