// Package nodes parses the VPN client's human-readable list output and keeps
// the most recent successful listing as the target catalog.
package nodes

import (
	"regexp"
	"strconv"
	"strings"
)

// Node is one connectable endpoint from a listing. Label is derived as
// "<city> #<num>" and is unique within one listing because id/city/num are.
type Node struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	City   string `json:"city"`
	Num    int    `json:"num"`
	Label  string `json:"label"`
}

// Summary is the trailing account block of a listing.
type Summary struct {
	Website     string `json:"website,omitempty"`
	LoginResult string `json:"login_result,omitempty"`
	Membership  string `json:"membership,omitempty"`
	Expiration  string `json:"expiration,omitempty"`
}

var nodeLineRe = regexp.MustCompile(`^(\S+)\s+(\S+)\s+(\S+)\s+#(\d+)\s*$`)

// Parse extracts node lines and summary fields from raw list output.
// Separator lines (made only of = - _ and spaces) and blanks are skipped;
// anything else unrecognized is ignored.
func Parse(text string) ([]Node, Summary) {
	var (
		out     []Node
		summary Summary
	)
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || isSeparator(line) {
			continue
		}
		if m := nodeLineRe.FindStringSubmatch(line); m != nil {
			num, _ := strconv.Atoi(m[4])
			n := Node{ID: m[1], Status: m[2], City: m[3], Num: num}
			n.Label = n.City + " #" + m[4]
			out = append(out, n)
			continue
		}
		switch {
		case strings.HasPrefix(line, "Web Site:"):
			summary.Website = afterColon(line)
		case strings.HasPrefix(line, "Login Result:"):
			summary.LoginResult = afterColon(line)
		case strings.HasPrefix(line, "Membership:"):
			summary.Membership = afterColon(line)
		case strings.HasPrefix(line, "Expiration:"):
			summary.Expiration = afterColon(line)
		}
	}
	return out, summary
}

func isSeparator(line string) bool {
	for _, r := range line {
		switch r {
		case '=', '-', '_', ' ':
		default:
			return false
		}
	}
	return true
}

func afterColon(line string) string {
	_, v, _ := strings.Cut(line, ":")
	return strings.TrimSpace(v)
}
