package inventory

import (
	"sort"

	"github.com/loykin/ajiasud/internal/cmdline"
)

// Record describes one managed process observed during a scan. Records are
// rebuilt on every Scan and never retained across scans.
type Record struct {
	PID     int    `json:"pid"`
	Cmdline string `json:"cmdline"`
}

// Scanner enumerates OS processes whose command line satisfies the matcher.
// Two independent sources are combined (gopsutil enumeration and a direct
// /proc read) and their results unioned, so partial unavailability of either
// is tolerated. Failure of both yields an empty set, never an error.
type Scanner struct {
	Matcher cmdline.Matcher
}

// Scan returns the deduplicated, ascending PID set of managed processes.
func (s Scanner) Scan() []int {
	seen := make(map[int]struct{})
	for _, r := range s.scanGopsutil() {
		seen[r.PID] = struct{}{}
	}
	for _, r := range s.scanProc() {
		seen[r.PID] = struct{}{}
	}
	pids := make([]int, 0, len(seen))
	for pid := range seen {
		pids = append(pids, pid)
	}
	sort.Ints(pids)
	return pids
}

// Records is Scan with command lines attached, for status/debug surfaces.
func (s Scanner) Records() []Record {
	byPID := make(map[int]Record)
	for _, r := range s.scanGopsutil() {
		byPID[r.PID] = r
	}
	for _, r := range s.scanProc() {
		if _, ok := byPID[r.PID]; !ok {
			byPID[r.PID] = r
		}
	}
	out := make([]Record, 0, len(byPID))
	for _, r := range byPID {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out
}
