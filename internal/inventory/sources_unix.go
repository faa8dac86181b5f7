//go:build !windows

package inventory

import (
	"os"
	"strconv"
	"strings"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// scanGopsutil enumerates all processes via gopsutil and filters by matcher.
// Any error (whole enumeration or a single process disappearing mid-scan) is
// tolerated; the /proc source compensates.
func (s Scanner) scanGopsutil() []Record {
	procs, err := gopsproc.Processes()
	if err != nil {
		return nil
	}
	var out []Record
	for _, p := range procs {
		argv, err := p.CmdlineSlice()
		if err == nil && s.Matcher.MatchesArgv(argv) {
			out = append(out, Record{PID: int(p.Pid), Cmdline: strings.Join(argv, " ")})
			continue
		}
		if err != nil {
			// Some kernels deny cmdline splitting for exotic processes;
			// fall back to the raw string form.
			raw, rerr := p.Cmdline()
			if rerr == nil && s.Matcher.Matches(raw) {
				out = append(out, Record{PID: int(p.Pid), Cmdline: raw})
			}
		}
	}
	return out
}

// scanProc walks /proc directly and reads NUL-separated cmdline files.
// Independent of gopsutil so the scan survives either source misbehaving.
func (s Scanner) scanProc() []Record {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil
	}
	var out []Record
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid <= 0 {
			continue
		}
		b, err := os.ReadFile("/proc/" + e.Name() + "/cmdline")
		if err != nil || len(b) == 0 {
			continue
		}
		argv := splitNul(b)
		if s.Matcher.MatchesArgv(argv) {
			out = append(out, Record{PID: pid, Cmdline: strings.Join(argv, " ")})
		}
	}
	return out
}

func splitNul(b []byte) []string {
	parts := strings.Split(strings.TrimRight(string(b), "\x00"), "\x00")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
