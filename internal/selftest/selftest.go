// Package selftest runs a fixed battery of in-process checks against the
// parsing, path-resolution, and process-matching logic. It never touches a
// real ajiasu binary or any running process, so it is safe to call from a
// live daemon.
package selftest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/loykin/ajiasud/internal/ajiasu"
	"github.com/loykin/ajiasud/internal/cmdline"
	"github.com/loykin/ajiasud/internal/nodes"
	"github.com/loykin/ajiasud/internal/supervisor"
)

// Case is one check outcome.
type Case struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Error  string `json:"error,omitempty"`
}

// Report aggregates all cases; Passed is the conjunction.
type Report struct {
	Passed bool   `json:"passed"`
	Cases  []Case `json:"cases"`
}

const sampleListing = `vvn-5871-9238 ok         苏州 #33
vvn-5871-9239 ok         苏州 #34
vvn-5876-9348 ok         上海 #339
vvn-5907-9395 ok         成都 #146
vvn-5908-9394 ok         成都 #144
=====================================================
Web Site: https://www.91ajs.com
Login Result: OK
Membership: 爱加速会员
Expiration: Wed Sep 24 20:08:33 2025
=====================================================`

// Run executes every check and returns the aggregate report.
func Run() Report {
	var rep Report
	rep.Passed = true
	add := func(name string, fn func() error) {
		c := Case{Name: name, Passed: true}
		if err := fn(); err != nil {
			c.Passed = false
			c.Error = err.Error()
			rep.Passed = false
		}
		rep.Cases = append(rep.Cases, c)
	}

	parsed, summary := nodes.Parse(sampleListing)

	add("parse_count", func() error {
		if len(parsed) != 5 {
			return fmt.Errorf("want 5 nodes, got %d", len(parsed))
		}
		return nil
	})
	add("parse_first_node", func() error {
		if len(parsed) == 0 {
			return fmt.Errorf("no nodes parsed")
		}
		n := parsed[0]
		if n.ID != "vvn-5871-9238" || n.Status != "ok" || n.City != "苏州" || n.Num != 33 || n.Label != "苏州 #33" {
			return fmt.Errorf("first node mismatch: %+v", n)
		}
		return nil
	})
	add("parse_last_node", func() error {
		if len(parsed) == 0 {
			return fmt.Errorf("no nodes parsed")
		}
		n := parsed[len(parsed)-1]
		if n.City != "成都" || n.Num != 144 {
			return fmt.Errorf("last node mismatch: %+v", n)
		}
		return nil
	})
	add("parse_summary", func() error {
		if summary.Website != "https://www.91ajs.com" || summary.LoginResult != "OK" ||
			summary.Membership != "爱加速会员" || summary.Expiration == "" {
			return fmt.Errorf("summary mismatch: %+v", summary)
		}
		return nil
	})
	add("protocol_set_contains_all", func() error {
		for _, p := range []string{"udp", "tcp", "lwip", "proxy"} {
			if !supervisor.ProtocolAllowed(p) {
				return fmt.Errorf("protocol %q not allowed", p)
			}
		}
		return nil
	})
	add("env_override_paths", func() error {
		c := ajiasu.Resolve("/opt/ajs", "/tmp/aj")
		if c.BaseDir != "/tmp/aj" || c.Bin != "/opt/ajs" {
			return fmt.Errorf("override mismatch: bin=%q dir=%q", c.Bin, c.BaseDir)
		}
		return nil
	})
	add("cwd_fallback_paths", func() error {
		c := ajiasu.Resolve("", "")
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		if c.BaseDir != wd {
			return fmt.Errorf("base dir %q, want %q", c.BaseDir, wd)
		}
		if c.Bin != "" && filepath.Base(c.Bin) != ajiasu.BinaryName {
			return fmt.Errorf("resolved bin %q has unexpected name", c.Bin)
		}
		return nil
	})
	add("missing_binary_message", func() error {
		err := ajiasu.Client{Bin: "/surely/not/exist/ajiasu"}.EnsureAvailable()
		if err == nil {
			return fmt.Errorf("expected availability error")
		}
		return nil
	})
	add("not_executable_message_branch", func() error {
		err := ajiasu.Client{Bin: "/"}.EnsureAvailable()
		if err == nil {
			return fmt.Errorf("expected availability error")
		}
		return nil
	})
	add("cmdline_parser_correct", func() error {
		m := cmdline.Matcher{Binary: ajiasu.BinaryName, Subcommand: ajiasu.ConnectSubcommand}
		truths := []struct {
			line string
			want bool
		}{
			{"/root/ajiasu connect 厦门 #31", true},
			{"ajiasu connect 温州 #1", true},
			{"/root/ajiasu list", false},
			{"bash -lc 'ajiasu connect'", false},
		}
		for _, tc := range truths {
			if got := m.Matches(tc.line); got != tc.want {
				return fmt.Errorf("Matches(%q) = %v, want %v", tc.line, got, tc.want)
			}
		}
		return nil
	})

	return rep
}
