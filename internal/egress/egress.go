// Package egress looks up the daemon's public IP so the panel can show which
// endpoint traffic actually leaves through.
package egress

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// DefaultSources are tried in order until one returns a parseable IP.
var DefaultSources = []string{
	"https://ifconfig.me",
	"https://ipinfo.io/ip",
	"https://icanhazip.com",
}

const DefaultTimeout = 5 * time.Second

// Result is the JSON shape returned on the external_ip route.
type Result struct {
	OK     bool   `json:"ok"`
	IP     string `json:"ip,omitempty"`
	Source string `json:"source,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Lookup queries a fixed list of plain-text IP echo services with a bounded
// per-attempt timeout. A body that does not parse as an IP address moves on
// to the next source; all sources failing yields ok=false.
type Lookup struct {
	Sources []string
	Timeout time.Duration
	client  *http.Client
}

func New() *Lookup {
	return &Lookup{Sources: DefaultSources, Timeout: DefaultTimeout}
}

func (l *Lookup) timeout() time.Duration {
	if l.Timeout > 0 {
		return l.Timeout
	}
	return DefaultTimeout
}

func (l *Lookup) httpClient() *http.Client {
	if l.client == nil {
		l.client = &http.Client{Timeout: l.timeout()}
	}
	return l.client
}

func (l *Lookup) ExternalIP(ctx context.Context) Result {
	for _, url := range l.Sources {
		ip, err := l.fetch(ctx, url)
		if err != nil {
			continue
		}
		if net.ParseIP(ip) != nil {
			return Result{OK: true, IP: ip, Source: url}
		}
	}
	return Result{OK: false, Error: "unable to determine external IP"}
}

func (l *Lookup) fetch(ctx context.Context, url string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, l.timeout())
	defer cancel()
	req, err := http.NewRequestWithContext(cctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := l.httpClient().Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	// These services answer with a single line; 4KB is generous.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}
