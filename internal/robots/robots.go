// Package robots decides whether a URL may be fetched according to the
// site's robots.txt.
package robots

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/temoto/robotstxt"
)

// maxBody caps how much of robots.txt is read.
const maxBody = 512 << 10

// Policy answers robots.txt queries for one site and user agent.
// The zero value and a nil *Policy allow everything.
type Policy struct {
	group *robotstxt.Group
	open  bool // a "*" group has an empty Disallow
}

// AllowAll returns a Policy that permits every URL.
func AllowAll() *Policy {
	return &Policy{}
}

// Load fetches robots.txt from the root of base. A missing, unreadable or
// failing robots.txt allows everything.
func Load(ctx context.Context, client *http.Client, base *url.URL, userAgent string) *Policy {
	robotsURL := base.Scheme + "://" + base.Host + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return AllowAll()
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return AllowAll()
	}
	defer resp.Body.Close()

	// robotstxt treats 5xx as disallow-all; an unreachable file allows.
	if resp.StatusCode >= 500 {
		return AllowAll()
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return AllowAll()
	}
	p, err := parse(resp.StatusCode, body, userAgent)
	if err != nil {
		return AllowAll()
	}
	return p
}

// Parse builds a Policy from robots.txt content.
func Parse(body []byte, userAgent string) (*Policy, error) {
	return parse(http.StatusOK, body, userAgent)
}

func parse(status int, body []byte, userAgent string) (*Policy, error) {
	data, err := robotstxt.FromStatusAndBytes(status, body)
	if err != nil {
		return nil, err
	}
	p := &Policy{group: data.FindGroup(userAgent)}
	if status >= 200 && status < 300 {
		p.open = wildcardAllowsAll(body)
	}
	return p, nil
}

// wildcardAllowsAll reports whether a group naming "*" contains an empty
// Disallow line. Such a group opens the whole site to every agent, even
// when other rules or agent-specific groups restrict paths.
func wildcardAllowsAll(body []byte) bool {
	var wildcard, inAgents bool
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		line, _, _ := strings.Cut(sc.Text(), "#")
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		if key == "user-agent" {
			if !inAgents {
				wildcard = false
				inAgents = true
			}
			wildcard = wildcard || value == "*"
			continue
		}
		inAgents = false
		if wildcard && key == "disallow" && value == "" {
			return true
		}
	}
	return false
}

// Allowed reports whether rawURL may be fetched.
func (p *Policy) Allowed(rawURL string) bool {
	if p == nil || p.group == nil || p.open {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return p.group.Test(u.RequestURI())
}

// CrawlDelay returns the Crawl-delay requested for this agent, or zero.
func (p *Policy) CrawlDelay() time.Duration {
	if p == nil || p.group == nil {
		return 0
	}
	return p.group.CrawlDelay
}
