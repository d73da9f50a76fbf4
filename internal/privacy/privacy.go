// Package privacy removes sensitive data from error reports: URLs with
// their credentials, e-mail addresses and the user's home directory.
package privacy

import (
	"crypto/sha256"
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"regexp"
	"strings"
	"sync"
)

// Pre-compiled patterns
var (
	urlPattern   = regexp.MustCompile(`\b(?:https?|rtsp|rtmp|tcp)://\S+`)
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
)

// Scrubber rewrites messages. The zero value only anonymizes URLs and
// e-mail addresses.
type Scrubber struct {
	home string
}

// NewScrubber returns a Scrubber that also replaces home with "~".
func NewScrubber(home string) *Scrubber {
	home = strings.TrimRight(home, `/\`)
	if len(home) <= 1 {
		home = ""
	}
	return &Scrubber{home: home}
}

var defaultScrubber = sync.OnceValue(func() *Scrubber {
	home, _ := os.UserHomeDir()
	return NewScrubber(home)
})

// ScrubMessage scrubs message with the home directory of the current user.
func ScrubMessage(message string) string {
	return defaultScrubber().Scrub(message)
}

// Scrub returns message with its sensitive parts replaced.
func (s *Scrubber) Scrub(message string) string {
	message = urlPattern.ReplaceAllStringFunc(message, AnonymizeURL)
	message = emailPattern.ReplaceAllString(message, "[EMAIL]")
	if s.home != "" {
		message = strings.ReplaceAll(message, s.home, "~")
	}
	return message
}

// AnonymizeURL converts a URL to a stable hash keeping its scheme, the
// category of its host and its port, so that reports about the same
// endpoint still group together.
func AnonymizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		hash := sha256.Sum256([]byte(rawURL))
		return fmt.Sprintf("url-hash-%x", hash[:8])
	}

	parts := []string{u.Scheme}
	if host := u.Hostname(); host != "" {
		parts = append(parts, categorizeHost(host))
	}
	if port := u.Port(); port != "" {
		parts = append(parts, "port-"+port)
	}
	if p := strings.Trim(u.Path, "/"); p != "" {
		parts = append(parts, p)
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, ":")))
	return fmt.Sprintf("url-%x", hash[:12])
}

// categorizeHost reduces a host to localhost, private-ip, public-ip or the
// top level domain.
func categorizeHost(host string) string {
	if host == "localhost" {
		return "localhost"
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		switch {
		case addr.IsLoopback():
			return "localhost"
		case addr.IsPrivate(), addr.IsLinkLocalUnicast():
			return "private-ip"
		}
		return "public-ip"
	}
	if i := strings.LastIndexByte(host, '.'); i >= 0 && i < len(host)-1 {
		return "domain-" + host[i+1:]
	}
	return "unknown-host"
}
