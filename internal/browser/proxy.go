package browser

import (
	"net/url"
	"strings"

	"github.com/JakeFAU/jobspy-server/internal/scraper"
)

// Proxy is a parsed proxy endpoint. Credentials are answered on auth challenges
// since Chrome ignores them in --proxy-server.
type Proxy struct {
	Server   string
	Username string
	Password string
}

var proxySchemes = map[string]bool{"http": true, "https": true, "socks4": true, "socks5": true}

// ParseProxy parses scheme://[user[:pass]@]host:port.
func ParseProxy(raw string) (Proxy, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Proxy{}, scraper.NewValidationError("proxies", "invalid proxy %q: %v", raw, err)
	}
	if !proxySchemes[strings.ToLower(u.Scheme)] {
		return Proxy{}, scraper.NewValidationError("proxies", "invalid proxy %q: unsupported scheme", raw)
	}
	if u.Hostname() == "" || u.Port() == "" {
		return Proxy{}, scraper.NewValidationError("proxies", "invalid proxy %q: host and port required", raw)
	}
	proxy := Proxy{Server: strings.ToLower(u.Scheme) + "://" + u.Host}
	if u.User != nil {
		proxy.Username = u.User.Username()
		proxy.Password, _ = u.User.Password()
	}
	return proxy, nil
}

// HasCredentials reports whether the proxy needs an auth answer.
func (p Proxy) HasCredentials() bool {
	return p.Username != ""
}
