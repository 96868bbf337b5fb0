package browser

import (
	"maps"

	"github.com/chromedp/cdproto/network"
)

// DefaultUserAgent is the Chrome build the rest of the fingerprint is tuned to.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36"

const webdriverPatch = `Object.defineProperty(navigator, 'webdriver', { get: () => undefined });`

// Fingerprint is the set of browser identity attributes applied together to every page.
type Fingerprint struct {
	UserAgent      string
	AcceptLanguage string
	Platform       string
	Locale         string
	TimezoneID     string
	ColorScheme    string
	Width          int64
	Height         int64
	Headers        map[string]string
}

// DefaultFingerprint mirrors a desktop Chrome 130 on macOS in New York.
func DefaultFingerprint() Fingerprint {
	return Fingerprint{
		UserAgent:      DefaultUserAgent,
		AcceptLanguage: "en-US,en;q=0.9",
		Platform:       "MacIntel",
		Locale:         "en-US",
		TimezoneID:     "America/New_York",
		ColorScheme:    "dark",
		Width:          1366,
		Height:         768,
		Headers: map[string]string{
			"accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp," +
				"image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7",
			"accept-language":           "en-US,en;q=0.9",
			"priority":                  "u=0, i",
			"upgrade-insecure-requests": "1",
		},
	}
}

// WithUserAgent replaces only the user agent string.
func (f Fingerprint) WithUserAgent(ua string) Fingerprint {
	cp := f
	cp.Headers = maps.Clone(f.Headers)
	if ua != "" {
		cp.UserAgent = ua
	}
	return cp
}

// ExtraHeaders returns the headers sent with every request, including the user agent.
func (f Fingerprint) ExtraHeaders() network.Headers {
	headers := network.Headers{}
	for key, value := range f.Headers {
		headers[key] = value
	}
	if f.UserAgent != "" {
		headers["user-agent"] = f.UserAgent
	}
	return headers
}
