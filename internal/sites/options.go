package sites

import (
	"fmt"
	"maps"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/JakeFAU/jobspy-server/internal/scraper"
)

// Options are the adapter settings read from a request's options bag. Keys nested under
// a site name (for example "japandev") override the top-level keys for that site only.
type Options struct {
	// Proxies accepts a single proxy string or a list; only the first entry is used.
	Proxies                 []string            `mapstructure:"proxies"`
	UserAgent               string              `mapstructure:"user_agent"`
	BlockResources          *bool               `mapstructure:"block_resources"`
	ChallengeTimeoutSeconds int                 `mapstructure:"challenge_timeout_seconds"`
	Filters                 map[string][]string `mapstructure:"filters"`
}

// Proxy returns the first configured proxy, if any.
func (o Options) Proxy() string {
	for _, p := range o.Proxies {
		if p = strings.TrimSpace(p); p != "" {
			return p
		}
	}
	return ""
}

// DecodeOptions resolves the options bag for site.
func DecodeOptions(site scraper.Site, raw scraper.Options) (Options, error) {
	merged := make(map[string]any, len(raw))
	for key, value := range raw {
		if _, err := scraper.ParseSite(key); err == nil {
			continue
		}
		merged[key] = value
	}
	for key, value := range raw {
		s, err := scraper.ParseSite(key)
		if err != nil || s != site {
			continue
		}
		nested, ok := value.(map[string]any)
		if !ok {
			return Options{}, scraper.NewValidationError("options", "options for %s must be an object", site)
		}
		maps.Copy(merged, nested)
	}

	var out Options
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return Options{}, fmt.Errorf("build options decoder: %w", err)
	}
	if err := decoder.Decode(merged); err != nil {
		return Options{}, &scraper.ValidationError{Field: "options", Err: err}
	}
	return out, nil
}
