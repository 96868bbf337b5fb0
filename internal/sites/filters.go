package sites

import (
	"fmt"
	"slices"
	"strings"

	"github.com/JakeFAU/jobspy-server/internal/scraper"
)

// Filter is one selectable listing filter: a category key plus a value token.
type Filter struct {
	Key   string
	Token string
}

// ID is the DOM id of the filter checkbox.
func (f Filter) ID() string {
	return f.Key + "-" + f.Token
}

// Selector matches the filter by attribute so ids holding spaces, '/' or '+' need no escaping.
func (f Filter) Selector() string {
	return fmt.Sprintf("[id='%s']", f.ID())
}

type choice struct {
	name  string
	token string
}

// filterCategory groups the values accepted for one filter key.
type filterCategory struct {
	key     string
	aliases []string
	choices []choice
	single  bool
}

func (c filterCategory) matches(name string) bool {
	name = normalizeName(name)
	return name == normalizeName(c.key) || slices.Contains(c.aliases, name)
}

// resolve accepts either the symbolic name or the raw token, ignoring case.
func (c filterCategory) resolve(raw string) (string, bool) {
	want := normalizeName(raw)
	for _, ch := range c.choices {
		if want == normalizeName(ch.name) || want == normalizeName(ch.token) {
			return ch.token, true
		}
	}
	return "", false
}

type filterSet []filterCategory

// Resolve turns the requested filters into concrete Filters, in category order.
func (s filterSet) Resolve(site scraper.Site, requested map[string][]string) ([]Filter, error) {
	for name := range requested {
		if !slices.ContainsFunc(s, func(c filterCategory) bool { return c.matches(name) }) {
			return nil, scraper.NewValidationError("options.filters", "unknown %s filter: %s", site, name)
		}
	}
	var out []Filter
	for _, category := range s {
		var values []string
		for name, vals := range requested {
			if category.matches(name) {
				values = append(values, vals...)
			}
		}
		if category.single && len(values) > 1 {
			return nil, scraper.NewValidationError("options.filters",
				"%s filter %s takes a single value", site, category.key)
		}
		for _, raw := range values {
			token, ok := category.resolve(raw)
			if !ok {
				return nil, scraper.NewValidationError("options.filters",
					"invalid %s filter %s value: %s", site, category.key, raw)
			}
			out = append(out, Filter{Key: category.key, Token: token})
		}
	}
	return out, nil
}

func normalizeName(raw string) string {
	r := strings.NewReplacer("-", "_", " ", "_")
	return r.Replace(strings.ToLower(strings.TrimSpace(raw)))
}
