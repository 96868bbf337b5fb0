package sites

import (
	"net/url"

	"github.com/JakeFAU/jobspy-server/internal/extract"
	"github.com/JakeFAU/jobspy-server/internal/scraper"
)

const tokyoDevListingURL = "https://www.tokyodev.com/jobs"

// TokyoDevProfile describes tokyodev.com listing and detail pages.
func TokyoDevProfile() extract.Profile {
	return extract.Profile{
		Site:         scraper.SiteTokyoDev,
		ListingURL:   tokyoDevListingURL,
		BaseURL:      "https://www.tokyodev.com",
		SearchParam:  "query",
		ListingCards: []string{"li[data-job-id]", "div.job-listing"},
		CardLink:     extract.Chain{extract.Q("h3 a[href*='/jobs/']"), extract.Q("a[href*='/jobs/']")},
		CardCompany:  extract.Chain{extract.Q("[data-company-name]"), extract.Q("h2 a[href^='/companies/']")},
		Detail: extract.DetailSelectors{
			Title:   extract.Chain{extract.Q("h1")},
			Company: extract.Chain{extract.Q("a[href^='/companies/'] h2"), extract.Q("a[href^='/companies/']")},
			Location: extract.Chain{
				extract.Q("[data-job-location]"),
				{Query: "ul.job-tags li", Contains: "Tokyo"},
			},
			Salary:   extract.Chain{{Query: "ul.job-tags li", Contains: "¥"}},
			ApplyURL: extract.Chain{{Query: "a", Attr: "href", Contains: "Apply"}},
			Description: extract.Chain{
				{Query: "div.job-description", HTML: true},
				{Query: "main article", HTML: true},
			},
		},
		DefaultLocation: "Japan",
		Country:         scraper.CountryJapan,
		Salary: extract.SalaryRule{
			Multiplier: 1_000_000,
			Currency:   "JPY",
			Interval:   scraper.IntervalYearly,
		},
	}
}

// tokyoDevFilters are listing query parameters.
var tokyoDevFilters = filterSet{
	{key: "japanese_requirement[]", aliases: []string{"japanese_requirement", "japanese_level"}, choices: languageLevels},
	{key: "english_requirement[]", aliases: []string{"english_requirement", "english_level"}, choices: languageLevels},
	{key: "applicant_location[]", aliases: []string{"applicant_location"}, choices: []choice{
		{"APPLY_FROM_ABROAD", "apply_from_abroad"},
		{"JAPAN_ONLY", "japan_residents_only"},
	}},
	{key: "seniority[]", aliases: []string{"seniority"}, choices: []choice{
		{"INTERN", "intern"},
		{"JUNIOR", "junior"},
		{"INTERMEDIATE", "intermediate"},
		{"SENIOR", "senior"},
	}},
	{key: "salary", single: true, choices: []choice{
		{"ANY", ""},
		{"MILLION_4", "4000000"},
		{"MILLION_6", "6000000"},
		{"MILLION_8", "8000000"},
		{"MILLION_10", "10000000"},
	}},
}

var languageLevels = []choice{
	{"NONE", "none"},
	{"BASIC", "basic"},
	{"CONVERSATIONAL", "conversational"},
	{"BUSINESS", "business"},
	{"FLUENT", "fluent"},
}

// TokyoDevParams resolves the options filters into listing query parameters.
func TokyoDevParams(requested map[string][]string) (url.Values, error) {
	filters, err := tokyoDevFilters.Resolve(scraper.SiteTokyoDev, requested)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	for _, f := range filters {
		if f.Token == "" {
			continue
		}
		params.Add(f.Key, f.Token)
	}
	return params, nil
}

// NewTokyoDev builds the tokyodev.com adapter. Filters travel as query parameters.
func NewTokyoDev(deps Deps) *BrowserAdapter {
	logger := deps.logger().Named("site.tokyodev")
	pipeline := extract.NewPipeline(TokyoDevProfile(), deps.Challenges, deps.Clock, logger)
	return NewBrowserAdapter(pipeline, deps.Sessions, deps.Defaults, tokyoDevHooks, logger)
}

func tokyoDevHooks(opts Options) (extract.Hooks, error) {
	params, err := TokyoDevParams(opts.Filters)
	if err != nil {
		return extract.Hooks{}, err
	}
	return extract.Hooks{Params: params}, nil
}
