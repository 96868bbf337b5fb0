package scraper

import (
	"maps"
	"slices"
)

// RawRequest is the wire and config form of a scrape request.
type RawRequest struct {
	SiteType          []string       `json:"site_type" mapstructure:"site_type"`
	SearchTerm        string         `json:"search_term" mapstructure:"search_term"`
	Location          string         `json:"location" mapstructure:"location"`
	IsRemote          bool           `json:"is_remote" mapstructure:"is_remote"`
	ResultsWanted     *int           `json:"results_wanted" mapstructure:"results_wanted"`
	JobType           string         `json:"job_type" mapstructure:"job_type"`
	Country           string         `json:"country" mapstructure:"country"`
	DescriptionFormat string         `json:"description_format" mapstructure:"description_format"`
	RequestTimeout    *int           `json:"request_timeout" mapstructure:"request_timeout"`
	Options           map[string]any `json:"options" mapstructure:"options"`
}

// Defaults fills fields a RawRequest leaves unset.
type Defaults struct {
	ResultsWanted     int
	RequestTimeout    int
	DescriptionFormat DescriptionFormat
}

// Normalize validates r and resolves it into a Request. Duplicate sites collapse to
// their first occurrence.
func (r RawRequest) Normalize(def Defaults) (Request, error) {
	if len(r.SiteType) == 0 {
		return Request{}, &ValidationError{Field: "site_type", Err: ErrNoSites}
	}
	sites := make([]Site, 0, len(r.SiteType))
	for _, raw := range r.SiteType {
		site, err := ParseSite(raw)
		if err != nil {
			return Request{}, &ValidationError{Field: "site_type", Err: err}
		}
		if !slices.Contains(sites, site) {
			sites = append(sites, site)
		}
	}

	req := Request{
		Sites:             sites,
		SearchTerm:        r.SearchTerm,
		Location:          r.Location,
		IsRemote:          r.IsRemote,
		ResultsWanted:     def.ResultsWanted,
		RequestTimeout:    def.RequestTimeout,
		DescriptionFormat: ParseDescriptionFormat(r.DescriptionFormat, def.DescriptionFormat),
	}
	if r.ResultsWanted != nil {
		req.ResultsWanted = *r.ResultsWanted
	}
	if req.ResultsWanted <= 0 {
		return Request{}, NewValidationError("results_wanted", "results_wanted must be > 0")
	}
	if r.RequestTimeout != nil {
		req.RequestTimeout = *r.RequestTimeout
	}
	if req.RequestTimeout <= 0 {
		return Request{}, NewValidationError("request_timeout", "request_timeout must be > 0")
	}
	if r.JobType != "" {
		jt, err := ParseJobType(r.JobType)
		if err != nil {
			return Request{}, &ValidationError{Field: "job_type", Err: err}
		}
		req.JobType = jt
	}
	if r.Country != "" {
		country, err := ParseCountry(r.Country)
		if err != nil {
			return Request{}, &ValidationError{Field: "country", Err: err}
		}
		req.Country = country
	}
	if len(r.Options) > 0 {
		req.Options = Options(maps.Clone(r.Options))
	}
	return req, nil
}
