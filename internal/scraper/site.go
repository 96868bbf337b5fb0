package scraper

import (
	"fmt"
	"strings"
)

// Site identifies an external job board.
type Site string

// Known job boards. Only some have adapters registered.
const (
	SiteLinkedIn     Site = "linkedin"
	SiteIndeed       Site = "indeed"
	SiteZipRecruiter Site = "zip_recruiter"
	SiteGlassdoor    Site = "glassdoor"
	SiteGoogle       Site = "google"
	SiteBayt         Site = "bayt"
	SiteNaukri       Site = "naukri"
	SiteBDJobs       Site = "bdjobs"
	SiteTokyoDev     Site = "tokyodev"
	SiteJapanDev     Site = "japandev"
)

var siteNames = map[string]Site{
	"LINKEDIN":      SiteLinkedIn,
	"INDEED":        SiteIndeed,
	"ZIP_RECRUITER": SiteZipRecruiter,
	"GLASSDOOR":     SiteGlassdoor,
	"GOOGLE":        SiteGoogle,
	"BAYT":          SiteBayt,
	"NAUKRI":        SiteNaukri,
	"BDJOBS":        SiteBDJobs,
	"TOKYODEV":      SiteTokyoDev,
	"JAPANDEV":      SiteJapanDev,
}

// AllSites lists every known site in declaration order.
func AllSites() []Site {
	return []Site{
		SiteLinkedIn, SiteIndeed, SiteZipRecruiter, SiteGlassdoor, SiteGoogle,
		SiteBayt, SiteNaukri, SiteBDJobs, SiteTokyoDev, SiteJapanDev,
	}
}

// ParseSite resolves a site by symbolic name (ZIP_RECRUITER) or by value (zip_recruiter),
// ignoring case.
func ParseSite(raw string) (Site, error) {
	trimmed := strings.TrimSpace(raw)
	if site, ok := siteNames[strings.ToUpper(trimmed)]; ok {
		return site, nil
	}
	candidate := Site(strings.ToLower(trimmed))
	if candidate.Valid() {
		return candidate, nil
	}
	return "", fmt.Errorf("invalid site: %s", raw)
}

// Valid reports whether s is one of the known sites.
func (s Site) Valid() bool {
	for _, known := range siteNames {
		if known == s {
			return true
		}
	}
	return false
}

// Name returns the symbolic upper-case name used in logs.
func (s Site) Name() string {
	return strings.ToUpper(string(s))
}
