package scraper

import (
	"fmt"
	"slices"
	"strings"
)

// DescriptionFormat controls how job descriptions are rendered.
type DescriptionFormat string

// Supported description formats.
const (
	FormatMarkdown DescriptionFormat = "markdown"
	FormatHTML     DescriptionFormat = "html"
	FormatPlain    DescriptionFormat = "plain"
)

// ParseDescriptionFormat maps raw onto a format. Empty input yields def; unrecognized
// input falls back to markdown.
func ParseDescriptionFormat(raw string, def DescriptionFormat) DescriptionFormat {
	switch DescriptionFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		if def == "" {
			return FormatMarkdown
		}
		return def
	case FormatHTML:
		return FormatHTML
	case FormatPlain:
		return FormatPlain
	default:
		return FormatMarkdown
	}
}

// JobType is an employment type filter.
type JobType string

// Known employment types.
const (
	JobTypeFullTime   JobType = "fulltime"
	JobTypePartTime   JobType = "parttime"
	JobTypeContract   JobType = "contract"
	JobTypeTemporary  JobType = "temporary"
	JobTypeInternship JobType = "internship"
	JobTypePerDiem    JobType = "perdiem"
	JobTypeNights     JobType = "nights"
	JobTypeSummer     JobType = "summer"
	JobTypeVolunteer  JobType = "volunteer"
	JobTypeOther      JobType = "other"
)

var jobTypeNames = map[string]JobType{
	"full_time":  JobTypeFullTime,
	"part_time":  JobTypePartTime,
	"contract":   JobTypeContract,
	"temporary":  JobTypeTemporary,
	"internship": JobTypeInternship,
	"per_diem":   JobTypePerDiem,
	"nights":     JobTypeNights,
	"summer":     JobTypeSummer,
	"volunteer":  JobTypeVolunteer,
	"other":      JobTypeOther,
}

var jobTypeAliases = map[JobType][]string{
	JobTypeFullTime:   {"fulltime", "full-time", "full time", "permanent", "vollzeit", "tempsplein"},
	JobTypePartTime:   {"parttime", "part-time", "part time", "teilzeit", "tempspartiel"},
	JobTypeContract:   {"contract", "contractor", "contrato", "vertrag"},
	JobTypeTemporary:  {"temporary", "temp", "befristet"},
	JobTypeInternship: {"internship", "intern", "prácticas", "praktikum", "stage"},
	JobTypePerDiem:    {"perdiem", "per diem"},
	JobTypeNights:     {"nights"},
	JobTypeSummer:     {"summer"},
	JobTypeVolunteer:  {"volunteer"},
	JobTypeOther:      {"other"},
}

// ParseJobType matches raw against the symbolic names first, then the known aliases.
func ParseJobType(raw string) (JobType, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if jt, ok := jobTypeNames[key]; ok {
		return jt, nil
	}
	for jt, aliases := range jobTypeAliases {
		if slices.Contains(aliases, key) {
			return jt, nil
		}
	}
	return "", fmt.Errorf("invalid job_type: %s", raw)
}

// Country is a canonical lower-case country name.
type Country string

// Countries with adapters or common aliases.
const (
	CountryUSA        Country = "usa"
	CountryUK         Country = "uk"
	CountryCanada     Country = "canada"
	CountryJapan      Country = "japan"
	CountryIndia      Country = "india"
	CountryGermany    Country = "germany"
	CountryFrance     Country = "france"
	CountryAustralia  Country = "australia"
	CountrySingapore  Country = "singapore"
	CountryBangladesh Country = "bangladesh"
	CountryUAE        Country = "united arab emirates"
	CountryNetherland Country = "netherlands"
	CountrySpain      Country = "spain"
	CountryWorldwide  Country = "worldwide"
)

var countryAliases = map[Country][]string{
	CountryUSA:        {"usa", "us", "united states", "united states of america"},
	CountryUK:         {"uk", "united kingdom", "great britain", "gb"},
	CountryCanada:     {"canada", "ca"},
	CountryJapan:      {"japan", "jp"},
	CountryIndia:      {"india", "in"},
	CountryGermany:    {"germany", "de"},
	CountryFrance:     {"france", "fr"},
	CountryAustralia:  {"australia", "au"},
	CountrySingapore:  {"singapore", "sg"},
	CountryBangladesh: {"bangladesh", "bd"},
	CountryUAE:        {"united arab emirates", "uae", "ae"},
	CountryNetherland: {"netherlands", "nl", "holland"},
	CountrySpain:      {"spain", "es"},
	CountryWorldwide:  {"worldwide", "remote"},
}

// ParseCountry resolves a country by name or alias, ignoring case.
func ParseCountry(raw string) (Country, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	for country, aliases := range countryAliases {
		if slices.Contains(aliases, key) {
			return country, nil
		}
	}
	return "", fmt.Errorf("invalid country: %s", raw)
}
