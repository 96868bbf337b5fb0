package extract

import "github.com/JakeFAU/jobspy-server/internal/scraper"

// DetailSelectors are the fallback chains applied to a job detail page.
type DetailSelectors struct {
	Title       Chain
	Company     Chain
	Location    Chain
	DatePosted  Chain
	Salary      Chain
	ApplyURL    Chain
	Description Chain
}

// Profile describes one site's page structure as data.
type Profile struct {
	Site        scraper.Site
	ListingURL  string
	BaseURL     string
	SearchParam string
	// ListingCards are tried in order; the first that becomes visible is used.
	ListingCards []string
	// CardLink yields both the listing title (text) and the detail URL (href).
	CardLink    Chain
	CardCompany Chain
	Detail      DetailSelectors
	// DateLayout parses DatePosted values with time.Parse. Empty disables parsing.
	DateLayout      string
	DefaultLocation string
	Country         scraper.Country
	Salary          SalaryRule
}
