package sites

import (
	"context"
	"fmt"

	"github.com/JakeFAU/jobspy-server/internal/extract"
	"github.com/JakeFAU/jobspy-server/internal/scraper"
)

const japanDevListingURL = "https://japan-dev.com/japan-jobs-relocation"

// JapanDevProfile describes japan-dev.com listing and detail pages.
func JapanDevProfile() extract.Profile {
	return extract.Profile{
		Site:         scraper.SiteJapanDev,
		ListingURL:   japanDevListingURL,
		BaseURL:      japanDevListingURL,
		SearchParam:  "query",
		ListingCards: []string{".job-item", ".top-jobs__job-item"},
		CardLink:     extract.Chain{extract.Q(".job-item__title"), extract.Q("a.title.link")},
		CardCompany:  extract.Chain{{Query: "img.company-logo__inner", Attr: "alt"}},
		Detail: extract.DetailSelectors{
			Title:   extract.Chain{extract.Q("h1.job-detail__job-name")},
			Company: extract.Chain{extract.Q("a.job-logo__company-name")},
			Location: extract.Chain{
				extract.Q("div.job-logo__location"),
				extract.Q("ul.job-detail__summary-list li span"),
			},
			DatePosted: extract.Chain{{Query: "ul.job-detail__summary-list li span", Last: true}},
			Salary: extract.Chain{extract.Q(
				"div.job-detail-tag-list__basic-tag:has(img[alt='yen-icon']) div.job-detail-tag-list__tag-desc")},
			ApplyURL: extract.Chain{{Query: "a", Attr: "href", Contains: "APPLY NOW"}},
			Description: extract.Chain{
				{Query: "div.job-detail-main-content div.body", HTML: true},
				{Query: "div.job-detail-main-content", HTML: true},
			},
		},
		DateLayout:      "January 2, 2006",
		DefaultLocation: "Japan",
		Country:         scraper.CountryJapan,
		Salary: extract.SalaryRule{
			Multiplier: 1_000_000,
			Currency:   "JPY",
			Interval:   scraper.IntervalYearly,
		},
	}
}

// japanDevFilters are the sidebar checkboxes, keyed by the DOM id prefix.
var japanDevFilters = filterSet{
	{key: "candidate_location", aliases: []string{"applicant_location"}, choices: []choice{
		{"ANYWHERE", "candidate_location_anywhere"},
		{"JAPAN_ONLY", "candidate_location_japan_only"},
	}},
	{key: "japanese_level_enum", aliases: []string{"japanese_level"}, choices: []choice{
		{"NOT_REQUIRED", "japanese_level_not_required"},
		{"BUSINESS", "japanese_level_business_level"},
		{"CONVERSATIONAL", "japanese_level_conversational"},
		{"FLUENT", "japanese_level_fluent"},
	}},
	{key: "english_level_enum", aliases: []string{"english_level"}, choices: []choice{
		{"BUSINESS", "english_level_business_level"},
		{"FLUENT", "english_level_fluent"},
	}},
	{key: "remote_level", aliases: []string{"remote_work", "remote"}, choices: []choice{
		{"PARTIAL_REMOTE", "remote_level_partial"},
		{"ANYWHERE_IN_JAPAN", "remote_level_full_japan"},
		{"NO_REMOTE", "remote_level_none"},
		{"WORLDWIDE", "remote_level_full_worldwide"},
		{"FULL_REMOTE", "remote_level_around_office"},
	}},
	{key: "seniority_level", aliases: []string{"seniority"}, choices: []choice{
		{"SENIOR", "seniority_level_senior"},
		{"MID_LEVEL", "seniority_level_mid_level"},
		{"JUNIOR", "seniority_level_junior"},
		{"NEW_GRAD", "seniority_level_new_grad"},
	}},
	{key: "salary_tags", aliases: []string{"salary"}, choices: []choice{
		{"HAS_SALARY_RANGE", "has_salary_range"},
		{"OVER_6M", "salary_over_6m"},
		{"OVER_8M", "salary_over_8m"},
		{"OVER_10M", "salary_over_10m"},
	}},
	{key: "job_type_names", aliases: []string{"job_type"}, choices: []choice{
		{"ENGINEERING", "Engineering"},
		{"DESIGN", "Design"},
		{"OTHER", "Other"},
	}},
	{key: "location", aliases: []string{"office_location"}, choices: []choice{
		{"TOKYO", "Tokyo"},
		{"OSAKA", "Osaka"},
		{"OTHER", "Other"},
	}},
	{key: "company_is_startup", aliases: []string{"company_type"}, choices: []choice{
		{"STARTUP", "true"},
	}},
	{key: "skill_names", aliases: []string{"skill", "skills"}, choices: []choice{
		{"PYTHON", "Python"},
		{"TYPESCRIPT", "Typescript"},
		{"BACKEND", "Backend"},
		{"GO", "Go"},
		{"REACT", "React"},
		{"KUBERNETES", "Kubernetes"},
		{"DOCKER", "Docker"},
		{"CPP", "C++"},
		{"JAVA", "Java"},
		{"SECURITY", "Security"},
		{"ENG_OTHER", "Eng - Other"},
		{"WEB_FULLSTACK", "Web / Full-stack"},
		{"AWS", "AWS"},
		{"JAVASCRIPT", "Javascript"},
		{"MYSQL", "MySQL"},
		{"GRPC", "gRPC"},
		{"INFRA", "Infra"},
		{"ML", "ML"},
		{"QA", "QA"},
		{"RUBY", "Ruby"},
	}},
}

// JapanDevFilters resolves the options filters into sidebar checkboxes.
func JapanDevFilters(requested map[string][]string) ([]Filter, error) {
	return japanDevFilters.Resolve(scraper.SiteJapanDev, requested)
}

// NewJapanDev builds the japan-dev.com adapter. Requested filters are clicked on the
// listing page before cards are read.
func NewJapanDev(deps Deps) *BrowserAdapter {
	logger := deps.logger().Named("site.japandev")
	pipeline := extract.NewPipeline(JapanDevProfile(), deps.Challenges, deps.Clock, logger)
	return NewBrowserAdapter(pipeline, deps.Sessions, deps.Defaults, japanDevHooks, logger)
}

func japanDevHooks(opts Options) (extract.Hooks, error) {
	filters, err := JapanDevFilters(opts.Filters)
	if err != nil {
		return extract.Hooks{}, err
	}
	if len(filters) == 0 {
		return extract.Hooks{}, nil
	}
	return extract.Hooks{
		PrepareListing: func(ctx context.Context, page scraper.Page) error {
			for _, f := range filters {
				if err := page.Click(ctx, f.Selector()); err != nil {
					return fmt.Errorf("apply filter %s: %w", f.ID(), err)
				}
			}
			return nil
		},
	}, nil
}
