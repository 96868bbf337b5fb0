package extract

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobspy-server/internal/scraper"
)

// ChallengeAwaiter blocks until a page is past any interstitial.
type ChallengeAwaiter interface {
	AwaitClear(ctx context.Context, page scraper.Page, timeout time.Duration) error
}

// Hooks let an adapter customize a single extraction run.
type Hooks struct {
	// Params are added to the listing URL query.
	Params url.Values
	// PrepareListing runs on the listing page before cards are located.
	PrepareListing func(ctx context.Context, page scraper.Page) error
	// ChallengeTimeout bounds each interstitial wait. Zero uses the awaiter default.
	ChallengeTimeout time.Duration
}

// Pipeline runs the listing then detail extraction for one site profile.
type Pipeline struct {
	profile    Profile
	challenges ChallengeAwaiter
	clock      scraper.Clock
	logger     *zap.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(profile Profile, challenges ChallengeAwaiter, clock scraper.Clock, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{profile: profile, challenges: challenges, clock: clock, logger: logger}
}

// Profile returns the site profile.
func (p *Pipeline) Profile() Profile {
	return p.profile
}

// ListingURL builds the listing address for req plus any extra query params.
func (p *Pipeline) ListingURL(req scraper.Request, params url.Values) (string, error) {
	u, err := url.Parse(p.profile.ListingURL)
	if err != nil {
		return "", fmt.Errorf("parse listing url: %w", err)
	}
	q := u.Query()
	if term := strings.TrimSpace(req.SearchTerm); term != "" && p.profile.SearchParam != "" {
		q.Set(p.profile.SearchParam, term)
	}
	for key, values := range params {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Extract loads the listing page, walks its cards, and visits each detail page until
// req.ResultsWanted postings are collected. A listing with no matching cards yields an
// empty result. A failing card is logged and skipped.
func (p *Pipeline) Extract(
	ctx context.Context,
	session scraper.Session,
	req scraper.Request,
	hooks Hooks,
) ([]scraper.JobPost, error) {
	listingURL, err := p.ListingURL(req, hooks.Params)
	if err != nil {
		return nil, err
	}
	logger := p.logger.With(zap.String("url", listingURL))
	logger.Info("scraping listing")

	page, err := session.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("open listing page: %w", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			logger.Debug("listing page close failed", zap.Error(cerr))
		}
	}()

	if err := page.Navigate(ctx, listingURL); err != nil {
		return nil, err
	}
	if err := p.awaitClear(ctx, page, hooks.ChallengeTimeout); err != nil {
		return nil, err
	}
	if hooks.PrepareListing != nil {
		if err := hooks.PrepareListing(ctx, page); err != nil {
			return nil, fmt.Errorf("prepare listing: %w", err)
		}
	}

	cardSelector, ok := p.waitForCards(ctx, page, req.Timeout())
	if !ok {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("wait for listing cards: %w", err)
		}
		logger.Warn("no listing cards found")
		return nil, nil
	}
	html, err := page.Content(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}
	cards := doc.Find(cardSelector)
	logger.Debug("listing cards located", zap.String("selector", cardSelector), zap.Int("count", cards.Length()))

	jobs := make([]scraper.JobPost, 0, min(cards.Length(), req.ResultsWanted))
	for i := range cards.Length() {
		if len(jobs) >= req.ResultsWanted {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("extract cards: %w", err)
		}
		post, err := p.extractCard(ctx, session, req, cards.Eq(i), hooks)
		if err != nil {
			logger.Warn("error parsing job card", zap.Int("card", i), zap.Error(err))
			continue
		}
		if post != nil {
			jobs = append(jobs, *post)
		}
	}
	logger.Info("listing scraped", zap.Int("jobs", len(jobs)))
	return jobs, nil
}

func (p *Pipeline) waitForCards(ctx context.Context, page scraper.Page, timeout time.Duration) (string, bool) {
	for _, selector := range p.profile.ListingCards {
		if err := page.WaitVisible(ctx, selector, timeout); err == nil {
			return selector, true
		}
		if ctx.Err() != nil {
			return "", false
		}
	}
	return "", false
}

func (p *Pipeline) awaitClear(ctx context.Context, page scraper.Page, timeout time.Duration) error {
	if p.challenges == nil {
		return nil
	}
	return p.challenges.AwaitClear(ctx, page, timeout)
}

type listingCard struct {
	Title   string
	URL     string
	Company string
}

// extractCard returns nil without error when the card carries no usable link.
func (p *Pipeline) extractCard(
	ctx context.Context,
	session scraper.Session,
	req scraper.Request,
	card *goquery.Selection,
	hooks Hooks,
) (*scraper.JobPost, error) {
	listing, ok := p.parseCard(card)
	if !ok {
		return nil, nil
	}
	detail, err := p.scrapeDetail(ctx, session, listing.URL, hooks)
	if err != nil {
		return nil, err
	}
	post, err := p.buildPost(req, listing, detail)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (p *Pipeline) parseCard(card *goquery.Selection) (listingCard, bool) {
	link, ok := p.profile.CardLink.Node(card)
	if !ok {
		return listingCard{}, false
	}
	href := strings.TrimSpace(link.AttrOr("href", ""))
	if href == "" {
		return listingCard{}, false
	}
	jobURL, err := resolveURL(p.profile.BaseURL, href)
	if err != nil {
		return listingCard{}, false
	}
	company, _ := p.profile.CardCompany.Value(card)
	return listingCard{
		Title:   strings.TrimSpace(link.Text()),
		URL:     jobURL,
		Company: company,
	}, true
}

func (p *Pipeline) scrapeDetail(
	ctx context.Context,
	session scraper.Session,
	jobURL string,
	hooks Hooks,
) (DetailFields, error) {
	page, err := session.NewPage(ctx)
	if err != nil {
		return DetailFields{}, fmt.Errorf("open detail page: %w", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			p.logger.Debug("detail page close failed", zap.String("url", jobURL), zap.Error(cerr))
		}
	}()
	if err := page.Navigate(ctx, jobURL); err != nil {
		return DetailFields{}, err
	}
	if err := p.awaitClear(ctx, page, hooks.ChallengeTimeout); err != nil {
		return DetailFields{}, err
	}
	html, err := page.Content(ctx)
	if err != nil {
		return DetailFields{}, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return DetailFields{}, fmt.Errorf("parse detail: %w", err)
	}
	return p.ParseDetail(doc.Selection), nil
}

// DetailFields are the raw values read from a detail page. Empty means absent.
type DetailFields struct {
	Title           string
	Company         string
	Location        string
	DatePosted      string
	Salary          string
	ApplyURL        string
	DescriptionHTML string
}

// ParseDetail applies the profile's detail chains to a parsed document.
func (p *Pipeline) ParseDetail(root *goquery.Selection) DetailFields {
	sel := p.profile.Detail
	var out DetailFields
	out.Title, _ = sel.Title.Value(root)
	out.Company, _ = sel.Company.Value(root)
	out.Location, _ = sel.Location.Value(root)
	if raw, ok := sel.DatePosted.Value(root); ok {
		out.DatePosted = parseDate(raw, p.profile.DateLayout)
	}
	out.Salary, _ = sel.Salary.Value(root)
	if href, ok := sel.ApplyURL.Value(root); ok {
		if resolved, err := resolveURL(p.profile.BaseURL, href); err == nil {
			out.ApplyURL = resolved
		}
	}
	out.DescriptionHTML, _ = sel.Description.Value(root)
	return out
}

// buildPost merges detail values over listing values and fills defaults.
func (p *Pipeline) buildPost(req scraper.Request, listing listingCard, detail DetailFields) (scraper.JobPost, error) {
	title := firstNonEmpty(detail.Title, listing.Title)
	if title == "" {
		return scraper.JobPost{}, errors.New("posting has no title")
	}
	locality := firstNonEmpty(detail.Location, p.profile.DefaultLocation)
	post := scraper.JobPost{
		Site:         p.profile.Site,
		Title:        title,
		CompanyName:  firstNonEmpty(detail.Company, listing.Company),
		JobURL:       listing.URL,
		JobURLDirect: detail.ApplyURL,
		Location:     &scraper.Location{Country: p.profile.Country, City: locality, State: locality},
		Compensation: ParseCompensation(detail.Salary, p.profile.Salary),
		DatePosted:   firstNonEmpty(detail.DatePosted, p.today()),
	}
	if detail.DescriptionHTML != "" {
		description, err := RenderDescription(detail.DescriptionHTML, req.DescriptionFormat)
		if err != nil {
			return scraper.JobPost{}, err
		}
		post.Description = description
	}
	return post, nil
}

func (p *Pipeline) today() string {
	if p.clock == nil {
		return time.Now().UTC().Format(scraper.DateLayout)
	}
	return p.clock.Now().Format(scraper.DateLayout)
}

func parseDate(raw, layout string) string {
	if layout == "" {
		return ""
	}
	parsed, err := time.Parse(layout, strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return parsed.Format(scraper.DateLayout)
}

func resolveURL(base, ref string) (string, error) {
	refURL, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("parse href: %w", err)
	}
	if base == "" {
		return refURL.String(), nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
