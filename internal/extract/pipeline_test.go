package extract

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobspy-server/internal/scraper"
)

const listingHTML = `<html><body>
<div class="job-item">
  <a class="job-item__title" href="/jobs/acme/backend">Backend Engineer</a>
  <img class="company-logo__inner" alt="Acme">
</div>
<div class="job-item">
  <span class="job-item__title">No link here</span>
</div>
<div class="job-item">
  <a class="title link" href="https://japan-dev.com/jobs/beta/sre">SRE</a>
  <img class="company-logo__inner" alt="Beta">
</div>
<div class="job-item">
  <a class="job-item__title" href="/jobs/gamma/broken">Broken Detail</a>
</div>
<div class="job-item">
  <a class="job-item__title" href="/jobs/delta/qa">QA Engineer</a>
</div>
</body></html>`

const acmeDetailHTML = `<html><body>
<h1 class="job-detail__job-name">Senior Backend Engineer</h1>
<a class="job-logo__company-name">Acme KK</a>
<div class="job-logo__location">Tokyo</div>
<ul class="job-detail__summary-list">
  <li><span>Tokyo</span></li>
  <li><span>Full-time</span></li>
  <li><span>January 23, 2026</span></li>
</ul>
<div class="job-detail-tag-list__basic-tag">
  <img alt="clock-icon"><div class="job-detail-tag-list__tag-desc">Flex time</div>
</div>
<div class="job-detail-tag-list__basic-tag">
  <img alt="yen-icon"><div class="job-detail-tag-list__tag-desc">8.5M 12M yr</div>
</div>
<a class="btn" href="https://acme.example/apply">Apply now</a>
<div class="job-detail-main-content"><div class="body"><h2>About</h2><p>Build <strong>Go</strong> services.</p></div></div>
</body></html>`

const betaDetailHTML = `<html><body>
<ul class="job-detail__summary-list">
  <li><span>Osaka</span></li>
  <li><span>sometime soon</span></li>
</ul>
<div class="job-detail-main-content"><p>Keep things running.</p></div>
</body></html>`

const deltaDetailHTML = `<html><body><h1 class="job-detail__job-name">QA Engineer</h1></body></html>`

func testProfile() Profile {
	return Profile{
		Site:         scraper.SiteJapanDev,
		ListingURL:   "https://japan-dev.com/japan-jobs-relocation",
		BaseURL:      "https://japan-dev.com/japan-jobs-relocation",
		SearchParam:  "query",
		ListingCards: []string{".job-item", ".top-jobs__job-item"},
		CardLink:     Chain{Q(".job-item__title"), Q("a.title.link")},
		CardCompany:  Chain{{Query: "img.company-logo__inner", Attr: "alt"}},
		Detail: DetailSelectors{
			Title:   Chain{Q("h1.job-detail__job-name")},
			Company: Chain{Q("a.job-logo__company-name")},
			Location: Chain{
				Q("div.job-logo__location"),
				Q("ul.job-detail__summary-list li span"),
			},
			DatePosted: Chain{{Query: "ul.job-detail__summary-list li span", Last: true}},
			Salary: Chain{Q("div.job-detail-tag-list__basic-tag:has(img[alt='yen-icon']) " +
				"div.job-detail-tag-list__tag-desc")},
			ApplyURL: Chain{{Query: "a", Attr: "href", Contains: "APPLY NOW"}},
			Description: Chain{
				{Query: "div.job-detail-main-content div.body", HTML: true},
				{Query: "div.job-detail-main-content", HTML: true},
			},
		},
		DateLayout:      "January 2, 2006",
		DefaultLocation: "Japan",
		Country:         scraper.CountryJapan,
		Salary:          SalaryRule{Multiplier: 1_000_000, Currency: "JPY", Interval: scraper.IntervalYearly},
	}
}

type fakeSession struct {
	mu        sync.Mutex
	pages     map[string]string
	visible   map[string]bool
	navErrs   map[string]error
	opened    int
	closed    int
	navigated []string
	clicked   []string
}

func newFakeSession(pages map[string]string, visible ...string) *fakeSession {
	vis := make(map[string]bool, len(visible))
	for _, v := range visible {
		vis[v] = true
	}
	return &fakeSession{pages: pages, visible: vis, navErrs: map[string]error{}}
}

func (s *fakeSession) NewPage(context.Context) (scraper.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened++
	return &fakeTab{session: s}, nil
}

func (s *fakeSession) Close() error { return nil }

func (s *fakeSession) openTabs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened - s.closed
}

type fakeTab struct {
	session *fakeSession
	url     string
	closed  bool
}

func (p *fakeTab) Navigate(_ context.Context, rawURL string) error {
	p.session.mu.Lock()
	defer p.session.mu.Unlock()
	p.session.navigated = append(p.session.navigated, rawURL)
	if err := p.session.navErrs[rawURL]; err != nil {
		return err
	}
	p.url = rawURL
	return nil
}

func (p *fakeTab) WaitVisible(_ context.Context, selector string, _ time.Duration) error {
	p.session.mu.Lock()
	defer p.session.mu.Unlock()
	if p.session.visible[selector] {
		return nil
	}
	return fmt.Errorf("wait for %q: timeout", selector)
}

func (p *fakeTab) Content(context.Context) (string, error) {
	p.session.mu.Lock()
	defer p.session.mu.Unlock()
	u, _ := url.Parse(p.url)
	if html, ok := p.session.pages[u.Path]; ok {
		return html, nil
	}
	return "<html></html>", nil
}

func (p *fakeTab) Click(_ context.Context, selector string) error {
	p.session.mu.Lock()
	defer p.session.mu.Unlock()
	p.session.clicked = append(p.session.clicked, selector)
	return nil
}

func (p *fakeTab) MoveMouse(context.Context, float64, float64, int) error { return nil }

func (p *fakeTab) Close() error {
	p.session.mu.Lock()
	defer p.session.mu.Unlock()
	if !p.closed {
		p.closed = true
		p.session.closed++
	}
	return nil
}

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type countingAwaiter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (a *countingAwaiter) AwaitClear(context.Context, scraper.Page, time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return a.err
}

func newTestPipeline(awaiter ChallengeAwaiter) *Pipeline {
	clock := fakeClock{now: time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)}
	return NewPipeline(testProfile(), awaiter, clock, zap.NewNop())
}

func testRequest(results int, format scraper.DescriptionFormat) scraper.Request {
	return scraper.Request{
		Sites:             []scraper.Site{scraper.SiteJapanDev},
		SearchTerm:        "golang",
		ResultsWanted:     results,
		RequestTimeout:    5,
		DescriptionFormat: format,
	}
}

func standardPages() map[string]string {
	return map[string]string{
		"/japan-jobs-relocation": listingHTML,
		"/jobs/acme/backend":     acmeDetailHTML,
		"/jobs/beta/sre":         betaDetailHTML,
		"/jobs/delta/qa":         deltaDetailHTML,
	}
}

func TestPipeline_ExtractMergesDetailOverListing(t *testing.T) {
	t.Parallel()

	session := newFakeSession(standardPages(), ".job-item")
	session.navErrs["https://japan-dev.com/jobs/gamma/broken"] = errors.New("net::ERR_CONNECTION_RESET")
	awaiter := &countingAwaiter{}
	p := newTestPipeline(awaiter)

	jobs, err := p.Extract(context.Background(), session, testRequest(10, scraper.FormatHTML), Hooks{})
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	require.Zero(t, session.openTabs())

	acme := jobs[0]
	require.Equal(t, scraper.SiteJapanDev, acme.Site)
	require.Equal(t, "Senior Backend Engineer", acme.Title)
	require.Equal(t, "Acme KK", acme.CompanyName)
	require.Equal(t, "https://japan-dev.com/jobs/acme/backend", acme.JobURL)
	require.Equal(t, "https://acme.example/apply", acme.JobURLDirect)
	require.Equal(t, &scraper.Location{Country: scraper.CountryJapan, City: "Tokyo", State: "Tokyo"}, acme.Location)
	require.Equal(t, "2026-01-23", acme.DatePosted)
	require.Equal(t, &scraper.Compensation{
		Interval:  scraper.IntervalYearly,
		MinAmount: 8_500_000,
		MaxAmount: 12_000_000,
		Currency:  "JPY",
	}, acme.Compensation)
	require.Contains(t, acme.Description, "<strong>Go</strong>")

	beta := jobs[1]
	require.Equal(t, "SRE", beta.Title)
	require.Equal(t, "Beta", beta.CompanyName)
	require.Equal(t, "Osaka", beta.Location.City)
	require.Equal(t, "2026-03-04", beta.DatePosted)
	require.Nil(t, beta.Compensation)
	require.Contains(t, beta.Description, "Keep things running.")

	delta := jobs[2]
	require.Equal(t, "Japan", delta.Location.City)
	require.Equal(t, "Japan", delta.Location.State)
	require.Empty(t, delta.CompanyName)

	require.Equal(t, 4, awaiter.calls)
	require.Equal(t, "https://japan-dev.com/japan-jobs-relocation?query=golang", session.navigated[0])
}

func TestPipeline_ExtractStopsAtResultsWanted(t *testing.T) {
	t.Parallel()

	session := newFakeSession(standardPages(), ".job-item")
	p := newTestPipeline(nil)

	jobs, err := p.Extract(context.Background(), session, testRequest(1, scraper.FormatPlain), Hooks{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "Senior Backend Engineer", jobs[0].Title)
	require.Equal(t, "About\nBuild Go services.", jobs[0].Description)
	require.Len(t, session.navigated, 2)
}

func TestPipeline_FallbackCardSelector(t *testing.T) {
	t.Parallel()

	pages := map[string]string{
		"/japan-jobs-relocation": `<div class="top-jobs__job-item"><a class="title link" href="/jobs/delta/qa">QA</a></div>`,
		"/jobs/delta/qa":         deltaDetailHTML,
	}
	session := newFakeSession(pages, ".top-jobs__job-item")
	p := newTestPipeline(nil)

	jobs, err := p.Extract(context.Background(), session, testRequest(5, scraper.FormatMarkdown), Hooks{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "QA Engineer", jobs[0].Title)
}

func TestPipeline_NoCardsIsEmptyNotError(t *testing.T) {
	t.Parallel()

	session := newFakeSession(standardPages())
	p := newTestPipeline(nil)

	jobs, err := p.Extract(context.Background(), session, testRequest(5, scraper.FormatMarkdown), Hooks{})
	require.NoError(t, err)
	require.Empty(t, jobs)
	require.Zero(t, session.openTabs())
}

func TestPipeline_ListingChallengeTimeoutIsError(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("challenge stuck")
	session := newFakeSession(standardPages(), ".job-item")
	p := newTestPipeline(&countingAwaiter{err: sentinel})

	_, err := p.Extract(context.Background(), session, testRequest(5, scraper.FormatMarkdown), Hooks{})
	require.ErrorIs(t, err, sentinel)
	require.Zero(t, session.openTabs())
}

func TestPipeline_HooksApplyParamsAndPrepare(t *testing.T) {
	t.Parallel()

	session := newFakeSession(standardPages(), ".job-item")
	p := newTestPipeline(nil)
	hooks := Hooks{
		Params: url.Values{"seniority[]": {"senior"}},
		PrepareListing: func(ctx context.Context, page scraper.Page) error {
			return page.Click(ctx, "[id='seniority_level-seniority_level_senior']")
		},
	}

	_, err := p.Extract(context.Background(), session, testRequest(1, scraper.FormatMarkdown), hooks)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(session.navigated[0], "https://japan-dev.com/japan-jobs-relocation?"))
	require.Contains(t, session.navigated[0], "query=golang")
	require.Contains(t, session.navigated[0], "seniority%5B%5D=senior")
	require.Equal(t, []string{"[id='seniority_level-seniority_level_senior']"}, session.clicked)
}

func TestPipeline_PrepareFailureIsError(t *testing.T) {
	t.Parallel()

	session := newFakeSession(standardPages(), ".job-item")
	p := newTestPipeline(nil)
	hooks := Hooks{PrepareListing: func(context.Context, scraper.Page) error { return errors.New("filter missing") }}

	_, err := p.Extract(context.Background(), session, testRequest(1, scraper.FormatMarkdown), hooks)
	require.ErrorContains(t, err, "filter missing")
}

func TestParseDetail_MissingFieldsAreAbsent(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body><p>nothing</p></body></html>"))
	require.NoError(t, err)
	fields := newTestPipeline(nil).ParseDetail(doc.Selection)
	require.Equal(t, DetailFields{}, fields)
}

func TestParseCompensation(t *testing.T) {
	t.Parallel()

	rule := SalaryRule{Multiplier: 1_000_000, Currency: "JPY", Interval: scraper.IntervalYearly}
	testCases := []struct {
		name   string
		input  string
		expect *scraper.Compensation
	}{
		{"range", "10M 14M yr", &scraper.Compensation{Interval: "yearly", MinAmount: 10e6, MaxAmount: 14e6, Currency: "JPY"}},
		{"decimal", "8.5M ~ 12M", &scraper.Compensation{Interval: "yearly", MinAmount: 8.5e6, MaxAmount: 12e6, Currency: "JPY"}},
		{"commas", "¥1,000 - ¥2,000", &scraper.Compensation{Interval: "yearly", MinAmount: 1e9, MaxAmount: 2e9, Currency: "JPY"}},
		{"single", "12M", nil},
		{"empty", "", nil},
		{"words", "competitive", nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.expect, ParseCompensation(tc.input, rule))
		})
	}
}

func TestRenderDescription(t *testing.T) {
	t.Parallel()

	html := "<h2>Role</h2><p>Write <strong>Go</strong>.</p>"

	out, err := RenderDescription(html, scraper.FormatHTML)
	require.NoError(t, err)
	require.Equal(t, html, out)

	out, err = RenderDescription(html, scraper.FormatMarkdown)
	require.NoError(t, err)
	require.Contains(t, out, "## Role")
	require.Contains(t, out, "**Go**")

	out, err = RenderDescription(html, scraper.FormatPlain)
	require.NoError(t, err)
	require.Equal(t, "Role\nWrite Go.", out)
}

func TestChain_FallbackOrder(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<div><span class="a"> </span><span class="b">second</span><span class="b">third</span></div>`))
	require.NoError(t, err)

	value, ok := Chain{Q(".a"), Q(".b")}.Value(doc.Selection)
	require.True(t, ok)
	require.Equal(t, "second", value)

	value, ok = Chain{{Query: ".b", Last: true}}.Value(doc.Selection)
	require.True(t, ok)
	require.Equal(t, "third", value)

	_, ok = Chain{Q(".missing")}.Value(doc.Selection)
	require.False(t, ok)
}
