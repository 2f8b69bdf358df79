package linkedin

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/playwright-community/playwright-go"
)

const (
	cardsSelector         = "ul.jobs-search-results__list li"
	resultsListSelector   = "div.jobs-search-results-list"
	easyApplyBtnSelector  = "button:has-text('Easy Apply')"
	jobViewHrefRe         = `/jobs/view/(\d+)`
	defaultEasyApplyPause = time.Second
)

var reJobViewHref = regexp.MustCompile(jobViewHrefRe)

// Board is the job search results surface: the cards list on the left
// and the job details pane it opens on click.
type Board struct {
	page       playwright.Page
	clickDelay time.Duration
	scrollStep int
}

// NewBoard makes a board for the attached jobs page
func NewBoard(page playwright.Page, clickDelay time.Duration, scrollStep int) *Board {
	if scrollStep <= 0 {
		scrollStep = 1200
	}
	return &Board{page: page, clickDelay: clickDelay, scrollStep: scrollStep}
}

// CardCount returns the number of job cards currently in the results list
func (b *Board) CardCount() (int, error) {
	count, err := b.page.Locator(cardsSelector).Count()
	if err != nil {
		return 0, fmt.Errorf("can't count job cards: %w", err)
	}
	return count, nil
}

// CardID extracts the job id from the card at idx, empty string when not found.
// Tries data attributes first, then the /jobs/view/<id> link.
func (b *Board) CardID(idx int) string {
	card := b.page.Locator(cardsSelector).Nth(idx)

	for _, attr := range []string{"data-occludable-job-id", "data-job-id"} {
		if id, err := card.GetAttribute(attr); err == nil && id != "" {
			return id
		}
	}

	href, err := card.Locator("a").First().GetAttribute("href")
	if err != nil {
		return ""
	}
	return JobIDFromHref(href)
}

// OpenCard scrolls the card into view and clicks it to load the details pane
func (b *Board) OpenCard(idx int) error {
	card := b.page.Locator(cardsSelector).Nth(idx)
	if err := card.ScrollIntoViewIfNeeded(); err != nil {
		return fmt.Errorf("can't scroll to card %d: %w", idx, err)
	}
	if err := card.Click(); err != nil {
		return fmt.Errorf("can't open card %d: %w", idx, err)
	}
	time.Sleep(defaultEasyApplyPause) // let the details pane load
	return nil
}

// JobTitle reads the job title from the details pane, empty when not found
func (b *Board) JobTitle() string {
	return b.firstVisibleText(".jobs-unified-top-card__job-title", "h1", "h2")
}

// JobCompany reads the company name from the details pane, empty when not found
func (b *Board) JobCompany() string {
	return b.firstVisibleText(
		".jobs-unified-top-card__company-name",
		".job-details-jobs-unified-top-card__company-name",
		"a[data-control-name='company_link']",
	)
}

// PageURL returns the current page url
func (b *Board) PageURL() string {
	return b.page.URL()
}

// StartEasyApply clicks the Easy Apply button on the details pane.
// Returns false when the job has no Easy Apply.
func (b *Board) StartEasyApply() (bool, error) {
	btn := b.page.Locator(easyApplyBtnSelector)
	count, err := btn.Count()
	if err != nil {
		return false, fmt.Errorf("can't look up easy apply button: %w", err)
	}
	if count == 0 {
		return false, nil
	}
	if err := btn.First().Click(); err != nil {
		return false, fmt.Errorf("can't click easy apply: %w", err)
	}
	time.Sleep(defaultEasyApplyPause) // wait for the modal to open
	return true, nil
}

// LoadMore scrolls the results list to trigger loading of the next batch of cards
func (b *Board) LoadMore() error {
	container := b.page.Locator(resultsListSelector)
	if count, err := container.Count(); err == nil && count > 0 {
		if _, err := container.First().Evaluate(fmt.Sprintf("(el) => el.scrollBy(0, %d)", b.scrollStep), nil); err == nil {
			return nil
		}
	}
	if err := b.page.Mouse().Wheel(0, float64(b.scrollStep)); err != nil {
		return fmt.Errorf("can't scroll results: %w", err)
	}
	return nil
}

// firstVisibleText returns trimmed text of the first visible match among selectors
func (b *Board) firstVisibleText(selectors ...string) string {
	for _, sel := range selectors {
		loc := b.page.Locator(sel)
		count, err := loc.Count()
		if err != nil || count == 0 {
			continue
		}
		visible, err := loc.First().IsVisible()
		if err != nil || !visible {
			continue
		}
		text, err := loc.First().TextContent()
		if err != nil {
			log.Printf("[DEBUG] can't read text for %s, %v", sel, err)
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			return text
		}
	}
	return ""
}

// JobIDFromHref extracts the numeric job id from a /jobs/view/<id> link
func JobIDFromHref(href string) string {
	if href == "" {
		return ""
	}
	if m := reJobViewHref.FindStringSubmatch(href); len(m) == 2 {
		return m[1]
	}
	return ""
}
