// Package linkedin drives the LinkedIn jobs search UI through playwright locators.
// Everything here is coupled to the third-party DOM and expected to break when the
// site changes; failures surface to the caller which asks the user to act manually.
package linkedin

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/playwright-community/playwright-go"

	"github.com/umputun/autoapply/app/config"
)

// ApplyFilters applies configured search filters one by one. Each filter is independent,
// a failed one is collected and reported so the user can set it manually.
func ApplyFilters(page playwright.Page, filters config.Filters, clickDelay time.Duration) (failures []string) {
	if filters.Location != "" {
		if err := applyLocation(page, filters.Location, clickDelay); err != nil {
			failures = append(failures, fmt.Sprintf("location (%v)", err))
		}
	}

	// an explicit empty distance clears whatever distance filter is active
	if filters.Distance != nil && *filters.Distance == "" {
		if err := clearDistance(page); err != nil {
			failures = append(failures, fmt.Sprintf("distance (%v)", err))
		}
	}

	if filters.TimePosted != "" {
		if err := applyDatePosted(page, filters.TimePosted); err != nil {
			failures = append(failures, fmt.Sprintf("time_posted (%v)", err))
		}
	}

	if filters.EasyApply {
		if err := applyEasyApply(page, clickDelay); err != nil {
			failures = append(failures, fmt.Sprintf("easy_apply (%v)", err))
		}
	}

	return failures
}

// applyLocation fills the location box and picks the matching suggestion
func applyLocation(page playwright.Page, location string, clickDelay time.Duration) error {
	selectors := []string{
		"input[aria-label='City, state, or zip code']",
		"input[aria-label='Location']",
		"input[placeholder*='Location']",
	}

	var input playwright.Locator
	for _, sel := range selectors {
		loc := page.Locator(sel)
		if count, err := loc.Count(); err == nil && count > 0 {
			input = loc.First()
			break
		}
	}
	if input == nil {
		return fmt.Errorf("location input not found")
	}

	cleared := false
	for _, sel := range []string{
		"button[aria-label='Clear location']",
		"button[aria-label='Clear']",
		"button[aria-label='Clear search']",
	} {
		btn := page.Locator(sel)
		count, err := btn.Count()
		if err != nil || count == 0 {
			continue
		}
		if visible, err := btn.First().IsVisible(); err == nil && visible {
			if err := btn.First().Click(); err == nil {
				cleared = true
				break
			}
		}
	}

	if err := input.Click(); err != nil {
		return fmt.Errorf("can't focus location input: %w", err)
	}
	if !cleared {
		// select-all shortcut differs between macOS and the rest, try both
		for _, combo := range []string{"Meta+A", "Control+A"} {
			_ = input.Press(combo)
			_ = input.Press("Backspace")
		}
	}

	if err := input.Fill(""); err != nil {
		return fmt.Errorf("can't clear location input: %w", err)
	}
	if err := input.PressSequentially(location, playwright.LocatorPressSequentiallyOptions{Delay: playwright.Float(25)}); err != nil {
		return fmt.Errorf("can't type location: %w", err)
	}
	time.Sleep(clickDelay)

	suggestions := page.Locator("ul[role='listbox'] li, div[role='listbox'] li")
	if count, err := suggestions.Count(); err == nil && count > 0 {
		for _, candidate := range locationCandidates(location) {
			match := suggestions.Filter(playwright.LocatorFilterOptions{HasText: labelRe(candidate)})
			if mc, err := match.Count(); err != nil || mc == 0 {
				continue
			}
			if visible, err := match.First().IsVisible(); err == nil && visible {
				return match.First().Click()
			}
		}
		// no exact suggestion, take the first one
		if visible, err := suggestions.First().IsVisible(); err == nil && visible {
			return suggestions.First().Click()
		}
	}

	return input.Press("Enter")
}

// applyDatePosted picks the date-posted option matching the configured label
func applyDatePosted(page playwright.Page, label string) error {
	btn := page.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{Name: labelRe("Date posted")})
	if err := btn.First().Click(); err != nil {
		return fmt.Errorf("can't open date posted filter: %w", err)
	}

	option := page.GetByRole(*playwright.AriaRoleRadio, playwright.PageGetByRoleOptions{Name: labelRe(label)})
	if count, err := option.Count(); err != nil || count == 0 {
		option = page.GetByLabel(labelRe(label))
	}
	if err := option.First().Click(); err != nil {
		return fmt.Errorf("can't pick %q: %w", label, err)
	}

	clickShowResults(page)
	return nil
}

// applyEasyApply toggles the Easy Apply filter, falling back to the All-filters pane
func applyEasyApply(page playwright.Page, clickDelay time.Duration) error {
	btn := page.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{Name: regexp.MustCompile(`(?i)^Easy Apply$`)})
	if count, err := btn.Count(); err == nil && count > 0 {
		pressed, err := btn.First().GetAttribute("aria-pressed")
		if err == nil && pressed == "true" {
			return nil // already on
		}
		if err := btn.First().Click(); err == nil {
			time.Sleep(clickDelay)
			return nil
		}
	}

	allFilters := page.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{Name: labelRe("All filters")})
	if err := allFilters.First().Click(); err != nil {
		return fmt.Errorf("can't open all filters: %w", err)
	}

	checkbox := page.GetByRole(*playwright.AriaRoleCheckbox, playwright.PageGetByRoleOptions{Name: labelRe("Easy Apply")})
	if count, err := checkbox.Count(); err != nil || count == 0 {
		checkbox = page.Locator("label:has-text('Easy Apply') input[type='checkbox']")
	}
	if count, err := checkbox.Count(); err == nil && count > 0 {
		if err := checkbox.First().Check(); err != nil {
			return fmt.Errorf("can't check easy apply: %w", err)
		}
	}

	showResults := page.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{Name: labelRe("Show results|Apply")})
	return showResults.First().Click()
}

// clearDistance resets distance to "any", preferring the top-level filter button
func clearDistance(page playwright.Page) error {
	opened := false
	btn := page.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{Name: regexp.MustCompile(`(?i)^Distance$`)})
	if count, err := btn.Count(); err == nil && count > 0 {
		if err := btn.First().Click(); err == nil {
			opened = true
		}
	}

	if !opened {
		allFilters := page.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{Name: labelRe("All filters")})
		if err := allFilters.First().Click(); err != nil {
			return fmt.Errorf("can't open filters to clear distance: %w", err)
		}
	}

	option := page.GetByRole(*playwright.AriaRoleRadio, playwright.PageGetByRoleOptions{Name: labelRe("Any distance|Any")})
	if count, err := option.Count(); err != nil || count == 0 {
		option = page.GetByLabel(labelRe("Any distance|Any"))
	}
	if count, err := option.Count(); err != nil || count == 0 {
		return nil // nothing to clear
	}
	if err := option.First().Click(); err != nil {
		return fmt.Errorf("can't pick any distance: %w", err)
	}

	clickShowResults(page)
	return nil
}

// clickShowResults clicks the apply/show-results button if present, best effort
func clickShowResults(page playwright.Page) {
	btn := page.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{Name: labelRe("Show results|Apply")})
	if count, err := btn.Count(); err != nil || count == 0 {
		return
	}
	if err := btn.First().Click(); err != nil {
		log.Printf("[DEBUG] can't click show results, %v", err)
	}
}

// locationCandidates expands a location with known spelling aliases so the
// suggestion list can be matched in either form
func locationCandidates(location string) []string {
	res := []string{location}
	switch strings.ToLower(location) {
	case "türkiye", "turkiye":
		res = append(res, "Turkey")
	case "turkey":
		res = append(res, "Türkiye")
	}
	return res
}

// labelRe builds a case-insensitive regexp from a user-facing label.
// The label may carry alternatives separated by |, each part is quoted.
func labelRe(label string) *regexp.Regexp {
	parts := strings.Split(label, "|")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`(?i)` + strings.Join(parts, "|"))
}
