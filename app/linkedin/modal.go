package linkedin

import (
	"fmt"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/playwright-community/playwright-go"
)

const (
	dialogSelector     = "div[role='dialog']"
	validationSelector = ".artdeco-inline-feedback__message"
	fillableSelector   = "input[type='text'], input[type='number'], textarea"
)

// Modal is the Easy Apply dialog surface
type Modal struct {
	page       playwright.Page
	clickDelay time.Duration
}

// NewModal makes a modal surface for the attached jobs page
func NewModal(page playwright.Page, clickDelay time.Duration) *Modal {
	return &Modal{page: page, clickDelay: clickDelay}
}

// Visible reports if the dialog is currently shown
func (m *Modal) Visible() (bool, error) {
	visible, err := m.page.Locator(dialogSelector).IsVisible()
	if err != nil {
		return false, fmt.Errorf("can't check dialog visibility: %w", err)
	}
	return visible, nil
}

// ButtonVisible reports if a button with the given text is shown inside the dialog
func (m *Modal) ButtonVisible(name string) (bool, error) {
	btn := m.button(name)
	count, err := btn.Count()
	if err != nil {
		return false, fmt.Errorf("can't look up %s button: %w", name, err)
	}
	if count == 0 {
		return false, nil
	}
	visible, err := btn.First().IsVisible()
	if err != nil {
		return false, fmt.Errorf("can't check %s button: %w", name, err)
	}
	return visible, nil
}

// ClickButton clicks the named button inside the dialog
func (m *Modal) ClickButton(name string) error {
	if err := m.button(name).First().Click(); err != nil {
		return fmt.Errorf("can't click %s: %w", name, err)
	}
	time.Sleep(m.clickDelay)
	return nil
}

// HasValidationError reports if an inline validation message is shown
func (m *Modal) HasValidationError() (bool, error) {
	msg := m.page.Locator(dialogSelector).Locator(validationSelector)
	count, err := msg.Count()
	if err != nil {
		return false, fmt.Errorf("can't check validation messages: %w", err)
	}
	if count == 0 {
		return false, nil
	}
	visible, err := msg.First().IsVisible()
	if err != nil {
		return false, fmt.Errorf("can't check validation message visibility: %w", err)
	}
	return visible, nil
}

// FillKnownFields fills empty text inputs whose label matches one of the configured
// answers. Returns the number of fields filled. Already-filled fields are left alone.
func (m *Modal) FillKnownFields(answers map[string]string) (int, error) {
	if len(answers) == 0 {
		return 0, nil
	}

	dialog := m.page.Locator(dialogSelector)
	inputs := dialog.Locator(fillableSelector)
	count, err := inputs.Count()
	if err != nil {
		return 0, fmt.Errorf("can't list form fields: %w", err)
	}

	filled := 0
	for i := 0; i < count; i++ {
		input := inputs.Nth(i)
		question := m.questionFor(input, dialog)
		if question == "" {
			continue
		}
		answer, ok := MatchAnswer(question, answers)
		if !ok {
			continue
		}
		val, err := input.InputValue()
		if err != nil || val != "" {
			continue // keep whatever is already there
		}
		if err := input.Fill(answer); err != nil {
			log.Printf("[WARN] can't fill %q, %v", question, err)
			continue
		}
		log.Printf("[INFO] filled %q with %q", question, answer)
		filled++
		time.Sleep(m.clickDelay)
	}
	return filled, nil
}

// button returns a locator for a dialog button with the given visible text
func (m *Modal) button(name string) playwright.Locator {
	return m.page.Locator(dialogSelector).Locator(fmt.Sprintf("button:has-text(%q)", name))
}

// questionFor finds the question text for an input: aria-label first, then the associated label
func (m *Modal) questionFor(input, dialog playwright.Locator) string {
	if aria, err := input.GetAttribute("aria-label"); err == nil && aria != "" {
		return strings.TrimSpace(aria)
	}

	id, err := input.GetAttribute("id")
	if err != nil || id == "" {
		return ""
	}
	label := dialog.Locator(fmt.Sprintf("label[for=%q]", id))
	if count, err := label.Count(); err != nil || count == 0 {
		return ""
	}
	text, err := label.First().TextContent()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

// MatchAnswer picks the configured answer for a form question. Keys are matched
// case-insensitively as substrings of the question, the longest key wins.
func MatchAnswer(question string, answers map[string]string) (string, bool) {
	q := strings.ToLower(strings.TrimSpace(question))
	if q == "" {
		return "", false
	}

	best, bestLen := "", 0
	for key, answer := range answers {
		k := strings.ToLower(strings.TrimSpace(key))
		if k == "" || !strings.Contains(q, k) {
			continue
		}
		if len(k) > bestLen {
			best, bestLen = answer, len(k)
		}
	}
	return best, bestLen > 0
}
