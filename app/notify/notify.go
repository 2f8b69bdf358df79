// Package notify provides delivery of ready-to-submit and session summary
// messages to the configured destinations (email, telegram, slack, webhook)
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/notify"
	"github.com/go-pkgz/syncs"
)

//go:generate moq -out mocks/notifier.go -pkg mocks -skip-ensure -fmt goimports . Notifier

// Notifier is a subset of go-pkgz/notify used by the service, defined for mocking
type Notifier interface {
	Send(ctx context.Context, destination, text string) error
	Schema() string
	String() string
}

// Params defines what and how to notify
type Params struct {
	EnabledReady    bool   // send a message when an application reaches the submit step
	EnabledSummary  bool   // send a session summary on exit
	ReadyTemplate   string // file with custom ready template, empty for default
	SummaryTemplate string // file with custom summary template, empty for default
	HostName        string // reported in messages
}

// SendersParams holds the configuration for all supported senders
type SendersParams struct {
	FromEmail    string
	ToEmails     []string
	SMTPHost     string
	SMTPPort     int
	SMTPTLS      bool
	SMTPUsername string
	SMTPPassword string
	SMTPTimeOut  time.Duration

	TelegramToken        string
	TelegramDestinations []string
	TelegramTimeout      time.Duration

	SlackToken    string
	SlackChannels []string

	WebhookURLs []string
}

// Service delivers messages to all configured destinations
type Service struct {
	Params
	destinations  []Notifier
	fromEmail     string
	toEmail       []string
	telegramDests []string
	slackChannels []string
	webhookURLs   []string
}

const sendConcurrency = 4

// NewService creates notification service with the given senders.
// Returns nil if no destination is configured, callers treat nil service as disabled.
func NewService(p Params, sp SendersParams) *Service {
	res := &Service{
		Params:        p,
		fromEmail:     sp.FromEmail,
		toEmail:       sp.ToEmails,
		telegramDests: sp.TelegramDestinations,
		slackChannels: sp.SlackChannels,
		webhookURLs:   sp.WebhookURLs,
	}

	if len(sp.ToEmails) > 0 {
		res.destinations = append(res.destinations, notify.NewEmail(notify.SMTPParams{
			Host:        sp.SMTPHost,
			Port:        sp.SMTPPort,
			TLS:         sp.SMTPTLS,
			Username:    sp.SMTPUsername,
			Password:    sp.SMTPPassword,
			TimeOut:     sp.SMTPTimeOut,
			ContentType: "text/html",
		}))
	}

	if sp.TelegramToken != "" && len(sp.TelegramDestinations) > 0 {
		tg, err := notify.NewTelegram(notify.TelegramParams{Token: sp.TelegramToken, Timeout: sp.TelegramTimeout})
		if err != nil {
			log.Printf("[WARN] telegram sender disabled, %v", err)
		} else {
			res.destinations = append(res.destinations, tg)
		}
	}

	if sp.SlackToken != "" && len(sp.SlackChannels) > 0 {
		res.destinations = append(res.destinations, notify.NewSlack(sp.SlackToken))
	}

	if len(sp.WebhookURLs) > 0 {
		res.destinations = append(res.destinations, notify.NewWebhook(notify.WebhookParams{Timeout: 5 * time.Second}))
	}

	if len(res.destinations) == 0 {
		return nil
	}
	for _, d := range res.destinations {
		log.Printf("[INFO] notification destination %s", d.String())
	}
	return res
}

// Send delivers the message to every configured destination concurrently
func (s *Service) Send(ctx context.Context, subj, text string) error {
	if s == nil {
		return nil
	}

	wg := syncs.NewSizedGroup(sendConcurrency, syncs.Context(ctx))
	var lock sync.Mutex
	var errs []error

	for _, sender := range s.destinations {
		for _, dest := range s.destinationsFor(sender, subj) {
			wg.Go(func(ctx context.Context) {
				log.Printf("[DEBUG] sending to %s", dest)
				if err := sender.Send(ctx, dest, text); err != nil {
					lock.Lock()
					errs = append(errs, err)
					lock.Unlock()
				}
			})
		}
	}
	wg.Wait()
	return errors.Join(errs...)
}

// IsOnReady reports if ready-to-submit notifications requested
func (s *Service) IsOnReady() bool { return s != nil && s.EnabledReady }

// IsOnSummary reports if session summary notifications requested
func (s *Service) IsOnSummary() bool { return s != nil && s.EnabledSummary }

// destinationsFor builds destination strings for a sender schema
func (s *Service) destinationsFor(sender Notifier, subj string) []string {
	switch sender.Schema() {
	case "mailto":
		return []string{fmt.Sprintf("mailto:%s?from=%s&subject=%s",
			strings.Join(s.toEmail, ","), s.fromEmail, url.QueryEscape(subj))}
	case "telegram":
		res := make([]string, 0, len(s.telegramDests))
		for _, d := range s.telegramDests {
			if !strings.HasPrefix(d, "telegram:") {
				d = "telegram:" + d
			}
			res = append(res, d)
		}
		return res
	case "slack":
		res := make([]string, 0, len(s.slackChannels))
		for _, ch := range s.slackChannels {
			if !strings.HasPrefix(ch, "slack:") {
				ch = "slack:" + ch
			}
			res = append(res, ch)
		}
		return res
	default: // webhook, destination is the url itself
		return s.webhookURLs
	}
}

// MakeReadyHTML creates the message sent when an application reached the submit step
func (s *Service) MakeReadyHTML(title, company, jobURL string) (string, error) {
	data := struct {
		Title   string
		Company string
		URL     string
		TS      time.Time
		Host    string
	}{Title: title, Company: company, URL: jobURL, TS: time.Now(), Host: s.HostName}

	return s.makeHTML(s.ReadyTemplate, defaultReadyTemplate, data)
}

// MakeSummaryHTML creates the session summary message from per-status counts
func (s *Service) MakeSummaryHTML(stats map[string]int) (string, error) {
	type line struct {
		Status string
		Count  int
	}
	lines := make([]line, 0, len(stats))
	total := 0
	for st, n := range stats {
		lines = append(lines, line{Status: st, Count: n})
		total += n
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Status < lines[j].Status })

	data := struct {
		Lines []line
		Total int
		TS    time.Time
		Host  string
	}{Lines: lines, Total: total, TS: time.Now(), Host: s.HostName}

	return s.makeHTML(s.SummaryTemplate, defaultSummaryTemplate, data)
}

// makeHTML renders the custom template file if set and loadable, default otherwise
func (s *Service) makeHTML(tmplFile, defaultTmpl string, data any) (string, error) {
	tmplText := defaultTmpl
	if tmplFile != "" {
		body, err := os.ReadFile(tmplFile) // nolint gosec // path from the user config
		if err != nil {
			log.Printf("[WARN] can't read template %s, fallback to default, %v", tmplFile, err)
		} else {
			tmplText = string(body)
		}
	}

	t, err := template.New("msg").Parse(tmplText)
	if err != nil {
		if tmplText == defaultTmpl {
			return "", fmt.Errorf("can't parse message template: %w", err)
		}
		log.Printf("[WARN] can't parse custom template, fallback to default, %v", err)
		if t, err = template.New("msg").Parse(defaultTmpl); err != nil {
			return "", fmt.Errorf("can't parse message template: %w", err)
		}
	}

	buf := bytes.Buffer{}
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("can't execute message template: %w", err)
	}
	return buf.String(), nil
}
