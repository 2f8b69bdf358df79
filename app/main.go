package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater"
	"github.com/go-pkgz/repeater/strategy"
	"github.com/playwright-community/playwright-go"
	"github.com/umputun/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/umputun/autoapply/app/browser"
	"github.com/umputun/autoapply/app/config"
	"github.com/umputun/autoapply/app/linkedin"
	"github.com/umputun/autoapply/app/notify"
	"github.com/umputun/autoapply/app/session"
	"github.com/umputun/autoapply/app/store"
	"github.com/umputun/autoapply/app/web"
)

var opts struct {
	Config string `short:"f" long:"config" env:"AUTOAPPLY_CONFIG" default:"config.yml" description:"config file"`
	Resume string `short:"r" long:"resume" env:"AUTOAPPLY_RESUME" default:"state/inflight" description:"in-flight markers location, empty disables interrupted-application detection"`
	Dbg    bool   `long:"dbg" env:"AUTOAPPLY_DEBUG" description:"debug mode"`

	Browser struct {
		DebugURL string        `long:"debug-url" env:"DEBUG_URL" default:"http://localhost:9222" description:"browser remote debugging endpoint"`
		Timeout  time.Duration `long:"timeout" env:"TIMEOUT" default:"5s" description:"default timeout for page operations"`
	} `group:"browser" namespace:"browser" env-namespace:"AUTOAPPLY_BROWSER"`

	Repeater struct {
		Attempts int           `long:"attempts" env:"ATTEMPTS" default:"3" description:"how many times to repeat failed attach"`
		Duration time.Duration `long:"duration" env:"DURATION" default:"1s" description:"initial duration"`
		Factor   float64       `long:"factor" env:"FACTOR" default:"3" description:"backoff factor"`
		Jitter   bool          `long:"jitter" env:"JITTER" description:"jitter"`
	} `group:"repeater" namespace:"repeater" env-namespace:"AUTOAPPLY_REPEATER"`

	Notify struct {
		EnabledReady    bool          `long:"enabled-ready" env:"ENABLED_READY" description:"enable notifications when an application is ready to submit"`
		EnabledSummary  bool          `long:"enabled-summary" env:"ENABLED_SUMMARY" description:"enable session summary notifications"`
		ReadyTemplate   string        `long:"ready-template" env:"READY_TEMPLATE" description:"ready message template file"`
		SummaryTemplate string        `long:"summary-template" env:"SUMMARY_TEMPLATE" description:"summary message template file"`
		Timeout         time.Duration `long:"timeout" env:"TIMEOUT" default:"30s" description:"timeout for notification delivery"`

		SMTPHost     string        `long:"smtp-host" env:"SMTP_HOST" description:"SMTP host"`
		SMTPPort     int           `long:"smtp-port" env:"SMTP_PORT" description:"SMTP port"`
		SMTPUsername string        `long:"smtp-username" env:"SMTP_USERNAME" description:"SMTP user name"`
		SMTPPassword string        `long:"smtp-password" env:"SMTP_PASSWORD" description:"SMTP password"`
		SMTPTLS      bool          `long:"smtp-tls" env:"SMTP_TLS" description:"enable SMTP TLS"`
		SMTPTimeOut  time.Duration `long:"smtp-timeout" env:"SMTP_TIMEOUT" default:"10s" description:"SMTP TCP connection timeout"`
		FromEmail    string        `long:"from" env:"FROM" description:"SMTP from email"`
		ToEmails     []string      `long:"to" env:"TO" description:"SMTP to email(s)" env-delim:","`

		TelegramToken        string   `long:"telegram-token" env:"TELEGRAM_TOKEN" description:"telegram token"`
		TelegramDestinations []string `long:"telegram-dest" env:"TELEGRAM_DEST" description:"telegram destination(s)" env-delim:","`

		SlackToken    string   `long:"slack-token" env:"SLACK_TOKEN" description:"slack token"`
		SlackChannels []string `long:"slack-chan" env:"SLACK_CHAN" description:"slack channel(s)" env-delim:","`

		WebhookURLs []string `long:"webhook" env:"WEBHOOK" description:"webhook url(s)" env-delim:","`

		HostName string `long:"host" env:"HOSTNAME" description:"host name reported in notifications"`
	} `group:"notify" namespace:"notify" env-namespace:"AUTOAPPLY_NOTIFY"`

	Web struct {
		Enabled  bool   `long:"enabled" env:"ENABLED" description:"enable status server"`
		Address  string `long:"address" env:"ADDRESS" default:":8080" description:"status server address"`
		AuthHash string `long:"auth-hash" env:"AUTH_HASH" description:"bcrypt hash of the basic auth password, empty disables auth"`
	} `group:"web" namespace:"web" env-namespace:"AUTOAPPLY_WEB"`

	Log struct {
		Enabled         bool   `long:"enabled" env:"ENABLED" description:"enable logging to file"`
		Filename        string `long:"filename" env:"FILENAME" default:"autoapply.log" description:"log file name"`
		MaxSize         int    `long:"max-size" env:"MAX_SIZE" default:"100" description:"maximum size in megabytes before rotation"`
		MaxBackups      int    `long:"max-backups" env:"MAX_BACKUPS" default:"7" description:"maximum number of old log files to retain"`
		MaxAge          int    `long:"max-age" env:"MAX_AGE" default:"0" description:"maximum number of days to retain old log files"`
		EnabledCompress bool   `long:"enabled-compress" env:"ENABLED_COMPRESS" description:"enable compression of rotated files"`
	} `group:"log" namespace:"log" env-namespace:"AUTOAPPLY_LOG"`
}

var revision = "unknown"

func main() {
	fmt.Printf("autoapply %s\n", revision)

	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(2)
	}
	setupLogs()

	defer func() {
		if x := recover(); x != nil {
			log.Printf("[WARN] run time panic:\n%v", x)
			panic(x)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	signals(cancel) // handle SIGQUIT and SIGTERM

	if err := run(ctx); err != nil {
		log.Printf("[ERROR] apply session failed, %v", err)
		os.Exit(1)
	}
}

// run wires all the parts and executes the apply session, blocking
func run(ctx context.Context) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("can't load config %s: %w", opts.Config, err)
	}

	applied := store.NewApplied(cfg.State.File)
	log.Printf("[INFO] applied store %s, %d jobs on record", cfg.State.File, applied.Len())

	prompter := &session.StdPrompter{In: os.Stdin, Out: os.Stdout}
	runner := session.Runner{
		Applied:       applied,
		InFlight:      session.NewInFlight(opts.Resume, opts.Resume != ""),
		Prompter:      prompter,
		Behavior:      cfg.Behavior,
		Answers:       cfg.Answers,
		NotifyTimeout: opts.Notify.Timeout,
	}

	// nil service means no destinations, runner treats missing Notifier as disabled
	if notifier := makeNotifier(); notifier != nil {
		runner.Notifier = notifier
	}

	if cfg.State.DB != "" {
		history, err := store.NewSQLiteStore(cfg.State.DB)
		if err != nil {
			return fmt.Errorf("can't open history db %s: %w", cfg.State.DB, err)
		}
		if err := history.Initialize(); err != nil {
			return fmt.Errorf("can't initialize history db: %w", err)
		}
		defer func() {
			if err := history.Close(); err != nil {
				log.Printf("[WARN] failed to close history db, %v", err)
			}
		}()
		runner.History = history

		if opts.Web.Enabled {
			srv := web.New(history, revision, makeHostName(), opts.Web.AuthHash)
			go func() {
				if err := srv.Run(ctx, opts.Web.Address); err != nil {
					log.Printf("[WARN] status server terminated, %v", err)
				}
			}()
		}
	} else if opts.Web.Enabled {
		log.Printf("[WARN] status server requested but state.db is not set, disabled")
	}

	client, err := connectBrowser(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	page, err := jobsPage(ctx, client, prompter)
	if err != nil {
		return err
	}

	clickDelay := cfg.Behavior.ClickDelay.Value()
	if failures := linkedin.ApplyFilters(page, cfg.Filters, clickDelay); len(failures) > 0 {
		prompter.Confirm(fmt.Sprintf("failed to apply filters: %s\nset them manually in the browser",
			strings.Join(failures, ", ")))
	}

	runner.Board = linkedin.NewBoard(page, clickDelay, cfg.Behavior.ScrollStep)
	runner.Modal = linkedin.NewModal(page, clickDelay)
	return runner.Do(ctx)
}

// connectBrowser attaches to the running browser over CDP with backoff retries
func connectBrowser(ctx context.Context) (*browser.Client, error) {
	rptr := repeater.New(&strategy.Backoff{Repeats: opts.Repeater.Attempts, Duration: opts.Repeater.Duration,
		Factor: opts.Repeater.Factor, Jitter: opts.Repeater.Jitter})

	var client *browser.Client
	err := rptr.Do(ctx, func() error {
		var e error
		client, e = browser.Connect(browser.Params{DebugURL: opts.Browser.DebugURL, PageTimeout: opts.Browser.Timeout})
		return e
	})
	if err != nil {
		return nil, fmt.Errorf("can't attach to browser on %s: %w", opts.Browser.DebugURL, err)
	}
	return client, nil
}

// jobsPage finds the jobs tab, asking the user to open one when missing
func jobsPage(ctx context.Context, client *browser.Client, prompter session.Prompter) (playwright.Page, error) {
	for {
		page, err := client.JobsPage()
		if err == nil {
			return page, nil
		}
		if !errors.Is(err, browser.ErrNoJobsTab) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		prompter.Confirm("no linkedin jobs tab found, open https://www.linkedin.com/jobs/search/ in the browser")
	}
}

func makeNotifier() *notify.Service {
	if !opts.Notify.EnabledReady && !opts.Notify.EnabledSummary {
		return nil
	}

	if opts.Notify.FromEmail == "" {
		opts.Notify.FromEmail = "autoapply@" + makeHostName()
	}

	return notify.NewService(
		notify.Params{
			EnabledReady:    opts.Notify.EnabledReady,
			EnabledSummary:  opts.Notify.EnabledSummary,
			ReadyTemplate:   opts.Notify.ReadyTemplate,
			SummaryTemplate: opts.Notify.SummaryTemplate,
			HostName:        makeHostName(),
		},
		notify.SendersParams{
			FromEmail:    opts.Notify.FromEmail,
			ToEmails:     opts.Notify.ToEmails,
			SMTPHost:     opts.Notify.SMTPHost,
			SMTPPort:     opts.Notify.SMTPPort,
			SMTPTLS:      opts.Notify.SMTPTLS,
			SMTPUsername: opts.Notify.SMTPUsername,
			SMTPPassword: opts.Notify.SMTPPassword,
			SMTPTimeOut:  opts.Notify.SMTPTimeOut,

			TelegramToken:        opts.Notify.TelegramToken,
			TelegramDestinations: opts.Notify.TelegramDestinations,

			SlackToken:    opts.Notify.SlackToken,
			SlackChannels: opts.Notify.SlackChannels,

			WebhookURLs: opts.Notify.WebhookURLs,
		},
	)
}

func makeHostName() string {
	if opts.Notify.HostName != "" {
		return opts.Notify.HostName
	}
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}

// setupLogs configures lgr and returns the writer logs go to,
// either stdout or a rotating file
func setupLogs() io.Writer {
	logOpts := []log.Option{log.Msec, log.LevelBraces}
	if opts.Dbg {
		logOpts = append(logOpts, log.Debug, log.CallerFile, log.CallerFunc)
	}

	var out io.Writer = os.Stdout
	if opts.Log.Enabled && opts.Log.Filename != "" {
		out = &lumberjack.Logger{
			Filename:   opts.Log.Filename,
			MaxSize:    opts.Log.MaxSize,
			MaxBackups: opts.Log.MaxBackups,
			MaxAge:     opts.Log.MaxAge,
			Compress:   opts.Log.EnabledCompress,
		}
	}

	log.Setup(append(logOpts, log.Out(out))...)
	return out
}

func signals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	go func() {
		stacktrace := make([]byte, 8192)
		for sig := range sigChan {
			if sig == syscall.SIGQUIT { // catch SIGQUIT and print stack traces
				length := runtime.Stack(stacktrace, true)
				fmt.Println(string(stacktrace[:length]))
				continue
			}
			cancel() // terminate on SIGTERM and SIGINT
		}
	}()
	signal.Notify(sigChan, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
}
