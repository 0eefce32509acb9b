package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"github.com/srbpsu18/canvas-alerts/pkg/canvas"
	"github.com/srbpsu18/canvas-alerts/pkg/digest"
	"github.com/srbpsu18/canvas-alerts/pkg/history"
	"github.com/srbpsu18/canvas-alerts/pkg/mailer"
	"github.com/srbpsu18/canvas-alerts/pkg/runner"
	"github.com/srbpsu18/canvas-alerts/pkg/state"
)

// Opts with all CLI options
type Opts struct {
	Canvas struct {
		BaseURL string        `long:"base-url" env:"BASE_URL" default:"https://psu.instructure.com/api/v1" description:"canvas API base url"`
		Token   string        `long:"api-token" env:"API_TOKEN" required:"true" description:"canvas API access token"`
		Timeout time.Duration `long:"timeout" env:"TIMEOUT" default:"30s" description:"canvas API request timeout"`
	} `group:"canvas" namespace:"canvas" env-namespace:"CANVAS"`

	Email struct {
		Provider    string `long:"provider" env:"PROVIDER" choice:"smtp" choice:"sendgrid" choice:"console" default:"smtp" description:"mail delivery provider"`
		Sender      string `long:"sender" env:"SENDER" description:"sender address, also the smtp auth user"`
		Password    string `long:"password" env:"PASSWORD" description:"smtp app password"`
		Recipients  string `long:"recipients" env:"RECIPIENTS" description:"comma-separated recipient addresses"`
		SendgridKey string `long:"sendgrid-key" env:"SENDGRID_KEY" description:"sendgrid API key"`
	} `group:"email" namespace:"email" env-namespace:"EMAIL"`

	SMTP struct {
		Host        string        `long:"host" env:"HOST" default:"smtp.gmail.com" description:"smtp relay host"`
		Port        int           `long:"port" env:"PORT" default:"465" description:"smtp relay port"`
		StartTLS    bool          `long:"starttls" env:"STARTTLS" description:"negotiate starttls instead of dialing tls"`
		TLSInsecure bool          `long:"tls-insecure" env:"TLS_INSECURE" description:"skip tls certificate verification"`
		Timeout     time.Duration `long:"timeout" env:"TIMEOUT" default:"30s" description:"smtp conversation timeout"`
	} `group:"smtp" namespace:"smtp" env-namespace:"SMTP"`

	Digest struct {
		AnnounceDays  int     `long:"announce-days" env:"ANNOUNCE_DAYS" default:"1" description:"announcement lookback in days for a first run"`
		SoonDays      int     `long:"soon-days" env:"SOON_DAYS" default:"3" description:"due-soon horizon in days past tomorrow"`
		HighStakes    float64 `long:"high-stakes" env:"HIGH_STAKES" default:"10" description:"points threshold for the high-stakes badge"`
		ReportUndated bool    `long:"report-undated" env:"REPORT_UNDATED" description:"surface new assignments that have no due date"`
	} `group:"digest" namespace:"digest" env-namespace:"DIGEST"`

	Mode         string `long:"mode" env:"DIGEST_MODE" choice:"morning" choice:"evening" description:"digest mode, picked by time of day when omitted"`
	Timezone     string `long:"timezone" env:"TIMEZONE" default:"US/Eastern" description:"timezone for deadlines and send windows"`
	StateFile    string `long:"state" env:"STATE_FILE" default:"state.json" description:"seen-assignments state file"`
	HistoryDB    string `long:"history-db" env:"HISTORY_DB" description:"optional sqlite ledger of past runs"`
	NoErrorEmail bool   `long:"no-error-email" env:"NO_ERROR_EMAIL" description:"do not email a notice when the run fails"`

	Dbg     bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
}

var revision = "unknown"

func main() {
	// local runs pick up the same environment the scheduler injects
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Printf("failed to load .env: %v\n", err)
			os.Exit(1)
		}
	}

	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	setupLog(opts.Dbg, opts.Canvas.Token, opts.Email.Password, opts.Email.SendgridKey)

	log.Printf("[INFO] starting canvas-alerts %s", revision)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	outcome, err := run(ctx, opts)
	if err != nil {
		log.Printf("[ERROR] run failed: %v", err)
		os.Exit(1)
	}
	log.Printf("[INFO] done, outcome %q", outcome)
}

// run wires the components and executes a single digest pass
func run(ctx context.Context, opts Opts) (runner.Outcome, error) {
	loc, err := time.LoadLocation(opts.Timezone)
	if err != nil {
		return runner.OutcomeFailed, fmt.Errorf("load timezone %q: %w", opts.Timezone, err)
	}

	recipients := splitRecipients(opts.Email.Recipients)
	sender, err := makeSender(opts, recipients)
	if err != nil {
		return runner.OutcomeFailed, err
	}

	params := runner.Params{
		LMS: canvas.NewClient(canvas.Config{
			BaseURL: opts.Canvas.BaseURL,
			Token:   opts.Canvas.Token,
			Timeout: opts.Canvas.Timeout,
		}),
		Store:        state.NewStore(opts.StateFile),
		Sender:       sender,
		Renderer:     digest.NewRenderer(loc, opts.Digest.HighStakes, opts.Digest.SoonDays),
		Mode:         opts.Mode,
		Timezone:     loc,
		Recipients:   recipients,
		AnnounceDays: opts.Digest.AnnounceDays,
		Classify:     digest.Options{SoonDays: opts.Digest.SoonDays, ReportUndated: opts.Digest.ReportUndated},
		ErrorEmail:   !opts.NoErrorEmail,
	}

	if opts.HistoryDB != "" {
		db, err := history.New(opts.HistoryDB)
		if err != nil {
			log.Printf("[WARN] run ledger disabled: %v", err)
		} else {
			defer func() {
				if err := db.Close(); err != nil {
					log.Printf("[WARN] close run ledger: %v", err)
				}
			}()
			params.Recorder = db
		}
	}

	return runner.New(params).Run(ctx, time.Now())
}

// makeSender picks the mail transport for the configured provider
func makeSender(opts Opts, recipients []string) (runner.Sender, error) {
	if opts.Email.Provider != "console" && len(recipients) == 0 {
		return nil, fmt.Errorf("no recipients configured")
	}

	switch opts.Email.Provider {
	case "smtp":
		if opts.Email.Sender == "" || opts.Email.Password == "" {
			return nil, fmt.Errorf("smtp provider needs email sender and password")
		}
		return mailer.NewSMTP(mailer.SMTPConfig{
			Host:        opts.SMTP.Host,
			Port:        opts.SMTP.Port,
			From:        opts.Email.Sender,
			Password:    opts.Email.Password,
			StartTLS:    opts.SMTP.StartTLS,
			InsecureTLS: opts.SMTP.TLSInsecure,
			Timeout:     opts.SMTP.Timeout,
		}), nil
	case "sendgrid":
		if opts.Email.SendgridKey == "" || opts.Email.Sender == "" {
			return nil, fmt.Errorf("sendgrid provider needs an API key and a sender")
		}
		return mailer.NewSendgrid(opts.Email.SendgridKey, opts.Email.Sender), nil
	case "console":
		return mailer.Console{}, nil
	}
	return nil, fmt.Errorf("unknown email provider %q", opts.Email.Provider)
}

// splitRecipients splits a comma-separated address list, trimming spaces
// and dropping empty entries
func splitRecipients(s string) []string {
	var res []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			res = append(res, p)
		}
	}
	return res
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	var secrets []string
	for _, s := range secs {
		if s != "" {
			secrets = append(secrets, s)
		}
	}
	if len(secrets) > 0 {
		logOpts = append(logOpts, lgr.Secret(secrets...))
	}

	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
