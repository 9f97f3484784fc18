package module

import (
	"time"

	"inquirysync/internal/adapters/classifier"
	"inquirysync/internal/adapters/notify"
	"inquirysync/internal/adapters/notify/email"
	"inquirysync/internal/adapters/notify/kakao"
	"inquirysync/internal/adapters/notify/slack"
	"inquirysync/internal/adapters/sheets"
	"inquirysync/internal/platform/config"
	"inquirysync/internal/services/sync/guardrails"
	"inquirysync/internal/services/sync/ingest"
)

// Options holds everything the sync module reads from the environment
type Options struct {
	Sheets sheets.Options
	Select string
	Ignore []string

	Interval       time.Duration
	CategoriesFile string
	Categories     []string
	Timeouts       guardrails.Timeouts
	LockKey        int64
	Migrate        bool

	ClassifierEnabled bool
	Classifier        classifier.Options

	Notify NotifyOptions

	MirrorTable string
}

// NotifyOptions configures the notification channels
type NotifyOptions struct {
	SlackEnabled bool
	Slack        slack.Options
	KakaoEnabled bool
	Kakao        kakao.Options
	EmailEnabled bool
	Email        email.Options
	DashboardURL string
	PerCategory  int
}

// FromConfig reads SHEETS_, SYNC_, CLASSIFIER_, NOTIFY_ and SERVICE_CH_ keys
func FromConfig(cfg config.Conf) Options {
	sh := cfg.Prefix("SHEETS_")
	sy := cfg.Prefix("SYNC_")
	cl := cfg.Prefix("CLASSIFIER_")
	ch := cfg.Prefix("SERVICE_CH_")

	o := Options{
		Sheets: sheets.Options{
			Spreadsheet:     sh.MustString("SPREADSHEET"),
			CredentialsFile: sh.MustString("CREDENTIALS_FILE"),
			BaseURL:         sh.MayString("BASE_URL", ""),
			Timeout:         sh.MayDuration("TIMEOUT", 30*time.Second),
			MaxRetries:      sh.MayInt("MAX_RETRIES", 4),
			RetryBase:       sh.MayDuration("RETRY_BASE", 500*time.Millisecond),
		},
		Select: sh.MayEnum("SELECT", ingest.SelectAll, ingest.SelectAll, ingest.SelectToday),
		Ignore: sh.MayCSV("IGNORE", nil),

		Interval:       sy.MayDuration("INTERVAL", 30*time.Minute),
		CategoriesFile: sy.MayString("CATEGORIES_FILE", ""),
		Categories:     sy.MayCSV("CATEGORIES", nil),
		Timeouts: guardrails.Timeouts{
			Fetch:    sy.MayDuration("FETCH_TIMEOUT", 2*time.Minute),
			DB:       sy.MayDuration("DB_TIMEOUT", 30*time.Second),
			Notify:   sy.MayDuration("NOTIFY_TIMEOUT", 30*time.Second),
			Classify: cl.MayDuration("TIMEOUT", 60*time.Second),
		},
		LockKey: int64(sy.MayInt("LOCK_KEY", 727_001)),
		Migrate: sy.MayBool("MIGRATE", true),

		ClassifierEnabled: cl.MayBool("ENABLED", false),
		Classifier: classifier.Options{
			Model:         cl.MayString("MODEL", ""),
			BaseURL:       cl.MayString("BASE_URL", ""),
			Timeout:       cl.MayDuration("TIMEOUT", 60*time.Second),
			MaxRetries:    cl.MayInt("MAX_RETRIES", 2),
			MaxSampleRows: cl.MayInt("MAX_SAMPLE_ROWS", 5),
		},

		Notify: NotifyFromConfig(cfg),
	}
	if ch.MayBool("ENABLED", false) {
		o.MirrorTable = ch.MayString("TABLE", "sync_log")
	}
	if o.ClassifierEnabled {
		o.Classifier.APIKey = cl.MustString("API_KEY")
	}

	return o
}

// NotifyFromConfig reads the NOTIFY_ keys; channel credentials are required only for enabled channels
func NotifyFromConfig(cfg config.Conf) NotifyOptions {
	nt := cfg.Prefix("NOTIFY_")
	timeout := cfg.Prefix("SYNC_").MayDuration("NOTIFY_TIMEOUT", 30*time.Second)

	o := NotifyOptions{
		SlackEnabled: nt.MayBool("SLACK_ENABLED", false),
		KakaoEnabled: nt.MayBool("KAKAO_ENABLED", false),
		EmailEnabled: nt.MayBool("EMAIL_ENABLED", false),
		DashboardURL: nt.MayString("DASHBOARD_URL", ""),
		PerCategory:  nt.MayInt("PER_CATEGORY", notify.PerCategory),
	}
	if o.SlackEnabled {
		o.Slack = slack.Options{WebhookURL: nt.MustString("SLACK_WEBHOOK_URL"), Timeout: timeout}
	}
	if o.KakaoEnabled {
		o.Kakao = kakao.Options{
			ClientID:  nt.MustString("KAKAO_CLIENT_ID"),
			TokenFile: nt.MustString("KAKAO_TOKEN_FILE"),
			LinkURL:   nt.MayString("KAKAO_LINK_URL", ""),
			Timeout:   timeout,
		}
	}
	if o.EmailEnabled {
		o.Email = email.Options{
			Host:     nt.MustString("EMAIL_SMTP_HOST"),
			Port:     nt.MayInt("EMAIL_SMTP_PORT", 587),
			User:     nt.MayString("EMAIL_USER", ""),
			Password: nt.MayString("EMAIL_PASSWORD", ""),
			From:     nt.MustString("EMAIL_FROM"),
			To:       nt.MayCSV("EMAIL_TO", nil),
			Timeout:  timeout,
		}
	}
	return o
}
