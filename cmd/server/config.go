package main

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/willemschots/cardhub/internal/account"
	"github.com/willemschots/cardhub/internal/card"
	"github.com/willemschots/cardhub/internal/email"
	"github.com/willemschots/cardhub/internal/email/mailgun"
	"github.com/willemschots/cardhub/internal/email/postmark"
	"github.com/willemschots/cardhub/internal/krypto"
	"github.com/willemschots/cardhub/internal/web"
)

// httpConfig is the configuration for the HTTP server.
type httpConfig struct {
	addr            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
	server          web.ServerConfig
}

type dbConfig struct {
	file    string
	migrate bool
}

type emailConfig struct {
	driver   string
	from     email.Address
	postmark postmark.Settings
	mailgun  mailgun.Settings
}

type natsConfig struct {
	// url is empty when events are not published.
	url string
}

// config is the configuration for the server command.
type config struct {
	http    httpConfig
	db      dbConfig
	card    card.ServiceConfig
	account account.ServiceConfig
	email   emailConfig
	nats    natsConfig
}

// defaultConfig returns a config with sane default values.
func defaultConfig() config {
	return config{
		http: httpConfig{
			addr:            ":8888",
			readTimeout:     time.Second * 5,
			writeTimeout:    time.Second * 10,
			idleTimeout:     time.Second * 120,
			shutdownTimeout: time.Second * 15,
			server: web.ServerConfig{
				JWTExpiry:      time.Hour * 24,
				AllowedOrigins: []string{"*"},
				RateLimit:      60,
				RequestTimeout: time.Second * 9,
			},
		},
		db: dbConfig{
			file:    "cardhub.db",
			migrate: true,
		},
		card: card.ServiceConfig{
			BaseURL:       must(url.Parse("http://localhost:8888")),
			WorkerTimeout: time.Second * 10,
			TokenExpiry:   time.Hour * 24,
		},
		account: account.ServiceConfig{
			SignupCardSlots: 1,
		},
		email: emailConfig{
			driver: "log",
			postmark: postmark.Settings{
				APIURL:        must(url.Parse("https://api.postmarkapp.com")),
				MessageStream: "outbound",
			},
			mailgun: mailgun.Settings{
				APIHost: "api.mailgun.net",
			},
		},
	}
}

// required lists the env variables without a default.
var required = []string{"JWT_KEY", "EMAIL_FROM"}

// envMap maps environment variable names to fields in the config struct.
var envMap = map[string]func(v string, c *config) error{
	"HTTP_ADDR": func(v string, c *config) error {
		c.http.addr = v
		return nil
	},
	"HTTP_READ_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.readTimeout, 0, math.MaxInt64)
	},
	"HTTP_WRITE_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.writeTimeout, 0, math.MaxInt64)
	},
	"HTTP_IDLE_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.idleTimeout, 0, math.MaxInt64)
	},
	"HTTP_SHUTDOWN_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.shutdownTimeout, 0, math.MaxInt64)
	},
	"HTTP_REQUEST_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.server.RequestTimeout, time.Millisecond, math.MaxInt64)
	},
	"HTTP_ALLOWED_ORIGINS": func(v string, c *config) error {
		return confList(v, &c.http.server.AllowedOrigins)
	},
	"HTTP_RATE_LIMIT": func(v string, c *config) error {
		return confInt(v, &c.http.server.RateLimit, 1, math.MaxInt32)
	},
	"JWT_KEY": func(v string, c *config) error {
		return confKey(v, &c.http.server.JWTKey)
	},
	"JWT_EXPIRY": func(v string, c *config) error {
		return confDuration(v, &c.http.server.JWTExpiry, time.Minute, math.MaxInt64)
	},
	"DB_FILE": func(v string, c *config) error {
		if v == "" {
			return errors.New("empty filename")
		}
		c.db.file = v
		return nil
	},
	"DB_MIGRATE": func(v string, c *config) error {
		return confBool(v, &c.db.migrate)
	},
	"BASE_URL": func(v string, c *config) error {
		return confURL(v, &c.card.BaseURL)
	},
	"TOKEN_EXPIRY": func(v string, c *config) error {
		return confDuration(v, &c.card.TokenExpiry, time.Minute, math.MaxInt64)
	},
	"WORKER_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.card.WorkerTimeout, time.Millisecond, math.MaxInt64)
	},
	"SIGNUP_CARD_SLOTS": func(v string, c *config) error {
		return confInt(v, &c.account.SignupCardSlots, 0, 1000)
	},
	"EMAIL_FROM": func(v string, c *config) error {
		addr, err := email.ParseAddress(v)
		if err != nil {
			return err
		}
		c.email.from = addr
		return nil
	},
	"EMAIL_DRIVER": func(v string, c *config) error {
		return confOneOf(v, &c.email.driver, "log", "postmark", "mailgun")
	},
	"POSTMARK_API_URL": func(v string, c *config) error {
		return confURL(v, &c.email.postmark.APIURL)
	},
	"POSTMARK_SERVER_TOKEN": func(v string, c *config) error {
		c.email.postmark.ServerToken = krypto.NewSecret(v)
		return nil
	},
	"POSTMARK_MESSAGE_STREAM": func(v string, c *config) error {
		c.email.postmark.MessageStream = v
		return nil
	},
	"MAILGUN_API_HOST": func(v string, c *config) error {
		if v == "" {
			return errors.New("empty host")
		}
		c.email.mailgun.APIHost = v
		return nil
	},
	"MAILGUN_DOMAIN": func(v string, c *config) error {
		c.email.mailgun.Domain = v
		return nil
	},
	"MAILGUN_API_KEY": func(v string, c *config) error {
		c.email.mailgun.APIKey = krypto.NewSecret(v)
		return nil
	},
	"NATS_URL": func(v string, c *config) error {
		u, err := url.Parse(v)
		if err != nil {
			return err
		}
		if u.Scheme != "nats" && u.Scheme != "tls" {
			return fmt.Errorf("unsupported scheme %q", u.Scheme)
		}
		c.nats.url = v
		return nil
	},
}

// configFromEnv returns a config with values from the environment. It falls
// back to default values for any missing environment variables.
//
// It does a best effort to validate provided values, so that mistakes are
// caught ASAP. However, there is no guarantee that the returned config
// is valid and will work.
//
// All invalid and missing variables are reported at once.
func configFromEnv() (config, error) {
	c := defaultConfig()

	var errs []error
	for _, key := range required {
		if _, ok := os.LookupEnv(key); !ok {
			errs = append(errs, fmt.Errorf("missing required env variable %s", key))
		}
	}

	for key, mf := range envMap {
		if val, ok := os.LookupEnv(key); ok {
			if err := mf(val, &c); err != nil {
				errs = append(errs, fmt.Errorf("invalid env variable %s: %w", key, err))
			}
		}
	}

	if err := c.email.validate(); err != nil {
		errs = append(errs, err)
	}

	return c, errors.Join(errs...)
}

// validate checks that the selected driver has its credentials.
func (e emailConfig) validate() error {
	switch e.driver {
	case "postmark":
		if e.postmark.ServerToken.IsZero() {
			return errors.New("EMAIL_DRIVER postmark requires POSTMARK_SERVER_TOKEN")
		}
	case "mailgun":
		if e.mailgun.Domain == "" || e.mailgun.APIKey.IsZero() {
			return errors.New("EMAIL_DRIVER mailgun requires MAILGUN_DOMAIN and MAILGUN_API_KEY")
		}
	}
	return nil
}

// confDuration attempts to parse v into tgt and checks if the result is in
// the provided range (inclusive).
func confDuration(v string, tgt *time.Duration, min, max time.Duration) error {
	dur, err := time.ParseDuration(v)
	if err != nil {
		return err
	}

	if dur < min || dur > max {
		return fmt.Errorf("duration %s not in range [%s, %s] (inclusive)", dur, min, max)
	}

	*tgt = dur

	return nil
}

func confInt(v string, tgt *int, min, max int) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}

	if n < min || n > max {
		return fmt.Errorf("%d not in range [%d, %d] (inclusive)", n, min, max)
	}

	*tgt = n

	return nil
}

func confBool(v string, tgt *bool) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}

	*tgt = b

	return nil
}

// confURL requires an absolute URL with a host.
func confURL(v string, tgt **url.URL) error {
	u, err := url.Parse(v)
	if err != nil {
		return err
	}

	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("url %q must have a scheme and a host", v)
	}

	*tgt = u

	return nil
}

func confKey(v string, tgt *krypto.Key) error {
	k, err := krypto.ParseKey(v)
	if err != nil {
		return err
	}

	*tgt = k

	return nil
}

// confList parses a comma separated list, ignoring empty items.
func confList(v string, tgt *[]string) error {
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}

	if len(out) == 0 {
		return errors.New("empty list")
	}

	*tgt = out

	return nil
}

func confOneOf(v string, tgt *string, options ...string) error {
	if !slices.Contains(options, v) {
		return fmt.Errorf("%q is not one of %v", v, options)
	}

	*tgt = v

	return nil
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
