package main

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/willemschots/cardhub/internal/email"
	"github.com/willemschots/cardhub/internal/krypto"
)

const testJWTKey = "dfab77e26917c6e37a173690443a0016808ef7b24e32424d45cd83454198a6ec"

func requiredEnv() map[string]string {
	return map[string]string{
		"JWT_KEY":    testJWTKey,
		"EMAIL_FROM": "cardhub@example.com",
	}
}

func newConfig(mf func(*config)) config {
	c := defaultConfig()
	c.http.server.JWTKey = must(krypto.ParseKey(testJWTKey))
	c.email.from = must(email.ParseAddress("cardhub@example.com"))

	if mf != nil {
		mf(&c)
	}
	return c
}

func TestConfigFromEnv(t *testing.T) {
	t.Run("ok, uses defaults for non-required env variables", func(t *testing.T) {
		// set the required env variables.
		for key, val := range requiredEnv() {
			envForTest(t, key, val)
		}

		want := newConfig(nil)
		got, err := configFromEnv()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !reflect.DeepEqual(got, want) {
			t.Errorf("got\n%+v\nwant\n%+v", got, want)
		}
	})

	valid := map[string]struct {
		key string
		val string
		mf  func(*config) // modify default config to create wanted config.
	}{
		"ok, non-default HTTP_ADDR": {
			key: "HTTP_ADDR", val: "localhost:8080", mf: func(c *config) { c.http.addr = "localhost:8080" },
		},
		"ok, non-default HTTP_READ_TIMEOUT": {
			key: "HTTP_READ_TIMEOUT", val: "101ms", mf: func(c *config) { c.http.readTimeout = 101 * time.Millisecond },
		},
		"ok, non-default HTTP_WRITE_TIMEOUT": {
			key: "HTTP_WRITE_TIMEOUT", val: "202ms", mf: func(c *config) { c.http.writeTimeout = 202 * time.Millisecond },
		},
		"ok, non-default HTTP_IDLE_TIMEOUT": {
			key: "HTTP_IDLE_TIMEOUT", val: "303ms", mf: func(c *config) { c.http.idleTimeout = 303 * time.Millisecond },
		},
		"ok, non-default HTTP_SHUTDOWN_TIMEOUT": {
			key: "HTTP_SHUTDOWN_TIMEOUT", val: "404ms", mf: func(c *config) { c.http.shutdownTimeout = 404 * time.Millisecond },
		},
		"ok, non-default HTTP_REQUEST_TIMEOUT": {
			key: "HTTP_REQUEST_TIMEOUT", val: "3s", mf: func(c *config) { c.http.server.RequestTimeout = 3 * time.Second },
		},
		"ok, multiple HTTP_ALLOWED_ORIGINS": {
			key: "HTTP_ALLOWED_ORIGINS",
			val: "https://a.example.com, https://b.example.com",
			mf: func(c *config) {
				c.http.server.AllowedOrigins = []string{"https://a.example.com", "https://b.example.com"}
			},
		},
		"ok, non-default HTTP_RATE_LIMIT": {
			key: "HTTP_RATE_LIMIT", val: "5", mf: func(c *config) { c.http.server.RateLimit = 5 },
		},
		"ok, non-default JWT_EXPIRY": {
			key: "JWT_EXPIRY", val: "15m", mf: func(c *config) { c.http.server.JWTExpiry = 15 * time.Minute },
		},
		"ok, non-default DB_FILE": {
			key: "DB_FILE", val: "test.db", mf: func(c *config) { c.db.file = "test.db" },
		},
		"ok, non-default DB_MIGRATE": {
			key: "DB_MIGRATE", val: "false", mf: func(c *config) { c.db.migrate = false },
		},
		"ok, non-default BASE_URL": {
			key: "BASE_URL",
			val: "https://example.com:9999",
			mf: func(c *config) {
				c.card.BaseURL = must(url.Parse("https://example.com:9999"))
			},
		},
		"ok, non-default TOKEN_EXPIRY": {
			key: "TOKEN_EXPIRY", val: "51m", mf: func(c *config) { c.card.TokenExpiry = 51 * time.Minute },
		},
		"ok, non-default WORKER_TIMEOUT": {
			key: "WORKER_TIMEOUT", val: "42s", mf: func(c *config) { c.card.WorkerTimeout = 42 * time.Second },
		},
		"ok, non-default SIGNUP_CARD_SLOTS": {
			key: "SIGNUP_CARD_SLOTS", val: "3", mf: func(c *config) { c.account.SignupCardSlots = 3 },
		},
		"ok, other EMAIL_FROM": {
			key: "EMAIL_FROM",
			val: "test@example.com",
			mf: func(c *config) {
				c.email.from = must(email.ParseAddress("test@example.com"))
			},
		},
		"ok, non-default POSTMARK_API_URL": {
			key: "POSTMARK_API_URL",
			val: "https://example.com",
			mf: func(c *config) {
				c.email.postmark.APIURL = must(url.Parse("https://example.com"))
			},
		},
		"ok, other POSTMARK_MESSAGE_STREAM": {
			key: "POSTMARK_MESSAGE_STREAM",
			val: "other_stream",
			mf: func(c *config) {
				c.email.postmark.MessageStream = "other_stream"
			},
		},
		"ok, other POSTMARK_SERVER_TOKEN": {
			key: "POSTMARK_SERVER_TOKEN",
			val: "testToken",
			mf: func(c *config) {
				c.email.postmark.ServerToken = krypto.NewSecret("testToken")
			},
		},
		"ok, other MAILGUN_API_HOST": {
			key: "MAILGUN_API_HOST", val: "api.eu.mailgun.net", mf: func(c *config) { c.email.mailgun.APIHost = "api.eu.mailgun.net" },
		},
		"ok, other MAILGUN_DOMAIN": {
			key: "MAILGUN_DOMAIN", val: "mg.example.com", mf: func(c *config) { c.email.mailgun.Domain = "mg.example.com" },
		},
		"ok, other MAILGUN_API_KEY": {
			key: "MAILGUN_API_KEY",
			val: "key-123",
			mf: func(c *config) {
				c.email.mailgun.APIKey = krypto.NewSecret("key-123")
			},
		},
		"ok, NATS_URL": {
			key: "NATS_URL", val: "nats://localhost:4222", mf: func(c *config) { c.nats.url = "nats://localhost:4222" },
		},
	}

	for name, tc := range valid {
		t.Run(name, func(t *testing.T) {
			// set the required env variables.
			for key, val := range requiredEnv() {
				envForTest(t, key, val)
			}

			// set the tested env variable
			envForTest(t, tc.key, tc.val)

			want := newConfig(tc.mf)
			got, err := configFromEnv()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !reflect.DeepEqual(got, want) {
				t.Errorf("got\n%+v\nwant\n%+v", got, want)
			}
		})
	}

	t.Run("ok, mailgun driver with credentials", func(t *testing.T) {
		for key, val := range requiredEnv() {
			envForTest(t, key, val)
		}
		envForTest(t, "EMAIL_DRIVER", "mailgun")
		envForTest(t, "MAILGUN_DOMAIN", "mg.example.com")
		envForTest(t, "MAILGUN_API_KEY", "key-123")

		got, err := configFromEnv()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got.email.driver != "mailgun" {
			t.Errorf("expected mailgun driver, got %q", got.email.driver)
		}
	})

	invalid := map[string]struct {
		key string
		val string
	}{
		"fail, no host in BASE_URL":            {"BASE_URL", "/just-a-path"},
		"fail, negative HTTP_READ_TIMEOUT":     {"HTTP_READ_TIMEOUT", "-1ms"},
		"fail, negative HTTP_WRITE_TIMEOUT":    {"HTTP_WRITE_TIMEOUT", "-1ms"},
		"fail, negative HTTP_IDLE_TIMEOUT":     {"HTTP_IDLE_TIMEOUT", "-1ms"},
		"fail, negative HTTP_SHUTDOWN_TIMEOUT": {"HTTP_SHUTDOWN_TIMEOUT", "-1ms"},
		"fail, zero HTTP_REQUEST_TIMEOUT":      {"HTTP_REQUEST_TIMEOUT", "0s"},
		"fail, empty HTTP_ALLOWED_ORIGINS":     {"HTTP_ALLOWED_ORIGINS", " , "},
		"fail, zero HTTP_RATE_LIMIT":           {"HTTP_RATE_LIMIT", "0"},
		"fail, invalid JWT_KEY":                {"JWT_KEY", "abc"},
		"fail, short JWT_EXPIRY":               {"JWT_EXPIRY", "1s"},
		"fail, empty DB_FILE":                  {"DB_FILE", ""},
		"fail, invalid DB_MIGRATE":             {"DB_MIGRATE", "no!"},
		"fail, negative TOKEN_EXPIRY":          {"TOKEN_EXPIRY", "-1ms"},
		"fail, negative WORKER_TIMEOUT":        {"WORKER_TIMEOUT", "-1ms"},
		"fail, negative SIGNUP_CARD_SLOTS":     {"SIGNUP_CARD_SLOTS", "-1"},
		"fail, invalid EMAIL_FROM":             {"EMAIL_FROM", "@@"},
		"fail, unknown EMAIL_DRIVER":           {"EMAIL_DRIVER", "smtp"},
		"fail, postmark EMAIL_DRIVER":          {"EMAIL_DRIVER", "postmark"},
		"fail, mailgun EMAIL_DRIVER":           {"EMAIL_DRIVER", "mailgun"},
		"fail, invalid POSTMARK_API_URL":       {"POSTMARK_API_URL", "not-a-url"},
		"fail, empty MAILGUN_API_HOST":         {"MAILGUN_API_HOST", ""},
		"fail, invalid NATS_URL":               {"NATS_URL", "http://localhost:4222"},
	}

	for name, tc := range invalid {
		t.Run(name, func(t *testing.T) {
			// set the required env variables.
			for key, val := range requiredEnv() {
				envForTest(t, key, val)
			}

			// set the tested env variable.
			envForTest(t, tc.key, tc.val)

			_, err := configFromEnv()
			if err == nil {
				t.Fatal("expected error, got <nil>")
			}

			// Check that the error message contains the invalid env variable.
			// These errors are immediately logged, so I'm fine comparing on a string level.
			msg := err.Error()
			if !strings.Contains(msg, tc.key) {
				t.Errorf("expected error message to mention %s, got %s", tc.key, msg)
			}
		})
	}

	for key := range requiredEnv() {
		t.Run(fmt.Sprintf("fail, env variable %s not set", key), func(t *testing.T) {
			// set all required env variables except the one being tested.
			for k, val := range requiredEnv() {
				if k != key {
					envForTest(t, k, val)
				}
			}

			_, err := configFromEnv()
			if err == nil {
				t.Fatal("expected error, got <nil>")
			}

			// Check that the error message contains the missing env variable.
			// These errors are immediately logged, so I'm fine comparing on a string level.
			msg := err.Error()
			if !strings.Contains(msg, key) {
				t.Errorf("expected error message to mention %s, got %s", key, msg)
			}
		})
	}

	t.Run("fail, multiple invalid env variables", func(t *testing.T) {
		// set the required env variables.
		for key, val := range requiredEnv() {
			envForTest(t, key, val)
		}

		// set two invalid env variables.
		envForTest(t, "HTTP_READ_TIMEOUT", "-1ms")
		envForTest(t, "HTTP_WRITE_TIMEOUT", "-1ms")

		_, err := configFromEnv()
		if err == nil {
			t.Fatal("expected error, got <nil>")
		}

		// Check that the error message contains both invalid env variables.
		// Again, these errors are immediately logged, so I'm fine comparing on a string level.
		msg := err.Error()
		for _, key := range []string{"HTTP_READ_TIMEOUT", "HTTP_WRITE_TIMEOUT"} {
			if !strings.Contains(msg, key) {
				t.Errorf("expected error message to mention %s, got %s", key, msg)
			}
		}
	})
}

// envForTest sets an environment variable for a test and unsets it when the test is done.
func envForTest(t *testing.T, key, val string) {
	t.Helper()

	t.Cleanup(func() {
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset env var %s: %v", key, err)
		}
	})

	if err := os.Setenv(key, val); err != nil {
		t.Fatalf("failed to set env var %s: %v", key, err)
	}
}
