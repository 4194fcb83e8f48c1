package card_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/willemschots/cardhub/internal/card"
	"github.com/willemschots/cardhub/internal/errorz"
)

func Test_ParseShortName(t *testing.T) {
	long := strings.Repeat("a", 32)
	valid := map[string]string{
		"acme":     "acme",
		"ACME":     "acme",
		"a_b-c":    "a_b-c",
		"abc":      "abc",
		"  acme  ": "acme",
		long:       long,
	}

	for in, want := range valid {
		t.Run("ok, "+strings.TrimSpace(in), func(t *testing.T) {
			got, err := card.ParseShortName(in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got != want {
				t.Errorf("expected %q, got %q", want, got)
			}
		})
	}

	invalid := []string{"", "ab", "a b c", "acme!", "ümlaut", strings.Repeat("a", 33)}
	for _, in := range invalid {
		t.Run("fail, "+in, func(t *testing.T) {
			_, err := card.ParseShortName(in)
			if !errors.Is(err, card.ErrInvalidShortName) {
				t.Errorf("expected %v, got %v via errors.Is()", card.ErrInvalidShortName, err)
			}
		})
	}
}

func Test_Content_Validate(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		err := content("Acme").Validate()
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	tests := map[string]struct {
		modify func(c *card.Content)
		key    string
	}{
		"name required": {
			modify: func(c *card.Content) { c.Name = "" },
			key:    "name",
		},
		"email required": {
			modify: func(c *card.Content) { c.Email = "" },
			key:    "email",
		},
		"relative logo url": {
			modify: func(c *card.Content) { c.LogoImageURL = "/logo.png" },
			key:    "logoImageUrl",
		},
		"link without name": {
			modify: func(c *card.Content) { c.Links[0].Name = "" },
			key:    "links[0].name",
		},
		"too many links": {
			modify: func(c *card.Content) {
				for range 50 {
					c.Links = append(c.Links, card.Link{Name: "x", URL: "https://example.com"})
				}
			},
			key: "links",
		},
		"marker id not hex": {
			modify: func(c *card.Content) { c.MarkerID = "zzzzz" },
			key:    "markerId",
		},
	}

	for name, tc := range tests {
		t.Run("fail, "+name, func(t *testing.T) {
			c := content("Acme")
			tc.modify(&c)

			var invalid errorz.InvalidInput
			if !errors.As(c.Validate(), &invalid) {
				t.Fatalf("expected invalid input")
			}

			if _, ok := invalid.Fields()[tc.key]; !ok {
				t.Errorf("expected error for %q, got %v", tc.key, invalid.Fields())
			}
		})
	}
}

func Test_Card_Permissions(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("edit", func(t *testing.T) {
		tests := map[string]struct {
			c    card.Card
			want bool
		}{
			"open window":  {c: card.Card{Editable: true, EditableUntil: now}, want: true},
			"closed":       {c: card.Card{Editable: false, EditableUntil: now}, want: false},
			"expired":      {c: card.Card{Editable: true, EditableUntil: now.Add(-time.Second)}, want: false},
			"max edits":    {c: card.Card{Editable: true, EditableUntil: now, NumberOfEdits: card.MaxEdits}, want: false},
			"deleted card": {c: card.Card{Editable: true, EditableUntil: now, Deleted: true}, want: false},
		}

		for name, tc := range tests {
			t.Run(name, func(t *testing.T) {
				if got := tc.c.CanEdit(now); got != tc.want {
					t.Errorf("expected %v, got %v", tc.want, got)
				}
			})
		}
	})

	t.Run("delete", func(t *testing.T) {
		tests := map[string]struct {
			c    card.Card
			want bool
		}{
			"approved":   {c: card.Card{Deletable: true, CreatedAt: now}, want: true},
			"young":      {c: card.Card{CreatedAt: now}, want: false},
			"old enough": {c: card.Card{CreatedAt: now.Add(-card.RetentionPeriod)}, want: true},
			"deleted":    {c: card.Card{Deletable: true, Deleted: true}, want: false},
		}

		for name, tc := range tests {
			t.Run(name, func(t *testing.T) {
				if got := tc.c.CanDelete(now); got != tc.want {
					t.Errorf("expected %v, got %v", tc.want, got)
				}
			})
		}
	})
}
