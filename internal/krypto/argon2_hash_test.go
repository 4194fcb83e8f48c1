package krypto_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/willemschots/cardhub/internal/krypto"
)

func failTextToArgon2Hash() map[string]string {
	return map[string]string{
		"fail, wrong variant":           "$argon2i$v=19$m=47104,t=1,p=1$fYJT8cAysfuYCBjxTEmCkaCz0RfRtlLQOw2Fj8gM5Uw$DVpK1dNdPRmhL8oTSo+RlA",
		"fail, non-numeric version":     "$argon2id$v=abc$m=47104,t=1,p=1$fYJT8cAysfuYCBjxTEmCkaCz0RfRtlLQOw2Fj8gM5Uw$DVpK1dNdPRmhL8oTSo+RlA",
		"fail, non-matching version":    "$argon2id$v=18$m=47104,t=1,p=1$fYJT8cAysfuYCBjxTEmCkaCz0RfRtlLQOw2Fj8gM5Uw$DVpK1dNdPRmhL8oTSo+RlA",
		"fail, non-numeric memory":      "$argon2id$v=19$m=abc,t=1,p=1$fYJT8cAysfuYCBjxTEmCkaCz0RfRtlLQOw2Fj8gM5Uw$DVpK1dNdPRmhL8oTSo+RlA",
		"fail, non-numeric iterations":  "$argon2id$v=19$m=47104,t=abc,p=1$fYJT8cAysfuYCBjxTEmCkaCz0RfRtlLQOw2Fj8gM5Uw$DVpK1dNdPRmhL8oTSo+RlA",
		"fail, non-numeric parallelism": "$argon2id$v=19$m=47104,t=1,p=abc$fYJT8cAysfuYCBjxTEmCkaCz0RfRtlLQOw2Fj8gM5Uw$DVpK1dNdPRmhL8oTSo+RlA",
		"fail, non-base64 salt":         "$argon2id$v=19$m=47104,t=1,p=1$???????????????????????????????????????????$DVpK1dNdPRmhL8oTSo+RlA",
		"fail, non-base64 hash":         "$argon2id$v=19$m=47104,t=1,p=1$fYJT8cAysfuYCBjxTEmCkaCz0RfRtlLQOw2Fj8gM5Uw$??????????????????????",
	}
}

type argon2HashTest struct {
	raw     string
	hashStr string
	hash    krypto.Argon2Hash
}

func okTextToArgon2Hash() map[string]argon2HashTest {
	return map[string]argon2HashTest{
		"ascii": {
			raw:     "12345678",
			hashStr: "$argon2id$v=19$m=47104,t=1,p=1$vP9U4C5jsOzFQLj0gvUkYw$YLrSb2dGfcVohlm8syynqHs6/NHxXS9rt/t6TjL7pi0",
			hash: krypto.Argon2Hash{
				Variant:     "argon2id",
				Version:     19,
				MemoryKiB:   47104,
				Iterations:  1,
				Parallelism: 1,
				Salt: []byte{
					0xbc, 0xff, 0x54, 0xe0, 0x2e, 0x63, 0xb0, 0xec,
					0xc5, 0x40, 0xb8, 0xf4, 0x82, 0xf5, 0x24, 0x63,
				},
				Hash: []byte{
					0x60, 0xba, 0xd2, 0x6f, 0x67, 0x46, 0x7d, 0xc5,
					0x68, 0x86, 0x59, 0xbc, 0xb3, 0x2c, 0xa7, 0xa8,
					0x7b, 0x3a, 0xfc, 0xd1, 0xf1, 0x5d, 0x2f, 0x6b,
					0xb7, 0xfb, 0x7a, 0x4e, 0x32, 0xfb, 0xa6, 0x2d,
				},
			},
		},
		"non-ascii": {
			raw:     "\U0001F978\U0001F978\U0001F978", // 🥸🥸🥸
			hashStr: "$argon2id$v=19$m=47104,t=1,p=1$CkX5zzYLJMWm0y/17eScyw$Qfah+NewdsdeF0+iV72mShZhRO93Qwzdj17TUZCH6ZU",
			hash: krypto.Argon2Hash{
				Variant:     "argon2id",
				Version:     19,
				MemoryKiB:   47104,
				Iterations:  1,
				Parallelism: 1,
				Salt: []byte{
					0xa, 0x45, 0xf9, 0xcf, 0x36, 0xb, 0x24, 0xc5,
					0xa6, 0xd3, 0x2f, 0xf5, 0xed, 0xe4, 0x9c, 0xcb,
				},
				Hash: []byte{
					0x41, 0xf6, 0xa1, 0xf8, 0xd7, 0xb0, 0x76, 0xc7,
					0x5e, 0x17, 0x4f, 0xa2, 0x57, 0xbd, 0xa6, 0x4a,
					0x16, 0x61, 0x44, 0xef, 0x77, 0x43, 0xc, 0xdd,
					0x8f, 0x5e, 0xd3, 0x51, 0x90, 0x87, 0xe9, 0x95,
				},
			},
		},
	}
}

func Test_HashArgon2(t *testing.T) {
	for name, tc := range okTextToArgon2Hash() {
		t.Run("ok, "+name, func(t *testing.T) {
			got, err := krypto.HashArgon2([]byte(tc.raw))
			if err != nil {
				t.Fatalf("failed to hash: %v", err)
			}

			// Fresh salt, so never the stored vector.
			if reflect.DeepEqual(got, tc.hash) {
				t.Errorf("rehash equals stored hash %#v", got)
			}

			if !got.MatchBytes([]byte(tc.raw)) {
				t.Errorf("raw value does not match its own hash")
			}

			if got.MatchBytes([]byte(tc.raw + "x")) {
				t.Errorf("other value matches hash")
			}
		})
	}

	for name, raw := range map[string][]byte{"fail, nil": nil, "fail, empty": {}} {
		t.Run(name, func(t *testing.T) {
			_, err := krypto.HashArgon2(raw)
			if !errors.Is(err, krypto.ErrInvalidInput) {
				t.Fatalf("expected %v via errors.Is, got %v", krypto.ErrInvalidInput, err)
			}
		})
	}
}

// Every way a hash enters the program from text.
var argon2Decoders = map[string]func(string) (krypto.Argon2Hash, error){
	"parse": krypto.ParseArgon2Hash,
	"unmarshal text": func(s string) (krypto.Argon2Hash, error) {
		var h krypto.Argon2Hash
		err := h.UnmarshalText([]byte(s))
		return h, err
	},
	"scan string": func(s string) (krypto.Argon2Hash, error) {
		var h krypto.Argon2Hash
		err := h.Scan(s)
		return h, err
	},
	"scan bytes": func(s string) (krypto.Argon2Hash, error) {
		var h krypto.Argon2Hash
		err := h.Scan([]byte(s))
		return h, err
	},
}

func Test_Argon2Hash_Decode(t *testing.T) {
	for decName, decode := range argon2Decoders {
		for name, tc := range okTextToArgon2Hash() {
			t.Run("ok, "+decName+", "+name, func(t *testing.T) {
				got, err := decode(tc.hashStr)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}

				if !reflect.DeepEqual(got, tc.hash) {
					t.Errorf("got\n%#v\nwant\n%#v", got, tc.hash)
				}

				if !got.MatchBytes([]byte(tc.raw)) {
					t.Errorf("raw value does not match decoded hash")
				}
			})
		}

		for name, txt := range failTextToArgon2Hash() {
			t.Run(decName+", "+name, func(t *testing.T) {
				_, err := decode(txt)
				if !errors.Is(err, krypto.ErrInvalidInput) {
					t.Errorf("expected %v via errors.Is, got %v", krypto.ErrInvalidInput, err)
				}
			})
		}
	}

	t.Run("fail, scan unsupported type", func(t *testing.T) {
		var h krypto.Argon2Hash
		if err := h.Scan(42); err == nil {
			t.Fatalf("expected an error")
		}
	})
}

func Test_Argon2Hash_Encode(t *testing.T) {
	for name, tc := range okTextToArgon2Hash() {
		t.Run(name, func(t *testing.T) {
			if got := tc.hash.String(); got != tc.hashStr {
				t.Errorf("String() got\n%s\nwant\n%s", got, tc.hashStr)
			}

			v, err := tc.hash.Value()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if v != tc.hashStr {
				t.Errorf("Value() got\n%v\nwant\n%s", v, tc.hashStr)
			}
		})
	}
}
