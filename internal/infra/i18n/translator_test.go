//go:build !integration

package i18n

import (
	"testing"
	"testing/fstest"
)

func TestTranslator(t *testing.T) {
	translator, err := newTranslatorFromBytes([]byte("greeting: Hello\nwelcome_user: Hello %s"))
	if err != nil {
		t.Fatalf("newTranslatorFromBytes failed: %v", err)
	}

	t.Run("should translate a simple key", func(t *testing.T) {
		if got := translator.T("greeting"); got != "Hello" {
			t.Errorf("wanted 'Hello', got '%s'", got)
		}
	})

	t.Run("should return key if not found", func(t *testing.T) {
		if got := translator.T("nonexistent_key"); got != "nonexistent_key" {
			t.Errorf("wanted 'nonexistent_key', got '%s'", got)
		}
	})

	t.Run("should format arguments correctly", func(t *testing.T) {
		if got := translator.T("welcome_user", "Ada"); got != "Hello Ada" {
			t.Errorf("wanted 'Hello Ada', got '%s'", got)
		}
	})
}

func TestNewTranslator_FallsBackToEnglish(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/en.yaml": {Data: []byte("hi: Hi")},
	}
	tr, err := NewTranslator(fsys, "de")
	if err != nil {
		t.Fatalf("NewTranslator failed: %v", err)
	}
	if tr.Language() != "en" || tr.T("hi") != "Hi" {
		t.Errorf("expected English fallback, got %s %q", tr.Language(), tr.T("hi"))
	}

	if _, err := NewTranslator(fstest.MapFS{}, "en"); err == nil {
		t.Error("expected an error without locale files")
	}
}

func TestEmbeddedLocales(t *testing.T) {
	tr, err := NewTranslator(LocalesFS, "en")
	if err != nil {
		t.Fatalf("embedded locales: %v", err)
	}
	for _, key := range []string{"receipt_subject", "receipt_body", "reason.insufficient_credits", "reason.internal_error"} {
		if !tr.Has(key) {
			t.Errorf("missing key %s", key)
		}
	}
}
