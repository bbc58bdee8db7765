package spell

import (
	"errors"
	"testing"
)

func TestSpellPerLocale(t *testing.T) {
	cases := []struct {
		n      int
		locale string
		want   string
	}{
		{1, "en", "one"},
		{1, "es", "uno"},
		{1, "fr", "un"},
		{1, "de", "eins"},
		{1, "it", "uno"},
		{1, "pt", "um"},
		{1, "ru", "один"},
		{1, "ar", "واحد"},
		{0, "en", "zero"},
		{15, "en", "fifteen"},
		{21, "en", "twenty-one"},
		{100, "en", "one hundred"},
		{342, "en", "three hundred forty-two"},
		{1000, "en", "one thousand"},
		{21, "es", "veintiuno"},
		{31, "es", "treinta y uno"},
		{100, "es", "cien"},
		{101, "es", "ciento uno"},
		{500, "es", "quinientos"},
		{1000, "es", "mil"},
		{2024, "es", "dos mil veinticuatro"},
		{71, "fr", "soixante-et-onze"},
		{80, "fr", "quatre-vingts"},
		{99, "fr", "quatre-vingt-dix-neuf"},
		{200, "fr", "deux cents"},
		{21, "de", "einundzwanzig"},
		{100, "de", "einhundert"},
		{1001, "de", "eintausendeins"},
		{21, "it", "ventuno"},
		{23, "it", "ventitré"},
		{28, "it", "ventotto"},
		{2000, "it", "duemila"},
		{100, "pt", "cem"},
		{101, "pt", "cento e um"},
		{22, "pt", "vinte e dois"},
		{42, "ru", "сорок два"},
		{1000, "ru", "одна тысяча"},
		{2000, "ru", "две тысячи"},
		{5000, "ru", "пять тысяч"},
		{25, "ar", "خمسة وعشرون"},
		{100, "ar", "مائة"},
	}

	for _, tc := range cases {
		got, err := Spell(tc.n, tc.locale)
		if err != nil {
			t.Errorf("Spell(%d, %q) error: %v", tc.n, tc.locale, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Spell(%d, %q) = %q, want %q", tc.n, tc.locale, got, tc.want)
		}
	}
}

func TestSpellUnsupportedLocale(t *testing.T) {
	_, err := Spell(1, "xx")
	if !errors.Is(err, ErrUnsupportedLocale) {
		t.Fatalf("expected ErrUnsupportedLocale, got %v", err)
	}
}

func TestSpellOutOfRange(t *testing.T) {
	if _, err := Spell(-1, "en"); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange for -1, got %v", err)
	}
	if _, err := Spell(1000000, "en"); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange for 1000000, got %v", err)
	}
}

func TestSupported(t *testing.T) {
	for _, locale := range []string{"en", "es", "fr", "de", "it", "pt", "ru", "ar"} {
		if !Supported(locale) {
			t.Errorf("Supported(%q) = false", locale)
		}
	}
	if Supported("ja") {
		t.Error("Supported(ja) = true, want false")
	}
}
