package reqctx

import (
	"net/http/httptest"
	"testing"
)

func TestResolveLocale(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   string
	}{
		{"empty defaults to english", "", "en"},
		{"plain tag", "es", "es"},
		{"region subtag stripped", "es-ES,es;q=0.9", "es"},
		{"weighted pick", "en;q=0.5,fr;q=0.9", "fr"},
		{"tie keeps listed order", "de;q=0.8,it;q=0.8", "de"},
		{"unsupported falls back", "ja-JP,ja;q=0.9", "en"},
		{"underscore variant", "pt_BR", "pt"},
		{"uppercase", "RU", "ru"},
		{"garbage", ";;;", "en"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolveLocale(tc.header); got != tc.want {
				t.Fatalf("ResolveLocale(%q) = %q, want %q", tc.header, got, tc.want)
			}
		})
	}
}

func TestResolveTimezone(t *testing.T) {
	cases := []struct {
		name         string
		value        string
		wantName     string
		wantFallback bool
	}{
		{"empty is utc", "", "UTC", false},
		{"canonical zone", "America/New_York", "America/New_York", false},
		{"lowercase zone capitalized", "america/new_york", "America/New_York", false},
		{"abbreviation est", "EST", "America/New_York", false},
		{"abbreviation gmt", "GMT", "UTC", false},
		{"abbreviation lowercase", "pst", "America/Los_Angeles", false},
		{"invalid falls back", "Invalid/Timezone", "UTC", true},
		{"nonsense falls back", "not-a-zone", "UTC", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			name, location, fallback := ResolveTimezone(tc.value)
			if name != tc.wantName {
				t.Fatalf("ResolveTimezone(%q) name = %q, want %q", tc.value, name, tc.wantName)
			}
			if fallback != tc.wantFallback {
				t.Fatalf("ResolveTimezone(%q) fallback = %v, want %v", tc.value, fallback, tc.wantFallback)
			}
			if location == nil {
				t.Fatal("location must never be nil")
			}
		})
	}
}

func TestResolveDepth(t *testing.T) {
	cases := []struct {
		raw  string
		want *int
	}{
		{"", nil},
		{"abc", nil},
		{"1.5", nil},
		{"0", ptr(0)},
		{"2", ptr(2)},
		{"-1", ptr(-1)},
		{"-7", ptr(-1)},
		{"99", ptr(10)},
	}

	for _, tc := range cases {
		got := ResolveDepth(tc.raw)
		switch {
		case tc.want == nil && got != nil:
			t.Errorf("ResolveDepth(%q) = %d, want nil", tc.raw, *got)
		case tc.want != nil && got == nil:
			t.Errorf("ResolveDepth(%q) = nil, want %d", tc.raw, *tc.want)
		case tc.want != nil && *got != *tc.want:
			t.Errorf("ResolveDepth(%q) = %d, want %d", tc.raw, *got, *tc.want)
		}
	}
}

func TestResolveFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/nodes/?depth=2", nil)
	r.Header.Set("Accept-Language", "es-MX,es;q=0.9,en;q=0.5")
	r.Header.Set("X-Timezone", "EST")

	rc := Resolve(r)
	if rc.Locale != "es" {
		t.Fatalf("locale = %q", rc.Locale)
	}
	if rc.TimezoneName != "America/New_York" || rc.UTCFallback {
		t.Fatalf("timezone = %q fallback=%v", rc.TimezoneName, rc.UTCFallback)
	}
	if rc.Depth == nil || *rc.Depth != 2 {
		t.Fatalf("depth = %v", rc.Depth)
	}
	if rc.CurrentDepth != 0 {
		t.Fatalf("current depth = %d", rc.CurrentDepth)
	}
}

func TestTimezoneHeaderPriority(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/nodes/", nil)
	r.Header.Set("Time-Zone", "Europe/Paris")
	r.Header.Set("X-Timezone", "America/Chicago")

	rc := Resolve(r)
	if rc.TimezoneName != "Europe/Paris" {
		t.Fatalf("Time-Zone header must win, got %q", rc.TimezoneName)
	}
}

func ptr(v int) *int { return &v }
