package category

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Jazz ", "jazz"},
		{"", ""},
		{"   ", ""},
		{"Dla Dzieci", "dla dzieci"},
		// decomposed "ó" composes to the same key as the precomposed form
		{"Wyko\u0301ad", "wyk\u00f3ad"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPrimary(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want string
	}{
		{"nil", nil, Sentinel},
		{"empty", []string{}, Sentinel},
		{"skips sentinel", []string{"Other", "Jazz"}, "Jazz"},
		{"only sentinel", []string{"Other"}, "Other"},
		{"skips blanks", []string{"", "  ", "Sport"}, "Sport"},
		{"trims", []string{"  Film  ", "Art"}, "Film"},
		{"blank and sentinel", []string{" ", "Other"}, " "},
		{"padded sentinel kept raw", []string{" Other "}, " Other "},
		{"empty first entry", []string{"", "Other"}, Sentinel},
		{"sentinel is case sensitive", []string{"other"}, "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Primary(tt.in); got != tt.want {
				t.Fatalf("Primary(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestKey(t *testing.T) {
	if got := Key([]string{"Other", " Jazz "}); got != "jazz" {
		t.Fatalf("Key = %q, want jazz", got)
	}
	if got := Key(nil); got != "other" {
		t.Fatalf("Key(nil) = %q, want other", got)
	}
}
