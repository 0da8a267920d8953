package config

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"10m":   10 * time.Minute,
		"2h":    2 * time.Hour,
		"1d":    Day,
		"2w":    2 * Week,
		"1d12h": Day + 12*time.Hour,
		"0.5d":  12 * time.Hour,
		"":      0,
	}
	for in, want := range cases {
		got, err := ParseDuration(in)
		if err != nil {
			t.Errorf("ParseDuration(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseDuration(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseDurationInvalid(t *testing.T) {
	for _, in := range []string{"abc", "d", "w"} {
		if _, err := ParseDuration(in); err == nil {
			t.Errorf("ParseDuration(%q) accepted", in)
		}
	}
}

func TestDurationYAMLRoundtrip(t *testing.T) {
	var d Duration
	if err := yaml.Unmarshal([]byte(`"1d"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if time.Duration(d) != Day {
		t.Errorf("got %v", time.Duration(d))
	}

	out, err := yaml.Marshal(Duration(90 * time.Minute))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != "1h30m0s\n" {
		t.Errorf("marshal = %q", out)
	}
}
