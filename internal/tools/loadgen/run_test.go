package loadgen

import "testing"

func TestClassifyStatusClass(t *testing.T) {
	cases := map[int]string{
		201: "2xx",
		302: "3xx",
		401: "4xx",
		503: "5xx",
		100: "other",
	}
	for status, want := range cases {
		if got := classifyStatusClass(status); got != want {
			t.Fatalf("classifyStatusClass(%d)=%q want %q", status, got, want)
		}
	}
}

func TestNormalizeProfile(t *testing.T) {
	if got := normalizeProfile(""); got != "mixed" {
		t.Fatalf("normalizeProfile empty=%q want mixed", got)
	}
	if got := normalizeProfile("  LOGIN  "); got != "login" {
		t.Fatalf("normalizeProfile login=%q want login", got)
	}
}
