package scraper

import (
	"net/url"
	"testing"

	"kultuurivoog/internal/identity"
)

func TestDetectCity(t *testing.T) {
	tests := map[string]string{
		"Eesti Draamateater, Tallinn": "Tallinn",
		"Tallinna Linnateater":        "Tallinn",
		"Vanemuise suur maja, TARTU":  "Tartu",
		"Jõhvi Kontserdimaja":         "Jõhvi",
		"Endla teater":                "",
		"":                            "",
	}
	for venue, want := range tests {
		if got := DetectCity(venue); got != want {
			t.Fatalf("DetectCity(%q)=%q want=%q", venue, got, want)
		}
	}
}

func TestClockTime(t *testing.T) {
	tests := map[string]string{
		"19:00":       "19:00",
		"kell 18.30":  "18:30",
		"9:15":        "09:15",
		"algus 25:00": "",
		"":            "",
	}
	for in, want := range tests {
		if got := clockTime(in); got != want {
			t.Fatalf("clockTime(%q)=%q want=%q", in, got, want)
		}
	}
	if got := clockInDate("12.02.2026"); got != "" {
		t.Fatalf("clockInDate read a date as time: %q", got)
	}
	if got := clockInDate("R 13. märts 2026 19:00"); got != "19:00" {
		t.Fatalf("clockInDate=%q want=19:00", got)
	}
}

func TestResolveURL(t *testing.T) {
	base, _ := url.Parse("https://teater.ee/teatriinfo/mangukava/")
	tests := map[string]string{
		"/lavastused/hamlet/":       "https://teater.ee/lavastused/hamlet/",
		"pilt.jpg":                  "https://teater.ee/teatriinfo/mangukava/pilt.jpg",
		"https://cdn.example/x.jpg": "https://cdn.example/x.jpg",
		"":                          "",
		"javascript:void(0)":        "",
	}
	for ref, want := range tests {
		if got := resolveURL(base, ref); got != want {
			t.Fatalf("resolveURL(%q)=%q want=%q", ref, got, want)
		}
	}
}

func TestExtractFragmentRecoversPanic(t *testing.T) {
	res := extractFragment(func() fragmentResult {
		var m map[string]int
		m["boom"]++
		return fragmentResult{}
	})
	if res.Skip != SkipExtractError {
		t.Fatalf("skip=%q want=%q", res.Skip, SkipExtractError)
	}
}

func TestDraftBuildLeavesAbsentFieldsNil(t *testing.T) {
	rec := draft{Title: " Hamlet ", Date: "2026-02-12"}.build(SourceTeater, "")
	if rec.Title != "Hamlet" || rec.Genre != "Theatre" || rec.Source != SourceTeater {
		t.Fatalf("rec=%+v", rec)
	}
	if rec.Time != nil || rec.Venue != nil || rec.City != nil || rec.FreeReason != nil || rec.SourceURL != nil {
		t.Fatalf("absent optional fields should be nil: %+v", rec)
	}
	if len(rec.CanonicalID) != 40 {
		t.Fatalf("canonical id=%q", rec.CanonicalID)
	}
}

func TestIdentityUsesPaddedClock(t *testing.T) {
	padded := identity.Generate("Hamlet", "2026-02-12", "Vanemuine", "Tartu", "09:00")
	for _, raw := range []string{"9:00", "kell 9.00", "09:00"} {
		clock := clockTime(raw)
		if clock != "09:00" {
			t.Fatalf("clockTime(%q)=%q want=09:00", raw, clock)
		}
		if got := identity.Generate("Hamlet", "2026-02-12", "Vanemuine", "Tartu", clock); got != padded {
			t.Fatalf("id for %q=%s want=%s", raw, got, padded)
		}
	}
}
