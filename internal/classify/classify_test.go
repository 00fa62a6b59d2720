package classify

import "testing"

func TestDetectGenre(t *testing.T) {
	tests := []struct {
		title, desc, venue, fallback string
		want                         string
	}{
		{"Tosca", "Puccini ooper kolmes vaatuses", "Rahvusooper Estonia", "", GenreOpera},
		{"Pähklipureja", "Klassikaline ballett", "", "", GenreBallet},
		{"Ooperiballett", "", "", "", GenreOpera},
		{"Krahvinna Mariza", "Kálmáni operett", "", "", GenreOperetta},
		{"ERSO hooajakontsert", "", "", "", GenreConcert},
		{"Kolmapäevaõhtu", "", "Philly Joe's Jazz Club", "", GenreConcert},
		{"Hamlet", "", "Tallinna Linnateater", "", GenreTheatre},
		{"Tundmatu pealkiri", "", "", GenreConcert, GenreConcert},
		{"", "", "", "", GenreTheatre},
	}
	for _, tt := range tests {
		if got := DetectGenre(tt.title, tt.desc, tt.venue, tt.fallback); got != tt.want {
			t.Fatalf("DetectGenre(%q,%q,%q)=%q want=%q", tt.title, tt.desc, tt.venue, got, tt.want)
		}
	}
}

func TestDetectGenreKeywordBeatsVenueHintOfLaterRule(t *testing.T) {
	if got := DetectGenre("Tantsulavastus Kevad", "", "Vanemuise Kontserdimaja", ""); got != GenreBallet {
		t.Fatalf("got=%q want=%q", got, GenreBallet)
	}
}

func TestDetectFree(t *testing.T) {
	free, reason := DetectFree("Suvekontsert", "Sissepääs TASUTA kõigile")
	if !free || reason != "tasuta" {
		t.Fatalf("free=%v reason=%q", free, reason)
	}
	free, reason = DetectFree("Orelimuusika", "vabalt  valitud annetusega")
	if !free || reason != "vabalt valitud annetusega" {
		t.Fatalf("free=%v reason=%q", free, reason)
	}
	free, reason = DetectFree("Hamlet", "Piletid müügil")
	if free || reason != "" {
		t.Fatalf("free=%v reason=%q want not free", free, reason)
	}
}

func TestIsKidsEvent(t *testing.T) {
	if !IsKidsEvent("Sipsik", "", "") {
		t.Fatalf("Sipsik should be a kids event")
	}
	if !IsKidsEvent("Lumekuninganna", "NUKU Nukuteater", "") {
		t.Fatalf("venue should flag kids event")
	}
	if !IsKidsEvent("Talvelugu", "", "Kogupere etendus") {
		t.Fatalf("description should flag kids event")
	}
	if IsKidsEvent("Kirsiaed", "Eesti Draamateater", "Tšehhovi klassika") {
		t.Fatalf("adult drama flagged as kids event")
	}
}

func TestClassify(t *testing.T) {
	got := Classify("Jõuluvana tasuta kontsert", "", "Tartu", "")
	if got.Genre != GenreConcert || !got.IsFree || got.FreeReason != "tasuta" || !got.IsKidsEvent {
		t.Fatalf("Classify=%+v", got)
	}
}
