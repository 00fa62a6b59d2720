// Package classify assigns genre, free-admission and audience flags to an
// event from its title, description and venue using fixed keyword lists.
package classify

import (
	"strings"

	"kultuurivoog/internal/textnorm"
)

const (
	GenreOpera    = "Opera"
	GenreBallet   = "Ballet"
	GenreOperetta = "Operetta"
	GenreConcert  = "Concert"
	GenreTheatre  = "Theatre"
)

// GenreRule matches Keywords against title and description and VenueHints
// against the venue alone.
type GenreRule struct {
	Genre      string
	Keywords   []string
	VenueHints []string
}

// DefaultGenreRules are evaluated in order; the first match wins.
func DefaultGenreRules() []GenreRule {
	return []GenreRule{
		{Genre: GenreOpera, Keywords: []string{"ooper"}},
		{Genre: GenreBallet, Keywords: []string{"ballett", "tantsuteater", "tantsulavastus", "koreograaf"}},
		{Genre: GenreOperetta, Keywords: []string{"operett"}},
		{
			Genre:      GenreConcert,
			Keywords:   []string{"kontsert", "jazz", "orkester", "klaveriõhtu", "kammerkontsert", "koor", "ansambel"},
			VenueHints: []string{"kontserdimaja", "philly joe", "jazz", "ait"},
		},
	}
}

var freeKeywords = []string{
	"tasuta",
	"vaba sissepääs",
	"vabalt valitud annetusega",
	"annetuspõhine",
	"soovituslik annetus",
	"piletita",
}

var kidsKeywords = []string{
	"nukuteater", "noorsooteater", "lastele", "kogupere", "mudilastele",
	"lastelavastus", "piparkoogi", "päkapiku", "jõuluvana", "lohe",
	"muinasjutt", "tsirkus", "kloun", "buratino", "sipsik", "lotte",
	"pipi", "karlsson", "bullerby",
}

type Result struct {
	Genre       string
	IsFree      bool
	FreeReason  string
	IsKidsEvent bool
}

// Classify runs every detector. fallback is the genre used when no rule
// matches; empty means Theatre.
func Classify(title, description, venue, fallback string) Result {
	free, reason := DetectFree(title, description)
	return Result{
		Genre:       DetectGenre(title, description, venue, fallback),
		IsFree:      free,
		FreeReason:  reason,
		IsKidsEvent: IsKidsEvent(title, venue, description),
	}
}

func DetectGenre(title, description, venue, fallback string) string {
	text := join(title, description)
	v := textnorm.Normalize(venue)
	for _, rule := range DefaultGenreRules() {
		if matchAny(text, rule.Keywords) != "" {
			return rule.Genre
		}
		if v != "" && matchAny(v, rule.VenueHints) != "" {
			return rule.Genre
		}
	}
	if fallback == "" {
		return GenreTheatre
	}
	return fallback
}

// DetectFree reports whether the text announces free admission and which
// keyword said so.
func DetectFree(title, description string) (bool, string) {
	kw := matchAny(join(title, description), freeKeywords)
	return kw != "", kw
}

func IsKidsEvent(title, venue, description string) bool {
	return matchAny(join(title, venue, description), kidsKeywords) != ""
}

func join(parts ...string) string {
	return textnorm.Normalize(strings.Join(parts, " "))
}

func matchAny(text string, keywords []string) string {
	if text == "" {
		return ""
	}
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return kw
		}
	}
	return ""
}
