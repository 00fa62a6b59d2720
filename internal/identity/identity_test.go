package identity

import (
	"crypto/sha1"
	"encoding/hex"
	"testing"
)

func TestGenerateMatchesDocumentedLayout(t *testing.T) {
	sum := sha1.Sum([]byte("hamlet|2026-02-12|eesti draamateater|tallinn|1900"))
	want := hex.EncodeToString(sum[:])
	got := Generate("  HAMLET ", "2026-02-12", "Eesti  Draamateater", "Tallinn", "19:00")
	if got != want {
		t.Fatalf("Generate=%s want=%s", got, want)
	}
	if len(got) != 40 {
		t.Fatalf("len=%d want=40", len(got))
	}
}

func TestGenerateIsStableAcrossCosmeticDifferences(t *testing.T) {
	a := Generate("Hamlet", "2026-02-12", "Eesti Draamateater", "Tallinn", "19:00")
	b := Generate("hamlet ", "2026-02-12", " eesti draamateater", "TALLINN", "19.00")
	if a != b {
		t.Fatalf("ids differ: %s vs %s", a, b)
	}
}

func TestGenerateChangesWithEachField(t *testing.T) {
	base := Generate("Hamlet", "2026-02-12", "Eesti Draamateater", "Tallinn", "19:00")
	variants := []string{
		Generate("Kirsiaed", "2026-02-12", "Eesti Draamateater", "Tallinn", "19:00"),
		Generate("Hamlet", "2026-02-13", "Eesti Draamateater", "Tallinn", "19:00"),
		Generate("Hamlet", "2026-02-12", "Vanemuine", "Tallinn", "19:00"),
		Generate("Hamlet", "2026-02-12", "Eesti Draamateater", "Tartu", "19:00"),
		Generate("Hamlet", "2026-02-12", "Eesti Draamateater", "Tallinn", "12:00"),
		Generate("Hamlet", "2026-02-12", "Eesti Draamateater", "Tallinn", ""),
	}
	for i, v := range variants {
		if v == base {
			t.Fatalf("variant %d collides with base id", i)
		}
	}
}

func TestCompactTime(t *testing.T) {
	for in, want := range map[string]string{"19:00": "1900", " 19.30 ": "1930", "": ""} {
		if got := CompactTime(in); got != want {
			t.Fatalf("CompactTime(%q)=%q want=%q", in, got, want)
		}
	}
}
