package citation

import "testing"

func refs() []Reference {
	return []Reference{
		{ID: 1, FileName: "a.pdf", PageLabel: "1"},
		{ID: 2, FileName: "b.pdf", PageLabel: "2"},
		{ID: 3, FileName: "c.pdf", PageLabel: "3"},
	}
}

func TestAnalyzeClassifiesCitedUncitedAndInvalid(t *testing.T) {
	report := "The finding [1] is confirmed by another source [1] and [9]."
	a := Analyze(report, refs())

	if len(a.CitedRefs) != 1 || a.CitedRefs[0].Reference.ID != 1 || a.CitedRefs[0].Count != 2 {
		t.Fatalf("unexpected cited refs: %+v", a.CitedRefs)
	}
	if len(a.UncitedRefs) != 2 {
		t.Fatalf("expected 2 uncited refs, got %d", len(a.UncitedRefs))
	}
	if len(a.InvalidCitations) != 1 || a.InvalidCitations[0] != 9 {
		t.Fatalf("expected invalid citation [9], got %v", a.InvalidCitations)
	}
	if a.Stats.TotalCitations != 3 {
		t.Fatalf("expected 3 total citations, got %d", a.Stats.TotalCitations)
	}
	if a.Stats.UniqueCitations != 1 {
		t.Fatalf("expected 1 unique citation, got %d", a.Stats.UniqueCitations)
	}
}

func TestAnalyzeSortsMostCitedDescending(t *testing.T) {
	report := "[1] [2] [2] [3] [3] [3]"
	a := Analyze(report, refs())

	if len(a.Stats.MostCited) != 3 {
		t.Fatalf("expected 3 most-cited entries, got %d", len(a.Stats.MostCited))
	}
	if a.Stats.MostCited[0].Reference.ID != 3 || a.Stats.MostCited[0].Count != 3 {
		t.Fatalf("expected id 3 with count 3 first, got %+v", a.Stats.MostCited[0])
	}
}

func TestFormatMarkdownIncludesAllThreeSections(t *testing.T) {
	a := Analyze("[1]", refs())
	out := FormatMarkdown(a)

	for _, heading := range []string{"Cited References", "Related Sources (Not Cited)", "Citation Statistics"} {
		if !contains(out, heading) {
			t.Errorf("expected output to contain %q", heading)
		}
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
