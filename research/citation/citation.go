// Package citation implements the citation-analysis pass described in
// section 4.10: extracting [N] markers from a report's text and
// cross-referencing them against a reference list. It is a pure-function
// package deliberately kept independent of research.Workflow so it can
// run over any markdown deliverable, not only deep-research reports,
// grounded in original_source's report-composition module's citation
// extraction/stats rules.
package citation

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Reference is one entry in a report's reference list.
type Reference struct {
	ID        int
	FileName  string
	PageLabel string
}

// Cited pairs a Reference with how many times it was cited.
type Cited struct {
	Reference Reference
	Count     int
}

// Stats summarizes a report's citation usage.
type Stats struct {
	TotalCitations         int
	UniqueCitations        int
	AvgCitationsPerSource  float64
	MostCited              []Cited
}

// Analysis is the full result of analyzing one report against its
// reference list.
type Analysis struct {
	CitedRefs        []Cited
	UncitedRefs      []Reference
	InvalidCitations []int
	Stats            Stats
}

// markerPattern matches bracketed numeric citation markers like [3].
var markerPattern = regexp.MustCompile(`\[(\d+)\]`)

// Analyze extracts every [N] occurrence in report and classifies it
// against refs.
func Analyze(report string, refs []Reference) Analysis {
	counts := make(map[int]int)
	for _, m := range markerPattern.FindAllStringSubmatch(report, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		counts[n]++
	}

	byID := make(map[int]Reference, len(refs))
	for _, r := range refs {
		byID[r.ID] = r
	}

	var cited []Cited
	var uncited []Reference
	for _, r := range refs {
		if c, ok := counts[r.ID]; ok && c > 0 {
			cited = append(cited, Cited{Reference: r, Count: c})
		} else {
			uncited = append(uncited, r)
		}
	}
	sort.SliceStable(cited, func(i, j int) bool { return cited[i].Count > cited[j].Count })

	var invalid []int
	for id := range counts {
		if _, ok := byID[id]; !ok {
			invalid = append(invalid, id)
		}
	}
	sort.Ints(invalid)

	total := 0
	for _, c := range counts {
		total += c
	}
	stats := Stats{
		TotalCitations:  total,
		UniqueCitations: len(cited),
	}
	if len(cited) > 0 {
		stats.AvgCitationsPerSource = float64(total) / float64(len(cited))
	}
	mostCited := cited
	if len(mostCited) > 5 {
		mostCited = mostCited[:5]
	}
	stats.MostCited = mostCited

	return Analysis{
		CitedRefs:        cited,
		UncitedRefs:      uncited,
		InvalidCitations: invalid,
		Stats:            stats,
	}
}

// FormatMarkdown renders an Analysis as the three-section markdown report
// described in section 4.10: cited references, uncited related sources,
// and citation statistics with a distribution table.
func FormatMarkdown(a Analysis) string {
	var b strings.Builder

	b.WriteString("## \U0001F4DA Cited References\n\n")
	for _, c := range a.CitedRefs {
		fmt.Fprintf(&b, "- [%d] %s (p.%s) — cited %d time(s)\n", c.Reference.ID, c.Reference.FileName, c.Reference.PageLabel, c.Count)
	}
	if len(a.CitedRefs) == 0 {
		b.WriteString("_None._\n")
	}

	b.WriteString("\n## \U0001F4D6 Related Sources (Not Cited)\n\n")
	for _, r := range a.UncitedRefs {
		fmt.Fprintf(&b, "- [%d] %s (p.%s)\n", r.ID, r.FileName, r.PageLabel)
	}
	if len(a.UncitedRefs) == 0 {
		b.WriteString("_None._\n")
	}

	b.WriteString("\n## \U0001F4CA Citation Statistics\n\n")
	fmt.Fprintf(&b, "- Total citations: %d\n", a.Stats.TotalCitations)
	fmt.Fprintf(&b, "- Unique sources cited: %d\n", a.Stats.UniqueCitations)
	fmt.Fprintf(&b, "- Average citations per cited source: %.2f\n", a.Stats.AvgCitationsPerSource)
	if len(a.InvalidCitations) > 0 {
		fmt.Fprintf(&b, "- Invalid citation markers: %v\n", a.InvalidCitations)
	}
	b.WriteString("\n| Rank | Source | Citations |\n|---|---|---|\n")
	for i, c := range a.Stats.MostCited {
		fmt.Fprintf(&b, "| %d | %s (p.%s) | %d |\n", i+1, c.Reference.FileName, c.Reference.PageLabel, c.Count)
	}

	return b.String()
}
