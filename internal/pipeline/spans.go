package pipeline

import (
	"sort"

	"github.com/ppiankov/absredact/internal/locate"
	"github.com/ppiankov/absredact/internal/model"
)

// spansByPage groups match spans per page, sorted and with overlapping or
// touching spans merged
func spansByPage(matches []locate.PageMatch) map[int][]model.Span {
	byPage := make(map[int][]model.Span)
	for _, m := range matches {
		byPage[m.Page] = append(byPage[m.Page], m.Span)
	}
	for page, spans := range byPage {
		byPage[page] = mergeSpans(spans)
	}
	return byPage
}

func mergeSpans(spans []model.Span) []model.Span {
	if len(spans) < 2 {
		return spans
	}
	sorted := append([]model.Span(nil), spans...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out := []model.Span{sorted[0]}
	for _, s := range sorted[1:] {
		last := &out[len(out)-1]
		if s.Start <= last.End+1 {
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}
		out = append(out, s)
	}
	return out
}
