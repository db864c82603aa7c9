package column

import "sort"

type gap struct{ start, end int }

func (g gap) width() int { return g.end - g.start }

// gutters returns every maximal zero run of a projection, including runs at
// either margin.
func gutters(projection []int) []gap {
	var out []gap
	inGap, start := false, 0
	for i, v := range projection {
		switch {
		case v == 0 && !inGap:
			inGap, start = true, i
		case v != 0 && inGap:
			out = append(out, gap{start, i})
			inGap = false
		}
	}
	if inGap {
		out = append(out, gap{start, len(projection)})
	}
	return out
}

func sortGapsByWidth(gaps []gap) {
	sort.SliceStable(gaps, func(i, j int) bool { return gaps[i].width() > gaps[j].width() })
}

func sortGapsByStart(gaps []gap) {
	sort.Slice(gaps, func(i, j int) bool { return gaps[i].start < gaps[j].start })
}
