package paragraph

import (
	"strings"

	"pravachan-index/models"
)

// fragment is a Phase-1 output unit: a run of lines sharing one
// paragraph type, not yet merged with its neighbors.
type fragment struct {
	ptype             models.ParagraphType
	lines             []models.Line
	pageStart         int
	pageEnd           int
	noCombine         bool
	originalLineIndex int
}

func (f *fragment) text() string {
	sep := " "
	if f.ptype != models.StandardProse {
		sep = "\n"
	}
	out := ""
	for i, l := range f.lines {
		if i > 0 {
			out += sep
		}
		out += strings.TrimSpace(l.Text)
	}
	return out
}
