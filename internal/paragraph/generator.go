// Package paragraph implements the three-phase state machine that
// reconstructs paragraph boundaries from an OCR line stream: Phase 1
// groups lines into typed fragments, Phase 2 merges consecutive
// same-type fragments and discards structural headers, Phase 3 merges
// prose continuations across page breaks.
package paragraph

import (
	"strings"

	"pravachan-index/internal/logger"
	"pravachan-index/models"
)

// Generate runs all three phases over one document's ordered line
// stream and returns the final paragraph list with seq_num assigned.
// Same lines and same config always produce an identical paragraph
// stream — the algorithm carries no hidden/random state.
func Generate(lines []models.Line) []models.Paragraph {
	fragments := phase1(lines)
	fragments = phase2Combine(fragments)
	paragraphs := phase3Continuation(fragments)
	assignSeqNums(paragraphs)
	return paragraphs
}

// phase1 classifies the line stream into typed fragments using a state
// machine with four states. A transition that "reprocesses" a line
// consumes no input: the same line is fed through the machine again
// under the new state, implemented here as an inner loop that only
// advances i when a line is actually consumed.
func phase1(lines []models.Line) []fragment {
	var fragments []fragment
	state := models.StandardProse
	var current *fragment

	openFragment := func(ptype models.ParagraphType, line models.Line, lineIdx int) {
		current = &fragment{
			ptype:             ptype,
			lines:             []models.Line{line},
			pageStart:         line.PageNum,
			pageEnd:           line.PageNum,
			originalLineIndex: lineIdx,
		}
	}

	appendLine := func(line models.Line) {
		if current == nil {
			return
		}
		current.lines = append(current.lines, line)
		current.pageEnd = line.PageNum
	}

	finalize := func() {
		if current != nil && len(current.lines) > 0 {
			fragments = append(fragments, *current)
		}
		current = nil
	}

	for i := 0; i < len(lines); {
		line := lines[i]

		if !classifiedSafely(line) {
			logger.Warn("line missing geometry, degrading to STANDARD_PROSE", "page", line.PageNum)
		}

		// Top-level: header regex always wins, regardless of state.
		if line.HasTag(models.IsHeaderRegex) {
			if state == models.HeaderBlock {
				appendLine(line)
			} else {
				finalize()
				openFragment(models.HeaderBlock, line, i)
				state = models.HeaderBlock
			}
			i++
			continue
		}

		switch state {
		case models.HeaderBlock:
			// Not a header line: finalize the header and reprocess this
			// same line as STANDARD_PROSE without consuming it.
			finalize()
			state = models.StandardProse
			continue

		case models.StandardProse:
			switch {
			case line.HasTag(models.IsQAMarker):
				finalize()
				openFragment(models.QABlock, line, i)
				state = models.QABlock
			case line.HasTag(models.IsCentered) && !line.HasTag(models.IsHeading):
				finalize()
				openFragment(models.VerseBlock, line, i)
				state = models.VerseBlock
			case line.HasTag(models.IsHeading):
				finalize()
				// standalone heading: open, immediately close as its own
				// one-line HEADER_BLOCK fragment.
				openFragment(models.HeaderBlock, line, i)
				finalize()
				state = models.StandardProse
			case line.HasTag(models.IsIntroductory):
				if current == nil {
					openFragment(models.StandardProse, line, i)
				} else {
					appendLine(line)
				}
				current.noCombine = true
				finalize()
				state = models.StandardProse
			default:
				if current == nil {
					openFragment(models.StandardProse, line, i)
				} else {
					appendLine(line)
				}
			}
			i++

		case models.VerseBlock:
			if line.HasTag(models.IsCentered) {
				appendLine(line)
				i++
			} else {
				finalize()
				state = models.StandardProse
			}

		case models.QABlock:
			switch {
			case line.HasTag(models.IsCentered):
				finalize()
				openFragment(models.VerseBlock, line, i)
				state = models.VerseBlock
				i++
			case line.HasTag(models.IsQAMarker):
				appendLine(line)
				i++
			case line.HasTag(models.IsIndented):
				// Continuing answer indent: stay in the same block.
				appendLine(line)
				i++
			default:
				finalize()
				state = models.StandardProse
			}
		}
	}

	finalize()
	return fragments
}

func classifiedSafely(line models.Line) bool {
	return line.Tags != nil
}

// phase2Combine merges consecutive same-type fragments (VERSE_BLOCK with
// VERSE_BLOCK, QA_BLOCK with QA_BLOCK), treats HEADER_BLOCK as an
// absolute barrier that is never merged with anything, and discards
// HEADER_BLOCK fragments from the output stream once barriers have done
// their job. The fragment immediately following a discarded header is
// marked noCombine so Phase 3 does not bridge across the gap.
func phase2Combine(fragments []fragment) []fragment {
	var merged []fragment
	precededByHeader := false

	for _, f := range fragments {
		if f.ptype == models.HeaderBlock {
			precededByHeader = true
			continue
		}

		if precededByHeader {
			f.noCombine = true
			precededByHeader = false
		}

		// A fragment right after a discarded header never merges
		// backward; the header's barrier outlives its removal.
		if n := len(merged); n > 0 && !f.noCombine && merged[n-1].ptype == f.ptype &&
			(f.ptype == models.VerseBlock || f.ptype == models.QABlock) {
			merged[n-1].lines = append(merged[n-1].lines, f.lines...)
			merged[n-1].pageEnd = f.pageEnd
			merged[n-1].noCombine = f.noCombine
			continue
		}

		merged = append(merged, f)
	}

	return merged
}

// phase3Continuation merges consecutive STANDARD_PROSE fragments when
// the earlier one does not end with a sentence terminator, unless either
// of the two is marked noCombine. Cross-page merges are only allowed when the later
// fragment's first page is the earlier fragment's last page or the very
// next page.
func phase3Continuation(fragments []fragment) []models.Paragraph {
	var out []models.Paragraph

	for _, f := range fragments {
		text := f.text()
		if text == "" {
			continue
		}

		p := models.Paragraph{
			PageNumStart:      f.pageStart,
			PageNumEnd:        f.pageEnd,
			Text:              text,
			Type:              f.ptype,
			NoCombine:         f.noCombine,
			OriginalLineIndex: f.originalLineIndex,
		}

		if n := len(out); n > 0 && canMergeProse(out[n-1], p) {
			out[n-1].Text = out[n-1].Text + " " + p.Text
			out[n-1].PageNumEnd = p.PageNumEnd
			out[n-1].NoCombine = p.NoCombine
			continue
		}

		out = append(out, p)
	}

	return out
}

func canMergeProse(earlier, later models.Paragraph) bool {
	if earlier.Type != models.StandardProse || later.Type != models.StandardProse {
		return false
	}
	// noCombine is a boundary, not a direction: an introductory line
	// marks the earlier paragraph, a discarded header marks the later
	// one, and neither side merges across it.
	if earlier.NoCombine || later.NoCombine {
		return false
	}
	if endsWithTerminator(earlier.Text) {
		return false
	}
	if later.PageNumStart != earlier.PageNumEnd && later.PageNumStart != earlier.PageNumEnd+1 {
		return false
	}
	return true
}

func endsWithTerminator(text string) bool {
	text = strings.TrimSpace(text)
	for _, t := range []string{"।", "?", "!", "."} {
		if strings.HasSuffix(text, t) {
			return true
		}
	}
	return false
}

func assignSeqNums(paragraphs []models.Paragraph) {
	for i := range paragraphs {
		paragraphs[i].SeqNum = i
	}
}
