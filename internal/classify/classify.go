// Package classify implements the Line Classifier: a pure function that
// tags each OCR line with geometric and lexical predicates consumed by
// the Paragraph Generator.
package classify

import (
	"regexp"
	"strings"

	"pravachan-index/internal/config"
	"pravachan-index/models"
)

var terminators = []string{"।", "?", "!", "."}

// Classify computes the closed set of tags for one line, in the order
// specified: header regex, Q/A marker, indent/justification/centering,
// sentence terminator, short-line, heading, introductory. Ordering only
// matters for documentation; predicates are independent of each other.
func Classify(line models.Line, page models.PageGeometry, cfg config.ResolvedConfig) models.Line {
	line.Tags = make(map[models.Tag]bool)
	text := strings.TrimSpace(line.Text)

	if matchesAny(text, cfg.HeaderRegex) {
		line.SetTag(models.IsHeaderRegex)
	}

	if startsWithAny(text, cfg.QAMarkers) {
		line.SetTag(models.IsQAMarker)
	}

	leftIndent := line.XStart - page.PageLeftMargin
	rightIndent := page.PageRightMargin - line.XEnd

	minLeftIndent := cfg.MinLeftIndent
	minRightIndent := cfg.MinRightIndent
	if minRightIndent == 0 {
		minRightIndent = cfg.VerseDetection.MinRightIndent
	}

	isIndented := leftIndent > minLeftIndent
	if isIndented {
		line.SetTag(models.IsIndented)
	}
	if rightIndent > minRightIndent {
		line.SetTag(models.IsNotRightJustified)
	}
	if isIndented && rightIndent > cfg.VerseDetection.CenterThreshold {
		line.SetTag(models.IsCentered)
	}

	if endsWithTerminator(text) {
		line.SetTag(models.EndsWithTerminator)
	}

	shortLineChars := cfg.ShortLineChars
	if shortLineChars == 0 {
		shortLineChars = 50
	}
	if len([]rune(text)) < shortLineChars {
		line.SetTag(models.IsShort)
	}

	if line.HasTag(models.IsCentered) && line.HasTag(models.IsShort) && !line.HasTag(models.EndsWithTerminator) {
		line.SetTag(models.IsHeading)
	}

	if strings.HasSuffix(text, "--") || strings.HasSuffix(text, ":-") || strings.HasSuffix(text, ":") {
		line.SetTag(models.IsIntroductory)
	}

	return line
}

func endsWithTerminator(text string) bool {
	for _, t := range terminators {
		if strings.HasSuffix(text, t) {
			return true
		}
	}
	return false
}

func startsWithAny(text string, markers []string) bool {
	for _, m := range markers {
		if m == "" {
			continue
		}
		if strings.HasPrefix(text, m) {
			return true
		}
	}
	return false
}

func matchesAny(text string, patterns []string) bool {
	for _, p := range patterns {
		if p == "" {
			continue
		}
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
