package paragraph

import (
	"testing"

	"pravachan-index/models"
)

func line(text string, page int, tags ...models.Tag) models.Line {
	l := models.Line{Text: text, PageNum: page, Tags: map[models.Tag]bool{}}
	for _, t := range tags {
		l.SetTag(t)
	}
	return l
}

func TestGenerate_Deterministic(t *testing.T) {
	lines := []models.Line{
		line("this is a sentence without a terminator", 1),
		line("continuing the same paragraph.", 1),
	}

	first := Generate(lines)
	second := Generate(lines)

	if len(first) != len(second) {
		t.Fatalf("non-deterministic paragraph count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Text != second[i].Text || first[i].SeqNum != second[i].SeqNum {
			t.Fatalf("non-deterministic output at index %d", i)
		}
	}
}

func TestGenerate_CrossPageProseContinuation(t *testing.T) {
	lines := []models.Line{
		line("the teaching continues across the page boundary without stopping", 1),
		line("and resumes here on the very next page.", 2),
	}

	paragraphs := Generate(lines)
	if len(paragraphs) != 1 {
		t.Fatalf("expected the two prose fragments to merge into one paragraph, got %d", len(paragraphs))
	}
	if paragraphs[0].PageNumStart != 1 || paragraphs[0].PageNumEnd != 2 {
		t.Fatalf("expected page span 1-2, got %d-%d", paragraphs[0].PageNumStart, paragraphs[0].PageNumEnd)
	}
}

func TestGenerate_HeaderBlockIsAbsoluteBarrier(t *testing.T) {
	lines := []models.Line{
		line("unterminated prose leading into a header", 1),
		line("CHAPTER ONE", 1, models.IsHeaderRegex),
		line("prose that follows the header", 2),
	}

	paragraphs := Generate(lines)
	if len(paragraphs) != 2 {
		t.Fatalf("expected header to split surrounding prose into two paragraphs, got %d", len(paragraphs))
	}
	if paragraphs[0].Text != "unterminated prose leading into a header" {
		t.Fatalf("unexpected first paragraph text: %q", paragraphs[0].Text)
	}
	if !paragraphs[1].NoCombine {
		t.Fatalf("paragraph following a discarded header should be marked noCombine")
	}
}

func TestGenerate_CrossPageHindiSentenceSplit(t *testing.T) {
	lines := []models.Line{
		line("सम्यग्दर्शन होते ही जीव", 1),
		line("चेतन्यमहल का स्वामी बन गया।", 2),
	}

	paragraphs := Generate(lines)
	if len(paragraphs) != 1 {
		t.Fatalf("expected one merged paragraph across the page break, got %d", len(paragraphs))
	}
	want := "सम्यग्दर्शन होते ही जीव चेतन्यमहल का स्वामी बन गया।"
	if paragraphs[0].Text != want {
		t.Fatalf("merged text = %q, want %q", paragraphs[0].Text, want)
	}
	if paragraphs[0].Type != models.StandardProse {
		t.Fatalf("merged paragraph type = %v, want STANDARD_PROSE", paragraphs[0].Type)
	}
}

func TestGenerate_HeaderSplitsVerseBlocks(t *testing.T) {
	lines := []models.Line{
		line("जय जय श्री गुरुदेव", 1, models.IsCentered),
		line("परम उपकारी देव", 1, models.IsCentered),
		line("श्री समयसार प्रवचन", 1, models.IsHeaderRegex),
		line("चैतन्य स्वरूप भगवान", 1, models.IsCentered),
	}

	paragraphs := Generate(lines)
	if len(paragraphs) != 2 {
		t.Fatalf("expected the header to keep the verse runs apart, got %d paragraphs", len(paragraphs))
	}
	for i, p := range paragraphs {
		if p.Type != models.VerseBlock {
			t.Errorf("paragraph %d type = %v, want VERSE_BLOCK", i, p.Type)
		}
	}
	if paragraphs[0].Text != "जय जय श्री गुरुदेव\nपरम उपकारी देव" {
		t.Errorf("first verse block lost its lines: %q", paragraphs[0].Text)
	}
}

func TestGenerate_SeqNumsContiguousFromZero(t *testing.T) {
	lines := []models.Line{
		line("पहला वाक्य पूर्ण है।", 1),
		line("मंगलाचरण", 1, models.IsCentered),
		line("दूसरा वाक्य भी पूर्ण है।", 2),
	}

	paragraphs := Generate(lines)
	for i, p := range paragraphs {
		if p.SeqNum != i {
			t.Fatalf("seq_num gap: paragraph %d has seq_num %d", i, p.SeqNum)
		}
	}
}

func TestGenerate_IntroductoryLineBlocksMerge(t *testing.T) {
	lines := []models.Line{
		line("गाथा इस प्रकार है:-", 1, models.IsIntroductory),
		line("आगे का गद्य यहाँ से शुरू होता है", 1),
	}

	paragraphs := Generate(lines)
	if len(paragraphs) != 2 {
		t.Fatalf("an introductory line must close its paragraph, got %d", len(paragraphs))
	}
}

func TestGenerate_VerseBlockMerge(t *testing.T) {
	lines := []models.Line{
		line("first verse line", 1, models.IsCentered),
		line("second verse line", 1, models.IsCentered),
		line("trailing prose", 1),
	}

	paragraphs := Generate(lines)
	if len(paragraphs) != 2 {
		t.Fatalf("expected verse block merged into one paragraph plus trailing prose, got %d", len(paragraphs))
	}
	if paragraphs[0].Type != models.VerseBlock {
		t.Fatalf("expected first paragraph to be a verse block, got %v", paragraphs[0].Type)
	}
	if paragraphs[0].Text != "first verse line\nsecond verse line" {
		t.Fatalf("unexpected verse block text: %q", paragraphs[0].Text)
	}
}
