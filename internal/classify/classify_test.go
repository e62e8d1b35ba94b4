package classify

import (
	"testing"

	"pravachan-index/internal/config"
	"pravachan-index/models"
)

var page = models.PageGeometry{PageLeftMargin: 0, PageRightMargin: 500}

func testConfig() config.ResolvedConfig {
	cfg := config.DefaultResolvedConfig()
	cfg.HeaderRegex = []string{`^श्री .+ प्रवचन`, `^Page \d+$`}
	cfg.MinLeftIndent = 15
	cfg.MinRightIndent = 15
	cfg.VerseDetection = config.VerseDetection{CenterThreshold: 40, MinRightIndent: 20}
	return cfg
}

func TestClassify_HeaderRegex(t *testing.T) {
	line := models.Line{Text: "श्री समयसार प्रवचन भाग-२", XStart: 0, XEnd: 500}
	got := Classify(line, page, testConfig())
	if !got.HasTag(models.IsHeaderRegex) {
		t.Errorf("expected IS_HEADER_REGEX for a configured running header")
	}
}

func TestClassify_QAMarker(t *testing.T) {
	line := models.Line{Text: "प्रश्न:- आत्मा का स्वरूप क्या है?", XStart: 0, XEnd: 480}
	got := Classify(line, page, testConfig())
	if !got.HasTag(models.IsQAMarker) {
		t.Errorf("expected IS_QA_MARKER for a line starting with प्रश्न")
	}
}

func TestClassify_GeometryPredicates(t *testing.T) {
	cases := []struct {
		name    string
		xStart  float64
		xEnd    float64
		want    []models.Tag
		notWant []models.Tag
	}{
		{
			name: "full width prose", xStart: 0, xEnd: 495,
			notWant: []models.Tag{models.IsIndented, models.IsCentered},
		},
		{
			name: "indented but right-justified", xStart: 40, xEnd: 498,
			want:    []models.Tag{models.IsIndented},
			notWant: []models.Tag{models.IsCentered, models.IsNotRightJustified},
		},
		{
			name: "centered verse line", xStart: 100, xEnd: 400,
			want: []models.Tag{models.IsIndented, models.IsNotRightJustified, models.IsCentered},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			line := models.Line{Text: "मोक्षमार्ग पर चलने वाला जीव धन्य है", XStart: tc.xStart, XEnd: tc.xEnd}
			got := Classify(line, page, testConfig())
			for _, tag := range tc.want {
				if !got.HasTag(tag) {
					t.Errorf("missing tag %s", tag)
				}
			}
			for _, tag := range tc.notWant {
				if got.HasTag(tag) {
					t.Errorf("unexpected tag %s", tag)
				}
			}
		})
	}
}

func TestClassify_Terminators(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"यह वाक्य पूर्ण है।", true},
		{"Is this a question?", true},
		{"What an ending!", true},
		{"A plain English sentence.", true},
		{"यह वाक्य अधूरा रह गया", false},
	}
	for _, tc := range cases {
		line := models.Line{Text: tc.text, XStart: 0, XEnd: 490}
		got := Classify(line, page, testConfig())
		if got.HasTag(models.EndsWithTerminator) != tc.want {
			t.Errorf("ENDS_WITH_TERMINATOR(%q) = %v, want %v", tc.text, !tc.want, tc.want)
		}
	}
}

func TestClassify_HeadingRequiresCenteredShortUnterminated(t *testing.T) {
	cfg := testConfig()

	heading := Classify(models.Line{Text: "अध्याय तीन", XStart: 180, XEnd: 320}, page, cfg)
	if !heading.HasTag(models.IsHeading) {
		t.Errorf("short centered unterminated line should be a heading")
	}

	terminated := Classify(models.Line{Text: "अध्याय तीन।", XStart: 180, XEnd: 320}, page, cfg)
	if terminated.HasTag(models.IsHeading) {
		t.Errorf("a terminated line is not a heading")
	}

	uncentered := Classify(models.Line{Text: "अध्याय तीन", XStart: 0, XEnd: 140}, page, cfg)
	if uncentered.HasTag(models.IsHeading) {
		t.Errorf("an uncentered line is not a heading")
	}
}

func TestClassify_Introductory(t *testing.T) {
	for _, text := range []string{"गाथा इस प्रकार है:-", "जैसे कि:", "सुनिए--"} {
		got := Classify(models.Line{Text: text, XStart: 0, XEnd: 490}, page, testConfig())
		if !got.HasTag(models.IsIntroductory) {
			t.Errorf("expected IS_INTRODUCTORY for %q", text)
		}
	}
}

func TestClassify_TagsAreAdditive(t *testing.T) {
	// A short centered Q/A marker line carries every predicate it
	// matches, not just the first.
	line := models.Line{Text: "उत्तर:- हाँ", XStart: 150, XEnd: 350}
	got := Classify(line, page, testConfig())
	for _, tag := range []models.Tag{models.IsQAMarker, models.IsCentered, models.IsShort} {
		if !got.HasTag(tag) {
			t.Errorf("missing tag %s on a line matching several predicates", tag)
		}
	}
}
