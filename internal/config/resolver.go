package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// VerseDetection holds the geometric thresholds the Line Classifier uses
// to decide IS_CENTERED.
type VerseDetection struct {
	CenterThreshold float64 `json:"center_threshold"`
	MinRightIndent  float64 `json:"min_right_indent"`
}

// ResolvedConfig is the deep merge of root config -> subfolder configs ->
// per-file config. Recognized keys are a closed set; anything else makes
// the resolver reject the file with a ConfigError.
type ResolvedConfig struct {
	Language         string            `json:"language"`
	OCREngine        string            `json:"ocr_engine"`
	HeaderRegex      []string          `json:"header_regex"`
	FooterRegex      []string          `json:"footer_regex"`
	VerseDetection   VerseDetection    `json:"verse_detection"`
	QAMarkers        []string          `json:"qa_markers"`
	ChunkStrategy    string            `json:"chunk_strategy"`
	ChunkSize        int               `json:"chunk_size"`
	ChunkOverlap     int               `json:"chunk_overlap"`
	Categories       map[string]any    `json:"categories"`
	FileURLTemplate  string            `json:"file_url_template"`
	MinLeftIndent    float64           `json:"min_left_indent"`
	MinRightIndent   float64           `json:"min_right_indent"`
	ShortLineChars   int               `json:"short_line_chars"`
}

// recognizedKeys is the closed set of keys a config.json-equivalent file
// is allowed to set. Anything outside this set is a ConfigError.
var recognizedKeys = map[string]bool{
	"language": true, "ocr_engine": true, "header_regex": true,
	"footer_regex": true, "verse_detection": true, "qa_markers": true,
	"chunk_strategy": true, "chunk_size": true, "chunk_overlap": true,
	"categories": true, "file_url_template": true,
	"min_left_indent": true, "min_right_indent": true, "short_line_chars": true,
}

func DefaultResolvedConfig() ResolvedConfig {
	return ResolvedConfig{
		Language:       "hi",
		OCREngine:      "tesseract",
		HeaderRegex:    []string{},
		FooterRegex:    []string{},
		VerseDetection: VerseDetection{CenterThreshold: 40, MinRightIndent: 20},
		QAMarkers:      []string{"प्रश्न", "उत्तर"},
		ChunkStrategy:  "default",
		ChunkSize:      1000,
		ChunkOverlap:   150,
		Categories:     map[string]any{},
		MinLeftIndent:  15,
		MinRightIndent: 15,
		ShortLineChars: 50,
	}
}

// Resolver walks the corpus tree, applying config.json-equivalent
// overrides from root to leaf plus an optional <filename>_config.json.
type Resolver struct {
	corpusRoot string
}

func NewResolver(corpusRoot string) *Resolver {
	return &Resolver{corpusRoot: corpusRoot}
}

// Resolve computes the ResolvedConfig for a single PDF path by applying,
// in order, the root config, every intermediate directory's config, and
// the per-file override, deepest-defined value winning for each key.
func (r *Resolver) Resolve(pdfPath string) (ResolvedConfig, error) {
	resolved := DefaultResolvedConfig()

	dirs, err := ancestorDirs(r.corpusRoot, pdfPath)
	if err != nil {
		return ResolvedConfig{}, fmt.Errorf("config resolve: %w", err)
	}

	for _, dir := range dirs {
		if err := mergeConfigFile(&resolved, filepath.Join(dir, "config.json")); err != nil {
			return ResolvedConfig{}, err
		}
		if err := mergeTOMLConfigFile(&resolved, filepath.Join(dir, "config.toml")); err != nil {
			return ResolvedConfig{}, err
		}
	}

	base := filepath.Dir(pdfPath)
	stem := fileConfigStem(pdfPath)
	if err := mergeConfigFile(&resolved, filepath.Join(base, stem+"_config.json")); err != nil {
		return ResolvedConfig{}, err
	}
	if err := mergeTOMLConfigFile(&resolved, filepath.Join(base, stem+"_config.toml")); err != nil {
		return ResolvedConfig{}, err
	}

	return resolved, nil
}

func fileConfigStem(pdfPath string) string {
	base := filepath.Base(pdfPath)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}

// ancestorDirs returns corpusRoot, then every directory on the path from
// corpusRoot down to the PDF's parent directory, root-to-leaf ordered.
func ancestorDirs(corpusRoot, pdfPath string) ([]string, error) {
	rel, err := filepath.Rel(corpusRoot, filepath.Dir(pdfPath))
	if err != nil {
		return nil, err
	}
	if rel == "." {
		return []string{corpusRoot}, nil
	}

	parts := splitPath(rel)
	dirs := make([]string, 0, len(parts)+1)
	cur := corpusRoot
	dirs = append(dirs, cur)
	for _, p := range parts {
		cur = filepath.Join(cur, p)
		dirs = append(dirs, cur)
	}
	return dirs, nil
}

func splitPath(rel string) []string {
	return strings.Split(filepath.ToSlash(rel), "/")
}

func mergeConfigFile(resolved *ResolvedConfig, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config resolve: reading %s: %w", path, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("config resolve: %s: malformed JSON: %w", path, err)
	}

	for key := range raw {
		if !recognizedKeys[key] {
			return fmt.Errorf("config resolve: %s: unrecognized key %q", path, key)
		}
	}

	// Deepest-defined value wins: decode into the existing struct so a
	// present key replaces its field wholesale (lists/maps are replaced,
	// never merged), while an absent key leaves the current value intact.
	if err := json.Unmarshal(data, resolved); err != nil {
		return fmt.Errorf("config resolve: %s: %w", path, err)
	}
	return nil
}

// mergeTOMLConfigFile is the TOML-equivalent of mergeConfigFile, for
// operators who prefer a `config.toml`/`<filename>_config.toml` override
// over JSON at any directory level. Same closed key set, same
// deepest-defined-value-wins semantics: decoded to a generic map first
// to validate keys, then re-encoded to JSON so the existing struct
// merge path (list/map replace, not combine) applies unchanged.
func mergeTOMLConfigFile(resolved *ResolvedConfig, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config resolve: reading %s: %w", path, err)
	}

	var raw map[string]any
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return fmt.Errorf("config resolve: %s: malformed TOML: %w", path, err)
	}

	for key := range raw {
		if !recognizedKeys[key] {
			return fmt.Errorf("config resolve: %s: unrecognized key %q", path, key)
		}
	}

	asJSON, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("config resolve: %s: %w", path, err)
	}
	if err := json.Unmarshal(asJSON, resolved); err != nil {
		return fmt.Errorf("config resolve: %s: %w", path, err)
	}
	return nil
}

// ConfigHash produces the stable, canonical-JSON hash of a ResolvedConfig
// used as FileState.config_hash. Key order is forced by re-marshaling
// through a sorted-key map so two structurally identical configs always
// hash the same regardless of merge order.
func ConfigHash(cfg ResolvedConfig) (string, error) {
	canonical, err := canonicalJSON(cfg)
	if err != nil {
		return "", fmt.Errorf("config hash: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return marshalSorted(generic)
}

func marshalSorted(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			keyJSON, _ := json.Marshal(k)
			buf = append(buf, keyJSON...)
			buf = append(buf, ':')
			valJSON, err := marshalSorted(val[k])
			if err != nil {
				return nil, err
			}
			buf = append(buf, valJSON...)
		}
		buf = append(buf, '}')
		return buf, nil
	case []any:
		buf := []byte{'['}
		for i, item := range val {
			if i > 0 {
				buf = append(buf, ',')
			}
			itemJSON, err := marshalSorted(item)
			if err != nil {
				return nil, err
			}
			buf = append(buf, itemJSON...)
		}
		buf = append(buf, ']')
		return buf, nil
	default:
		return json.Marshal(val)
	}
}
