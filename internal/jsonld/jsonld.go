// Package jsonld locates and decodes schema.org blocks embedded in HTML
// pages as <script type="application/ld+json">.
package jsonld

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/cockroachdb/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

const TypeJobPosting = "JobPosting"

const scriptSelector = "script[type='application/ld+json']"

var blockCleaner = strings.NewReplacer(
	"\u2028", "",
	"\u2029", "",
	"\r", " ",
	"\n", " ",
	"\t", " ",
)

// Blocks decodes every structured-data script on the page. Blocks that
// fail to decode are skipped.
func Blocks(doc *goquery.Document) []any {
	var blocks []any
	doc.Find(scriptSelector).Each(func(_ int, s *goquery.Selection) {
		data, err := Decode(s.Text())
		if err != nil {
			return
		}
		blocks = append(blocks, data)
	})
	return blocks
}

// Decode parses one script body. Pages often ship blocks wrapped in HTML
// comments, with raw line breaks inside strings or with trailing commas,
// so a lenient JSON5 pass runs when strict decoding fails.
func Decode(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "<!--")
	raw = strings.TrimSuffix(raw, "-->")
	raw = strings.TrimSpace(blockCleaner.Replace(raw))
	if raw == "" {
		return nil, errors.New("empty structured-data block")
	}

	var data any
	if err := json.Unmarshal([]byte(raw), &data); err == nil {
		return data, nil
	}
	if err := json5.Unmarshal([]byte(raw), &data); err != nil {
		return nil, errors.Wrap(err, "decode structured-data block")
	}
	return data, nil
}

// Find returns the first object, in document order, whose @type matches
// typ case-insensitively. Arrays, @graph and mainEntity are searched.
func Find(blocks []any, typ string) (map[string]any, bool) {
	for _, block := range blocks {
		if obj, ok := findIn(block, typ); ok {
			return obj, true
		}
	}
	return nil, false
}

func findIn(data any, typ string) (map[string]any, bool) {
	switch value := data.(type) {
	case []any:
		for _, item := range value {
			if obj, ok := findIn(item, typ); ok {
				return obj, true
			}
		}
	case map[string]any:
		if HasType(value, typ) {
			return value, true
		}
		if graph, ok := value["@graph"]; ok {
			if obj, ok := findIn(graph, typ); ok {
				return obj, true
			}
		}
		if main, ok := value["mainEntity"]; ok {
			return findIn(main, typ)
		}
	}
	return nil, false
}

// HasType reports whether obj declares typ, as a string or in a list.
func HasType(obj map[string]any, typ string) bool {
	switch declared := obj["@type"].(type) {
	case string:
		return matchType(declared, typ)
	case []any:
		for _, item := range declared {
			if s, ok := item.(string); ok && matchType(s, typ) {
				return true
			}
		}
	}
	return false
}

func matchType(declared, typ string) bool {
	declared = strings.TrimSpace(declared)
	declared = strings.TrimPrefix(declared, "http://schema.org/")
	declared = strings.TrimPrefix(declared, "https://schema.org/")
	return strings.EqualFold(declared, typ)
}

// FindJobPosting returns the first JobPosting on the page. A page without
// one yields ok=false and a nil error.
func FindJobPosting(doc *goquery.Document) (*JobPosting, bool, error) {
	raw, ok, err := FindJobPostingRaw(doc)
	if !ok || err != nil {
		return nil, ok, err
	}
	posting, err := ParseJobPosting(raw)
	if err != nil {
		return nil, true, err
	}
	return posting, true, nil
}

// FindJobPostingRaw is FindJobPosting returning the matched object as JSON.
func FindJobPostingRaw(doc *goquery.Document) ([]byte, bool, error) {
	obj, ok := Find(Blocks(doc), TypeJobPosting)
	if !ok {
		return nil, false, nil
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, true, errors.Wrap(err, "re-encode job posting")
	}
	return raw, true, nil
}

func ParseJobPosting(raw []byte) (*JobPosting, error) {
	var posting JobPosting
	if err := json.Unmarshal(raw, &posting); err != nil {
		return nil, errors.Wrap(err, "decode job posting")
	}
	return &posting, nil
}
