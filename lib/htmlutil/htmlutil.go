package htmlutil

import (
	"bytes"
	"errors"
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

var ErrNoHiddenFields = errors.New("no hidden form fields found")

// FieldExtractor pulls the hidden <input> fields out of an html page as a
// mapping of field name to value. when a name repeats, the last value wins.
// implementations fail with ErrNoHiddenFields when the page has none.
type FieldExtractor interface {
	ExtractHiddenFields(body []byte) (map[string]string, error)
}

var hiddenInputRegex = regexp.MustCompile(
	`(?i)<input\s+type="hidden"\s+name="([^"]*)"\s+value="([^"]*)"\s*/?>`,
)

// RegexFieldExtractor matches hidden inputs written exactly as
// <input type="hidden" name="..." value="..." />, attribute order matters.
// names and values are returned as written, entities are not decoded.
type RegexFieldExtractor struct{}

func (RegexFieldExtractor) ExtractHiddenFields(body []byte) (map[string]string, error) {
	fields := map[string]string{}
	for _, groups := range hiddenInputRegex.FindAllSubmatch(body, -1) {
		fields[string(groups[1])] = string(groups[2])
	}
	if len(fields) == 0 {
		return nil, ErrNoHiddenFields
	}
	return fields, nil
}

// DocumentFieldExtractor parses the page and selects every named hidden
// input regardless of how its attributes are written. values are the
// parsed attribute values, so entities come back decoded.
type DocumentFieldExtractor struct{}

func (DocumentFieldExtractor) ExtractHiddenFields(body []byte) (map[string]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	fields := map[string]string{}
	doc.Find("input[type=hidden][name]").Each(func(_ int, s *goquery.Selection) {
		name := s.AttrOr("name", "")
		if name == "" {
			return
		}
		fields[name] = s.AttrOr("value", "")
	})
	if len(fields) == 0 {
		return nil, ErrNoHiddenFields
	}
	return fields, nil
}
