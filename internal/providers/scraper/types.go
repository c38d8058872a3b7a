package scraper

import (
	"bytes"
	"fmt"
	"mime"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// MaxHTMLSize limits HTML input to 10MB to prevent memory exhaustion
const MaxHTMLSize = 10 * 1024 * 1024

// Ops provides parsing and cleanup helpers shared by all modules.
type Ops struct {
	regexCache    sync.Map
	selectorCache sync.Map
	sanitizer     *bluemonday.Policy
	stripper      *bluemonday.Policy
}

// NewOps creates ops with the UGC sanitizer policy.
func NewOps() *Ops {
	return &Ops{
		sanitizer: bluemonday.UGCPolicy(),
		stripper:  bluemonday.StrictPolicy(),
	}
}

// ValidateHTML checks HTML size and returns error if too large
func ValidateHTML(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("html content required")
	}
	if len(data) > MaxHTMLSize {
		return fmt.Errorf("html exceeds maximum size of %d bytes", MaxHTMLSize)
	}
	return nil
}

// DetectCharset guesses the encoding of an HTML body.
func DetectCharset(data []byte) string {
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

// Parse decodes body to UTF-8 and parses it. The charset comes from the
// content type when it names one, otherwise it is detected.
func (o *Ops) Parse(body []byte, contentType string) (*Document, error) {
	if err := ValidateHTML(body); err != nil {
		return nil, err
	}

	label := charsetParam(contentType)
	if label == "" {
		label = DetectCharset(body)
	}

	reader, err := charset.NewReaderLabel(label, bytes.NewReader(body))
	if err != nil {
		reader = bytes.NewReader(body)
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{doc: doc, ops: o}, nil
}

// ParseString parses an HTML string that is already UTF-8.
func (o *Ops) ParseString(s string) (*Document, error) {
	return o.Parse([]byte(s), "text/html; charset=utf-8")
}

// Sanitize strips unsafe markup while keeping user-generated formatting.
func (o *Ops) Sanitize(htmlStr string) string {
	return o.sanitizer.Sanitize(htmlStr)
}

// StripTags removes all markup and returns normalized text.
func (o *Ops) StripTags(htmlStr string) string {
	return NormalizeWhitespace(html.UnescapeString(o.stripper.Sanitize(htmlStr)))
}

// Regex returns a compiled, cached regular expression.
func (o *Ops) Regex(pattern string) (*regexp.Regexp, error) {
	if cached, ok := o.regexCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	o.regexCache.Store(pattern, re)
	return re, nil
}

// Match returns unique matches of pattern in text, in order of appearance.
func (o *Ops) Match(pattern, text string) ([]string, error) {
	re, err := o.Regex(pattern)
	if err != nil {
		return nil, err
	}
	return Deduplicate(re.FindAllString(text, -1)), nil
}

// NormalizeWhitespace collapses runs of whitespace into one space.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate shortens s to maxLen runes, ending with an ellipsis.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen || maxLen < 4 {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

// Deduplicate removes duplicate strings while preserving order
func Deduplicate(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		result = append(result, item)
	}
	return result
}

func charsetParam(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(params["charset"])
}
