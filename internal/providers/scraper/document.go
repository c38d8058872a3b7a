package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// fieldPattern splits "expr@attr" and "expr/@attr" field selectors.
var fieldPattern = regexp.MustCompile(`^(.*?)/?@([A-Za-z_:][-A-Za-z0-9_:.]*)$`)

// Document is a parsed HTML page queryable by CSS selectors and XPath.
type Document struct {
	doc *goquery.Document
	ops *Ops
}

// Element is a matched node flattened for JSON output.
type Element struct {
	Text  string            `json:"text"`
	HTML  string            `json:"html"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// Link is an anchor with its href resolved against the page URL.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// Table is an HTML table as rows of cell text.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Query describes a list of items and the fields to pull from each one.
// Selector is CSS; XPath takes precedence when set. Field expressions are
// relative to the item and may end in @attr to read an attribute.
type Query struct {
	Selector string            `json:"selector,omitempty" yaml:"selector" toml:"selector"`
	XPath    string            `json:"xpath,omitempty" yaml:"xpath" toml:"xpath"`
	Fields   map[string]string `json:"fields,omitempty" yaml:"fields" toml:"fields"`
	Limit    int               `json:"limit,omitempty" yaml:"limit" toml:"limit"`
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.doc.Nodes[0]
}

// Title returns the trimmed <title> text.
func (d *Document) Title() string {
	return NormalizeWhitespace(d.doc.Find("title").First().Text())
}

// Text returns the normalized text of the body.
func (d *Document) Text() string {
	body := d.doc.Find("body")
	if body.Length() == 0 {
		return NormalizeWhitespace(d.doc.Text())
	}
	clone := body.Clone()
	clone.Find("script, style, noscript").Remove()
	return NormalizeWhitespace(clone.Text())
}

// Select returns every element matching a CSS selector.
func (d *Document) Select(css string) ([]Element, error) {
	m, err := d.ops.selector(css)
	if err != nil {
		return nil, err
	}
	sel := d.doc.FindMatcher(m)
	out := make([]Element, 0, sel.Length())
	for _, n := range sel.Nodes {
		out = append(out, newElement(n))
	}
	return out, nil
}

// XPath returns every node matching an XPath expression.
func (d *Document) XPath(expr string) ([]Element, error) {
	nodes, err := htmlquery.QueryAll(d.Root(), expr)
	if err != nil {
		return nil, fmt.Errorf("xpath %q: %w", expr, err)
	}
	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, newElement(n))
	}
	return out, nil
}

// Links returns all anchors, resolving relative hrefs against base.
func (d *Document) Links(base string) []Link {
	var baseURL *url.URL
	if base != "" {
		baseURL, _ = url.Parse(base)
	}

	var links []Link
	d.doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		if baseURL != nil {
			if ref, err := url.Parse(href); err == nil {
				href = baseURL.ResolveReference(ref).String()
			}
		}
		links = append(links, Link{Text: NormalizeWhitespace(s.Text()), Href: href})
	})
	return links
}

// Meta returns meta tag content keyed by name or property (Open Graph,
// Twitter cards). The first occurrence of a key wins.
func (d *Document) Meta() map[string]string {
	meta := make(map[string]string)
	d.doc.Find("meta[content]").Each(func(_ int, s *goquery.Selection) {
		key := s.AttrOr("name", s.AttrOr("property", ""))
		if key == "" {
			return
		}
		key = strings.ToLower(key)
		if _, seen := meta[key]; !seen {
			meta[key] = strings.TrimSpace(s.AttrOr("content", ""))
		}
	})
	return meta
}

// Table extracts the first table matching css. A first row made of <th>
// cells becomes the headers.
func (d *Document) Table(css string) (Table, error) {
	m, err := d.ops.selector(css)
	if err != nil {
		return Table{}, err
	}
	t := Table{Headers: []string{}, Rows: [][]string{}}
	table := d.doc.FindMatcher(m).First()
	if table.Length() == 0 {
		return t, nil
	}

	hasHeaders := table.Find("tr").First().Find("th").Length() > 0
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		var cells []string
		row.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, NormalizeWhitespace(cell.Text()))
		})
		switch {
		case i == 0 && hasHeaders:
			t.Headers = cells
		case len(cells) > 0:
			t.Rows = append(t.Rows, cells)
		}
	})
	return t, nil
}

// Extract runs q and returns one map per item, fields missing on the page
// being empty strings. Without fields each item yields its "text".
func (d *Document) Extract(q Query) ([]map[string]string, error) {
	var items []map[string]string
	var err error
	switch {
	case q.XPath != "":
		items, err = d.extractXPath(q)
	case q.Selector != "":
		items, err = d.extractCSS(q)
	default:
		return nil, fmt.Errorf("query needs a selector or an xpath")
	}
	if err != nil {
		return nil, err
	}
	if q.Limit > 0 && len(items) > q.Limit {
		items = items[:q.Limit]
	}
	return items, nil
}

func (d *Document) extractCSS(q Query) ([]map[string]string, error) {
	m, err := d.ops.selector(q.Selector)
	if err != nil {
		return nil, err
	}

	type field struct{ name, expr, attr string }
	fields := make([]field, 0, len(q.Fields))
	for name, f := range q.Fields {
		expr, attr := splitField(f)
		if expr != "" {
			if _, err := d.ops.selector(expr); err != nil {
				return nil, fmt.Errorf("field %s: %w", name, err)
			}
		}
		fields = append(fields, field{name: name, expr: expr, attr: attr})
	}

	items := []map[string]string{}
	d.doc.FindMatcher(m).Each(func(_ int, item *goquery.Selection) {
		row := make(map[string]string, len(fields))
		if len(fields) == 0 {
			row["text"] = NormalizeWhitespace(item.Text())
		}
		for _, f := range fields {
			target := item
			if f.expr != "" {
				fm, _ := d.ops.selector(f.expr)
				target = item.FindMatcher(fm).First()
			}
			if f.attr != "" {
				row[f.name] = strings.TrimSpace(target.AttrOr(f.attr, ""))
			} else {
				row[f.name] = NormalizeWhitespace(target.Text())
			}
		}
		items = append(items, row)
	})
	return items, nil
}

func (d *Document) extractXPath(q Query) ([]map[string]string, error) {
	nodes, err := htmlquery.QueryAll(d.Root(), q.XPath)
	if err != nil {
		return nil, fmt.Errorf("xpath %q: %w", q.XPath, err)
	}

	items := make([]map[string]string, 0, len(nodes))
	for _, n := range nodes {
		row := make(map[string]string, len(q.Fields))
		if len(q.Fields) == 0 {
			row["text"] = NormalizeWhitespace(htmlquery.InnerText(n))
		}
		for name, f := range q.Fields {
			expr, attr := splitField(f)
			target := n
			if expr != "" && expr != "." {
				target, err = htmlquery.Query(n, expr)
				if err != nil {
					return nil, fmt.Errorf("field %s: %w", name, err)
				}
			}
			switch {
			case target == nil:
				row[name] = ""
			case attr != "":
				row[name] = strings.TrimSpace(htmlquery.SelectAttr(target, attr))
			default:
				row[name] = NormalizeWhitespace(htmlquery.InnerText(target))
			}
		}
		items = append(items, row)
	}
	return items, nil
}

func (o *Ops) selector(css string) (cascadia.Selector, error) {
	if cached, ok := o.selectorCache.Load(css); ok {
		return cached.(cascadia.Selector), nil
	}
	sel, err := cascadia.Compile(css)
	if err != nil {
		return nil, fmt.Errorf("css selector %q: %w", css, err)
	}
	o.selectorCache.Store(css, sel)
	return sel, nil
}

func splitField(f string) (expr, attr string) {
	f = strings.TrimSpace(f)
	if m := fieldPattern.FindStringSubmatch(f); m != nil {
		return strings.TrimSpace(m[1]), m[2]
	}
	return f, ""
}

func newElement(n *html.Node) Element {
	el := Element{
		Text: NormalizeWhitespace(htmlquery.InnerText(n)),
		HTML: htmlquery.OutputHTML(n, false),
	}
	if len(n.Attr) > 0 {
		el.Attrs = make(map[string]string, len(n.Attr))
		for _, a := range n.Attr {
			el.Attrs[a.Key] = a.Val
		}
	}
	return el
}
