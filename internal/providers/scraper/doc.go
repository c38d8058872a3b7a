// Package scraper provides the HTML parsing helpers API modules build on.
//
// A Document is parsed once (charset from the Content-Type header or
// detected with chardet) and can then be queried with CSS selectors via
// goquery/cascadia or with XPath via htmlquery, both over the same node tree.
// Extract turns a Query (item selector plus per-item field expressions) into
// rows; declarative modules are a thin layer over it.
//
// Field expressions are relative to each item and may end in @attr:
//
//	"a.title"        text of the first a.title inside the item
//	"a.title@href"   its href attribute
//	"./td[2]"        XPath variant
//	"./a/@href"      XPath attribute
//
// Sanitize (bluemonday UGC policy) and StripTags clean untrusted markup.
package scraper
