// Package declarative loads scraper modules written as YAML or TOML.
//
// A file names a page and how to cut it into items; no code runs:
//
//	name = "releases"
//	url = "https://example.com/releases?page={page}"
//	selector = "li.release"
//	limit = 20
//
//	[defaults]
//	page = "1"
//
//	[fields]
//	version = "h3"
//	link = "a@href"
//
// Each request fetches the url, with {key} placeholders taken from the
// request's query string, and responds with {source, count, items}.
package declarative
