// Package service provides the shared API catalog.
//
// The dispatcher mirrors every loaded module into a Catalog. The catalog
// backs the GET /api listing and its relevance search.
//
// Search Algorithm:
//   - Exact name match scores highest, substring matches less
//   - Description words and tags add smaller bonuses
//   - Ties are broken by name
//
// Example Usage:
//
//	catalog := service.NewCatalog()
//	reg.MirrorTo(catalog, logger)
//	entries := catalog.Search("weather", 5)
package service
