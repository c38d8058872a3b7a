package service

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/GriffinCanCode/ScraperAPI/internal/module"
)

// Module kinds, derived from where a descriptor was loaded from.
const (
	KindJavaScript  = "javascript"
	KindDeclarative = "declarative"
	KindBuiltin     = "builtin"
)

// Entry is the public description of a registered API.
type Entry struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Kind        string   `json:"kind"`
	Route       string   `json:"route"`
	Source      string   `json:"source,omitempty"`
}

// Catalog is the shared API registry. The dispatcher mirrors every loaded
// module into it; HTTP listing and search read from it.
type Catalog struct {
	modules sync.Map
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{}
}

// Set stores d under key, replacing any previous entry.
func (c *Catalog) Set(key string, d module.Descriptor) {
	c.modules.Store(key, d)
}

// Get retrieves a module by name
func (c *Catalog) Get(name string) (module.Descriptor, bool) {
	val, ok := c.modules.Load(name)
	if !ok {
		return nil, false
	}
	return val.(module.Descriptor), true
}

// List returns entries sorted by name, optionally only those carrying tag.
func (c *Catalog) List(tag string) []Entry {
	entries := []Entry{}
	c.modules.Range(func(key, value interface{}) bool {
		e := describe(key.(string), value.(module.Descriptor))
		if tag == "" || hasTag(e.Tags, tag) {
			entries = append(entries, e)
		}
		return true
	})
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries
}

// Search ranks modules against a free text query and returns at most limit
// matches, best first.
func (c *Catalog) Search(query string, limit int) []Entry {
	type scoredEntry struct {
		entry Entry
		score float64
	}

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return []Entry{}
	}

	var results []scoredEntry
	c.modules.Range(func(key, value interface{}) bool {
		e := describe(key.(string), value.(module.Descriptor))
		if score := relevance(terms, e); score > 0 {
			results = append(results, scoredEntry{entry: e, score: score})
		}
		return true
	})

	// Sort by score descending, then name
	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].entry.Name < results[j].entry.Name
	})

	if limit <= 0 || limit > len(results) {
		limit = len(results)
	}
	output := make([]Entry, 0, limit)
	for i := 0; i < limit; i++ {
		output = append(output, results[i].entry)
	}
	return output
}

// Stats returns catalog statistics
func (c *Catalog) Stats() map[string]interface{} {
	var total int
	kinds := make(map[string]int)
	tags := make(map[string]int)

	c.modules.Range(func(key, value interface{}) bool {
		e := describe(key.(string), value.(module.Descriptor))
		total++
		kinds[e.Kind]++
		for _, t := range e.Tags {
			tags[t]++
		}
		return true
	})

	return map[string]interface{}{
		"total_apis": total,
		"kinds":      kinds,
		"tags":       tags,
	}
}

func describe(name string, d module.Descriptor) Entry {
	cfg := d.Config()
	e := Entry{
		Name:        name,
		Description: cfg.Description,
		Tags:        cfg.Tags,
		Kind:        KindBuiltin,
		Route:       "/api/" + name,
	}
	if s, ok := d.(module.Sourcer); ok && s.Source() != "" {
		e.Source = s.Source()
		switch strings.ToLower(filepath.Ext(e.Source)) {
		case ".js":
			e.Kind = KindJavaScript
		case ".yaml", ".yml", ".toml":
			e.Kind = KindDeclarative
		}
	}
	return e
}

func relevance(terms []string, e Entry) float64 {
	score := 0.0
	name := strings.ToLower(e.Name)
	descWords := strings.Fields(strings.ToLower(e.Description))

	for _, term := range terms {
		// Check name
		if name == term {
			score += 20.0
		} else if strings.Contains(name, term) {
			score += 10.0
		}

		// Check description words
		for _, word := range descWords {
			if strings.Trim(word, ".,;:!?()") == term {
				score += 5.0
			}
		}

		// Check tags
		for _, tag := range e.Tags {
			if strings.EqualFold(tag, term) {
				score += 3.0
			}
		}
	}
	return score
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
