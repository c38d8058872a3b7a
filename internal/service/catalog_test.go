package service

import (
	"testing"

	"github.com/GriffinCanCode/ScraperAPI/internal/module"
	"github.com/GriffinCanCode/ScraperAPI/internal/module/registry"
)

func newModule(name, desc string, tags ...string) *module.Func {
	return module.New(module.Config{Name: name, Description: desc, Tags: tags}, func(*module.Context) error { return nil })
}

func TestCatalogIsMirror(t *testing.T) {
	var _ registry.Mirror = NewCatalog()
}

func TestSetAndGet(t *testing.T) {
	c := NewCatalog()
	c.Set("weather", newModule("weather", "Current weather"))

	d, ok := c.Get("weather")
	if !ok {
		t.Fatal("weather should be registered")
	}
	if d.Config().Description != "Current weather" {
		t.Errorf("unexpected descriptor %+v", d.Config())
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("missing should not be registered")
	}
}

func TestList(t *testing.T) {
	c := NewCatalog()
	c.Set("zeta", newModule("zeta", "", "demo"))
	c.Set("alpha", newModule("alpha", "").WithSource("scraper/alpha.js"))
	c.Set("news", newModule("news", "", "demo").WithSource("scraper/news.yaml"))

	entries := c.List("")
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if entries[0].Name != "alpha" || entries[2].Name != "zeta" {
		t.Errorf("entries not sorted: %+v", entries)
	}
	if entries[0].Kind != KindJavaScript || entries[1].Kind != KindDeclarative || entries[2].Kind != KindBuiltin {
		t.Errorf("unexpected kinds: %+v", entries)
	}
	if entries[1].Route != "/api/news" {
		t.Errorf("Expected /api/news, got %s", entries[1].Route)
	}

	if demo := c.List("DEMO"); len(demo) != 2 {
		t.Errorf("Expected 2 demo entries, got %d", len(demo))
	}
}

func TestSearch(t *testing.T) {
	c := NewCatalog()
	c.Set("weather", newModule("weather", "Forecast for a city", "climate"))
	c.Set("news", newModule("news", "Headlines from the weather desk"))
	c.Set("stocks", newModule("stocks", "Market quotes"))

	results := c.Search("weather", 5)
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Name != "weather" {
		t.Errorf("Expected weather first, got %s", results[0].Name)
	}

	if got := c.Search("climate quotes", 1); len(got) != 1 {
		t.Errorf("Expected limit to apply, got %d", len(got))
	}
	if got := c.Search("   ", 5); len(got) != 0 {
		t.Errorf("Expected no results for blank query, got %d", len(got))
	}
}

func TestStats(t *testing.T) {
	c := NewCatalog()
	c.Set("a", newModule("a", "", "demo"))
	c.Set("b", newModule("b", "", "demo").WithSource("b.js"))

	stats := c.Stats()
	if stats["total_apis"].(int) != 2 {
		t.Errorf("Expected 2 apis, got %v", stats["total_apis"])
	}
	if stats["tags"].(map[string]int)["demo"] != 2 {
		t.Errorf("Expected 2 demo tags, got %v", stats["tags"])
	}
	if stats["kinds"].(map[string]int)[KindJavaScript] != 1 {
		t.Errorf("Expected 1 javascript module, got %v", stats["kinds"])
	}
}
