package declarative

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/ScraperAPI/internal/module"
	"github.com/GriffinCanCode/ScraperAPI/internal/providers/scraper"
)

var (
	// ErrInvalidDefinition marks a file that names a module but cannot be run.
	ErrInvalidDefinition = errors.New("invalid declarative module")
	// ErrUnsupportedFormat is returned for extensions other than yaml, yml and toml.
	ErrUnsupportedFormat = errors.New("unsupported declarative format")
)

var placeholder = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// Definition is the on-disk form of a scraper module.
//
//	name: headlines
//	url: https://example.com/search?q={q}
//	defaults: {q: golang}
//	selector: article
//	fields:
//	  title: h2
//	  link: a@href
//	limit: 10
type Definition struct {
	Name        string            `yaml:"name" toml:"name"`
	Description string            `yaml:"description" toml:"description"`
	Tags        []string          `yaml:"tags" toml:"tags"`
	URL         string            `yaml:"url" toml:"url"`
	Defaults    map[string]string `yaml:"defaults" toml:"defaults"`
	Headers     map[string]string `yaml:"headers" toml:"headers"`
	Selector    string            `yaml:"selector" toml:"selector"`
	XPath       string            `yaml:"xpath" toml:"xpath"`
	Fields      map[string]string `yaml:"fields" toml:"fields"`
	Limit       int               `yaml:"limit" toml:"limit"`
}

// Parse decodes data by the extension of path. A document with neither
// name nor url is not a module and yields module.ErrNoDescriptor.
func Parse(path string, data []byte) (*Definition, error) {
	var s Definition
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	if s.Name == "" && s.URL == "" {
		return nil, module.ErrNoDescriptor
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &s, nil
}

// Validate checks the fields needed to fetch and extract.
func (s *Definition) Validate() error {
	if s.URL == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidDefinition)
	}
	u, err := url.Parse(placeholder.ReplaceAllString(s.URL, "x"))
	if err != nil {
		return fmt.Errorf("%w: url: %v", ErrInvalidDefinition, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: url scheme must be http or https", ErrInvalidDefinition)
	}
	if s.Selector == "" && s.XPath == "" {
		return fmt.Errorf("%w: selector or xpath is required", ErrInvalidDefinition)
	}
	if s.Selector != "" && s.XPath != "" {
		return fmt.Errorf("%w: selector and xpath are exclusive", ErrInvalidDefinition)
	}
	if s.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative", ErrInvalidDefinition)
	}
	return nil
}

// Config returns the module metadata.
func (s *Definition) Config() module.Config {
	return module.Config{Name: s.Name, Description: s.Description, Tags: s.Tags}
}

// Query returns the extraction query.
func (s *Definition) Query() scraper.Query {
	return scraper.Query{Selector: s.Selector, XPath: s.XPath, Fields: s.Fields, Limit: s.Limit}
}

// Target fills {key} placeholders in the url from query, falling back to
// Defaults. Unknown keys become empty.
func (s *Definition) Target(query url.Values) string {
	return placeholder.ReplaceAllStringFunc(s.URL, func(m string) string {
		key := m[1 : len(m)-1]
		v := query.Get(key)
		if v == "" {
			v = s.Defaults[key]
		}
		return url.QueryEscape(v)
	})
}
