package sandbox

import (
	"errors"
	"fmt"
	"time"

	"github.com/GriffinCanCode/ScraperAPI/internal/providers/http/client"
	"github.com/GriffinCanCode/ScraperAPI/internal/providers/scraper"
)

var (
	ErrPoolClosed = errors.New("sandbox pool is closed")
	ErrTimeout    = errors.New("script execution timed out")
	// ErrUnsettled is returned when initialize returns a promise that is
	// still pending once the job queue has drained.
	ErrUnsettled = errors.New("initialize returned a promise that never settled")
)

// Config defines sandbox limits.
type Config struct {
	PoolSize         int           // runtimes per module
	Timeout          time.Duration // 0 disables the per-call timeout
	MaxCallStackSize int
	EnableConsole    bool
}

// DefaultConfig returns the default limits.
func DefaultConfig() Config {
	return Config{
		PoolSize:         4,
		MaxCallStackSize: 1024,
		EnableConsole:    true,
	}
}

// Host holds the services scripts reach through require.
type Host struct {
	Scraper *scraper.Ops
	Fetch   *client.Client
}

// Phase names where a script failed.
const (
	PhaseLoad       = "load"
	PhaseInitialize = "initialize"
)

// ScriptError is a JavaScript exception or rejection surfaced to Go.
type ScriptError struct {
	Path    string
	Phase   string
	Message string
	Cause   error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("%s (%s): %s", e.Path, e.Phase, e.Message)
}

func (e *ScriptError) Unwrap() error { return e.Cause }
