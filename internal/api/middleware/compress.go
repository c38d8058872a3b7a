package middleware

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

// CompressionConfig controls gzip response encoding.
type CompressionConfig struct {
	Enabled bool
	MinSize int
}

// Compress wraps h so responses of at least MinSize bytes are gzip encoded
// for clients that accept it. It returns h unchanged when disabled.
func Compress(cfg CompressionConfig, h http.Handler) (http.Handler, error) {
	if !cfg.Enabled {
		return h, nil
	}
	opts := []gzhttp.Option{}
	if cfg.MinSize > 0 {
		opts = append(opts, gzhttp.MinSize(cfg.MinSize))
	}
	wrap, err := gzhttp.NewWrapper(opts...)
	if err != nil {
		return nil, err
	}
	return wrap(h), nil
}
