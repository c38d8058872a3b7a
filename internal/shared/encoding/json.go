// Package encoding holds the JSON configuration shared by the server.
package encoding

import "github.com/bytedance/sonic"

// API encodes maps with sorted keys and leaves HTML characters unescaped.
var API = sonic.Config{
	EscapeHTML:       false,
	SortMapKeys:      true,
	CompactMarshaler: true,
	ValidateString:   true,
}.Froze()

// Marshal encodes v as compact JSON.
func Marshal(v any) ([]byte, error) {
	return API.Marshal(v)
}

// MarshalIndent encodes v with the given indent per level.
func MarshalIndent(v any, indent string) ([]byte, error) {
	return API.MarshalIndent(v, "", indent)
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v any) error {
	return API.Unmarshal(data, v)
}
