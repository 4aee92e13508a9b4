// Package jsoncodec centralizes JSON handling for the bridge. Every frame,
// option file, and event payload goes through sonic with the stdlib-compatible
// configuration so behavior matches encoding/json exactly.
package jsoncodec

import (
	"io"

	"github.com/bytedance/sonic"
)

var defaultConfig = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return defaultConfig.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

func Encode(w io.Writer, v any) error {
	enc := defaultConfig.NewEncoder(w)
	return enc.Encode(v)
}

func Decode(r io.Reader, v any) error {
	dec := defaultConfig.NewDecoder(r)
	return dec.Decode(v)
}

// Remarshal round-trips v through JSON into out. Transports use it to coerce
// loosely-typed params into concrete shapes.
func Remarshal(out any, v any) error {
	raw, err := Marshal(v)
	if err != nil {
		return err
	}
	return Unmarshal(raw, out)
}
