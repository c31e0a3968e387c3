// Package gallery supplies the enrolled signatures a query is ranked against
// and maps storage keys to display names.
package gallery

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"

	"github.com/Faissen/signatures-recognition/internal/signature"
)

// UnknownIdentity is the display name of keys missing from the name map.
const UnknownIdentity = "Unknown"

// Provider enumerates gallery entries in a stable order.
type Provider interface {
	Entries(ctx context.Context) ([]signature.GalleryEntry, error)
}

// Preparer turns a raw image into a quality-checked canonical canvas.
type Preparer interface {
	Prepare(raw *image.Gray) (*signature.Canvas, error)
}

// NameResolver maps a storage key, such as an image filename, to a person.
type NameResolver interface {
	Resolve(key string) string
}

// Static serves a fixed, already normalized gallery.
type Static []signature.GalleryEntry

// Entries returns a copy of the static entries.
func (s Static) Entries(ctx context.Context) ([]signature.GalleryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]signature.GalleryEntry, len(s))
	copy(out, s)
	return out, nil
}

// NameMap resolves keys from an in-memory table.
type NameMap map[string]string

// Resolve returns the mapped name or UnknownIdentity.
func (m NameMap) Resolve(key string) string {
	if name, ok := m[key]; ok && name != "" {
		return name
	}
	return UnknownIdentity
}

// LoadNameMap reads a JSON object of key to name. An empty path yields an
// empty map so every key resolves to UnknownIdentity.
func LoadNameMap(path string) (NameMap, error) {
	if path == "" {
		return NameMap{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read name map: %w", err)
	}
	var m NameMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse name map %s: %w", path, err)
	}
	if m == nil {
		m = NameMap{}
	}
	return m, nil
}
