package gallery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faissen/signatures-recognition/internal/imageprocessor"
	"github.com/Faissen/signatures-recognition/internal/signature"
)

var imageExtensions = map[string]struct{}{".png": {}, ".jpg": {}, ".jpeg": {}}

// File is one signature image found in a gallery directory.
type File struct {
	Name string
	Path string
}

// Scan lists the signature images of dir in lexical filename order.
func Scan(dir string) ([]File, error) {
	// ReadDir sorts by filename.
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan gallery %s: %w", dir, err)
	}
	files := make([]File, 0, len(dirEntries))
	for _, e := range dirEntries {
		if e.IsDir() {
			continue
		}
		if _, ok := imageExtensions[strings.ToLower(filepath.Ext(e.Name()))]; !ok {
			continue
		}
		files = append(files, File{Name: e.Name(), Path: filepath.Join(dir, e.Name())})
	}
	return files, nil
}

// DirectoryProvider builds the gallery from a directory of signature images.
// Files are normalized on every call.
type DirectoryProvider struct {
	dir      string
	source   imageprocessor.Source
	preparer Preparer
	resolver NameResolver
	logger   *zap.Logger
}

var _ Provider = (*DirectoryProvider)(nil)

// NewDirectoryProvider wires a provider over dir.
func NewDirectoryProvider(dir string, source imageprocessor.Source, preparer Preparer, resolver NameResolver, logger *zap.Logger) *DirectoryProvider {
	if resolver == nil {
		resolver = NameMap{}
	}
	return &DirectoryProvider{
		dir:      dir,
		source:   source,
		preparer: preparer,
		resolver: resolver,
		logger:   logger.Named("directory_gallery"),
	}
}

// Entries loads every signature image of the directory. A file that cannot be
// decoded fails the whole load with a *signature.EntryError; files below the
// quality gate are skipped with a warning.
func (p *DirectoryProvider) Entries(ctx context.Context) ([]signature.GalleryEntry, error) {
	files, err := Scan(p.dir)
	if err != nil {
		return nil, err
	}

	entries := make([]signature.GalleryEntry, 0, len(files))
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		identity := p.resolver.Resolve(f.Name)
		raw, err := p.source.Load(ctx, f.Path)
		if err != nil {
			if errors.Is(err, signature.ErrImageDecode) {
				return nil, &signature.EntryError{Identity: identity, Index: i, Err: err}
			}
			return nil, err
		}
		canvas, err := p.preparer.Prepare(raw)
		if err != nil {
			if errors.Is(err, signature.ErrLowQuality) {
				p.logger.Warn("skipping low quality signature", zap.String("file", f.Name), zap.Error(err))
				continue
			}
			return nil, &signature.EntryError{Identity: identity, Index: i, Err: fmt.Errorf("prepare %s: %w", f.Name, err)}
		}
		entries = append(entries, signature.GalleryEntry{Identity: identity, Canvas: canvas})
	}

	p.logger.Debug("gallery loaded", zap.String("dir", p.dir), zap.Int("entries", len(entries)), zap.Int("files", len(files)))
	return entries, nil
}
