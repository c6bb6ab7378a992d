package signdetect

import (
	"context"
	"fmt"
	"os"
)

// FileSource "captures" an existing file. Permission is granted when the
// file can be opened for reading.
type FileSource struct {
	Path string
	// Kind overrides the extension-based guess when set.
	Kind *Kind
}

func (s FileSource) RequestPermission() error {
	if s.Path == "" {
		return ErrCanceled
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCameraPermission, err)
	}
	return f.Close()
}

func (s FileSource) Capture(ctx context.Context) (Media, error) {
	if err := ctx.Err(); err != nil {
		return Media{}, err
	}
	info, err := os.Stat(s.Path)
	if err != nil {
		return Media{}, err
	}
	if info.IsDir() {
		return Media{}, fmt.Errorf("%s is a directory", s.Path)
	}
	kind := KindOf(s.Path)
	if s.Kind != nil {
		kind = *s.Kind
	}
	return Media{Path: s.Path, Kind: kind}, nil
}
