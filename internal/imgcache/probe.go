package imgcache

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"os"

	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder
)

// Info describes an image without decoding its pixels.
type Info struct {
	Format string
	Width  int
	Height int
}

// DecodeError reports bytes that are not a supported image.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "unsupported image data: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Probe reads the image header from data.
func Probe(data []byte) (Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, &DecodeError{Err: err}
	}
	return Info{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// ProbeFile reads the image header of the file at path.
func ProbeFile(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return Info{}, &DecodeError{Err: fmt.Errorf("%s: %w", path, err)}
	}
	return Info{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}
