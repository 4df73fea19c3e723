package scanner

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// Source produces camera frames. Open starts the capture and returns the
// frame channel; the source closes it when capture ends or ctx is done.
type Source interface {
	Open(ctx context.Context) (<-chan image.Image, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (<-chan image.Image, error)

// Open calls f.
func (f SourceFunc) Open(ctx context.Context) (<-chan image.Image, error) {
	return f(ctx)
}

// Images returns a source that emits imgs in order and then ends.
func Images(imgs ...image.Image) Source {
	return SourceFunc(func(ctx context.Context) (<-chan image.Image, error) {
		return emit(ctx, imgs), nil
	})
}

// Files returns a source that emits the decoded image files in order.
// Open fails if a file cannot be read or decoded.
func Files(paths ...string) Source {
	return SourceFunc(func(ctx context.Context) (<-chan image.Image, error) {
		if len(paths) == 0 {
			return nil, errors.New("no image files")
		}
		imgs := make([]image.Image, 0, len(paths))
		for _, path := range paths {
			img, err := readImage(path)
			if err != nil {
				return nil, err
			}
			imgs = append(imgs, img)
		}
		return emit(ctx, imgs), nil
	})
}

// Chan returns a source backed by an existing frame channel, e.g. one fed by
// a camera driver.
func Chan(frames <-chan image.Image) Source {
	return SourceFunc(func(ctx context.Context) (<-chan image.Image, error) {
		if frames == nil {
			return nil, errors.New("nil frame channel")
		}
		return frames, nil
	})
}

func readImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

func emit(ctx context.Context, imgs []image.Image) <-chan image.Image {
	ch := make(chan image.Image)
	go func() {
		defer close(ch)
		for _, img := range imgs {
			select {
			case <-ctx.Done():
				return
			case ch <- img:
			}
		}
	}()
	return ch
}
