package images

import (
	"image"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	// Registered decoders for LoadImage.
	_ "image/jpeg"
	_ "image/png"

	_ "github.com/chai2010/webp"
)

// ImageFile is a decoded image together with the path it was read from.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Image is the decoded image.
	Image image.Image
}

// LoadImage reads and decodes a JPEG, PNG, or WebP image from disk.
//
// Arguments:
//   - path: Path to the image file.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: Error if opening or decoding fails.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "images: opening file")
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "images: decoding %s", filepath.Base(path))
	}
	return img, nil
}

// LoadDirectoryImages reads and decodes all supported image files from a
// directory, sorted by file name.
//
// Arguments:
//   - dir: Directory path containing image files.
//
// Returns:
//   - []ImageFile: Slice of decoded images in name order.
//   - error: Error if listing or decoding fails.
func LoadDirectoryImages(dir string) ([]ImageFile, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "images: reading directory")
	}

	var loaded []ImageFile
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		switch filepath.Ext(file.Name()) {
		case ".jpg", ".jpeg", ".png", ".webp":
		default:
			continue
		}
		path := filepath.Join(dir, file.Name())
		img, err := LoadImage(path)
		if err != nil {
			return nil, err
		}
		loaded = append(loaded, ImageFile{Path: path, Image: img})
	}

	sort.Slice(loaded, func(i, j int) bool {
		return loaded[i].Path < loaded[j].Path
	})
	return loaded, nil
}
