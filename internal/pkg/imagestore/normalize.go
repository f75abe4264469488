package imagestore

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/disintegration/imaging"
)

var (
	ErrTooLarge     = errors.New("image exceeds the upload size limit")
	ErrInvalidImage = errors.New("unsupported or corrupt image")
)

// NormalizePNG decodes any supported image, applies EXIF orientation,
// fits it into maxDim x maxDim and re-encodes it as PNG. The marketplace
// photo upload expects PNG bytes.
func NormalizePNG(data []byte, maxDim int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if maxDim > 0 {
		b := img.Bounds()
		if b.Dx() > maxDim || b.Dy() > maxDim {
			img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
