package cutout

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
)

const reencodeQuality = 95

// normalizeJPEG decodes data and returns JPEG bytes. Valid JPEG payloads are
// returned unchanged, other formats are re-encoded.
func normalizeJPEG(data []byte) ([]byte, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, format, fmt.Errorf("%w: empty %s image", ErrDecode, format)
	}
	if format == "jpeg" {
		return data, format, nil
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: reencodeQuality}); err != nil {
		return nil, format, fmt.Errorf("%w: re-encode %s: %v", ErrDecode, format, err)
	}
	return buf.Bytes(), format, nil
}
