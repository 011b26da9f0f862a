package media

import (
	"bytes"
	"errors"
	"image"
	"io"

	"github.com/disintegration/imaging"

	// Register the accepted input formats with image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// jpegQuality is the fixed quality of every re-encoded variant. All
// output is JPEG regardless of input format, which keeps content-type
// and ETag handling uniform.
const jpegQuality = 90

// acceptedFormats are the formats image.Decode may report. Anything else
// (including formats other libraries happen to register) is refused.
var acceptedFormats = map[string]bool{
	"jpeg": true,
	"png":  true,
	"gif":  true,
}

// decodeImage decodes an uploaded byte stream, accepting only JPEG, PNG,
// and GIF. The result carries pixels only: EXIF and comment blocks from
// the source are not part of the decoded representation, so every
// re-encode is metadata-free.
func decodeImage(data []byte) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupportedFormat
		}
		return nil, ErrInvalidImage
	}
	if !acceptedFormats[format] {
		return nil, ErrUnsupportedFormat
	}
	return img, nil
}

// fitSize scales (srcW, srcH) down to fit within (maxW, maxH), preserving
// aspect ratio and touching at least one bound. Sources that already fit
// pass through unchanged: the full variant never upscales.
func fitSize(srcW, srcH, maxW, maxH int) (int, int) {
	if srcW <= maxW && srcH <= maxH {
		return srcW, srcH
	}

	scaleW := float64(maxW) / float64(srcW)
	scaleH := float64(maxH) / float64(srcH)

	if scaleW < scaleH {
		h := int(float64(srcH) * scaleW)
		if h < 1 {
			h = 1
		}
		return maxW, h
	}
	w := int(float64(srcW) * scaleH)
	if w < 1 {
		w = 1
	}
	return w, maxH
}

// renderFull produces the bounded, aspect-preserving variant as JPEG bytes.
func renderFull(img image.Image, maxW, maxH int) ([]byte, error) {
	b := img.Bounds()
	w, h := fitSize(b.Dx(), b.Dy(), maxW, maxH)
	if w != b.Dx() || h != b.Dy() {
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	}
	return encodeJPEG(img)
}

// renderThumbnail produces the exact size×size square variant,
// center-cropped and upscaled if the source is smaller.
func renderThumbnail(img image.Image, size int) ([]byte, error) {
	return encodeJPEG(imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos))
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, ErrInvalidImage
	}
	return buf.Bytes(), nil
}

// readAllLimited reads at most limit bytes from r, failing once the limit
// is exceeded. Guards the decoder against oversized uploads.
func readAllLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrInvalidImage
	}
	return data, nil
}
