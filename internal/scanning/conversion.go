package scanning

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// ErrUnsupportedImage is returned for uploads no decoder recognises
var ErrUnsupportedImage = errors.New("unsupported image format, use JPEG, PNG, GIF, HEIC or PDF")

// prepareImageData normalises an upload to PNG for the vision models. It
// returns the PNG bytes, their MIME type and whether anything was
// re-encoded. A blank content type is read as JPEG.
func prepareImageData(data []byte, contentType string) ([]byte, string, bool, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	img, err := decodeUpload(data, mimeType)
	if err != nil {
		return nil, "", false, err
	}
	if img == nil {
		return data, "image/png", false, nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", false, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), "image/png", true, nil
}

// decodeUpload returns a nil image when data is already a usable PNG
func decodeUpload(data []byte, mimeType string) (image.Image, error) {
	switch {
	case mimeType == "application/pdf":
		return renderFirstPage(data)

	case isHEICFormat(data) || isHEICMimeType(mimeType):
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC photo: %w", err)
		}
		return img, nil

	case mimeType == "image/png":
		return nil, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if errors.Is(err, image.ErrFormat) {
		return nil, fmt.Errorf("%w (%s)", ErrUnsupportedImage, mimeType)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", mimeType, err)
	}
	return img, nil
}

// renderFirstPage rasterises page one; bill totals live there
func renderFirstPage(pdf []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// isHEICFormat sniffs the ftyp box brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEICMimeType(mimeType string) bool {
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}
