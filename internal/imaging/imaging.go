// Package imaging prepares uploaded recipe photos for the vision model.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/nfnt/resize"
)

// MaxWidth is the widest image sent to the model. Wider photos only cost
// tokens.
const MaxWidth = 1568

// Sniff returns the media type of data detected from its content, without
// parameters.
func Sniff(data []byte) string {
	mt := mimetype.Detect(data).String()
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.TrimSpace(mt)
}

// Downscale shrinks JPEG, PNG and GIF images wider than maxWidth, keeping the
// aspect ratio. Other formats and narrow images are returned unchanged. GIFs
// are re-encoded as PNG.
func Downscale(data []byte, mediaType string, maxWidth int) ([]byte, string, error) {
	switch mediaType {
	case "image/jpeg", "image/png", "image/gif":
	default:
		return data, mediaType, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image header: %w", err)
	}
	if cfg.Width <= maxWidth {
		return data, mediaType, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	img = resize.Resize(uint(maxWidth), 0, img, resize.Lanczos3)

	var out bytes.Buffer
	switch mediaType {
	case "image/jpeg":
		err = jpeg.Encode(&out, img, &jpeg.Options{Quality: 85})
	default:
		mediaType = "image/png"
		err = png.Encode(&out, img)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode image: %w", err)
	}
	return out.Bytes(), mediaType, nil
}

// DataURL encodes data as a base64 data URL.
func DataURL(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Prepare sniffs an upload, downscales it when it is a wide photo and
// returns it as a data URL. Non-images are encoded as they are so the
// conversion pipeline can reject them with its usual error.
func Prepare(data []byte) (string, error) {
	mediaType := Sniff(data)
	if !strings.HasPrefix(mediaType, "image/") {
		return DataURL(mediaType, data), nil
	}
	out, mediaType, err := Downscale(data, mediaType, MaxWidth)
	if err != nil {
		return "", err
	}
	return DataURL(mediaType, out), nil
}
