// Package imagecodec converts binary images into the base64 text form used on
// the wire, in storage, and for display.
package imagecodec

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/kalambet/electroschematic/internal/schematic"
)

// MaxImageSize is the largest input accepted. Inline image parts sent to the
// generative service are capped at 20MB.
const MaxImageSize = 20 << 20

// Image is an encoded image together with its declared format.
type Image struct {
	Data     string // standard base64, no data-URL prefix
	MIMEType string
	Size     int // raw byte count
}

// Bytes decodes Data back to the raw image bytes.
func (img Image) Bytes() ([]byte, error) {
	return Decode(img.Data)
}

// Encode returns the standard base64 encoding of raw.
func Encode(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

// Decode reverses Encode. A data-URL prefix, if present, is ignored.
func Decode(encoded string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(StripDataURL(encoded))
	if err != nil {
		return nil, fmt.Errorf("decoding base64 image: %w", err)
	}
	return b, nil
}

// StripDataURL removes a "data:<mime>;base64," prefix such as the one a
// browser FileReader produces.
func StripDataURL(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if i := strings.Index(s, ","); i >= 0 {
		return s[i+1:]
	}
	return s
}

// DataURL builds the display form of an encoded image.
func DataURL(mimeType, encoded string) string {
	return "data:" + mimeType + ";base64," + encoded
}

// DetectMIME sniffs the image format of raw.
func DetectMIME(raw []byte) string {
	return http.DetectContentType(raw)
}

// Read consumes r and encodes it. declaredMIME is used when it names an
// image type; otherwise the format is sniffed from the content.
func Read(r io.Reader, declaredMIME string) (Image, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %w", schematic.ErrRead, err)
	}
	return fromBytes(raw, declaredMIME)
}

// ReadFile reads and encodes the image at path. The declared type is derived
// from the file extension.
func ReadFile(path string) (Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %w", schematic.ErrRead, err)
	}
	defer f.Close()
	return Read(f, mimeForExt(filepath.Ext(path)))
}

// cameraTypes covers formats phones save that system MIME tables often
// lack and content sniffing cannot recognise.
var cameraTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
}

func mimeForExt(ext string) string {
	ext = strings.ToLower(ext)
	if m, ok := cameraTypes[ext]; ok {
		return m
	}
	return mime.TypeByExtension(ext)
}

func fromBytes(raw []byte, declaredMIME string) (Image, error) {
	if len(raw) == 0 {
		return Image{}, fmt.Errorf("%w: file is empty", schematic.ErrRead)
	}
	if len(raw) > MaxImageSize {
		return Image{}, fmt.Errorf("%w: file exceeds %d bytes", schematic.ErrRead, MaxImageSize)
	}

	mimeType := normalizeMIME(declaredMIME)
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = normalizeMIME(DetectMIME(raw))
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return Image{}, fmt.Errorf("%w: unsupported content type %q", schematic.ErrRead, mimeType)
	}

	return Image{
		Data:     Encode(raw),
		MIMEType: mimeType,
		Size:     len(raw),
	}, nil
}

func normalizeMIME(m string) string {
	if m == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(m)
	if err != nil {
		return ""
	}
	return mediaType
}
