package types

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"os"
)

// DefaultMaxImageBytes caps reference image uploads. The transport envelope
// holds the whole image in memory, so the cap bounds request size too.
const DefaultMaxImageBytes = 8 << 20

var (
	ErrImageTooLarge    = errors.New("reference image exceeds size limit")
	ErrImageUnsupported = errors.New("reference image must be PNG or JPEG")
)

// ReferenceImage is an uploaded image held fully in memory before being
// re-encoded into the JSON transport envelope.
type ReferenceImage struct {
	Name string
	MIME string
	Data []byte
}

// EncodedImage is the binary-to-text transport envelope attached to
// generate/regenerate requests.
type EncodedImage struct {
	Name string `json:"name,omitempty"`
	MIME string `json:"mime"`
	Data string `json:"data"`
}

// LoadReferenceImage reads an image file fully into memory and validates it
// against the size cap and the supported formats. maxBytes <= 0 applies
// DefaultMaxImageBytes.
func LoadReferenceImage(path string, maxBytes int64) (*ReferenceImage, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reference image: %w", err)
	}
	if info.Size() > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrImageTooLarge, info.Size(), maxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reference image: %w", err)
	}

	img := &ReferenceImage{Name: info.Name(), Data: data}
	if err := img.Validate(maxBytes); err != nil {
		return nil, err
	}
	return img, nil
}

// Validate checks the size cap and that the bytes decode as PNG or JPEG,
// filling in MIME from the detected format.
func (r *ReferenceImage) Validate(maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	if int64(len(r.Data)) > maxBytes {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrImageTooLarge, len(r.Data), maxBytes)
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(r.Data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrImageUnsupported, err)
	}
	switch format {
	case "png":
		r.MIME = "image/png"
	case "jpeg":
		r.MIME = "image/jpeg"
	default:
		return fmt.Errorf("%w: got %s", ErrImageUnsupported, format)
	}
	return nil
}

// Encode produces the base64 transport envelope.
func (r *ReferenceImage) Encode() *EncodedImage {
	if r == nil {
		return nil
	}
	return &EncodedImage{
		Name: r.Name,
		MIME: r.MIME,
		Data: base64.StdEncoding.EncodeToString(r.Data),
	}
}

// Decode reverses Encode. Used by the stub server and by tests.
func (e *EncodedImage) Decode() (*ReferenceImage, error) {
	if e == nil {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(e.Data)
	if err != nil {
		return nil, fmt.Errorf("decode reference image: %w", err)
	}
	return &ReferenceImage{Name: e.Name, MIME: e.MIME, Data: raw}, nil
}
