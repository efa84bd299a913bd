package recognition

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/your-org/memento/internal/faceindex"
)

// DecodeImage decodes a base64 image payload as it arrives at the API
// boundary. A data-URL prefix ("data:image/jpeg;base64,...") is
// stripped before decoding. Returns ErrInvalidImage for payloads that
// do not decode to a non-empty byte string.
func DecodeImage(encoded string) ([]byte, error) {
	if idx := strings.IndexByte(encoded, ','); idx >= 0 {
		encoded = encoded[idx+1:]
	}
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, faceindex.ErrInvalidImage
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", faceindex.ErrInvalidImage, err)
	}
	if len(data) == 0 {
		return nil, faceindex.ErrInvalidImage
	}
	return data, nil
}
