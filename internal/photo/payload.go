package photo

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrInvalid marks payloads that cannot be decoded as a supported raster
// image. Callers surface it to the user immediately; it is never retried.
var ErrInvalid = errors.New("invalid image")

// MaxBytes bounds accepted payloads. Phone camera JPEGs land well under this.
const MaxBytes = 16 << 20

var supportedTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

// Payload is an opaque image handed in by the presentation layer.
type Payload struct {
	Bytes       []byte
	ContentType string
}

// Validate checks that the payload is present, within bounds, and sniffs as a
// supported raster format. The sniffed type wins over the declared one so a
// mislabeled upload cannot reach the extractors.
func (p Payload) Validate() error {
	if len(p.Bytes) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalid)
	}
	if len(p.Bytes) > MaxBytes {
		return fmt.Errorf("%w: payload exceeds %d bytes", ErrInvalid, MaxBytes)
	}
	sniffed := http.DetectContentType(p.Bytes)
	if _, ok := supportedTypes[sniffed]; !ok {
		return fmt.Errorf("%w: unsupported format %s", ErrInvalid, sniffed)
	}
	if declared := strings.TrimSpace(p.ContentType); declared != "" && !strings.EqualFold(declared, sniffed) {
		return fmt.Errorf("%w: declared %s but payload is %s", ErrInvalid, declared, sniffed)
	}
	return nil
}

// Type returns the sniffed content type for a validated payload.
func (p Payload) Type() string {
	return http.DetectContentType(p.Bytes)
}

// Ref returns a short content digest that identifies the payload in logs and
// audit trails without storing the image itself.
func (p Payload) Ref() string {
	sum := sha256.Sum256(p.Bytes)
	return hex.EncodeToString(sum[:8])
}
