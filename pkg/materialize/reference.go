package materialize

import (
	"encoding/base64"
	"regexp"
	"strings"

	"serpgrab/pkg/errors"
)

// Kind tags an image reference
type Kind int

const (
	KindUnsupported Kind = iota
	KindInline
	KindRemote
)

func (k Kind) String() string {
	switch k {
	case KindInline:
		return "inline"
	case KindRemote:
		return "remote"
	default:
		return "unsupported"
	}
}

var (
	// ErrMalformedInline is returned for data: references that are not a
	// base64 image
	ErrMalformedInline = errors.Malformed("malformed inline image reference")
	// ErrUnsupported is returned for references that are neither inline nor
	// http(s)
	ErrUnsupported = errors.Malformed("unsupported image reference")
)

var inlinePattern = regexp.MustCompile(`^data:image/(\w+);base64,(.+)$`)

// Reference is a parsed image reference. Inline references carry MIMEType,
// Extension and Payload; remote ones carry URL.
type Reference struct {
	Raw       string
	Kind      Kind
	MIMEType  string
	Extension string
	Payload   string
	URL       string
}

// Parse classifies raw. Anything that is not a well formed inline image or
// an http(s) URL is an error and carries KindUnsupported.
func Parse(raw string) (Reference, error) {
	ref := Reference{Raw: raw}

	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "data:"):
		m := inlinePattern.FindStringSubmatch(raw)
		if m == nil {
			return ref, ErrMalformedInline
		}
		ref.Kind = KindInline
		ref.MIMEType = "image/" + m[1]
		ref.Extension = m[1]
		ref.Payload = m[2]
		return ref, nil

	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		ref.Kind = KindRemote
		ref.URL = raw
		return ref, nil

	default:
		return ref, ErrUnsupported
	}
}

// FileExtension returns the extension a reference is written with
func (r Reference) FileExtension() string {
	if r.Kind == KindInline {
		return r.Extension
	}
	return "jpg"
}

// Decode returns the inline payload bytes. Padded and unpadded base64 are
// both accepted.
func (r Reference) Decode() ([]byte, error) {
	if r.Kind != KindInline {
		return nil, errors.Structural("decode called on a " + r.Kind.String() + " reference")
	}
	data, err := base64.StdEncoding.DecodeString(r.Payload)
	if err == nil {
		return data, nil
	}
	if data, rawErr := base64.RawStdEncoding.DecodeString(r.Payload); rawErr == nil {
		return data, nil
	}
	return nil, errors.Wrap(errors.ErrorTypeMalformed, err, "invalid base64 payload")
}
