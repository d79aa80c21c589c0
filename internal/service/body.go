package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
)

// ErrRequestBody is returned when the inbound body cannot be read.
var ErrRequestBody = errors.New("read request body")

// PreparedBody is the outbound form of an inbound request body.
type PreparedBody struct {
	Reader io.Reader // nil when no body is sent
	Length int64     // -1 when unknown
	// Reencoded is true when a JSON document was re-serialized.
	Reencoded bool
}

// PrepareBody decides how an inbound body travels to the backend and keeps
// the Content-Length header in header consistent with that decision:
//
//   - no body: nothing is sent and Content-Length is removed;
//   - JSON content type with a valid document: the document is re-encoded
//     in compact form and Content-Length is set from the encoded bytes;
//   - JSON content type with bytes that do not parse: the raw bytes are sent
//     and Content-Length is set from them;
//   - anything else: the body is streamed through unchanged with the inbound
//     length.
func PrepareBody(header http.Header, body io.Reader, contentLength int64) (PreparedBody, error) {
	if body == nil || body == http.NoBody || contentLength == 0 {
		header.Del("Content-Length")
		return PreparedBody{Length: 0}, nil
	}

	if !isJSON(header.Get("Content-Type")) {
		if contentLength > 0 {
			header.Set("Content-Length", strconv.FormatInt(contentLength, 10))
		} else {
			header.Del("Content-Length")
		}
		return PreparedBody{Reader: body, Length: contentLength}, nil
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return PreparedBody{}, fmt.Errorf("%w: %w", ErrRequestBody, err)
	}
	if len(raw) == 0 {
		header.Del("Content-Length")
		return PreparedBody{Length: 0}, nil
	}

	out := raw
	reencoded := false
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err == nil {
		out = buf.Bytes()
		reencoded = true
	}

	header.Set("Content-Length", strconv.Itoa(len(out)))
	return PreparedBody{
		Reader:    bytes.NewReader(out),
		Length:    int64(len(out)),
		Reencoded: reencoded,
	}, nil
}

// isJSON reports whether a Content-Type denotes a JSON document.
func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
