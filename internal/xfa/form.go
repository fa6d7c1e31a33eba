package xfa

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// FormRequest is the decoded multipart upload for one request.
type FormRequest struct {
	FileBytes       []byte
	FileName        string
	Payload         map[string]any
	ConfirmMismatch bool
}

var (
	boundaryPattern = regexp.MustCompile(`(?i)boundary="?([^";,]+)"?`)
	namePattern     = regexp.MustCompile(`(?i)name="([^"]+)"`)
	filenamePattern = regexp.MustCompile(`(?i)filename="([^"]*)"`)
)

var (
	crlf      = []byte("\r\n")
	headerSep = []byte("\r\n\r\n")
)

// DecodeForm parses a raw multipart/form-data body into a FormRequest.
// The file part is kept as raw bytes; multipart delimiters are compared at
// the byte level because the upload may be arbitrary binary. The scan is a
// single forward pass over the body: seek delimiter, strip framing CRLF,
// split headers from content, dispatch by field name. The input slice is
// never modified.
func DecodeForm(body []byte, contentType string) (*FormRequest, error) {
	m := boundaryPattern.FindStringSubmatch(contentType)
	if m == nil {
		return nil, newError(CodeMalformedRequest, "multipart boundary missing in Content-Type header", nil)
	}
	delim := []byte("--" + m[1])

	req := &FormRequest{Payload: map[string]any{}}

	cursor := bytes.Index(body, delim)
	for cursor >= 0 {
		rest := body[cursor+len(delim):]
		next := bytes.Index(rest, delim)
		if next < 0 {
			// closing delimiter, nothing follows
			break
		}
		if err := decodePart(req, rest[:next]); err != nil {
			return nil, err
		}
		cursor += len(delim) + next
	}

	if len(req.FileBytes) == 0 {
		return nil, newError(CodeMalformedRequest, `request contains no "file" part with content`, nil)
	}
	return req, nil
}

func decodePart(req *FormRequest, segment []byte) error {
	// The two bytes after a delimiter and the CRLF preceding the next one
	// are multipart framing, not part content.
	if len(segment) < 2 {
		return nil
	}
	segment = segment[2:]
	segment = bytes.TrimSuffix(segment, crlf)

	headerEnd := bytes.Index(segment, headerSep)
	if headerEnd < 0 {
		// boundary artifact, not a part
		return nil
	}
	headers := string(segment[:headerEnd])
	value := segment[headerEnd+len(headerSep):]

	nm := namePattern.FindStringSubmatch(headers)
	if nm == nil {
		return nil
	}

	switch nm[1] {
	case "file":
		req.FileBytes = append([]byte(nil), value...)
		if fm := filenamePattern.FindStringSubmatch(headers); fm != nil {
			req.FileName = fm[1]
		}
	case "payload":
		text := string(value)
		if strings.TrimSpace(text) == "" {
			return nil
		}
		payload := map[string]any{}
		if err := json.Unmarshal([]byte(text), &payload); err != nil {
			return newError(CodeMalformedRequest, fmt.Sprintf("payload is not valid JSON: %v", err), err)
		}
		req.Payload = payload
	case "confirmMismatch":
		req.ConfirmMismatch = string(value) == "true"
	}
	return nil
}
