// Package wire decodes the imaging service's XML and JSON response bodies and
// encodes query strings the way the service expects them.
package wire

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// RemoteError is returned when a JSON body carries the service's error shape
// (an object with a "Code" key).
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (code %s)", e.Message, e.Code)
}

// Escape percent-encodes s with no safe characters other than the RFC 3986
// unreserved set. Spaces become %20.
func Escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Param is one query string key/value pair. Order is preserved.
type Param struct {
	Key   string
	Value string
}

// Query renders params as "k1=v1&k2=v2" with every value escaped.
func Query(params ...Param) string {
	var b strings.Builder
	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p.Key)
		b.WriteByte('=')
		b.WriteString(Escape(p.Value))
	}
	return b.String()
}

// RootText returns the character data of the document's root element, which
// is how single-value XML endpoints (IsLite, GetVersionInfo) answer.
func RootText(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", fmt.Errorf("no root element in XML response")
			}
			return "", fmt.Errorf("failed to parse XML response: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			var text string
			if err := dec.DecodeElement(&text, &start); err != nil {
				return "", fmt.Errorf("failed to decode <%s>: %w", start.Name.Local, err)
			}
			return strings.TrimSpace(text), nil
		}
	}
}

// StringArray collects the text of every <string> element in the document.
// A limit above zero stops collection after that many values.
func StringArray(data []byte, limit int) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	values := []string{}
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return values, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse XML response: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "string" {
			continue
		}
		var v string
		if err := dec.DecodeElement(&v, &start); err != nil {
			return nil, fmt.Errorf("failed to decode <string>: %w", err)
		}
		values = append(values, v)
		if limit > 0 && len(values) >= limit {
			return values, nil
		}
	}
}

// LogonResult is the payload of the XML authenticate endpoint.
type LogonResult struct {
	Success   string `xml:"Success"`
	SessionID string `xml:"SessionId"`
	Reason    string `xml:"Reason"`
}

// OK reports whether the service accepted the credentials.
func (r LogonResult) OK() bool {
	return strings.EqualFold(strings.TrimSpace(r.Success), "true")
}

// Logon parses an authenticate response.
func Logon(data []byte) (LogonResult, error) {
	var res LogonResult
	if err := xml.Unmarshal(data, &res); err != nil {
		return res, fmt.Errorf("failed to parse authentication response: %w", err)
	}
	return res, nil
}

// DecodeJSON unwraps a JSON endpoint body into v. Objects holding a "Code"
// key are returned as *RemoteError; objects holding "d" are unwrapped; any
// other body is decoded as-is. Numbers decode as json.Number when v is an
// interface or map so integer fields stay exact.
func DecodeJSON(data []byte, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty JSON response")
	}

	payload := trimmed
	if trimmed[0] == '{' {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return fmt.Errorf("failed to decode JSON response: %w", err)
		}
		if code, ok := envelope["Code"]; ok {
			return &RemoteError{
				Code:    rawString(code),
				Message: rawString(envelope["Message"]),
			}
		}
		if d, ok := envelope["d"]; ok {
			payload = d
		}
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode JSON response: %w", err)
	}
	return nil
}

// rawString renders a raw JSON scalar as text; strings lose their quotes.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}
