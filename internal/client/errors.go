package client

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// StateSyntax is the SQL state reported for statement syntax errors.
const StateSyntax = "SYNTAX"

var leadingPosition = regexp.MustCompile(`^\s*(\d+)\s*,`)

// SQLError is an error envelope returned by the endpoint.
type SQLError struct {
	SQLState string `mapstructure:"sqlstate"`
	MsgText  string `mapstructure:"msgtext"`
	// Position is the 1-based character position of a syntax error within
	// the statement, or zero when unknown.
	Position int `mapstructure:"position"`
}

func (e *SQLError) Error() string {
	msg := e.MsgText
	if msg == "" {
		msg = "An error occurred."
	}
	if e.IsSyntax() {
		return "SYNTAX ERROR at pos: " + msg
	}
	state := e.SQLState
	if state == "" {
		state = "ERROR"
	}
	return fmt.Sprintf("SQLSTATE: %s - %s", state, msg)
}

// IsSyntax reports whether the error is a statement syntax error.
func (e *SQLError) IsSyntax() bool {
	return strings.EqualFold(strings.TrimSpace(e.SQLState), StateSyntax)
}

// decodeSQLError decodes the value of an "error" member. A missing position
// is taken from a leading "<n>," in the message text.
func decodeSQLError(raw any) (*SQLError, error) {
	e := &SQLError{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook:       lenientInt,
		Result:           e,
	})
	if err != nil {
		return nil, err
	}
	if s, ok := raw.(string); ok {
		raw = map[string]any{"msgtext": s}
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode error envelope: %w", err)
	}
	if e.Position <= 0 {
		e.Position = 0
		if m := leadingPosition.FindStringSubmatch(e.MsgText); m != nil {
			e.Position, _ = strconv.Atoi(m[1])
		}
	}
	return e, nil
}

// lenientInt reads numbers and numeric strings into int fields and treats
// anything unparsable as zero.
func lenientInt(_, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.Int {
		return data, nil
	}
	switch v := data.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, nil
		}
		return int(f), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, nil
		}
		return n, nil
	case bool, nil:
		return 0, nil
	}
	return data, nil
}

// HTMLError is returned when the endpoint answers with an HTML page, which
// is usually a server error or sign-on page.
type HTMLError struct {
	StatusCode int
	HTML       string
	// Text is the page converted to markdown.
	Text string
}

func (e *HTMLError) Error() string {
	text := strings.TrimSpace(e.Text)
	if text == "" {
		return fmt.Sprintf("endpoint returned an HTML page (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("endpoint returned an HTML page (status %d):\n%s", e.StatusCode, text)
}

// ResponseError is returned when the response body is not a JSON envelope.
type ResponseError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *ResponseError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("empty response from endpoint (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("unreadable response from endpoint (status %d): %s", e.StatusCode, body)
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}
