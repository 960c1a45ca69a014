// parse_json.go
package jsonx

import (
	"encoding/json"
	"io"
)

// decodeStrict decodes exactly one JSON value via dec into dst, rejecting
// unknown fields. Shared by ParseJSONObject and ParseStrictJSONBody so both
// get identical decode behavior; ParseStrictJSONBody needs the *json.Decoder
// itself afterward (to check for trailing data), which is why this takes
// one in rather than an io.Reader.
func decodeStrict[T any](dec *json.Decoder, dst *T) error {
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// ParseJSONObject decodes one JSON value from src into dst.
//
// - Malformed JSON (bad tokens, empty/unterminated/truncated) => *json.SyntaxError, io.EOF, io.ErrUnexpectedEOF
// - Incorrect data type (field/value mismatch) => *json.UnmarshalTypeError
// - Unknown object fields => error("json: unknown field \"...\"") from encoding/json (no dedicated error type)
// - Other decode failures bubble up from encoding/json.
func ParseJSONObject[T any](src io.Reader, dst *T) error {
	return decodeStrict(json.NewDecoder(src), dst)
}
