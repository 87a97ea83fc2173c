// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llmjson recovers JSON values from free-text model responses.
//
// Models often wrap JSON in a markdown fence or surround it with prose.
// Candidates are tried in order: the interior of the first fenced block,
// the whole response, and finally every '{' or '[' in the response.
// Finding nothing is not an error; callers substitute their own fallback.
package llmjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"iter"
	"reflect"
	"regexp"
	"strings"
)

// fence matches the first ``` block, optionally tagged json. The interior
// is captured lazily so that a later block is never merged into it.
var fence = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?\\s*```")

// Extract returns the first JSON value found in text. A bare null is
// treated as no value.
func Extract(text string) (json.RawMessage, bool) {
	for raw := range values(text) {
		return raw, true
	}
	return nil, false
}

// Decode unmarshals into v the first JSON value in text that fits v's
// shape, skipping values of the wrong shape such as a bracketed citation
// in a preamble. A field of the wrong type inside an otherwise fitting
// value is left at its zero value rather than discarding the rest. Decode
// reports false, leaving v untouched, when no value fits.
func Decode(text string, v any) bool {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return false
	}
	for raw := range values(text) {
		fresh := reflect.New(rv.Elem().Type())
		if fits(json.Unmarshal(raw, fresh.Interface())) {
			rv.Elem().Set(fresh.Elem())
			return true
		}
	}
	return false
}

// fits accepts a clean decode, or one whose only problems are type
// mismatches below the top level.
func fits(err error) bool {
	if err == nil {
		return true
	}
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &typeErr) && typeErr.Field != ""
}

// values yields every JSON value recoverable from text, in preference order.
func values(text string) iter.Seq[json.RawMessage] {
	return func(yield func(json.RawMessage) bool) {
		trimmed := strings.TrimSpace(text)

		var candidates []string
		if m := fence.FindStringSubmatch(trimmed); m != nil {
			candidates = append(candidates, strings.TrimSpace(m[1]))
		}
		candidates = append(candidates, trimmed)

		for _, c := range candidates {
			if raw, ok := whole(c); ok && !yield(raw) {
				return
			}
		}
		for _, c := range candidates {
			if !scan(c, yield) {
				return
			}
		}
	}
}

func whole(s string) (json.RawMessage, bool) {
	if s == "" || !json.Valid([]byte(s)) {
		return nil, false
	}
	return usable(json.RawMessage(s))
}

// scan yields each value that starts at an opening bracket. Text after a
// value is ignored. It returns false once yield asks to stop.
func scan(s string, yield func(json.RawMessage) bool) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != '{' && s[i] != '[' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(s[i:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			continue
		}
		if v, ok := usable(raw); ok && !yield(v) {
			return false
		}
	}
	return true
}

func usable(raw json.RawMessage) (json.RawMessage, bool) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	return raw, true
}
