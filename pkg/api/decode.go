package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Field names recognized by Decode.
const (
	FieldDelay      = "delay"
	FieldTitle      = "title"
	FieldFirstName  = "first_name"
	FieldMiddleName = "middle_name"
	FieldLastName   = "last_name"
	FieldSuffix     = "suffix"
)

// maxDelayMS is the largest delay in milliseconds that fits a
// time.Duration.
const maxDelayMS = uint64(math.MaxInt64 / int64(time.Millisecond))

// Fields is a caller-supplied set of named field values. Keys not used by
// Decode are ignored.
type Fields map[string]string

// FieldsFromValues builds Fields from query or form values, keeping the
// first value of each key.
func FieldsFromValues(values url.Values) Fields {
	f := make(Fields, len(values))
	for k, v := range values {
		if len(v) > 0 {
			f[k] = v[0]
		}
	}
	return f
}

// FieldsFromJSON builds Fields from a JSON object of signals. Numbers keep
// their literal text and null values are treated as absent. Nested objects
// and arrays are rejected.
func FieldsFromJSON(data []byte) (Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid signals JSON: %w", err)
	}

	f := make(Fields, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
			// absent
		case string:
			f[k] = val
		case json.Number:
			f[k] = val.String()
		case bool:
			f[k] = strconv.FormatBool(val)
		default:
			if isDecodedField(k) {
				return nil, &DecodeError{Kind: InvalidField, Field: k}
			}
		}
	}
	return f, nil
}

func isDecodedField(name string) bool {
	switch name {
	case FieldDelay, FieldTitle, FieldFirstName, FieldMiddleName, FieldLastName, FieldSuffix:
		return true
	}
	return false
}

// Decode validates fields and converts them into a GreetingRequest.
// The first failing check wins, in the order delay, title, first_name,
// last_name. Decode has no side effects.
func Decode(fields Fields) (*GreetingRequest, error) {
	return DecodeWithLimit(fields, 0)
}

// DecodeWithLimit is Decode with an upper bound on the delay. A maxDelay of
// zero or less disables the bound, but a delay that does not fit a
// time.Duration is always rejected.
func DecodeWithLimit(fields Fields, maxDelay time.Duration) (*GreetingRequest, error) {
	rawDelay, ok := fields[FieldDelay]
	if !ok {
		return nil, &DecodeError{Kind: InvalidField, Field: FieldDelay}
	}
	delay, err := strconv.ParseUint(strings.TrimSpace(rawDelay), 10, 64)
	if err != nil {
		return nil, &DecodeError{Kind: InvalidField, Field: FieldDelay, Value: rawDelay}
	}
	if delay > maxDelayMS || (maxDelay > 0 && delay > uint64(maxDelay/time.Millisecond)) {
		return nil, &DecodeError{Kind: InvalidField, Field: FieldDelay, Value: rawDelay}
	}

	req := &GreetingRequest{Delay: delay}

	if label := fields[FieldTitle]; label != "" {
		title, ok := ParseTitle(label)
		if !ok {
			return nil, &DecodeError{Kind: InvalidEnum, Field: FieldTitle, Value: label}
		}
		req.Title = &title
	}

	if req.FirstName, err = requiredText(fields, FieldFirstName); err != nil {
		return nil, err
	}
	if req.LastName, err = requiredText(fields, FieldLastName); err != nil {
		return nil, err
	}

	req.MiddleName = optionalText(fields, FieldMiddleName)
	req.Suffix = optionalText(fields, FieldSuffix)

	return req, nil
}

func requiredText(fields Fields, name string) (string, error) {
	v, ok := fields[name]
	if !ok || strings.TrimSpace(v) == "" {
		return "", &DecodeError{Kind: MissingField, Field: name}
	}
	return v, nil
}

func optionalText(fields Fields, name string) *string {
	v, ok := fields[name]
	if !ok || v == "" {
		return nil
	}
	return &v
}
