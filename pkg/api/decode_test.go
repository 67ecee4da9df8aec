package api

import (
	"errors"
	"net/url"
	"testing"
	"time"
)

func validFields() Fields {
	return Fields{
		FieldDelay:     "250",
		FieldFirstName: "Ada",
		FieldLastName:  "Lovelace",
	}
}

func TestDecodeMinimal(t *testing.T) {
	req, err := Decode(validFields())
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if req.Delay != 250 {
		t.Errorf("Delay = %d, want 250", req.Delay)
	}
	if req.FirstName != "Ada" || req.LastName != "Lovelace" {
		t.Errorf("names = %q %q, want Ada Lovelace", req.FirstName, req.LastName)
	}
	if req.Title != nil || req.MiddleName != nil || req.Suffix != nil {
		t.Errorf("optional fields should be nil, got %+v", req)
	}
}

func TestDecodeAllFields(t *testing.T) {
	f := validFields()
	f[FieldTitle] = "Dr"
	f[FieldMiddleName] = "King"
	f[FieldSuffix] = "Countess"

	req, err := Decode(f)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if req.Title == nil || *req.Title != TitleDr {
		t.Errorf("Title = %v, want Dr", req.Title)
	}
	if req.MiddleName == nil || *req.MiddleName != "King" {
		t.Errorf("MiddleName = %v, want King", req.MiddleName)
	}
	if req.Suffix == nil || *req.Suffix != "Countess" {
		t.Errorf("Suffix = %v, want Countess", req.Suffix)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(Fields)
		wantKind  DecodeErrorKind
		wantField string
	}{
		{"missing delay", func(f Fields) { delete(f, FieldDelay) }, InvalidField, FieldDelay},
		{"negative delay", func(f Fields) { f[FieldDelay] = "-5" }, InvalidField, FieldDelay},
		{"fractional delay", func(f Fields) { f[FieldDelay] = "1.5" }, InvalidField, FieldDelay},
		{"text delay", func(f Fields) { f[FieldDelay] = "soon" }, InvalidField, FieldDelay},
		{"unknown title", func(f Fields) { f[FieldTitle] = "Lord" }, InvalidEnum, FieldTitle},
		{"lowercase title", func(f Fields) { f[FieldTitle] = "dr" }, InvalidEnum, FieldTitle},
		{"display form title", func(f Fields) { f[FieldTitle] = "Dr." }, InvalidEnum, FieldTitle},
		{"missing first name", func(f Fields) { delete(f, FieldFirstName) }, MissingField, FieldFirstName},
		{"blank first name", func(f Fields) { f[FieldFirstName] = "   " }, MissingField, FieldFirstName},
		{"missing last name", func(f Fields) { delete(f, FieldLastName) }, MissingField, FieldLastName},
		{"empty last name", func(f Fields) { f[FieldLastName] = "" }, MissingField, FieldLastName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validFields()
			tt.mutate(f)

			req, err := Decode(f)
			if err == nil {
				t.Fatalf("expected error, got request %+v", req)
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("error type = %T, want *DecodeError", err)
			}
			if de.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", de.Kind, tt.wantKind)
			}
			if de.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", de.Field, tt.wantField)
			}
		})
	}
}

func TestDecodeCheckOrder(t *testing.T) {
	// Both names missing and a bad title: title is checked first.
	_, err := Decode(Fields{FieldDelay: "0", FieldTitle: "Baron"})
	var de *DecodeError
	if !errors.As(err, &de) || de.Kind != InvalidEnum {
		t.Fatalf("err = %v, want InvalidEnum", err)
	}
}

func TestDecodeEmptyOptionalsAreAbsent(t *testing.T) {
	f := validFields()
	f[FieldTitle] = ""
	f[FieldMiddleName] = ""
	f[FieldSuffix] = ""

	req, err := Decode(f)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if req.Title != nil || req.MiddleName != nil || req.Suffix != nil {
		t.Errorf("empty optionals should decode as absent, got %+v", req)
	}
}

func TestDecodeWithLimit(t *testing.T) {
	f := validFields()
	f[FieldDelay] = "2000"

	if _, err := DecodeWithLimit(f, 2*time.Second); err != nil {
		t.Errorf("delay at limit rejected: %v", err)
	}

	f[FieldDelay] = "2001"
	_, err := DecodeWithLimit(f, 2*time.Second)
	var de *DecodeError
	if !errors.As(err, &de) || de.Kind != InvalidField || de.Field != FieldDelay {
		t.Errorf("err = %v, want InvalidField on delay", err)
	}

	if _, err := DecodeWithLimit(f, 0); err != nil {
		t.Errorf("zero limit should disable the bound: %v", err)
	}
}

func TestDecodeRejectsDelayBeyondDuration(t *testing.T) {
	for _, raw := range []string{"18446744073709551615", "9223372036855"} {
		f := validFields()
		f[FieldDelay] = raw
		_, err := DecodeWithLimit(f, 0)
		var de *DecodeError
		if !errors.As(err, &de) || de.Kind != InvalidField || de.Field != FieldDelay {
			t.Errorf("delay %s: err = %v, want InvalidField on delay", raw, err)
		}
	}

	f := validFields()
	f[FieldDelay] = "9223372036854"
	req, err := Decode(f)
	if err != nil {
		t.Fatalf("largest representable delay rejected: %v", err)
	}
	if d := time.Duration(req.Delay) * time.Millisecond; d <= 0 {
		t.Errorf("delay %d overflowed to %v", req.Delay, d)
	}
}

func TestFieldsFromValues(t *testing.T) {
	v := url.Values{}
	v.Add("delay", "10")
	v.Add("first_name", "Luke")
	v.Add("first_name", "Anakin")
	v.Add("last_name", "Skywalker")

	f := FieldsFromValues(v)
	if f["first_name"] != "Luke" {
		t.Errorf("first_name = %q, want first value %q", f["first_name"], "Luke")
	}
	if _, err := Decode(f); err != nil {
		t.Errorf("Decode error: %v", err)
	}
}

func TestFieldsFromJSON(t *testing.T) {
	f, err := FieldsFromJSON([]byte(`{"delay":400,"title":"Jedi","first_name":"Luke","middle_name":null,"last_name":"Skywalker","message":"old"}`))
	if err != nil {
		t.Fatalf("FieldsFromJSON error: %v", err)
	}
	if f["delay"] != "400" {
		t.Errorf("delay = %q, want %q", f["delay"], "400")
	}
	if _, ok := f["middle_name"]; ok {
		t.Error("null middle_name should be absent")
	}

	req, err := Decode(f)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if req.Title == nil || *req.Title != TitleJedi {
		t.Errorf("Title = %v, want Jedi", req.Title)
	}
}

func TestFieldsFromJSONRejects(t *testing.T) {
	if _, err := FieldsFromJSON([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed JSON")
	}

	_, err := FieldsFromJSON([]byte(`{"first_name":{"nested":true}}`))
	var de *DecodeError
	if !errors.As(err, &de) || de.Field != FieldFirstName {
		t.Errorf("err = %v, want InvalidField on first_name", err)
	}

	// Nested values in unrelated signals are ignored.
	if _, err := FieldsFromJSON([]byte(`{"ui":{"open":true}}`)); err != nil {
		t.Errorf("unrelated nested signal rejected: %v", err)
	}
}

func TestTitleDisplay(t *testing.T) {
	want := map[Title]string{
		TitleMr:   "Mr.",
		TitleMrs:  "Mrs.",
		TitleMs:   "Ms.",
		TitleDr:   "Dr.",
		TitleSir:  "Sir",
		TitleJedi: "Jedi",
	}
	for _, title := range Titles {
		if got := title.Display(); got != want[title] {
			t.Errorf("%s.Display() = %q, want %q", title, got, want[title])
		}
		if parsed, ok := ParseTitle(string(title)); !ok || parsed != title {
			t.Errorf("ParseTitle(%q) = %q, %v", title, parsed, ok)
		}
	}
}
