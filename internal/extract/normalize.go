package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"

	"gitlab.com/dirk.krummacker/signature-builder/internal/model"
)

// parseDocument decodes one complete JSON value. Trailing data is an error.
func parseDocument(text string) (any, error) {
	var value any
	decoder := json.NewDecoder(bytes.NewReader([]byte(text)))
	decoder.UseNumber()
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(new(any)); err != io.EOF {
		return nil, errors.New("unexpected data after JSON value")
	}
	return value, nil
}

// Normalize maps a decoded model answer onto the fixed seven-field record. Missing keys and
// falsy values (null, false, 0, "") become empty strings. Truthy numbers and booleans keep their
// JSON text. Objects and arrays cannot be shown on a contact card and are dropped. Anything
// other than a JSON object yields an empty record.
func Normalize(extracted any) model.ContactRecord {
	fields, _ := extracted.(map[string]any)
	return model.ContactRecord{
		Name:         text(fields["name"]),
		JobTitle:     text(fields["job_title"]),
		Email:        text(fields["email"]),
		PhoneDisplay: text(fields["phone_display"]),
		PhoneE164:    text(fields["phone_e164"]),
		LinkedIn:     text(fields["linkedin"]),
		Website:      text(fields["website"]),
	}
}

func text(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		if f, err := v.Float64(); err == nil && f == 0 {
			return ""
		}
		return v.String()
	case float64:
		if v == 0 {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "true"
		}
		return ""
	default:
		return ""
	}
}

// truncate returns at most limit runes of s.
func truncate(s string, limit int) string {
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
