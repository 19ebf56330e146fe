package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Record is one type-discriminated configuration entry. The discriminant
// selects a constructor in a registry; the remaining fields belong to that
// variant and are decoded by it via Decode.
type Record struct {
	Type string

	raw json.RawMessage
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return err
	}
	if strings.TrimSpace(probe.Type) == "" {
		return errors.New(`configuration record is missing "type"`)
	}
	r.Type = probe.Type
	r.raw = append(json.RawMessage(nil), b...)
	return nil
}

// Decode strictly decodes the record's variant fields into v. The
// discriminant and the subscription list are record-level concerns and are
// stripped first, so variant structs only declare their own fields.
func (r Record) Decode(v any) error {
	if len(r.raw) == 0 {
		return fmt.Errorf("record %q: empty body", r.Type)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(r.raw, &fields); err != nil {
		return fmt.Errorf("record %q: %w", r.Type, err)
	}
	delete(fields, "type")
	delete(fields, "notifications")

	b, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("record %q: %w", r.Type, err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("record %q: %w", r.Type, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("record %q: trailing data", r.Type)
	}
	return nil
}

// EndpointRecord is a Record that additionally declares the notification
// names the endpoint subscribes to.
type EndpointRecord struct {
	Record
	Notifications []string
}

func (r *EndpointRecord) UnmarshalJSON(b []byte) error {
	if err := r.Record.UnmarshalJSON(b); err != nil {
		return err
	}
	var probe struct {
		Notifications []string `json:"notifications"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return err
	}
	r.Notifications = probe.Notifications
	return nil
}
