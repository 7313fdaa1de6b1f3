package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Journal commands.
const (
	CommandSet    = "set"
	CommandDelete = "delete"
)

// Record is a single journal entry. Records are immutable once written.
// Command is CommandSet, CommandDelete, or an unrecognized command read
// from a journal written by some other version.
type Record struct {
	Command string
	Key     string
	// Value is only meaningful for CommandSet. It is the zero Value when
	// the journal holds a value of an unsupported type.
	Value Value

	// raw holds the journal bytes of an unsupported value so it can be
	// written back out unchanged.
	raw json.RawMessage
}

// SetRecord returns a record declaring value as the current value for key.
func SetRecord(key string, value Value) Record {
	return Record{Command: CommandSet, Key: key, Value: value}
}

// DeleteRecord returns a record declaring key absent.
func DeleteRecord(key string) Record {
	return Record{Command: CommandDelete, Key: key}
}

// IsKnown reports whether r is a set or delete record.
func (r Record) IsKnown() bool {
	return r.Command == CommandSet || r.Command == CommandDelete
}

// ValidKey reports whether key is acceptable as a store key.
func ValidKey(key string) bool {
	return utf8.ValidString(key)
}

// Unsupported reports whether r is a set whose journal value could not be
// represented as a Value. Replay rejects such records.
func (r Record) Unsupported() bool {
	return r.Command == CommandSet && !r.Value.IsValid()
}

// recordJSON is the on-disk shape of a record.
// Field order is the order written to the journal.
type recordJSON struct {
	Command *string         `json:"command"`
	Key     *string         `json:"key"`
	Value   json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON encodes r as {"command":..,"key":..[,"value":..]}.
func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{Command: &r.Command, Key: &r.Key}
	if r.Command == CommandSet {
		if r.Unsupported() && r.raw != nil {
			out.Value = r.raw
		} else {
			b, err := r.Value.MarshalJSON()
			if err != nil {
				return nil, err
			}
			out.Value = b
		}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON decodes a journal line. Command and key must be strings and
// a set must carry a value. A well-formed value of an unsupported type, such
// as null, decodes into a record with the zero Value; see Unsupported.
func (r *Record) UnmarshalJSON(data []byte) error {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Command == nil {
		return fmt.Errorf("missing command")
	}
	if in.Key == nil {
		return fmt.Errorf("missing key")
	}
	rec := Record{Command: *in.Command, Key: *in.Key}
	if rec.Command == CommandSet {
		if in.Value == nil {
			return fmt.Errorf("set record without value")
		}
		var v Value
		if err := json.Unmarshal(in.Value, &v); err != nil {
			if !errors.Is(err, ErrUnsupportedValueType) {
				return err
			}
			rec.raw = append(json.RawMessage(nil), in.Value...)
		} else {
			rec.Value = v
		}
	}
	*r = rec
	return nil
}
