package annotation

import (
	"encoding/json"
	"fmt"
)

// Editability is the permission tier of an annotation.
type Editability string

const (
	// EditDisabled permits no edits at all.
	EditDisabled Editability = "disabled"
	// EditStructural permits move, rotate and remove but not text edits.
	EditStructural Editability = "structural-only"
	// EditFull additionally permits free text editing.
	EditFull Editability = "full"
)

// Normalize maps the zero value to EditFull, the default for new annotations.
func (e Editability) Normalize() Editability {
	if e == "" {
		return EditFull
	}
	return e
}

// Valid reports whether e is one of the known tiers (or the zero value).
func (e Editability) Valid() bool {
	switch e {
	case "", EditDisabled, EditStructural, EditFull:
		return true
	}
	return false
}

// CanEditStructure reports whether move, rotate and remove are allowed.
func (e Editability) CanEditStructure() bool {
	n := e.Normalize()
	return n == EditStructural || n == EditFull
}

// CanEditText reports whether free text editing is allowed.
func (e Editability) CanEditText() bool {
	return e.Normalize() == EditFull
}

func (e Editability) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(e.Normalize()))
}

// UnmarshalJSON accepts the tier names and the legacy booleans
// (true for full, false for disabled).
func (e *Editability) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*e = EditFull
		} else {
			*e = EditDisabled
		}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("editable: %w", ErrInvalidInput)
	}
	v := Editability(s)
	if !v.Valid() {
		return fmt.Errorf("editable %q: %w", s, ErrInvalidInput)
	}
	*e = v.Normalize()
	return nil
}
