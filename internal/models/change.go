package models

import "fmt"

// Change is one entry of an update ledger. Values are display forms.
type Change struct {
	Field       string `json:"field"`
	OldValue    string `json:"old_value"`
	NewValue    string `json:"new_value"`
	Description string `json:"description,omitempty"`
}

// String describes the change for summaries.
func (c Change) String() string {
	if c.Description != "" {
		return c.Description
	}
	return fmt.Sprintf("changed field '%s' from '%s' to '%s'", c.Field, c.OldValue, c.NewValue)
}
