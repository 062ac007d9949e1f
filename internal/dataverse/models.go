package dataverse

import (
	"encoding/json"
)

// Source field names of the ticket entity.
const (
	FieldTicketID        = "cr42f_ticketid_pk"
	FieldAffectedAsset   = "cr42f_affectedasset"
	FieldLastUpdated     = "cr42f_lastupdated"
	FieldStatus          = "cr42f_status"
	FieldResolutionNotes = "cr42f_resolutionnotesnew"
	FieldGUID            = "cr42f_ticketid"
)

// Record is one ticket as returned by the Web API, keyed by field name.
type Record map[string]any

// Value returns the field as a database/sql argument. Missing fields and
// nulls are nil, numbers keep their literal text and nested objects or
// arrays become compact JSON.
func (r Record) Value(field string) any {
	v, ok := r[field]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case json.Number:
		return t.String()
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return nil
		}
		return string(b)
	default:
		return t
	}
}

// Key returns the primary key identifier and whether it is present.
func (r Record) Key(field string) (any, bool) {
	v := r.Value(field)
	if v == nil {
		return nil, false
	}
	if s, ok := v.(string); ok && s == "" {
		return nil, false
	}
	return v, true
}
