// Package wine holds the record model for the indexed relation and the
// source catalog that feeds INC commands: a CSV reader plus a pre-pass
// that sorts the dataset by harvest year into a fixed-width binary file
// served by binary search.
package wine

import (
	"fmt"
	"strings"

	"github.com/talDoFlemis/YggdrasilVinum/pkg/dberror"
)

// Type is the wine color variant.
type Type uint8

const (
	Red Type = iota
	White
	Rose
)

// String returns the canonical lowercase source-catalog spelling. On
// disk the type is stored as its single-byte value, not as this text.
func (t Type) String() string {
	switch t {
	case Red:
		return "tinto"
	case White:
		return "branco"
	case Rose:
		return "rose"
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// ParseType accepts the source catalog spellings, including the
// accented rosé form.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tinto":
		return Red, nil
	case "branco":
		return White, nil
	case "rose", "rosé":
		return Rose, nil
	}
	return 0, dberror.New(dberror.CategoryUser, dberror.CodeParse,
		"unknown wine type").WithDetail("%q", s)
}

// Record is one tuple of the wine relation.
type Record struct {
	WineID      int32
	Label       string
	HarvestYear int32
	Type        Type
}

// Validate enforces the relation's invariants: non-blank label and a
// positive harvest year.
func (r Record) Validate() error {
	if strings.TrimSpace(r.Label) == "" {
		return dberror.New(dberror.CategoryUser, dberror.CodeParse,
			"wine label must not be empty or whitespace").WithDetail("wine_id=%d", r.WineID)
	}
	if r.HarvestYear <= 0 {
		return dberror.New(dberror.CategoryUser, dberror.CodeParse,
			"harvest year must be positive").WithDetail("wine_id=%d year=%d", r.WineID, r.HarvestYear)
	}
	return nil
}

func (r Record) String() string {
	return fmt.Sprintf("Wine(id=%d, label=%q, year=%d, type=%s)",
		r.WineID, r.Label, r.HarvestYear, r.Type)
}
