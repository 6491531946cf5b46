package note

import (
	"fmt"
	"strings"
)

// Category is a note category with a dedicated segmenter. Categories
// without one resolve to CategoryUnknown.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryDischargeSummary
	CategoryNursing
	CategoryEcho
	CategoryPhysician
	CategoryRadiology
	CategoryConsult
)

var categoryNames = map[Category]string{
	CategoryUnknown:          "Unknown",
	CategoryDischargeSummary: "Discharge summary",
	CategoryNursing:          "Nursing/other",
	CategoryEcho:             "Echo",
	CategoryPhysician:        "Physician",
	CategoryRadiology:        "Radiology",
	CategoryConsult:          "Consult",
}

func (c Category) String() string {
	if n, ok := categoryNames[c]; ok {
		return n
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// Categories lists the categories that have a segmenter.
func Categories() []Category {
	return []Category{
		CategoryDischargeSummary, CategoryNursing, CategoryEcho,
		CategoryPhysician, CategoryRadiology, CategoryConsult,
	}
}

func categoryKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CategoryTable maps raw noteevents category strings to a Category.
type CategoryTable map[string]Category

// DefaultCategoryTable maps each category's MIMIC-III name to itself.
func DefaultCategoryTable() CategoryTable {
	t := make(CategoryTable, len(categoryNames))
	for _, c := range Categories() {
		t[categoryKey(c.String())] = c
	}
	return t
}

// ParseCategoryTable reads "raw=Category" pairs, i.e.
// "Nursing=Nursing/other", on top of the default table.
func ParseCategoryTable(pairs []string) (CategoryTable, error) {
	t := DefaultCategoryTable()
	for _, p := range pairs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		raw, target, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("category mapping %q: expected raw=category", p)
		}
		c, ok := t[categoryKey(target)]
		if !ok {
			return nil, fmt.Errorf("category mapping %q: unknown category %q", p, target)
		}
		t[categoryKey(raw)] = c
	}
	return t, nil
}

// Lookup resolves a raw category string, returning CategoryUnknown when it
// is not mapped.
func (t CategoryTable) Lookup(raw string) Category {
	if c, ok := t[categoryKey(raw)]; ok {
		return c
	}
	return CategoryUnknown
}
