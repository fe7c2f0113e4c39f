// Package bag models the shopper's bag and its serialized snapshot.
//
// A snapshot maps product ids to either a bare quantity or a per-size
// breakdown:
//
//	{"<product_id>": 2}
//	{"<product_id>": {"items_by_size": {"m": 1, "l": 3}}}
//
// The shape is decided once at parse time and carried as an Entry kind.
package bag

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	pkgerrors "github.com/angelmondragon/boutique-checkout/pkg/errors"
)

type EntryKind int

const (
	EntrySimple EntryKind = iota + 1
	EntryBySize
)

func (k EntryKind) String() string {
	switch k {
	case EntrySimple:
		return "simple"
	case EntryBySize:
		return "by_size"
	default:
		return "unknown"
	}
}

// Entry is one product's slot in the bag.
type Entry struct {
	Kind     EntryKind
	Quantity int
	BySize   map[string]int
}

// Simple builds a size-less entry.
func Simple(quantity int) Entry {
	return Entry{Kind: EntrySimple, Quantity: quantity}
}

// BySize builds a size-keyed entry.
func BySize(sizes map[string]int) Entry {
	copied := make(map[string]int, len(sizes))
	for size, qty := range sizes {
		copied[size] = qty
	}
	return Entry{Kind: EntryBySize, BySize: copied}
}

// Count returns the number of units the entry holds.
func (e Entry) Count() int {
	if e.Kind == EntrySimple {
		return e.Quantity
	}
	total := 0
	for _, qty := range e.BySize {
		total += qty
	}
	return total
}

type sizedWire struct {
	ItemsBySize map[string]json.Number `json:"items_by_size"`
}

func (e Entry) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case EntrySimple:
		return json.Marshal(e.Quantity)
	case EntryBySize:
		return json.Marshal(struct {
			ItemsBySize map[string]int `json:"items_by_size"`
		}{ItemsBySize: e.BySize})
	default:
		return nil, fmt.Errorf("bag entry has no kind")
	}
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty bag entry")
	}

	if trimmed[0] == '{' {
		var wire sizedWire
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		dec.DisallowUnknownFields()
		if err := dec.Decode(&wire); err != nil {
			return fmt.Errorf("sized entry: %w", err)
		}
		if len(wire.ItemsBySize) == 0 {
			return fmt.Errorf("items_by_size is empty")
		}
		sizes := make(map[string]int, len(wire.ItemsBySize))
		for size, raw := range wire.ItemsBySize {
			if strings.TrimSpace(size) == "" {
				return fmt.Errorf("blank size key")
			}
			qty, err := parseQuantity(raw)
			if err != nil {
				return fmt.Errorf("size %q: %w", size, err)
			}
			sizes[size] = qty
		}
		*e = Entry{Kind: EntryBySize, BySize: sizes}
		return nil
	}

	var raw json.Number
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("quantity: %w", err)
	}
	qty, err := parseQuantity(raw)
	if err != nil {
		return err
	}
	*e = Entry{Kind: EntrySimple, Quantity: qty}
	return nil
}

func parseQuantity(raw json.Number) (int, error) {
	n, err := raw.Int64()
	if err != nil {
		return 0, fmt.Errorf("quantity %q is not an integer", raw.String())
	}
	if n <= 0 {
		return 0, fmt.Errorf("quantity %d must be positive", n)
	}
	return int(n), nil
}

// Snapshot is the bag keyed by product id.
type Snapshot map[string]Entry

// Line is one (product, size) pairing of a snapshot.
type Line struct {
	ProductID string
	Size      *string
	Quantity  int
}

// Parse reads a serialized snapshot. A blank string is an empty bag.
func Parse(raw string) (Snapshot, error) {
	if strings.TrimSpace(raw) == "" {
		return Snapshot{}, nil
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed bag snapshot")
	}
	if snap == nil {
		snap = Snapshot{}
	}
	for productID := range snap {
		if strings.TrimSpace(productID) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "bag snapshot has a blank product id")
		}
	}
	return snap, nil
}

// Marshal serializes the snapshot with sorted keys at every level, so equal
// snapshots always produce identical bytes.
func (s Snapshot) Marshal() (string, error) {
	if s == nil {
		s = Snapshot{}
	}
	out, err := json.Marshal(map[string]Entry(s))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "serialize bag snapshot")
	}
	return string(out), nil
}

// IsEmpty reports whether the bag holds nothing.
func (s Snapshot) IsEmpty() bool {
	return len(s) == 0
}

// ProductIDs returns the product ids in sorted order.
func (s Snapshot) ProductIDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Lines flattens the snapshot into one line per (product, size), sorted by
// product id then size.
func (s Snapshot) Lines() []Line {
	lines := make([]Line, 0, len(s))
	for _, productID := range s.ProductIDs() {
		entry := s[productID]
		switch entry.Kind {
		case EntrySimple:
			lines = append(lines, Line{ProductID: productID, Quantity: entry.Quantity})
		case EntryBySize:
			sizes := make([]string, 0, len(entry.BySize))
			for size := range entry.BySize {
				sizes = append(sizes, size)
			}
			sort.Strings(sizes)
			for _, size := range sizes {
				size := size
				lines = append(lines, Line{ProductID: productID, Size: &size, Quantity: entry.BySize[size]})
			}
		}
	}
	return lines
}

// Count returns the number of units in the bag.
func (s Snapshot) Count() int {
	total := 0
	for _, entry := range s {
		total += entry.Count()
	}
	return total
}
