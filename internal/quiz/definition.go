package quiz

import (
	"fmt"
	"strings"
)

// Row is one table entry. Every row has a unique string "id".
type Row map[string]any

// ID returns the row id.
func (r Row) ID() string {
	id, _ := r["id"].(string)
	return id
}

// String returns the field as a string when it holds one.
func (r Row) String(field string) string {
	s, _ := r[field].(string)
	return s
}

// ConceptID identifies the concept a row teaches: its "conceptId" field when
// present, otherwise the row id.
func (r Row) ConceptID() string {
	if c, ok := r["conceptId"].(string); ok && c != "" {
		return c
	}
	return r.ID()
}

// DataSet is the table of one quiz file.
type DataSet struct {
	ID    string
	Rows  []Row
	index map[string]int
}

// NewDataSet builds a DataSet with a row index.
func NewDataSet(id string, rows []Row) *DataSet {
	ds := &DataSet{ID: id, Rows: rows, index: make(map[string]int, len(rows))}
	for i, r := range rows {
		ds.index[r.ID()] = i
	}
	return ds
}

// Row returns the row with the given id.
func (ds *DataSet) Row(id string) (Row, bool) {
	i, ok := ds.index[id]
	if !ok {
		return nil, false
	}
	return ds.Rows[i], true
}

// Tip is supplementary content shown after answering.
type Tip struct {
	ID     string `json:"id,omitempty"`
	Label  string `json:"label,omitempty"`
	Tokens Tokens `json:"tokens"`
}

// Pattern is a question template bound to a dataset.
type Pattern struct {
	ID          string
	LocalID     string
	Label       string
	Description string
	DataSet     string
	Tokens      Tokens
	Tips        []Tip
	Filter      *Filter
}

// Hide returns the pattern's answer slot.
func (p *Pattern) Hide() (Hide, bool) {
	for _, t := range p.Tokens {
		if h, ok := t.(Hide); ok {
			return h, true
		}
	}
	return Hide{}, false
}

// PatternWeight is one entry of a mode's weight table.
type PatternWeight struct {
	PatternID string
	Weight    float64
}

// Mode is a named weighted subset of patterns.
type Mode struct {
	ID             string
	Label          string
	PatternWeights []PatternWeight
}

// Meta describes the quiz as a whole.
type Meta struct {
	ID          string
	Title       string
	Description string
	Version     int
	Color       string
}

// Definition is a loaded quiz ready for question generation.
type Definition struct {
	Meta     Meta
	DataSets map[string]*DataSet
	Patterns []*Pattern
	Modes    []*Mode
}

// Pattern returns the pattern with the given id.
func (d *Definition) Pattern(id string) *Pattern {
	for _, p := range d.Patterns {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Mode returns the mode with the given id.
func (d *Definition) Mode(id string) *Mode {
	for _, m := range d.Modes {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// ResolvePatternID accepts a full pattern id or a file-local id.
func (d *Definition) ResolvePatternID(ref string) (string, bool) {
	if p := d.Pattern(ref); p != nil {
		return p.ID, true
	}
	var found string
	for _, p := range d.Patterns {
		if p.LocalID == ref {
			if found != "" {
				return "", false
			}
			found = p.ID
		}
	}
	return found, found != ""
}

// Check verifies cross references: each pattern's dataset exists and every
// mode references known patterns.
func (d *Definition) Check() error {
	for _, p := range d.Patterns {
		if _, ok := d.DataSets[p.DataSet]; !ok {
			return fmt.Errorf("pattern %q references unknown dataset %q", p.ID, p.DataSet)
		}
	}
	for _, m := range d.Modes {
		for _, w := range m.PatternWeights {
			if d.Pattern(w.PatternID) == nil {
				return fmt.Errorf("mode %q references unknown pattern %q", m.ID, w.PatternID)
			}
		}
	}
	return nil
}

// Merge combines definitions loaded from several files. The result has an
// "all" mode over every pattern followed by the modes of each input.
func Merge(defs ...*Definition) (*Definition, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("merge definitions: nothing to merge")
	}
	if len(defs) == 1 {
		return defs[0], nil
	}
	out := &Definition{DataSets: make(map[string]*DataSet)}
	var ids, titles []string
	seenPattern := make(map[string]bool)
	seenMode := make(map[string]bool)
	all := &Mode{ID: "all", Label: "All patterns"}

	for _, d := range defs {
		ids = append(ids, d.Meta.ID)
		titles = append(titles, d.Meta.Title)
		for id, ds := range d.DataSets {
			if _, dup := out.DataSets[id]; dup {
				return nil, fmt.Errorf("merge definitions: dataset %q is duplicated", id)
			}
			out.DataSets[id] = ds
		}
		for _, p := range d.Patterns {
			if seenPattern[p.ID] {
				return nil, fmt.Errorf("merge definitions: pattern %q is duplicated", p.ID)
			}
			seenPattern[p.ID] = true
			out.Patterns = append(out.Patterns, p)
			all.PatternWeights = append(all.PatternWeights, PatternWeight{PatternID: p.ID, Weight: 1})
		}
		for _, m := range d.Modes {
			if seenMode[m.ID] {
				return nil, fmt.Errorf("merge definitions: mode %q is duplicated", m.ID)
			}
			seenMode[m.ID] = true
		}
	}
	out.Modes = append(out.Modes, all)
	for _, d := range defs {
		out.Modes = append(out.Modes, d.Modes...)
	}
	out.Meta = Meta{
		ID:      strings.Join(ids, "+"),
		Title:   strings.Join(titles, " / "),
		Version: defs[0].Meta.Version,
	}
	if err := out.Check(); err != nil {
		return nil, fmt.Errorf("merge definitions: %w", err)
	}
	return out, nil
}
