package quiz

import (
	"fmt"
	"strings"
)

// SupportedVersion is the only quiz file version accepted by the loader.
const SupportedVersion = 3

var (
	topLevelKeys = []string{"$schema", "title", "description", "version", "color", "table", "patterns"}
	patternKeys  = []string{"id", "label", "description", "tokens", "tips", "filter"}
	tipKeys      = []string{"id", "label", "tokens"}

	legacyTopLevel = []string{"imports", "dataSets", "questionRules", "modes"}
	legacyPattern  = []string{"questionFormat", "tokensFromData", "entityFilter", "matchingSpec"}
)

// BuildDefinition validates a decoded quiz file (the encoding/json data
// model) and builds its Definition. Nothing is returned unless every check
// passes. fileKey namespaces dataset, pattern and mode ids.
func BuildDefinition(raw any, fileKey string) (*Definition, error) {
	var root path
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, root.errorf("quiz file must be an object")
	}

	for _, k := range legacyTopLevel {
		if _, ok := obj[k]; ok {
			return nil, root.key(k).errorf("%q is not supported in version %d quiz files", k, SupportedVersion)
		}
	}
	if err := checkVersion(obj); err != nil {
		return nil, err
	}
	if err := validateSchema(raw); err != nil {
		return nil, err
	}
	if err := checkKeys(obj, root, topLevelKeys...); err != nil {
		return nil, err
	}

	title, err := requireString(obj, "title", root)
	if err != nil {
		return nil, err
	}
	description, err := requireString(obj, "description", root)
	if err != nil {
		return nil, err
	}
	color, err := optionalString(obj, "color", root)
	if err != nil {
		return nil, err
	}

	rows, err := buildTable(obj["table"], root.key("table"))
	if err != nil {
		return nil, err
	}
	dsID := "file:" + fileKey
	patterns, err := buildPatterns(obj["patterns"], root.key("patterns"), fileKey, dsID)
	if err != nil {
		return nil, err
	}

	def := &Definition{
		Meta: Meta{
			ID:          fileKey,
			Title:       strings.TrimSpace(title),
			Description: strings.TrimSpace(description),
			Version:     SupportedVersion,
			Color:       color,
		},
		DataSets: map[string]*DataSet{dsID: NewDataSet(dsID, rows)},
		Patterns: patterns,
		Modes:    deriveModes(fileKey, patterns),
	}
	if err := def.Check(); err != nil {
		return nil, fmt.Errorf("build definition: %w", err)
	}
	return def, nil
}

func checkVersion(obj map[string]any) error {
	at := path{"version"}
	v, ok := obj["version"].(float64)
	if !ok {
		return &ValidationError{Path: at.String(), Message: fmt.Sprintf("version must be %d", SupportedVersion),
			Err: ErrUnsupportedVersion, steps: at}
	}
	if v != SupportedVersion {
		return &ValidationError{Path: at.String(),
			Message: fmt.Sprintf("unsupported version %v (expected %d)", v, SupportedVersion),
			Err:     ErrUnsupportedVersion, steps: at}
	}
	return nil
}

func buildTable(v any, at path) ([]Row, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, at.errorf("table must be an array of objects")
	}
	rows := make([]Row, 0, len(items))
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		rowAt := at.index(i)
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, rowAt.errorf("row must be an object")
		}
		id, err := requireString(obj, "id", rowAt)
		if err != nil {
			return nil, err
		}
		if seen[id] {
			return nil, rowAt.key("id").errorf("row id %q is duplicated", id)
		}
		seen[id] = true
		rows = append(rows, Row(obj))
	}
	return rows, nil
}

func buildPatterns(v any, at path, fileKey, dsID string) ([]*Pattern, error) {
	items, ok := v.([]any)
	if !ok || len(items) == 0 {
		return nil, at.errorf("at least one pattern is required")
	}
	patterns := make([]*Pattern, 0, len(items))
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		p, err := buildPattern(item, at.index(i), i, fileKey, dsID)
		if err != nil {
			return nil, err
		}
		if seen[p.LocalID] {
			return nil, at.index(i).key("id").errorf("pattern id %q is duplicated", p.LocalID)
		}
		seen[p.LocalID] = true
		patterns = append(patterns, p)
	}
	return patterns, nil
}

func buildPattern(v any, at path, index int, fileKey, dsID string) (*Pattern, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, at.errorf("pattern must be an object")
	}
	for _, k := range legacyPattern {
		if _, ok := obj[k]; ok {
			return nil, at.key(k).errorf("%q is no longer supported", k)
		}
	}
	if err := checkKeys(obj, at, patternKeys...); err != nil {
		return nil, err
	}

	localID, err := optionalString(obj, "id", at)
	if err != nil {
		return nil, err
	}
	localID = strings.TrimSpace(localID)
	if localID == "" {
		localID = fmt.Sprintf("p_%d", index)
	}
	label, err := optionalString(obj, "label", at)
	if err != nil {
		return nil, err
	}
	description, err := optionalString(obj, "description", at)
	if err != nil {
		return nil, err
	}

	hides := 0
	tokens, err := decodeTokenList(obj["tokens"], at.key("tokens"), tokenContext{allowHide: true, hides: &hides})
	if err != nil {
		return nil, err
	}
	if hides != 1 {
		return nil, at.key("tokens").errorf("pattern must contain exactly one hide token (found %d)", hides)
	}

	tips, err := buildTips(obj["tips"], at.key("tips"))
	if err != nil {
		return nil, err
	}

	var filter *Filter
	if raw, ok := obj["filter"]; ok {
		if filter, err = decodeFilter(raw, at.key("filter")); err != nil {
			return nil, err
		}
	}

	if label == "" {
		label = localID
	}
	return &Pattern{
		ID:          fileKey + "::" + localID,
		LocalID:     localID,
		Label:       label,
		Description: description,
		DataSet:     dsID,
		Tokens:      tokens,
		Tips:        tips,
		Filter:      filter,
	}, nil
}

func buildTips(v any, at path) ([]Tip, error) {
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, at.errorf("tips must be an array")
	}
	tips := make([]Tip, 0, len(items))
	for i, item := range items {
		tipAt := at.index(i)
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, tipAt.errorf("tip must be an object")
		}
		if err := checkKeys(obj, tipAt, tipKeys...); err != nil {
			return nil, err
		}
		id, err := optionalString(obj, "id", tipAt)
		if err != nil {
			return nil, err
		}
		label, err := optionalString(obj, "label", tipAt)
		if err != nil {
			return nil, err
		}
		hides := 0
		ctx := tokenContext{allowHide: false, hideNote: "hide tokens are not allowed in tips", hides: &hides}
		tokens, err := decodeTokenList(obj["tokens"], tipAt.key("tokens"), ctx)
		if err != nil {
			return nil, err
		}
		tips = append(tips, Tip{ID: id, Label: label, Tokens: tokens})
	}
	return tips, nil
}

// deriveModes builds the "all patterns" mode and one singleton mode per
// pattern.
func deriveModes(fileKey string, patterns []*Pattern) []*Mode {
	all := &Mode{ID: fileKey + "::all", Label: "All patterns"}
	modes := []*Mode{all}
	for _, p := range patterns {
		all.PatternWeights = append(all.PatternWeights, PatternWeight{PatternID: p.ID, Weight: 1})
		modes = append(modes, &Mode{
			ID:             SingletonModeID(p),
			Label:          p.Label,
			PatternWeights: []PatternWeight{{PatternID: p.ID, Weight: 1}},
		})
	}
	return modes
}

// SingletonModeID is the id of the mode that practices only p.
func SingletonModeID(p *Pattern) string {
	key, _, _ := strings.Cut(p.ID, "::")
	return key + "::only::" + p.LocalID
}
