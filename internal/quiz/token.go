package quiz

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TokenType is the discriminator of a token.
type TokenType string

const (
	TypeText    TokenType = "text"
	TypeKey     TokenType = "key"
	TypeListKey TokenType = "listkey"
	TypeRuby    TokenType = "ruby"
	TypeKatex   TokenType = "katex"
	TypeSmiles  TokenType = "smiles"
	TypeHide    TokenType = "hide"
	TypeBreak   TokenType = "br"
	TypeRule    TokenType = "hr"
)

// AnswerModeChoice is the only supported hide answer mode.
const AnswerModeChoice = "choice_from_entities"

// Token is one element of a pattern template. Implementations: Text, Key,
// ListKey, Ruby, Katex, Smiles, Hide, Break and Rule.
type Token interface {
	Type() TokenType
	isToken()
}

// Text is literal content markup. In files it is written as a bare string.
type Text struct {
	Value string
}

// Key renders a row field.
type Key struct {
	Field  string
	Styles []string
}

// ListKey renders a field holding a list of token arrays.
type ListKey struct {
	Field     string
	Separator string
	Styles    []string
}

// Ruby annotates Base with Reading.
type Ruby struct {
	Base    Tokens
	Reading Tokens
	Styles  []string
}

// Katex is a TeX formula given inline (Value) or read from a row field.
type Katex struct {
	Value string
	Field string
}

// Smiles is a chemical structure string given inline or read from a field.
type Smiles struct {
	Value string
	Field string
}

// Hide is the answer slot of a pattern.
type Hide struct {
	ID     string
	Value  Tokens
	Answer Answer
	Styles []string
}

// Answer configures how a hide slot is asked.
type Answer struct {
	Mode             string
	DistractorSource *DistractorSource
}

// DistractorSource restricts which rows may serve as distractors.
type DistractorSource struct {
	GroupField string
}

// Break is a line break.
type Break struct{}

// Rule is a horizontal rule.
type Rule struct{}

func (Text) Type() TokenType    { return TypeText }
func (Key) Type() TokenType     { return TypeKey }
func (ListKey) Type() TokenType { return TypeListKey }
func (Ruby) Type() TokenType    { return TypeRuby }
func (Katex) Type() TokenType   { return TypeKatex }
func (Smiles) Type() TokenType  { return TypeSmiles }
func (Hide) Type() TokenType    { return TypeHide }
func (Break) Type() TokenType   { return TypeBreak }
func (Rule) Type() TokenType    { return TypeRule }

func (Text) isToken()    {}
func (Key) isToken()     {}
func (ListKey) isToken() {}
func (Ruby) isToken()    {}
func (Katex) isToken()   {}
func (Smiles) isToken()  {}
func (Hide) isToken()    {}
func (Break) isToken()   {}
func (Rule) isToken()    {}

// GroupField returns the distractor grouping field, or "".
func (h Hide) GroupField() string {
	if h.Answer.DistractorSource == nil {
		return ""
	}
	return h.Answer.DistractorSource.GroupField
}

// Tokens is a token list with a JSON encoding matching the quiz file format.
type Tokens []Token

func (ts Tokens) MarshalJSON() ([]byte, error) {
	return json.Marshal(encodeTokens(ts))
}

func (ts *Tokens) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	hides := 0
	toks, err := decodeTokenList(raw, nil, tokenContext{allowHide: true, hides: &hides})
	if err != nil {
		return err
	}
	*ts = toks
	return nil
}

func encodeTokens(ts Tokens) []any {
	out := make([]any, 0, len(ts))
	for _, t := range ts {
		out = append(out, encodeToken(t))
	}
	return out
}

func encodeToken(t Token) any {
	obj := map[string]any{"type": string(t.Type())}
	putStyles := func(styles []string) {
		if len(styles) > 0 {
			obj["styles"] = styles
		}
	}
	switch tok := t.(type) {
	case Text:
		return tok.Value
	case Key:
		obj["field"] = tok.Field
		putStyles(tok.Styles)
	case ListKey:
		obj["field"] = tok.Field
		if tok.Separator != "" {
			obj["separator"] = tok.Separator
		}
		putStyles(tok.Styles)
	case Ruby:
		obj["base"] = encodeTokens(tok.Base)
		obj["ruby"] = encodeTokens(tok.Reading)
		putStyles(tok.Styles)
	case Katex:
		putSource(obj, tok.Value, tok.Field)
	case Smiles:
		putSource(obj, tok.Value, tok.Field)
	case Hide:
		if tok.ID != "" {
			obj["id"] = tok.ID
		}
		obj["value"] = encodeTokens(tok.Value)
		answer := map[string]any{"mode": tok.Answer.Mode}
		if ds := tok.Answer.DistractorSource; ds != nil {
			src := map[string]any{}
			if ds.GroupField != "" {
				src["groupField"] = ds.GroupField
			}
			answer["distractorSource"] = src
		}
		obj["answer"] = answer
		putStyles(tok.Styles)
	}
	return obj
}

func putSource(obj map[string]any, value, field string) {
	if field != "" {
		obj["field"] = field
		return
	}
	obj["value"] = value
}

// tokenContext carries grammar restrictions down the token tree.
type tokenContext struct {
	allowHide bool
	hideNote  string
	hides     *int
}

func (c tokenContext) noHide(note string) tokenContext {
	return tokenContext{allowHide: false, hideNote: note, hides: c.hides}
}

// decodeTokenList decodes a token array.
func decodeTokenList(v any, at path, ctx tokenContext) (Tokens, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, at.errorf("expected an array of tokens")
	}
	out := make(Tokens, 0, len(items))
	for i, item := range items {
		tok, err := decodeToken(item, at.index(i), ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
	}
	return out, nil
}

// decodeTokenValue accepts a single token, a string, or a token array.
func decodeTokenValue(v any, at path, ctx tokenContext) (Tokens, error) {
	if _, ok := v.([]any); ok {
		return decodeTokenList(v, at, ctx)
	}
	tok, err := decodeToken(v, at, ctx)
	if err != nil {
		return nil, err
	}
	return Tokens{tok}, nil
}

func decodeToken(v any, at path, ctx tokenContext) (Token, error) {
	if s, ok := v.(string); ok {
		return Text{Value: s}, nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, at.errorf("token must be a string or an object with a type")
	}
	typ, _ := obj["type"].(string)
	switch TokenType(typ) {
	case TypeKey:
		if err := checkKeys(obj, at, "type", "field", "styles"); err != nil {
			return nil, err
		}
		field, err := requireString(obj, "field", at)
		if err != nil {
			return nil, err
		}
		styles, err := decodeStyles(obj, at)
		if err != nil {
			return nil, err
		}
		return Key{Field: field, Styles: styles}, nil

	case TypeListKey:
		if err := checkKeys(obj, at, "type", "field", "separator", "styles"); err != nil {
			return nil, err
		}
		field, err := requireString(obj, "field", at)
		if err != nil {
			return nil, err
		}
		sep, err := optionalString(obj, "separator", at)
		if err != nil {
			return nil, err
		}
		styles, err := decodeStyles(obj, at)
		if err != nil {
			return nil, err
		}
		return ListKey{Field: field, Separator: sep, Styles: styles}, nil

	case TypeRuby:
		if err := checkKeys(obj, at, "type", "base", "ruby", "styles"); err != nil {
			return nil, err
		}
		inner := ctx.noHide("hide tokens are not allowed inside ruby")
		if _, ok := obj["base"]; !ok {
			return nil, at.errorf("ruby token requires \"base\"")
		}
		if _, ok := obj["ruby"]; !ok {
			return nil, at.errorf("ruby token requires \"ruby\"")
		}
		base, err := decodeTokenValue(obj["base"], at.key("base"), inner)
		if err != nil {
			return nil, err
		}
		reading, err := decodeTokenValue(obj["ruby"], at.key("ruby"), inner)
		if err != nil {
			return nil, err
		}
		styles, err := decodeStyles(obj, at)
		if err != nil {
			return nil, err
		}
		return Ruby{Base: base, Reading: reading, Styles: styles}, nil

	case TypeKatex, TypeSmiles:
		if err := checkKeys(obj, at, "type", "value", "field"); err != nil {
			return nil, err
		}
		value, err := optionalString(obj, "value", at)
		if err != nil {
			return nil, err
		}
		field, err := optionalString(obj, "field", at)
		if err != nil {
			return nil, err
		}
		if (value == "") == (field == "") {
			return nil, at.errorf("%s token requires exactly one of \"value\" or \"field\"", typ)
		}
		if TokenType(typ) == TypeKatex {
			return Katex{Value: value, Field: field}, nil
		}
		return Smiles{Value: value, Field: field}, nil

	case TypeHide:
		if !ctx.allowHide {
			return nil, at.errorf("%s", ctx.hideNote)
		}
		if err := checkKeys(obj, at, "type", "id", "value", "answer", "styles"); err != nil {
			return nil, err
		}
		id, err := optionalString(obj, "id", at)
		if err != nil {
			return nil, err
		}
		if _, ok := obj["value"]; !ok {
			return nil, at.errorf("hide token requires \"value\"")
		}
		value, err := decodeTokenValue(obj["value"], at.key("value"), ctx.noHide("hide tokens cannot be nested"))
		if err != nil {
			return nil, err
		}
		answer, err := decodeAnswer(obj["answer"], at.key("answer"))
		if err != nil {
			return nil, err
		}
		styles, err := decodeStyles(obj, at)
		if err != nil {
			return nil, err
		}
		if ctx.hides != nil {
			*ctx.hides++
		}
		return Hide{ID: id, Value: value, Answer: answer, Styles: styles}, nil

	case TypeBreak:
		if err := checkKeys(obj, at, "type"); err != nil {
			return nil, err
		}
		return Break{}, nil

	case TypeRule:
		if err := checkKeys(obj, at, "type"); err != nil {
			return nil, err
		}
		return Rule{}, nil
	}
	if typ == "" {
		return nil, at.errorf("token object requires a \"type\"")
	}
	return nil, at.errorf("unknown token type %q", typ)
}

func decodeAnswer(v any, at path) (Answer, error) {
	if v == nil {
		return Answer{}, at.errorf("hide token requires \"answer\"")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return Answer{}, at.errorf("answer must be an object")
	}
	if err := checkKeys(obj, at, "mode", "distractorSource"); err != nil {
		return Answer{}, err
	}
	mode, _ := obj["mode"].(string)
	if mode != AnswerModeChoice {
		return Answer{}, at.key("mode").errorf("answer mode must be %q", AnswerModeChoice)
	}
	ans := Answer{Mode: mode}
	raw, ok := obj["distractorSource"]
	if !ok {
		return ans, nil
	}
	srcAt := at.key("distractorSource")
	src, ok := raw.(map[string]any)
	if !ok {
		return Answer{}, srcAt.errorf("distractorSource must be an object")
	}
	if err := checkKeys(src, srcAt, "groupField"); err != nil {
		return Answer{}, err
	}
	group, err := optionalString(src, "groupField", srcAt)
	if err != nil {
		return Answer{}, err
	}
	ans.DistractorSource = &DistractorSource{GroupField: group}
	return ans, nil
}

func decodeStyles(obj map[string]any, at path) ([]string, error) {
	raw, ok := obj["styles"]
	if !ok {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, at.key("styles").errorf("styles must be an array of strings")
	}
	styles := make([]string, 0, len(items))
	for i, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, at.key("styles").index(i).errorf("style must be a string")
		}
		styles = append(styles, s)
	}
	return styles, nil
}

// checkKeys rejects members of obj not listed in allowed.
func checkKeys(obj map[string]any, at path, allowed ...string) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !contains(allowed, k) {
			return at.key(k).errorf("unsupported property %q", k)
		}
	}
	return nil
}

func requireString(obj map[string]any, name string, at path) (string, error) {
	s, ok := obj[name].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", at.key(name).errorf("%q must be a non-empty string", name)
	}
	return s, nil
}

func optionalString(obj map[string]any, name string, at path) (string, error) {
	raw, ok := obj[name]
	if !ok {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", at.key(name).errorf("%q must be a string", name)
	}
	return s, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// valueTokens converts a row field value into tokens without validation.
// Strings become Text, arrays are converted element-wise and typed objects
// are decoded when well-formed.
func valueTokens(v any) Tokens {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return Tokens{Text{Value: x}}
	case []any:
		var out Tokens
		for _, item := range x {
			out = append(out, valueTokens(item)...)
		}
		return out
	case map[string]any:
		tok, err := decodeToken(x, nil, tokenContext{hideNote: "hide tokens are not allowed in row data"})
		if err != nil {
			return nil
		}
		return Tokens{tok}
	default:
		return Tokens{Text{Value: formatScalar(x)}}
	}
}

func formatScalar(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
