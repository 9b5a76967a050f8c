package content

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Segment
	}{
		{"empty", "", []Segment{}},
		{"plain", "hello", []Segment{Plain{Text: "hello"}}},
		{
			"ruby",
			"[漢字/かんじ]です",
			[]Segment{
				Annotated{Base: []Segment{Plain{Text: "漢字"}}, Reading: "かんじ"},
				Plain{Text: "です"},
			},
		},
		{"ruby without slash", "[NoSlash]", []Segment{Plain{Text: "[NoSlash]"}}},
		{"extra slashes join reading", "[a/b/c]", []Segment{
			Annotated{Base: []Segment{Plain{Text: "a"}}, Reading: "b/c"},
		}},
		{"unterminated ruby", "x[a/b", []Segment{Plain{Text: "x[a/b"}}},
		{"unterminated gloss keeps rest literal", "{a [b/c]", []Segment{Plain{Text: "{a [b/c]"}}},
		{"stray closers", "a]b}c/d", []Segment{Plain{Text: "a]b}c/d"}}},
		{"escaped specials", `\[a\/b\]`, []Segment{Plain{Text: "[a/b]"}}},
		{"backslash before ordinary char", `a\b`, []Segment{Plain{Text: `a\b`}}},
		{"escaped backslash", `a\\b`, []Segment{Plain{Text: `a\b`}}},
		{"even backslash run leaves ruby active", `\\[a/b]`, []Segment{
			Plain{Text: `\`}, Annotated{Base: []Segment{Plain{Text: "a"}}, Reading: "b"},
		}},
		{"odd backslash run escapes bracket", `\\\[a/b]`, []Segment{Plain{Text: `\[a/b]`}}},
		{"unterminated ruby keeps escapes", `x[a\/b\]`, []Segment{Plain{Text: `x[a\/b\]`}}},
		{"unterminated gloss keeps escapes", `{a\}b`, []Segment{Plain{Text: `{a\}b`}}},
		{"gloss no alternates", "{Solo}", []Segment{
			Gloss{Base: []Segment{Plain{Text: "Solo"}}, Glosses: [][]Segment{}},
		}},
		{
			"gloss with ruby",
			"A{[Base/Read]/[Alt/AltRead]/Alt2}C",
			[]Segment{
				Plain{Text: "A"},
				Gloss{
					Base: []Segment{Annotated{Base: []Segment{Plain{Text: "Base"}}, Reading: "Read"}},
					Glosses: [][]Segment{
						{Annotated{Base: []Segment{Plain{Text: "Alt"}}, Reading: "AltRead"}},
						{Plain{Text: "Alt2"}},
					},
				},
				Plain{Text: "C"},
			},
		},
		{"nested gloss is literal", "{a{b}}", []Segment{
			Plain{Text: "{a"},
			Gloss{Base: []Segment{Plain{Text: "b"}}, Glosses: [][]Segment{}},
			Plain{Text: "}"},
		}},
		{"inline math", "x $a+b$ y", []Segment{
			Plain{Text: "x "}, Math{TeX: "a+b"}, Plain{Text: " y"},
		}},
		{"display math", "$$\\frac{1}{2}$$", []Segment{Math{TeX: `\frac{1}{2}`, Display: true}}},
		{"escaped dollar", `cost \$5`, []Segment{Plain{Text: `cost \$5`}}},
		{"dollar inside ruby is not math", "[$x/$y]", []Segment{
			Annotated{Base: []Segment{Plain{Text: "$x"}}, Reading: "$y"},
		}},
		{"unclosed math", "a $b", []Segment{Plain{Text: "a $b"}}},
		{"line break", "a\nb", []Segment{Plain{Text: "a"}, Escape{Text: "\n"}, Plain{Text: "b"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.in)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q)\n got: %#v\nwant: %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParse_Total(t *testing.T) {
	inputs := []string{
		"[", "{", "]", "}", "/", "$", "$$", `\`, `\\`, "[{", "{[", "[/]", "{/}",
		"{[a/b}", "[a{b/c}]", "$$$", "$[$]$", "{a/[b/c]/[d}", `\$\$`, "\n\n",
	}
	for _, in := range inputs {
		first := PlainText(Parse(in))
		second := PlainText(Parse(in))
		if first != second {
			t.Errorf("flattening %q not stable: %q vs %q", in, first, second)
		}
	}
}

func TestParse_AdjacentPlainMerged(t *testing.T) {
	for _, in := range []string{"a[b]c", "x{y", "p]q[r"} {
		segs := Parse(in)
		for i := 1; i < len(segs); i++ {
			_, prevPlain := segs[i-1].(Plain)
			_, curPlain := segs[i].(Plain)
			if prevPlain && curPlain {
				t.Errorf("Parse(%q) has adjacent Plain segments: %#v", in, segs)
			}
		}
	}
}
