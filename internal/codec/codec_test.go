package codec

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []Block
	}{
		{"empty", "", nil},
		{"blank lines only", "\n\n  \n", nil},
		{"single bullet", "- buy milk", []Block{Item("buy milk")}},
		{"indented bullet", "   - eggs", []Block{Item("eggs")}},
		{"headings", "# One\n## Two\n### Three", []Block{H(1, "One"), H(2, "Two"), H(3, "Three")}},
		{"deep heading collapses", "###### Deep", []Block{H(3, "Deep")}},
		{"hash without space is text", "#hashtag", []Block{Para("#hashtag")}},
		{"paragraph lines join", "line one\nline two\n\nnext", []Block{Para("line one\nline two"), Para("next")}},
		{"dividers", "---\n***\n___", []Block{Rule(), Rule(), Rule()}},
		{
			"code with language",
			"```go\nfmt.Println(1)\n```",
			[]Block{{Kind: Code, Language: "go", Text: "fmt.Println(1)"}},
		},
		{
			"code without language",
			"```\nls -la\n```",
			[]Block{{Kind: Code, Language: PlainText, Text: "ls -la"}},
		},
		{
			"code alias",
			"```sh\necho hi\n```",
			[]Block{{Kind: Code, Language: "shell", Text: "echo hi"}},
		},
		{
			"code keeps markup inside",
			"```\n# not a heading\n- not an item\n```",
			[]Block{{Kind: Code, Language: PlainText, Text: "# not a heading\n- not an item"}},
		},
		{
			"unterminated fence is paragraph",
			"```python\nprint(1)",
			[]Block{Para("```python\nprint(1)")},
		},
		{
			"mixed",
			"# Title\nintro\n- a\n- b\n---\n```js\nx()\n```\noutro",
			[]Block{
				H(1, "Title"),
				Para("intro"),
				Item("a"),
				Item("b"),
				Rule(),
				{Kind: Code, Language: "javascript", Text: "x()"},
				Para("outro"),
			},
		},
		{"crlf", "- a\r\n- b", []Block{Item("a"), Item("b")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Encode(tt.body)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Encode(%q) mismatch (-want +got):\n%s", tt.body, diff)
			}
		})
	}
}

func TestUnsupportedLanguageFallsBack(t *testing.T) {
	for _, tag := range []string{"brainfuck", "", "   ", "COBOL85"} {
		blocks := Encode("```" + tag + "\nx\n```")
		if len(blocks) != 1 || blocks[0].Language != PlainText {
			t.Errorf("tag %q: got %+v, want plain text code block", tag, blocks)
		}
	}
	if got := NormalizeLanguage("Python"); got != "python" {
		t.Errorf("NormalizeLanguage(Python) = %q", got)
	}
	if !SupportedLanguage("C++") || SupportedLanguage("cpp") {
		t.Error("SupportedLanguage should check the allow-list without aliases")
	}
}

func TestDecode(t *testing.T) {
	blocks := []Block{
		H(2, "Shopping"),
		Item("milk"),
		Item("eggs"),
		Para("remember the list"),
		{Kind: Code, Language: "go", Text: "go test ./..."},
		{Kind: Code, Language: PlainText, Text: ""},
		Rule(),
		Para(""),
		{Kind: Kind(99), Text: "unsupported"},
	}
	want := "## Shopping\n\n- milk\n- eggs\n\nremember the list\n\n```go\ngo test ./...\n```\n\n```\n```\n\n---"
	if got := Decode(blocks); got != want {
		t.Errorf("Decode mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestDecodeClampsHeadingLevel(t *testing.T) {
	got := Decode([]Block{{Kind: Heading, Level: 7, Text: "x"}, {Kind: Heading, Level: 0, Text: "y"}})
	if got != "### x\n\n# y" {
		t.Errorf("got %q", got)
	}
}

// Re-encoding decoded output must reproduce the same block sequence.
func TestRoundTripIsSemantic(t *testing.T) {
	bodies := []string{
		"- buy milk",
		"# T\n\npara one\npara two\n\n- a\n  - b\n\n---\n\n```ts\nconst x = 1\n\nx++\n```",
		"####   Spaced heading   \nafter heading",
		"```\n```",
		"```rust\nfn main() {}\n```\n```docker\nFROM scratch\n```",
		"text\n```\nunterminated",
		"- \n- trailing space item  ",
		"***\nplain",
	}
	for _, body := range bodies {
		first := Encode(body)
		second := Encode(Decode(first))
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("round trip of %q changed blocks (-first +second):\n%s", body, diff)
		}
	}
}
