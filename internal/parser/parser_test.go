package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Document
	}{
		{
			name: "frontmatter title",
			in:   "---\ntitle: Hello\ntags: [a]\n---\n\n# Heading\nWorld\n",
			want: Document{Title: "Hello", Body: "# Heading\nWorld"},
		},
		{
			name: "leading h1",
			in:   "# Groceries\n\n- milk\n- eggs\n",
			want: Document{Title: "Groceries", Body: "- milk\n- eggs"},
		},
		{
			name: "no title",
			in:   "just text\n## sub\n",
			want: Document{Body: "just text\n## sub"},
		},
		{
			name: "crlf",
			in:   "# T\r\nline\r\n",
			want: Document{Title: "T", Body: "line"},
		},
		{
			name: "invalid yaml falls back to body",
			in:   "---\n: [broken\n---\nbody",
			want: Document{Body: "---\n: [broken\n---\nbody"},
		},
		{
			name: "unclosed frontmatter",
			in:   "---\ntitle: x\nbody",
			want: Document{Body: "---\ntitle: x\nbody"},
		},
		{
			name: "divider is not frontmatter",
			in:   "----\ntext",
			want: Document{Body: "----\ntext"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Parse([]byte(tt.in))); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
