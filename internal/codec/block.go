// Package codec translates between the restricted markup used for local
// note bodies and the block sequence stored remotely.
//
// Supported markup, one construct per line:
//
//	# Heading        (1-3 '#', deeper levels collapse to 3)
//	- item           (bulleted list item)
//	```lang          (fenced code block, closed by a bare ```)
//	---              (divider; *** and ___ also accepted)
//
// Everything else is paragraph text; consecutive non-blank lines join into
// one paragraph. The translation is lossy: decoding yields semantically
// equivalent markup, not the original bytes.
package codec

// Kind enumerates the block variants the remote schema supports.
type Kind int

const (
	Paragraph Kind = iota
	Heading
	BulletedItem
	Code
	Divider
)

func (k Kind) String() string {
	switch k {
	case Paragraph:
		return "paragraph"
	case Heading:
		return "heading"
	case BulletedItem:
		return "bulleted_item"
	case Code:
		return "code"
	case Divider:
		return "divider"
	default:
		return "unknown"
	}
}

// MaxHeadingLevel is the deepest heading the remote schema supports.
const MaxHeadingLevel = 3

// Block is a single content unit. Level is set for headings only and
// Language for code blocks only.
type Block struct {
	Kind     Kind
	Level    int
	Text     string
	Language string
}

// Para returns a paragraph block.
func Para(text string) Block { return Block{Kind: Paragraph, Text: text} }

// H returns a heading block, clamping level into 1..MaxHeadingLevel.
func H(level int, text string) Block {
	return Block{Kind: Heading, Level: clampLevel(level), Text: text}
}

// Item returns a bulleted list item block.
func Item(text string) Block { return Block{Kind: BulletedItem, Text: text} }

// CodeBlock returns a code block with a normalized language tag.
func CodeBlock(language, text string) Block {
	return Block{Kind: Code, Language: NormalizeLanguage(language), Text: text}
}

// Rule returns a divider block.
func Rule() Block { return Block{Kind: Divider} }

func clampLevel(level int) int {
	if level < 1 {
		return 1
	}
	if level > MaxHeadingLevel {
		return MaxHeadingLevel
	}
	return level
}
