package notion

import (
	"github.com/jomei/notionapi"

	"github.com/starford/scraps/internal/codec"
)

// maxRichTextRunes is the remote limit on a single rich text segment.
const maxRichTextRunes = 2000

// toNotion converts codec blocks into request blocks.
func toNotion(blocks []codec.Block) []notionapi.Block {
	out := make([]notionapi.Block, 0, len(blocks))
	for _, b := range blocks {
		switch b.Kind {
		case codec.Paragraph:
			out = append(out, &notionapi.ParagraphBlock{
				BasicBlock: basic(notionapi.BlockTypeParagraph),
				Paragraph:  notionapi.Paragraph{RichText: richText(b.Text)},
			})
		case codec.Heading:
			h := notionapi.Heading{RichText: richText(b.Text)}
			switch b.Level {
			case 1:
				out = append(out, &notionapi.Heading1Block{BasicBlock: basic(notionapi.BlockTypeHeading1), Heading1: h})
			case 2:
				out = append(out, &notionapi.Heading2Block{BasicBlock: basic(notionapi.BlockTypeHeading2), Heading2: h})
			default:
				out = append(out, &notionapi.Heading3Block{BasicBlock: basic(notionapi.BlockTypeHeading3), Heading3: h})
			}
		case codec.BulletedItem:
			out = append(out, &notionapi.BulletedListItemBlock{
				BasicBlock:       basic(notionapi.BlockTypeBulletedListItem),
				BulletedListItem: notionapi.ListItem{RichText: richText(b.Text)},
			})
		case codec.Code:
			out = append(out, &notionapi.CodeBlock{
				BasicBlock: basic(notionapi.BlockTypeCode),
				Code: notionapi.Code{
					RichText: richText(b.Text),
					Language: codec.NormalizeLanguage(b.Language),
				},
			})
		case codec.Divider:
			out = append(out, &notionapi.DividerBlock{
				BasicBlock: basic(notionapi.BlockTypeDivider),
				Divider:    notionapi.Divider{},
			})
		}
	}
	return out
}

func basic(t notionapi.BlockType) notionapi.BasicBlock {
	return notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: t}
}

// richText splits s into segments that fit the per-segment limit.
func richText(s string) []notionapi.RichText {
	if s == "" {
		return []notionapi.RichText{}
	}
	runes := []rune(s)
	out := make([]notionapi.RichText, 0, len(runes)/maxRichTextRunes+1)
	for len(runes) > 0 {
		n := min(len(runes), maxRichTextRunes)
		out = append(out, notionapi.RichText{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: string(runes[:n])},
		})
		runes = runes[n:]
	}
	return out
}

// plainText concatenates the text of rich text segments.
func plainText(rt []notionapi.RichText) string {
	var s string
	for _, t := range rt {
		switch {
		case t.PlainText != "":
			s += t.PlainText
		case t.Text != nil:
			s += t.Text.Content
		}
	}
	return s
}

// fromNotion converts a fetched block into a codec block. Block types the
// codec does not model report ok=false and are dropped by the caller.
func fromNotion(b notionapi.Block) (codec.Block, bool) {
	switch v := b.(type) {
	case *notionapi.ParagraphBlock:
		return codec.Para(plainText(v.Paragraph.RichText)), true
	case *notionapi.Heading1Block:
		return codec.H(1, plainText(v.Heading1.RichText)), true
	case *notionapi.Heading2Block:
		return codec.H(2, plainText(v.Heading2.RichText)), true
	case *notionapi.Heading3Block:
		return codec.H(3, plainText(v.Heading3.RichText)), true
	case *notionapi.BulletedListItemBlock:
		return codec.Item(plainText(v.BulletedListItem.RichText)), true
	case *notionapi.CodeBlock:
		return codec.CodeBlock(v.Code.Language, plainText(v.Code.RichText)), true
	case *notionapi.DividerBlock:
		return codec.Rule(), true
	default:
		return codec.Block{}, false
	}
}
