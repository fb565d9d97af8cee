package codec

import (
	"regexp"
	"strings"
)

var (
	openFenceRe  = regexp.MustCompile("^\\s*```\\s*([^`]*?)\\s*$")
	closeFenceRe = regexp.MustCompile("^\\s*```\\s*$")
	headingRe    = regexp.MustCompile(`^(#+)\s+(.*\S)\s*$`)
	bulletRe     = regexp.MustCompile(`^\s*- (.*)$`)
	dividerRe    = regexp.MustCompile(`^\s*(?:-{3,}|\*{3,}|_{3,})\s*$`)
)

// Encode parses body into blocks. It never fails: anything it cannot
// classify, including an unterminated code fence, becomes paragraph text.
func Encode(body string) []Block {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	lines := strings.Split(body, "\n")

	var (
		blocks []Block
		para   []string
	)
	flush := func() {
		if len(para) > 0 {
			blocks = append(blocks, Para(strings.Join(para, "\n")))
			para = nil
		}
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if m := openFenceRe.FindStringSubmatch(line); m != nil {
			end := closingFence(lines, i+1)
			if end < 0 {
				para = append(para, line)
				continue
			}
			flush()
			blocks = append(blocks, CodeBlock(m[1], strings.Join(lines[i+1:end], "\n")))
			i = end
			continue
		}

		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		// Divider before headings and bullets.
		if dividerRe.MatchString(line) {
			flush()
			blocks = append(blocks, Rule())
			continue
		}
		if m := headingRe.FindStringSubmatch(line); m != nil {
			flush()
			blocks = append(blocks, H(len(m[1]), m[2]))
			continue
		}
		if m := bulletRe.FindStringSubmatch(line); m != nil {
			flush()
			blocks = append(blocks, Item(m[1]))
			continue
		}
		para = append(para, line)
	}
	flush()
	return blocks
}

func closingFence(lines []string, from int) int {
	for j := from; j < len(lines); j++ {
		if closeFenceRe.MatchString(lines[j]) {
			return j
		}
	}
	return -1
}

// Decode renders blocks back into markup. Blocks of unknown kind and empty
// paragraphs or headings are dropped.
func Decode(blocks []Block) string {
	var b strings.Builder
	prev := Kind(-1)
	for _, blk := range blocks {
		s, ok := render(blk)
		if !ok {
			continue
		}
		if b.Len() > 0 {
			if prev == BulletedItem && blk.Kind == BulletedItem {
				b.WriteString("\n")
			} else {
				b.WriteString("\n\n")
			}
		}
		b.WriteString(s)
		prev = blk.Kind
	}
	return b.String()
}

func render(blk Block) (string, bool) {
	switch blk.Kind {
	case Paragraph:
		if strings.TrimSpace(blk.Text) == "" {
			return "", false
		}
		return blk.Text, true
	case Heading:
		text := strings.TrimSpace(blk.Text)
		if text == "" {
			return "", false
		}
		return strings.Repeat("#", clampLevel(blk.Level)) + " " + text, true
	case BulletedItem:
		return "- " + blk.Text, true
	case Code:
		fence := "```"
		if lang := NormalizeLanguage(blk.Language); lang != PlainText {
			fence += lang
		}
		if blk.Text == "" {
			return fence + "\n```", true
		}
		return fence + "\n" + blk.Text + "\n```", true
	case Divider:
		return "---", true
	default:
		return "", false
	}
}
