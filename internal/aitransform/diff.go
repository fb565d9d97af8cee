package aitransform

import (
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	OpenMarker  = "[EDITED]"
	CloseMarker = "[/EDITED]"
)

// maxGapRunes is the longest unchanged run, without a line break, that is
// folded into the surrounding edit instead of splitting it in two.
const maxGapRunes = 3

type segment struct {
	edited bool
	text   string // inserted text for edited segments
}

// MarkEdits returns next with every span of text that is new relative to
// prev wrapped in OpenMarker/CloseMarker.
//
// Markers only ever wrap text present in next. A pure deletion, or an edit
// whose inserted text is whitespace, leaves no marker: the model is asked to
// rewrite marked text and there is nothing left to rewrite at that point.
// A deletion adjacent to an insertion is folded into the insertion's span.
func MarkEdits(prev, next string) string {
	if prev == next {
		return next
	}
	if prev == "" {
		return OpenMarker + next + CloseMarker
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(prev, next, true)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var segs []segment
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			segs = append(segs, segment{text: d.Text})
		case diffmatchpatch.DiffInsert:
			segs = appendEdit(segs, d.Text)
		case diffmatchpatch.DiffDelete:
			segs = appendEdit(segs, "")
		}
	}
	segs = foldGaps(segs)

	var b strings.Builder
	for _, s := range segs {
		switch {
		case !s.edited:
			b.WriteString(s.text)
		case strings.TrimSpace(s.text) != "":
			b.WriteString(OpenMarker)
			b.WriteString(s.text)
			b.WriteString(CloseMarker)
		default:
			b.WriteString(s.text)
		}
	}
	return b.String()
}

func appendEdit(segs []segment, text string) []segment {
	if n := len(segs); n > 0 && segs[n-1].edited {
		segs[n-1].text += text
		return segs
	}
	return append(segs, segment{edited: true, text: text})
}

// foldGaps merges edit, short gap, edit into a single edit.
func foldGaps(segs []segment) []segment {
	out := make([]segment, 0, len(segs))
	for i := 0; i < len(segs); i++ {
		s := segs[i]
		if !s.edited && len(out) > 0 && out[len(out)-1].edited &&
			i+1 < len(segs) && segs[i+1].edited && shortGap(s.text) {
			out[len(out)-1].text += s.text + segs[i+1].text
			i++
			continue
		}
		out = append(out, s)
	}
	return out
}

func shortGap(s string) bool {
	return utf8.RuneCountInString(s) <= maxGapRunes && !strings.Contains(s, "\n")
}

// StripMarkers removes any edit markers left in generated text.
func StripMarkers(s string) string {
	return strings.NewReplacer(OpenMarker, "", CloseMarker, "").Replace(s)
}
