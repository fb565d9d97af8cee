package mcpserver

// NoteFormatURI is the resource URI of NoteFormatContract.
const NoteFormatURI = "scraps://note-format"

// NoteFormatContract describes the Markdown subset that survives a round
// trip through the remote store.
const NoteFormatContract = `# Scraps Note Format

A note is a title plus a Markdown body. Only the constructs below are kept
when the note is synced; everything else becomes plain paragraph text.

## Supported blocks

- Headings: ` + "`# `" + `, ` + "`## `" + `, ` + "`### `" + `. Deeper levels are written as level 3.
- Bulleted items: a line starting with ` + "`- `" + `.
- Fenced code blocks with an optional language tag. Unknown languages
  are stored as plain text.
- Dividers: a line of three or more ` + "`-`" + `, ` + "`*`" + ` or ` + "`_`" + `.
- Paragraphs: consecutive lines separated from other blocks by a blank line.

## Rules

1. Numbered lists, quotes, tables, images and inline HTML are not synced
   as structure.
2. An empty title is sent as "Untitled".
3. When AI rewriting is enabled, the body may be rewritten on the next
   sync. Read the note again after sync_now before editing it further.
4. Update with the checksum returned by read_note to avoid overwriting a
   concurrent edit.
`
