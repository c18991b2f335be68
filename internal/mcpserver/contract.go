package mcpserver

// WikilinkSyntax describes how note titles and wiki-links behave, for LLM
// clients that create or edit notes.
const WikilinkSyntax = `# Notegraph Notes and Wiki-links

A note is a title plus free text content. Links between notes are not stored
separately by clients: they are derived from the content every time it is saved.

## Titles

1. A title is required and must not be blank.
2. At most 255 characters, on a single line (no line breaks).
3. Titles are unique among live notes and match exactly (case-sensitive).

## Wiki-links

- Write ` + "`[[Title]]`" + ` anywhere in the content to link to the note with that title.
- Whitespace inside the brackets is trimmed: ` + "`[[ Project X ]]`" + ` links to "Project X".
- The target runs up to the first ` + "`]]`" + `; a target cannot contain ` + "`]`" + `.
- Repeating a link has no extra effect; a note never links to itself.
- A link to a title that does not exist yet is kept in the text but creates no
  edge. The edge appears once the target exists and the linking note is saved
  again (or the graph is reconciled).
- Removing a link from the text removes the edge on the next save.

## Search

- A single word matches as a prefix: ` + "`not`" + ` finds "notebook".
- Several words must all match; they are not prefix-expanded.
- Wrap a phrase in double quotes to match it exactly.
`
