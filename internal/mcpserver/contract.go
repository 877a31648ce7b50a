package mcpserver

// DocumentFormatContract describes the canonical knowledge document format
// that LLM consumers should follow when writing sessions, plans, and
// learned patterns.
const DocumentFormatContract = `# Munin Document Format Contract

Every Markdown document in the knowledge root MUST follow this structure.

## Layout conventions

- ` + "`" + `sessions/YYYY-MM-DD-session.md` + "`" + ` — one work session per day.
- ` + "`" + `PLAN_<id>.md` + "`" + ` — a plan document; the id is the filename stem after the prefix.
- ` + "`" + `plans/` + "`" + ` — pointer files referencing plans kept elsewhere.
- ` + "`" + `learned/<category>/*.md` + "`" + ` — learned patterns, grouped by category directory.
- ` + "`" + `README.md` + "`" + ` and ` + "`" + `INDEX.md` + "`" + ` are documentation about the root and are never indexed.

## Structure

` + "```" + `markdown
---
title: Human-readable title        # recommended; falls back to the first H1
status: ACTIVE                      # plans/sessions; closed set, see below
topics:                             # YAML list; used for filtering
  - topic-one
  - topic-two
plan: auth                          # sessions only; links the session to a plan
---

Body text in standard Markdown.

## Section headings

Use "## " headings for sections; targeted mutations insert content
relative to them.
` + "```" + `

## Rules

1. **Frontmatter is optional but recommended.** When present, the ` + "`" + `---` + "`" + `
   fences must be the first thing in the file (no leading blank lines).
2. **Status** is one of: ACTIVE, PAUSED, PLANNED, COMPLETE, CANCELLED.
   Nothing else is accepted.
3. **Topics** are lowercase, kebab-case (e.g. ` + "`" + `error-handling` + "`" + `).
4. **Session dates** come from the filename prefix (YYYY-MM-DD), with a
   frontmatter ` + "`" + `date` + "`" + ` field as fallback.
5. **File paths** end with ` + "`" + `.md` + "`" + ` and use forward slashes.
6. **Encoding** is UTF-8 with a trailing newline.
7. **Prefer mutations over rewrites.** Use the update tools to add topics,
   set status, or insert content; they preserve everything else in the file.

## Example

` + "```" + `markdown
---
title: Session 2026-08-10
topics:
  - auth
  - token-rotation
plan: auth
status: ACTIVE
---

# Session 2026-08-10

Worked through refresh-token rotation.

## Decisions

- Rotate on every refresh, not on a timer.
` + "```" + `
`
