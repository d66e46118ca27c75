package mcpserver

// LinkFormatContract describes how wikilinks are matched and rewritten, for
// LLM consumers that author or preview entries.
const LinkFormatContract = `# Wikilink Format Contract

## Syntax

Write ` + "`[[reference]]`" + ` anywhere in an entry. The reference is the target entry's
file name without its extension: ` + "`[[hello-world]]`" + ` links to ` + "`posts/hello-world.md`" + `.

## Matching

1. Matching is exact and case-sensitive. Spaces and punctuation are not normalised.
2. Directories are ignored; only the file name (minus extension) is compared.
3. If two entries share a name, the one listed first (by path) wins.
4. A reference cannot span lines.

## Output

- Matched: ` + "`[reference](<prefix>/<name>)`" + `. ` + "`<prefix>`" + ` is the configured path
  prefix, or ` + "`.`" + ` when none is set (giving ` + "`./<name>`" + `).
- ` + "`<name>`" + ` is the target's front-matter ` + "`slug`" + ` when it declares a non-empty
  string slug, otherwise the target's file name with spaces written as ` + "`%20`" + `.
- Unmatched: ` + "`[reference](/blog/)`" + `. This is not an error.
- The link text is always the reference exactly as written.

## Front matter

` + "```" + `markdown
---
slug: my-post
---
` + "```" + `

Only ` + "`slug`" + ` is read. Malformed YAML is ignored and the file name is used instead.
`
