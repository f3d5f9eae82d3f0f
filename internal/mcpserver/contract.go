package mcpserver

// ReferenceSyntaxContract describes the reference tag forms embedded in
// prompt text and the sidecar naming convention, for LLM consumers that
// read or edit prompts.
const ReferenceSyntaxContract = `# Raido Reference Syntax Contract

History prompts embed references to library assets in two forms. Tools that
read or rewrite prompt text MUST handle both.

## Parameterized tag

` + "```" + `
<lora:Name:weight>
` + "```" + `

- ` + "`" + `Name` + "`" + ` is the asset's display name: its filename without extension.
  It may contain spaces but no unescaped ` + "`" + `:` + "`" + ` or ` + "`" + `>` + "`" + `.
- ` + "`" + `weight` + "`" + ` is a decimal number, optionally signed (` + "`" + `0.8` + "`" + `, ` + "`" + `-0.5` + "`" + `, ` + "`" + `1` + "`" + `).
- Example: ` + "`" + `<lora:my_character_v2:0.8>` + "`" + `

A tag that is unterminated or carries a non-numeric weight is malformed. It
is left untouched by rewrites and reported as a warning; it never fails
parsing of the rest of the prompt.

## Bare trigger form

An embedding asset's display name appearing as a standalone token in the
prompt, matched case-sensitively against the library index. A name inside a
parameterized tag is never also counted as a trigger.

## Rules

1. **Names track filenames.** Renaming an asset file changes every
   reference's name; weights and surrounding text are preserved byte for
   byte.
2. **Matching is case-sensitive.** ` + "`" + `MyChar` + "`" + ` and ` + "`" + `mychar` + "`" + ` are different names.
3. **Zero matches is a valid outcome.** A prompt without references to a
   renamed asset is simply left alone.

## Sidecar naming convention

Companion files live next to the asset as ` + "`" + `<asset-base-name><suffix>` + "`" + `,
with suffixes drawn from a configurable registry:

- previews: ` + "`" + `.preview.png` + "`" + `, ` + "`" + `.png` + "`" + `, ` + "`" + `.jpg` + "`" + `, ` + "`" + `.jpeg` + "`" + `
- metadata: ` + "`" + `.json` + "`" + `, ` + "`" + `.model.json` + "`" + `
- info: ` + "`" + `.civitai.info` + "`" + `
- other: ` + "`" + `.txt` + "`" + `, ` + "`" + `.yaml` + "`" + `

Sidecars are renamed in lockstep with their asset; metadata JSON fields that
embed the asset's own filename are patched to the new name.
`
