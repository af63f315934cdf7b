package mcpserver

// TaskFormatContract describes the task line and day-note conventions
// that LLM consumers should follow when writing through the MCP tools.
const TaskFormatContract = `# Daybook Task Format Contract

Tasks live inside note bodies as Markdown checklist lines. The server
parses them back out, so the syntax below MUST be followed exactly.

## Task lines

` + "```" + `markdown
- [ ] an open task
- [x] a completed task
- [ ] a task on a kanban board #doing
` + "```" + `

## Rules

1. **Checkbox first.** Every task line starts with ` + "`" + `- [ ]` + "`" + ` or ` + "`" + `- [x]` + "`" + `
   (lowercase x, single space inside the brackets).
2. **Completion is the checkbox.** Mark a task done by replacing ` + "`" + `[ ]` + "`" + ` with
   ` + "`" + `[x]` + "`" + `; never delete the line.
3. **Kanban column** is an optional trailing ` + "`" + `#column` + "`" + ` marker. The column name
   must match one of the configured board columns.
4. **Update via save_task.** Send the FULL task line as ` + "`" + `name` + "`" + `, checkbox and
   column marker included, together with the task ` + "`" + `uuid` + "`" + `.

## Day notes

- One note per day; fetch it with the ` + "`" + `day_note` + "`" + ` tool.
- Dates are written MM-dd-yyyy (e.g. ` + "`" + `03-15-2026` + "`" + `), matching the
  calendar routes of the app.
- Day note bodies are standard Markdown; task lines inside them follow the
  rules above.
`
