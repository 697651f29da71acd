// Package transcript assembles the conversation submitted to the AI backend.
//
// The first turn of every conversation is a persona turn that defines the
// assistant's behavior and embeds the caller's task data as a text table.
// On later exchanges only the data table is refreshed, and only when it has
// actually changed, so the persona block is never re-sent.
package transcript

import (
	"fmt"
	"strings"

	"github.com/vku/taskchat/internal/models"
)

// PersonaMarker identifies the persona turn. A history whose first turn
// contains it is considered already initialized.
const PersonaMarker = "# ROLE"

// descriptionPrefixLen bounds the description column so one long task does
// not dominate the context.
const descriptionPrefixLen = 30

// RenderTable renders tasks as the fixed-column text table the persona turn
// embeds. Zero tasks renders a header with no rows.
func RenderTable(tasks []models.Task) string {
	var b strings.Builder
	b.WriteString("ID | Title | Description | Status | Deadline | Assigned User | AllowUpdate | Created\n")
	b.WriteString(strings.Repeat("-", 100))
	b.WriteString("\n")

	for _, t := range tasks {
		desc := t.Description
		if runes := []rune(desc); len(runes) > descriptionPrefixLen {
			desc = string(runes[:descriptionPrefixLen])
		}
		fmt.Fprintf(&b, "%d | %s | %s | %s | %s | %s | %t | %s\n",
			t.ID, t.Title, desc, t.Status, t.Deadline,
			t.AssignedFullName, t.AllowUserUpdate,
			t.CreatedAt.Format("2006-01-02T15:04:05"))
	}
	return b.String()
}

// Prepare folds the freshly rendered task data into the caller's history and
// returns the transcript to dispatch. The input slice is never mutated.
//
// Uninitialized history (empty, or first turn lacking the persona marker)
// gets a synthesized persona turn prepended. Initialized history gets a
// compact data-refresh turn inserted at position 1, and only when the
// rendered table occurs nowhere in the existing turns.
func Prepare(history []models.Turn, tasks []models.Task) []models.Turn {
	table := RenderTable(tasks)

	if len(history) == 0 || !strings.Contains(history[0].Text, PersonaMarker) {
		out := make([]models.Turn, 0, len(history)+1)
		out = append(out, models.Turn{Role: models.RoleUser, Text: personaPrompt(table)})
		out = append(out, history...)
		return out
	}

	if containsText(history, table) {
		return history
	}

	// Insert right after the persona turn so fresh data stays near the top.
	refresh := models.Turn{
		Role: models.RoleUser,
		Text: "# UPDATED TASK DATA\n```\n" + table + "```",
	}
	out := make([]models.Turn, 0, len(history)+1)
	out = append(out, history[0], refresh)
	out = append(out, history[1:]...)
	return out
}

// containsText reports whether any turn's text contains s.
func containsText(history []models.Turn, s string) bool {
	for _, turn := range history {
		if strings.Contains(turn.Text, s) {
			return true
		}
	}
	return false
}

// personaPrompt builds the full role-definition turn around a rendered data
// table.
func personaPrompt(table string) string {
	return PersonaMarker + `
You are **TaskManagement Assistant**, an expert in task management who
analyzes the caller's task data and gives practical, optimized advice.

# GOALS
- **Search & Filter**: identify exactly the tasks matching the caller's
  request (by assignee, status, deadline, keyword)
- **Advise**: suggest how to manage work, prioritize tasks, allocate time
- **Analyze**: summarize and assess the state of the caller's workload

# TASK FIELDS
- **ID**: task identifier
- **Title**: task title
- **Description**: detailed description
- **Status**: one of OPEN, IN_PROGRESS, DONE, CANCELED
- **Deadline**: due date
- **Assigned User**: who the task is assigned to
- **AllowUpdate**: whether the assignee may update the task
- **Created**: creation timestamp

# RESPONSE FORMATS

## 1. Requests to FIND/LIST/FILTER specific tasks:
**Mandatory format**: ` + "`TASK_IDS:[1,2,3,5]`" + `
Analyze the data table, filter the matching ids, and reply with the
TASK_IDS list and nothing else.

## 2. Requests for ADVICE/EXPLANATION/ANALYSIS:
**Format**: plain, friendly prose, kept short (2-4 sentences), grounded in
the data below when relevant.

# RULES
1. Do NOT answer questions unrelated to task management.
2. ONLY use the data from the table below; never invent tasks.
3. If nothing matches, say so clearly and suggest another way to search.
4. When filtering, prefer precision: return only ids that truly match.

# TASK DATA
` + "```\n" + table + "```" + `

---
Analyze the caller's request carefully and pick the matching response format.
`
}
