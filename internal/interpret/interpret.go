// Package interpret decides whether a backend reply selects tasks or is
// plain prose.
//
// The backend is a natural-language system and cannot be trusted to always
// emit well-formed structure, so extraction is a deliberate best-effort
// pattern match: one search for the TASK_IDS marker, and any parse failure
// degrades to the text path rather than erroring the request.
package interpret

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/vku/taskchat/internal/models"
)

// taskIDsPattern matches the structured selection marker, e.g.
// TASK_IDS:[1, 3, 5]. Only the first occurrence is considered.
var taskIDsPattern = regexp.MustCompile(`TASK_IDS:\[(.*?)\]`)

// Interpret classifies a backend reply. A parsed id list is resolved
// against tasks in source order; ids with no matching record are dropped
// silently. Everything else comes back as the reply text verbatim.
func Interpret(reply string, tasks []models.Task) models.SelectionResult {
	match := taskIDsPattern.FindStringSubmatch(reply)
	if match == nil {
		return models.TextReply(reply)
	}

	ids, ok := parseIDList(match[1])
	if !ok {
		return models.TextReply(reply)
	}

	selected := make(map[int64]bool, len(ids))
	for _, id := range ids {
		selected[id] = true
	}

	resolved := make([]models.Task, 0, len(ids))
	for _, task := range tasks {
		if selected[task.ID] {
			resolved = append(resolved, task)
		}
	}
	return models.StructuredSelection(resolved)
}

// parseIDList parses comma-separated integers. Blank segments are skipped;
// any non-integer segment invalidates the whole list.
func parseIDList(s string) ([]int64, bool) {
	var ids []int64
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}
