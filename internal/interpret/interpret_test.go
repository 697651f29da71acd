package interpret

import (
	"testing"

	"github.com/vku/taskchat/internal/models"
)

func tasksByID(ids ...int64) []models.Task {
	tasks := make([]models.Task, 0, len(ids))
	for _, id := range ids {
		tasks = append(tasks, models.Task{ID: id})
	}
	return tasks
}

func TestInterpret_Structured(t *testing.T) {
	result := Interpret("TASK_IDS:[1,3]", tasksByID(1, 2, 3))

	if !result.IsStructured {
		t.Fatal("Expected structured result")
	}
	if len(result.Tasks) != 2 {
		t.Fatalf("Expected 2 tasks, got %d", len(result.Tasks))
	}
	if result.Tasks[0].ID != 1 || result.Tasks[1].ID != 3 {
		t.Errorf("Expected ids [1 3], got [%d %d]", result.Tasks[0].ID, result.Tasks[1].ID)
	}
}

func TestInterpret_StructuredWithSurroundingText(t *testing.T) {
	reply := "Here are the matches:\nTASK_IDS:[ 2 , 3 ]\nLet me know if you need more."
	result := Interpret(reply, tasksByID(1, 2, 3))

	if !result.IsStructured {
		t.Fatal("Expected structured result")
	}
	if len(result.Tasks) != 2 {
		t.Fatalf("Expected 2 tasks, got %d", len(result.Tasks))
	}
}

func TestInterpret_UnknownIDsDropped(t *testing.T) {
	result := Interpret("TASK_IDS:[1,99]", tasksByID(1, 2))

	if !result.IsStructured {
		t.Fatal("Expected structured result")
	}
	if len(result.Tasks) != 1 || result.Tasks[0].ID != 1 {
		t.Errorf("Expected only task 1, got %v", result.Tasks)
	}
}

func TestInterpret_EmptyList(t *testing.T) {
	result := Interpret("TASK_IDS:[]", tasksByID(1, 2))

	if !result.IsStructured {
		t.Fatal("Expected structured result for an empty selection")
	}
	if len(result.Tasks) != 0 {
		t.Errorf("Expected no tasks, got %v", result.Tasks)
	}
}

func TestInterpret_PlainText(t *testing.T) {
	reply := "You should start with the task closest to its deadline."
	result := Interpret(reply, tasksByID(1))

	if result.IsStructured {
		t.Fatal("Expected unstructured result")
	}
	if result.Reply != reply {
		t.Errorf("Expected reply returned verbatim, got %q", result.Reply)
	}
}

func TestInterpret_MalformedList(t *testing.T) {
	// The marker appears but the contents do not parse; the whole reply
	// falls back to the text path.
	reply := "TASK_IDS:[one, two]"
	result := Interpret(reply, tasksByID(1, 2))

	if result.IsStructured {
		t.Fatal("Expected unstructured result for malformed id list")
	}
	if result.Reply != reply {
		t.Errorf("Expected original text unchanged, got %q", result.Reply)
	}
}

func TestInterpret_MarkerWithoutBrackets(t *testing.T) {
	reply := "The format is TASK_IDS: followed by a list."
	result := Interpret(reply, tasksByID(1))

	if result.IsStructured {
		t.Fatal("Expected unstructured result when brackets are absent")
	}
}
