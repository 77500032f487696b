package vision

import (
	"testing"
)

type scorePayload struct {
	Overall int    `json:"overall"`
	Notes   string `json:"notes"`
}

func TestParse_DirectJSON(t *testing.T) {
	result := Parse[scorePayload](`{"overall": 72, "notes": "close"}`, "test")

	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}
	if result.Data.Overall != 72 || result.Data.Notes != "close" {
		t.Errorf("data = %+v", result.Data)
	}
}

func TestParse_EmptyInput(t *testing.T) {
	result := Parse[scorePayload]("", "test")
	if result.Success {
		t.Fatal("empty input must fail")
	}
}

func TestParse_CodeFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"json fence", "```json\n{\"overall\": 50}\n```"},
		{"bare fence", "```\n{\"overall\": 50}\n```"},
		{"fence with preamble", "Here are the scores:\n```json\n{\"overall\": 50}\n```\nHope that helps!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Parse[scorePayload](tt.input, "test")
			if !result.Success {
				t.Fatalf("parse failed: %s", result.Error)
			}
			if result.Data.Overall != 50 {
				t.Errorf("overall = %d, want 50", result.Data.Overall)
			}
		})
	}
}

func TestParse_TrailingCommasAndUnquotedKeys(t *testing.T) {
	result := Parse[scorePayload](`{overall: 61, notes: "ok",}`, "test")
	if !result.Success {
		t.Fatalf("parse failed: %s", result.Error)
	}
	if result.Data.Overall != 61 {
		t.Errorf("overall = %d, want 61", result.Data.Overall)
	}
}

func TestParse_ObjectEmbeddedInProse(t *testing.T) {
	input := `Looking at the image carefully, {"overall": 44, "notes": "drifting"} would be my verdict.`

	result := Parse[scorePayload](input, "test")
	if !result.Success {
		t.Fatalf("parse failed: %s", result.Error)
	}
	if result.Data.Overall != 44 {
		t.Errorf("overall = %d, want 44", result.Data.Overall)
	}
}

func TestParse_PureProseFails(t *testing.T) {
	result := Parse[scorePayload]("The style is quite painterly with warm light.", "critique")
	if result.Success {
		t.Fatal("prose without JSON must fail")
	}
	if result.OriginalText == "" {
		t.Error("failure must carry the original text for diagnostics")
	}
}

func TestParse_ArrayPayload(t *testing.T) {
	result := Parse[[]int]("```json\n[1, 2, 3]\n```", "test")
	if !result.Success {
		t.Fatalf("parse failed: %s", result.Error)
	}
	if len(result.Data) != 3 || result.Data[2] != 3 {
		t.Errorf("data = %v", result.Data)
	}
}

func TestParseOrDefault(t *testing.T) {
	fallback := scorePayload{Overall: 50}

	got := ParseOrDefault("no json here", fallback, "test")
	if got.Overall != 50 {
		t.Errorf("fallback not used: %+v", got)
	}

	got = ParseOrDefault(`{"overall": 90}`, fallback, "test")
	if got.Overall != 90 {
		t.Errorf("valid input ignored: %+v", got)
	}
}
