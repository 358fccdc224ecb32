package extract

import (
	"errors"
	"testing"
)

const judgment = `{
  "world_changes": {
    "facts": "The granaries are full.",
    "npc_perspective": "The steward bows."
  },
  "financial_evaluation": {
    "estimated_cost": 250,
    "money_multiplier_change": "0.05",
    "notes": null
  }
}`

func TestStripFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "json tag", input: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "upper case tag", input: "```JSON\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "python tag", input: "```python\n{\"a\":1}```", want: `{"a":1}`},
		{name: "empty tag", input: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "prose around block", input: "Here you go:\n```json\n{\"a\":1}\n```\nEnjoy.", want: `{"a":1}`},
		{name: "unterminated fence", input: "```json\n{\"a\":1}", want: `{"a":1}`},
		{name: "no fence", input: "  {\"a\":1}  ", want: `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFences(tt.input); got != tt.want {
				t.Errorf("StripFences(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFieldFencedMatchesUnwrapped(t *testing.T) {
	paths := [][]string{
		{"world_changes", "facts"},
		{"world_changes", "npc_perspective"},
		{"financial_evaluation", "estimated_cost"},
		{"financial_evaluation", "money_multiplier_change"},
	}
	fenced := "```json\n" + judgment + "\n```"

	for _, path := range paths {
		plain, err := Field(judgment, path...)
		if err != nil {
			t.Fatalf("unwrapped %v: %v", path, err)
		}
		wrapped, err := Field(fenced, path...)
		if err != nil {
			t.Fatalf("fenced %v: %v", path, err)
		}
		if plain != wrapped {
			t.Fatalf("path %v: fenced %+v differs from unwrapped %+v", path, wrapped, plain)
		}
	}
}

func TestFieldLeafValues(t *testing.T) {
	t.Run("string", func(t *testing.T) {
		v, err := Field(judgment, "world_changes", "facts")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		s, ok := v.AsString()
		if !ok || s != "The granaries are full." {
			t.Fatalf("unexpected value: %+v", v)
		}
	})

	t.Run("number keeps literal", func(t *testing.T) {
		v, err := Field(judgment, "financial_evaluation", "estimated_cost")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v.Kind() != KindNumber || v.Text() != "250" {
			t.Fatalf("unexpected value: %+v", v)
		}
	})

	t.Run("numeric string is not coerced", func(t *testing.T) {
		v, err := Field(judgment, "financial_evaluation", "money_multiplier_change")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v.Kind() != KindString || v.Text() != "0.05" {
			t.Fatalf("unexpected value: %+v", v)
		}
	})

	t.Run("null", func(t *testing.T) {
		v, err := Field(judgment, "financial_evaluation", "notes")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !v.IsNull() {
			t.Fatalf("expected null, got %+v", v)
		}
	})

	t.Run("subtree", func(t *testing.T) {
		v, err := Field(judgment, "world_changes")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v.Kind() != KindObject {
			t.Fatalf("expected object, got %s", v.Kind())
		}
	})
}

func TestFieldFailures(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		_, err := Field("   \n", "world_changes", "facts")
		if !errors.Is(err, ErrEmptyInput) {
			t.Fatalf("expected ErrEmptyInput, got %v", err)
		}
	})

	t.Run("fence with nothing inside", func(t *testing.T) {
		_, err := Field("```json\n```", "world_changes", "facts")
		if !errors.Is(err, ErrEmptyInput) {
			t.Fatalf("expected ErrEmptyInput, got %v", err)
		}
	})

	t.Run("not a document", func(t *testing.T) {
		raw := "I am sorry, I cannot evaluate that initiative."
		_, err := Field(raw, "financial_evaluation", "estimated_cost")
		if !errors.Is(err, ErrMalformedDocument) {
			t.Fatalf("expected ErrMalformedDocument, got %v", err)
		}
		if errors.Is(err, ErrFieldNotFound) {
			t.Fatalf("malformed document must not look like a missing field")
		}
		var malformed *MalformedError
		if !errors.As(err, &malformed) || malformed.Raw != raw {
			t.Fatalf("expected raw reply to be preserved, got %v", err)
		}
	})

	t.Run("missing leaf", func(t *testing.T) {
		raw := `{"financial_evaluation": {"money_multiplier_change": 0.1}}`
		_, err := Field(raw, "financial_evaluation", "estimated_cost")
		if !errors.Is(err, ErrFieldNotFound) {
			t.Fatalf("expected ErrFieldNotFound, got %v", err)
		}
		var notFound *FieldNotFoundError
		if !errors.As(err, &notFound) || notFound.Segment != "estimated_cost" {
			t.Fatalf("expected failing segment estimated_cost, got %v", err)
		}
	})

	t.Run("missing parent", func(t *testing.T) {
		_, err := Field(`{"world_changes": {}}`, "financial_evaluation", "estimated_cost")
		var notFound *FieldNotFoundError
		if !errors.As(err, &notFound) || notFound.Segment != "financial_evaluation" {
			t.Fatalf("expected failing segment financial_evaluation, got %v", err)
		}
	})

	t.Run("descend through scalar", func(t *testing.T) {
		_, err := Field(`{"world_changes": "none"}`, "world_changes", "facts")
		if !errors.Is(err, ErrFieldNotFound) {
			t.Fatalf("expected ErrFieldNotFound, got %v", err)
		}
	})

	t.Run("empty path", func(t *testing.T) {
		if _, err := Field(judgment); !errors.Is(err, ErrEmptyPath) {
			t.Fatalf("expected ErrEmptyPath, got %v", err)
		}
	})
}

func TestLookupLiteralKeys(t *testing.T) {
	doc, err := Parse(`{"a.b": {"c*": 1}, "dup": 1, "dup": 2}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	v, err := doc.Lookup("a.b", "c*")
	if err != nil || v.Text() != "1" {
		t.Fatalf("expected literal key lookup, got %+v, %v", v, err)
	}
	v, err = doc.Lookup("dup")
	if err != nil || v.Text() != "2" {
		t.Fatalf("expected last duplicate to win, got %+v, %v", v, err)
	}
}
