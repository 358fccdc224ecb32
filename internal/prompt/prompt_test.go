package prompt

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"testing/fstest"
)

func TestParse(t *testing.T) {
	t.Run("valid template", func(t *testing.T) {
		content := []byte("---\nname: world_change\ndescription: Judge an initiative\nmax_tokens: 900\nmodel_hint: fast\n---\n\nYear {{.Year}}: {{.Initiative}}\n")
		tmpl, err := Parse(content)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if tmpl.Name != "world_change" || tmpl.MaxTokens != 900 {
			t.Fatalf("unexpected template: %+v", tmpl)
		}
		if _, ok := tmpl.Frontmatter["model_hint"]; !ok {
			t.Fatalf("expected extra keys kept in frontmatter")
		}
		got, err := tmpl.Render(struct {
			Year       int
			Initiative string
		}{Year: -50, Initiative: "Dig canals"})
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if got != "Year -50: Dig canals" {
			t.Fatalf("unexpected render %q", got)
		}
	})

	t.Run("no frontmatter", func(t *testing.T) {
		_, err := Parse([]byte("Just text"))
		if !errors.Is(err, ErrNoFrontmatter) {
			t.Fatalf("expected ErrNoFrontmatter, got %v", err)
		}
	})

	t.Run("missing closing marker", func(t *testing.T) {
		_, err := Parse([]byte("---\nname: open\n"))
		if !errors.Is(err, ErrNoFrontmatter) {
			t.Fatalf("expected ErrNoFrontmatter, got %v", err)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := Parse([]byte("---\nname: [\n---\nbody\n"))
		if !errors.Is(err, ErrInvalidYAML) {
			t.Fatalf("expected ErrInvalidYAML, got %v", err)
		}
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := Parse([]byte("---\nmax_tokens: 10\n---\nbody\n"))
		if !errors.Is(err, ErrMissingName) {
			t.Fatalf("expected ErrMissingName, got %v", err)
		}
	})

	t.Run("empty body", func(t *testing.T) {
		_, err := Parse([]byte("---\nname: blank\n---\n\n"))
		if !errors.Is(err, ErrEmptyBody) {
			t.Fatalf("expected ErrEmptyBody, got %v", err)
		}
	})

	t.Run("missing key fails render", func(t *testing.T) {
		tmpl, err := Parse([]byte("---\nname: strict\n---\n{{.Absent}}\n"))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if _, err := tmpl.Render(map[string]any{}); err == nil {
			t.Fatalf("expected render error for missing key")
		}
	})
}

func TestLoad(t *testing.T) {
	fsys := fstest.MapFS{
		"prompts/a.md":      {Data: []byte("---\nname: alpha\n---\nA\n")},
		"prompts/b.md":      {Data: []byte("---\nname: beta\n---\nB\n")},
		"prompts/notes.txt": {Data: []byte("ignored")},
	}

	lib, err := Load(fsys, "prompts")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(lib.Names(), []string{"alpha", "beta"}) {
		t.Fatalf("unexpected names %v", lib.Names())
	}
	tmpl, err := lib.Get("beta")
	if err != nil || tmpl.SourceFile != "prompts/b.md" {
		t.Fatalf("unexpected template %+v, %v", tmpl, err)
	}
	if _, err := lib.Get("gamma"); !errors.Is(err, ErrUnknown) {
		t.Fatalf("expected ErrUnknown, got %v", err)
	}
}

func TestLoadDuplicateName(t *testing.T) {
	fsys := fstest.MapFS{
		"p/one.md": {Data: []byte("---\nname: same\n---\nA\n")},
		"p/two.md": {Data: []byte("---\nname: same\n---\nB\n")},
	}
	_, err := Load(fsys, "p")
	if err == nil || !strings.Contains(err.Error(), "defined in both") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}
