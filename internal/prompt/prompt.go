// Package prompt loads oracle prompt templates: markdown files with YAML
// frontmatter whose body is a text/template.
package prompt

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

var (
	ErrNoFrontmatter = errors.New("no frontmatter found")
	ErrInvalidYAML   = errors.New("invalid YAML in frontmatter")
	ErrMissingName   = errors.New("frontmatter missing required 'name' field")
	ErrEmptyBody     = errors.New("prompt body is empty")
	ErrUnknown       = errors.New("unknown prompt")
)

type Template struct {
	Name        string
	Description string
	MaxTokens   int
	Frontmatter map[string]any
	SourceFile  string

	body *template.Template
}

type frontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	MaxTokens   int    `yaml:"max_tokens"`
}

func Parse(content []byte) (*Template, error) {
	trimmed := bytes.TrimLeft(content, "\ufeff\n\r\t ")
	if !bytes.HasPrefix(trimmed, []byte("---\n")) {
		return nil, ErrNoFrontmatter
	}

	rest := trimmed[len("---\n"):]
	end := bytes.Index(rest, []byte("---\n"))
	if end == -1 {
		return nil, ErrNoFrontmatter
	}

	yamlBytes := rest[:end]
	body := strings.TrimSpace(string(rest[end+len("---\n"):]))

	var raw map[string]any
	if err := yaml.Unmarshal(yamlBytes, &raw); err != nil {
		return nil, ErrInvalidYAML
	}
	var meta frontmatter
	if err := yaml.Unmarshal(yamlBytes, &meta); err != nil {
		return nil, ErrInvalidYAML
	}
	if strings.TrimSpace(meta.Name) == "" {
		return nil, ErrMissingName
	}
	if meta.MaxTokens < 0 {
		return nil, fmt.Errorf("prompt %s: max_tokens must not be negative", meta.Name)
	}
	if body == "" {
		return nil, ErrEmptyBody
	}

	tmpl, err := template.New(meta.Name).Option("missingkey=error").Parse(body)
	if err != nil {
		return nil, fmt.Errorf("prompt %s: parsing body: %w", meta.Name, err)
	}

	return &Template{
		Name:        meta.Name,
		Description: meta.Description,
		MaxTokens:   meta.MaxTokens,
		Frontmatter: raw,
		body:        tmpl,
	}, nil
}

func (t *Template) Render(data any) (string, error) {
	var buf bytes.Buffer
	if err := t.body.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering prompt %s: %w", t.Name, err)
	}
	return buf.String(), nil
}

// Library is a set of templates keyed by name.
type Library struct {
	templates map[string]*Template
}

// Load parses every .md file directly under dir in fsys.
func Load(fsys fs.FS, dir string) (*Library, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading prompt dir: %w", err)
	}

	lib := &Library{templates: make(map[string]*Template)}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		file := path.Join(dir, entry.Name())
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
		tmpl, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		if prev, ok := lib.templates[tmpl.Name]; ok {
			return nil, fmt.Errorf("prompt %s defined in both %s and %s", tmpl.Name, prev.SourceFile, file)
		}
		tmpl.SourceFile = file
		lib.templates[tmpl.Name] = tmpl
	}
	return lib, nil
}

func (l *Library) Get(name string) (*Template, error) {
	tmpl, ok := l.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknown, name)
	}
	return tmpl, nil
}

// Names returns the template names in sorted order.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.templates))
	for name := range l.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
