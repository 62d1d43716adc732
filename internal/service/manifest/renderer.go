package manifest

import (
	"bytes"
	"errors"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"text/template"

	"github.com/oshokin/releaser/internal/domain/release"
	"github.com/oshokin/releaser/internal/failure"
)

const strictOption = "missingkey=error"

var (
	errUnknownTemplate = errors.New("template is not loaded")
	errNotADirectory   = errors.New("templates path is not a directory")

	missingKeyPattern = regexp.MustCompile(`map has no entry for key "([^"]+)"`)
)

// Renderer holds a parsed template set. It is safe for concurrent use once built.
type Renderer struct {
	templates map[string]*template.Template
}

// New returns a renderer with no templates; only RenderString is useful on it.
func New() *Renderer {
	return &Renderer{templates: make(map[string]*template.Template)}
}

// LoadDir parses every regular file in dir once. Templates are named by their
// base file name.
func LoadDir(dir string) (*Renderer, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, failure.Wrap(failure.EConfig, "read templates directory", err)
	}

	if !info.IsDir() {
		return nil, failure.Wrap(failure.EConfig, dir, errNotADirectory)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, failure.Wrap(failure.EConfig, "read templates directory", err)
	}

	r := New()

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		text, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, failure.Wrap(failure.EConfig, "read template "+entry.Name(), err)
		}

		if err = r.Add(entry.Name(), string(text)); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Add parses text and registers it under name, replacing any previous template.
func (r *Renderer) Add(name, text string) error {
	tmpl, err := parse(name, text)
	if err != nil {
		return err
	}

	r.templates[name] = tmpl

	return nil
}

// Names lists the loaded templates in sorted order.
func (r *Renderer) Names() []string {
	return slices.Sorted(maps.Keys(r.templates))
}

// Has reports whether name is loaded.
func (r *Renderer) Has(name string) bool {
	_, ok := r.templates[name]
	return ok
}

// Render executes the named template against the release context.
func (r *Renderer) Render(name string, rc *release.Context) (string, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", failure.WithDetails(
			failure.Wrap(failure.EConfig, name, errUnknownTemplate),
			map[string]string{"template": name},
		)
	}

	return execute(tmpl, rc.Values())
}

// RenderString parses and executes a one-off template, for example the built-in
// package control file or a download URI pattern.
func (r *Renderer) RenderString(name, text string, values map[string]any) (string, error) {
	tmpl, err := parse(name, text)
	if err != nil {
		return "", err
	}

	return execute(tmpl, values)
}

func parse(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Option(strictOption).Parse(text)
	if err != nil {
		return nil, failure.WithDetails(
			failure.Wrap(failure.EManifestRender, "parse template "+name, err),
			map[string]string{"template": name},
		)
	}

	return tmpl, nil
}

// execute renders tmpl. Empty values count as missing.
func execute(tmpl *template.Template, values map[string]any) (string, error) {
	data := make(map[string]any, len(values))

	for key, value := range values {
		if s, ok := value.(string); ok && s == "" {
			continue
		}

		data[key] = value
	}

	var buf bytes.Buffer

	if err := tmpl.Execute(&buf, data); err != nil {
		details := map[string]string{"template": tmpl.Name()}
		if m := missingKeyPattern.FindStringSubmatch(err.Error()); m != nil {
			details["key"] = m[1]
		}

		return "", failure.WithDetails(
			failure.Wrap(failure.EManifestRender, "render "+tmpl.Name(), err),
			details,
		)
	}

	return buf.String(), nil
}
