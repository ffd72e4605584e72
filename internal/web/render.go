// Package web provides HTML template rendering and HTTP handlers for the web UI.
package web

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

// Renderer manages HTML template rendering with caching and custom functions.
type Renderer struct {
	templates map[string]*template.Template
	funcMap   template.FuncMap
	mu        sync.RWMutex
}

// NewRenderer creates a new Renderer by parsing all templates in the given directory.
// It parses base.html first, then combines it with each page template in subdirectories.
// Returns an error if the templates directory doesn't exist or templates fail to parse.
func NewRenderer(templatesDir string) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]*template.Template),
		funcMap:   createFuncMap(),
	}

	if err := r.parseTemplates(templatesDir); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return r, nil
}

// Render executes the named template with the given data and writes the result to w.
// The templateName should be the relative path from the templates directory
// (e.g., "users/login.html", "notes/list.html").
func (r *Renderer) Render(w http.ResponseWriter, templateName string, data interface{}) error {
	r.mu.RLock()
	tmpl, ok := r.templates[templateName]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("template %q not found", templateName)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		return fmt.Errorf("failed to execute template %q: %w", templateName, err)
	}

	return nil
}

// RenderStatus is Render with an explicit HTTP status code, for form
// re-renders and error pages.
func (r *Renderer) RenderStatus(w http.ResponseWriter, code int, templateName string, data interface{}) error {
	r.mu.RLock()
	tmpl, ok := r.templates[templateName]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("template %q not found", templateName)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		return fmt.Errorf("failed to execute template %q: %w", templateName, err)
	}

	return nil
}

// RenderError renders an error page with the given HTTP status code and message.
func (r *Renderer) RenderError(w http.ResponseWriter, code int, message string) {
	r.mu.RLock()
	tmpl, ok := r.templates["error.html"]
	r.mu.RUnlock()

	if ok {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(code)
		data := map[string]interface{}{
			"Title":     http.StatusText(code),
			"Error":     message,
			"ErrorCode": http.StatusText(code),
		}
		if err := tmpl.ExecuteTemplate(w, "base", data); err == nil {
			return
		}
	}

	http.Error(w, fmt.Sprintf("Error %d: %s", code, message), code)
}

// parseTemplates parses the base template and all page templates.
func (r *Renderer) parseTemplates(templatesDir string) error {
	// os.Root scopes file access to the templates directory, preventing
	// path traversal.
	root, err := os.OpenRoot(templatesDir)
	if err != nil {
		return fmt.Errorf("failed to open templates directory: %w", err)
	}
	defer root.Close()

	baseFile, err := root.Open("base.html")
	if err != nil {
		return fmt.Errorf("failed to open base template: %w", err)
	}
	baseContent, err := io.ReadAll(baseFile)
	baseFile.Close()
	if err != nil {
		return fmt.Errorf("failed to read base template: %w", err)
	}

	absTemplatesDir, err := filepath.Abs(templatesDir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path of templates dir: %w", err)
	}
	basePath := filepath.Join(absTemplatesDir, "base.html")

	err = filepath.WalkDir(absTemplatesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || path == basePath {
			return nil
		}

		if !strings.HasSuffix(path, ".html") {
			return nil
		}

		relPath, err := filepath.Rel(absTemplatesDir, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", path, err)
		}

		pageFile, err := root.Open(relPath)
		if err != nil {
			return fmt.Errorf("failed to open template %s: %w", relPath, err)
		}
		pageContent, err := io.ReadAll(pageFile)
		pageFile.Close()
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", relPath, err)
		}

		tmpl := template.New("base").Funcs(r.funcMap)

		tmpl, err = tmpl.Parse(string(baseContent))
		if err != nil {
			return fmt.Errorf("failed to parse base template for %s: %w", relPath, err)
		}

		// The page template overrides the content block.
		tmpl, err = tmpl.Parse(string(pageContent))
		if err != nil {
			return fmt.Errorf("failed to parse template %s: %w", relPath, err)
		}

		r.mu.Lock()
		r.templates[relPath] = tmpl
		r.mu.Unlock()

		return nil
	})

	if err != nil {
		return err
	}

	if len(r.templates) == 0 {
		return fmt.Errorf("no templates found in %s", templatesDir)
	}

	return nil
}

// createFuncMap creates the template function map with all custom functions.
func createFuncMap() template.FuncMap {
	return template.FuncMap{
		"formatTime": formatTime,
		"truncate":   truncate,
		"markdown":   renderMarkdown,
	}
}

// formatTime formats a time.Time as a human-readable date string.
// Example: "Jan 2, 2006"
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}

// truncate truncates a string to n characters, adding "..." if truncated.
// If the string is shorter than or equal to n, it is returned unchanged.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}

	runes := []rune(s)
	if len(runes) <= n {
		return s
	}

	if n <= 3 {
		return string(runes[:n])
	}

	return string(runes[:n-3]) + "..."
}

// renderMarkdown converts markdown text to HTML.
// The returned HTML is safe to use in templates (marked as template.HTML).
func renderMarkdown(s string) template.HTML {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock
	p := parser.NewWithExtensions(extensions)

	doc := p.Parse([]byte(s))

	htmlFlags := html.CommonFlags | html.HrefTargetBlank
	opts := html.RendererOptions{
		Flags: htmlFlags,
	}
	renderer := html.NewRenderer(opts)

	htmlContent := markdown.Render(doc, renderer)

	// Sanitize to prevent XSS from note text.
	policy := bluemonday.UGCPolicy()
	sanitized := policy.SanitizeBytes(htmlContent)

	return template.HTML(sanitized)
}
