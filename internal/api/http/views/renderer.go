package views

import (
	"fmt"

	"github.com/flosch/pongo2/v6"
	"github.com/gofiber/fiber/v2"
)

// Renderer renders pongo2 page templates into fiber responses.
type Renderer struct {
	set *pongo2.TemplateSet
}

// NewRenderer loads templates from dir. With debug set, templates are re-read on
// every render.
func NewRenderer(dir string, debug bool) (*Renderer, error) {
	loader, err := pongo2.NewLocalFileSystemLoader(dir)
	if err != nil {
		return nil, fmt.Errorf("template loader %s: %w", dir, err)
	}
	set := pongo2.NewSet("servicedesk-copilot", loader)
	set.Debug = debug
	return &Renderer{set: set}, nil
}

// Render executes template name with data and writes it with status code.
func (r *Renderer) Render(c *fiber.Ctx, code int, name string, data pongo2.Context) error {
	out, err := r.Execute(name, data)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(code).SendString(out)
}

// Execute renders template name to a string.
func (r *Renderer) Execute(name string, data pongo2.Context) (string, error) {
	tmpl, err := r.set.FromFile(name)
	if err != nil {
		return "", fmt.Errorf("template %s: %w", name, err)
	}
	out, err := tmpl.Execute(data)
	if err != nil {
		return "", fmt.Errorf("execute template %s: %w", name, err)
	}
	return out, nil
}
