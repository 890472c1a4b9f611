package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/Bernard-Murphy/dbay-public/internal/domain"
	"github.com/Bernard-Murphy/dbay-public/internal/pricing"
)

// Renderer executes page templates inside the shared layout. Each page is
// parsed into its own set so pages can all define "content".
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses layout.html, partials/*.html and every pages/*.html
// from fsys.
func NewRenderer(fsys fs.FS) (*Renderer, error) {
	names, err := fs.Glob(fsys, "pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to list page templates: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no page templates found")
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(names))}
	for _, name := range names {
		t, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(fsys, "layout.html", "partials/*.html", name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.pages[strings.TrimSuffix(path.Base(name), ".html")] = t
	}
	return r, nil
}

// Render writes page name with the given status. Output is buffered so a
// template error never produces a half-written page.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, data any) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page template %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		return fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

var templateFuncs = template.FuncMap{
	"doge": func(v any) string {
		return pricing.FormatDoge(toInt64(v))
	},
	"usd": func(v any, rate float64) string {
		return pricing.FormatUSD(pricing.DogeToUSD(float64(toInt64(v)), rate))
	},
	"dogeUSD": func(v any, rate float64) string {
		return pricing.FormatDogeWithUSD(toInt64(v), rate)
	},
	"minBid": func(l *domain.Listing) string {
		return pricing.FormatDoge(pricing.MinNextBid(l.PriceForBidding()))
	},
	"date":      formatDate,
	"timeLeft":  timeLeft,
	"humanize":  humanize,
	"add":       func(a, b int) int { return a + b },
	"initial":   initial,
	"shortID":   shortID,
	"fieldErr":  fieldErr,
	"isVideo":   func(img domain.ListingImage) bool { return img.MediaType == "video" },
	"dict":      dict,
	"hasPrefix": strings.HasPrefix,
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case domain.Doge:
		return n.Int64()
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func formatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Local().Format("Jan 2, 2006 15:04")
	case *time.Time:
		if t == nil || t.IsZero() {
			return ""
		}
		return t.Local().Format("Jan 2, 2006 15:04")
	}
	return ""
}

func timeLeft(end *time.Time) string {
	if end == nil {
		return ""
	}
	d := time.Until(*end)
	if d <= 0 {
		return "ended"
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}

// humanize turns an enum value such as LIKE_NEW into "Like new".
func humanize(v any) string {
	s := strings.ToLower(strings.ReplaceAll(fmt.Sprint(v), "_", " "))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func initial(s string) string {
	for _, r := range s {
		return strings.ToUpper(string(r))
	}
	return "?"
}

func shortID(id domain.ID) string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

func fieldErr(errs FieldErrors, field string) string {
	return errs[field]
}

func dict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("dict needs key/value pairs")
	}
	m := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		k, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict key %v is not a string", pairs[i])
		}
		m[k] = pairs[i+1]
	}
	return m, nil
}
