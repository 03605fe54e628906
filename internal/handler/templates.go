package handler

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/DukeRupert/fazenda/internal/csrf"
	"github.com/DukeRupert/fazenda/internal/domain"
)

var titleCaser = cases.Title(language.BrazilianPortuguese)

// TemplateFuncs returns a FuncMap with custom template functions
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		"sub": func(a, b int) int {
			return a - b
		},
		"year": func() int {
			return time.Now().Year()
		},

		// String functions
		"lower": strings.ToLower,
		"title": func(v any) string {
			return titleCaser.String(fmt.Sprint(v))
		},
		"truncate": func(s string, length int) string {
			r := []rune(s)
			if len(r) <= length {
				return s
			}
			return string(r[:length]) + "…"
		},

		// Value formatting
		"amount": func(a domain.Amount) string {
			return a.Display()
		},
		"count": domain.FormatCount,
		"isoDate": func(d domain.Date) string {
			return d.ISO()
		},

		// Collection functions
		"dict": func(values ...any) map[string]any {
			if len(values)%2 != 0 {
				return nil
			}
			dict := make(map[string]any, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					return nil
				}
				dict[key] = values[i+1]
			}
			return dict
		},

		// Form helpers
		"csrfField": func(token string) template.HTML {
			return template.HTML(fmt.Sprintf(`<input type="hidden" name="%s" value="%s">`,
				csrf.FormFieldName, template.HTMLEscapeString(token)))
		},
		"flashClass": func(kind any) string {
			if fmt.Sprint(kind) == "error" {
				return "flash flash-error"
			}
			return "flash flash-success"
		},
	}
}
