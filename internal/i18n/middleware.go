package i18n

import (
	"net/http"
	"strings"
)

// Middleware injects a localizer into every request context. The request's
// Accept-Language header wins over lang when it names a supported language.
func Middleware(lang string) func(http.Handler) http.Handler {
	fallback := NewLocalizer(lang)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loc := fallback
			if accept := r.Header.Get("Accept-Language"); accept != "" && supported(accept) {
				loc = NewLocalizer(accept, lang)
			}
			ctx := WithLocalizer(r.Context(), loc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// supported reports whether the first language in an Accept-Language
// header has a locale file.
func supported(accept string) bool {
	first := strings.TrimSpace(strings.SplitN(accept, ",", 2)[0])
	first = strings.SplitN(first, ";", 2)[0]
	base := strings.ToLower(strings.SplitN(first, "-", 2)[0])
	for _, s := range Supported {
		if s == base {
			return true
		}
	}
	return false
}
