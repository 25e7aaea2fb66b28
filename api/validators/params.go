package validators

import (
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
)

func invalidField(field, msg string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(map[string]any{"field": field})
}

// ParseUUIDParam reads a chi URL parameter that must be a UUID.
func ParseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, invalidField(name, name+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, invalidField(name, "invalid "+name)
	}
	return id, nil
}

// SlugParam reads a chi URL parameter holding a slug: lowercase letters,
// digits and hyphens, at most maxLen runes.
func SlugParam(r *http.Request, name string, maxLen int) (string, error) {
	slug := strings.ToLower(strings.TrimSpace(chi.URLParam(r, name)))
	switch {
	case slug == "":
		return "", invalidField(name, name+" is required")
	case maxLen > 0 && utf8.RuneCountInString(slug) > maxLen:
		return "", invalidField(name, name+" is too long")
	case strings.IndexFunc(slug, notSlugRune) >= 0:
		return "", invalidField(name, "invalid "+name)
	}
	return slug, nil
}

func notSlugRune(r rune) bool {
	return !(r == '-' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
}

// ParseOptionalUUIDQuery returns nil when the query parameter is absent.
func ParseOptionalUUIDQuery(r *http.Request, key string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, invalidField(key, "invalid "+key)
	}
	return &id, nil
}

// ParseQueryInt returns def when key is absent and rejects values outside [lo, hi].
func ParseQueryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidField(key, "query parameter must be numeric")
	}
	if v < lo || v > hi {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").
			WithDetails(map[string]any{"field": key, "min": lo, "max": hi})
	}
	return v, nil
}
