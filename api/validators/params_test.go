package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
)

func withParam(target, name, value string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(name, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestSlugParam(t *testing.T) {
	slug, err := SlugParam(withParam("/", "slug", "  T-Shirts "), "slug", 20)
	require.NoError(t, err)
	assert.Equal(t, "t-shirts", slug)

	for _, bad := range []string{"", "t shirts", "t_shirts", "tee/../x", strings.Repeat("a", 21)} {
		_, err := SlugParam(withParam("/", "slug", bad), "slug", 20)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), bad)
	}
}

func TestParseUUIDParam(t *testing.T) {
	_, err := ParseUUIDParam(withParam("/", "id", "not-a-uuid"), "id")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	id, err := ParseUUIDParam(withParam("/", "id", "6f1c1e1e-3c55-4a43-9d6a-0d8a4f3e2b10"), "id")
	require.NoError(t, err)
	assert.Equal(t, "6f1c1e1e-3c55-4a43-9d6a-0d8a4f3e2b10", id.String())
}

func TestParseQueryInt(t *testing.T) {
	v, err := ParseQueryInt(httptest.NewRequest(http.MethodGet, "/orders", nil), "limit", 25, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 25, v)

	v, err = ParseQueryInt(httptest.NewRequest(http.MethodGet, "/orders?limit=40", nil), "limit", 25, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 40, v)

	_, err = ParseQueryInt(httptest.NewRequest(http.MethodGet, "/orders?limit=abc", nil), "limit", 25, 1, 100)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = ParseQueryInt(httptest.NewRequest(http.MethodGet, "/orders?limit=500", nil), "limit", 25, 1, 100)
	require.Error(t, err)
	assert.Equal(t, map[string]any{"field": "limit", "min": 1, "max": 100}, pkgerrors.As(err).Details())
}

func TestParseOptionalUUIDQuery(t *testing.T) {
	id, err := ParseOptionalUUIDQuery(httptest.NewRequest(http.MethodGet, "/products", nil), "categoryId")
	require.NoError(t, err)
	assert.Nil(t, id)

	_, err = ParseOptionalUUIDQuery(httptest.NewRequest(http.MethodGet, "/products?categoryId=x", nil), "categoryId")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSlugValidationTag(t *testing.T) {
	type body struct {
		Slug string `json:"slug" validate:"required,slug"`
	}
	require.NoError(t, Validate(body{Slug: "hoodie-confort"}))

	err := Validate(body{Slug: "Hoodie Confort"})
	require.Error(t, err)
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	assert.Contains(t, details["slug"], "lowercase")
}
