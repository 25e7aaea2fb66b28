package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataFor(t *testing.T) {
	cases := map[Code]Metadata{
		CodeValidation:        {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true},
		CodeUnauthorized:      {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required"},
		CodeNotFound:          {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found"},
		CodeStateConflict:     {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "state transition disallowed", DetailsAllowed: true},
		CodeInsufficientStock: {HTTPStatus: http.StatusConflict, PublicMessage: "insufficient stock", DetailsAllowed: true},
		CodeRateLimit:         {HTTPStatus: http.StatusTooManyRequests, PublicMessage: "rate limit exceeded"},
		CodeDependency:        {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "dependency unavailable", DetailsAllowed: true},
	}
	for code, want := range cases {
		assert.Equal(t, want, MetadataFor(code), string(code))
	}
	assert.Equal(t, MetadataFor(CodeInternal), MetadataFor("SOMETHING_UNKNOWN"))
}

func TestEveryCodeHasMetadata(t *testing.T) {
	for code, meta := range metadataByCode {
		assert.NotZero(t, meta.HTTPStatus, string(code))
		assert.NotEmpty(t, meta.PublicMessage, string(code))
	}
}

func TestWrapKeepsCauseAndDetails(t *testing.T) {
	cause := stdErrors.New("boom")
	shortfall := []map[string]any{{"sku": "TSHIRT-M", "requested": 3, "available": 1}}
	err := Wrap(CodeInsufficientStock, cause, "not enough stock").WithDetails(shortfall)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeInsufficientStock, err.Code())
	assert.Equal(t, "not enough stock", err.Message())
	assert.Equal(t, shortfall, err.Details())
	assert.Equal(t, "INSUFFICIENT_STOCK: not enough stock: boom", err.Error())
	assert.Equal(t, "NOT_FOUND: order not found", New(CodeNotFound, "order not found").Error())
}

func TestNilErrorAccessors(t *testing.T) {
	var err *Error
	assert.Equal(t, CodeInternal, err.Code())
	assert.Empty(t, err.Message())
	assert.Nil(t, err.Details())
	assert.Empty(t, err.Error())
	assert.Nil(t, err.WithDetails("ignored"))
}

func TestAsAndIsCodeWalkTheChain(t *testing.T) {
	err := fmt.Errorf("create order: %w", New(CodeInsufficientStock, "insufficient stock"))

	typed := As(err)
	require.NotNil(t, typed)
	assert.Equal(t, CodeInsufficientStock, typed.Code())
	assert.True(t, IsCode(err, CodeInsufficientStock))
	assert.False(t, IsCode(err, CodeConflict))
	assert.False(t, IsCode(stdErrors.New("plain"), CodeInternal))
	assert.Nil(t, As(nil))
}

func TestLogFields(t *testing.T) {
	fields := LogFields(Wrap(CodeDependency, stdErrors.New("db down"), "load cart"))
	assert.Equal(t, CodeDependency, fields["error_code"])
	assert.Len(t, fields["error_chain"], 2)
	assert.NotContains(t, fields, "pg_code")

	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "product_variants_sku_key", TableName: "product_variants"}
	fields = LogFields(Wrap(CodeConflict, fmt.Errorf("insert variant: %w", pgErr), "sku already exists"))
	assert.Equal(t, "23505", fields["pg_code"])
	assert.Equal(t, "product_variants_sku_key", fields["pg_constraint"])
	assert.NotContains(t, fields, "pg_column")

	fields = LogFields(&pq.Error{Code: "23503", Table: "order_items"})
	assert.Equal(t, "23503", fields["pg_code"])
	assert.Equal(t, "order_items", fields["pg_table"])
}
