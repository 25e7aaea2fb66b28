package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "29.99", Format(2999))
	assert.Equal(t, "0.05", Format(5))
	assert.Equal(t, "109.97", Format(10997))
	assert.Equal(t, "0.00", Format(0))
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, "49.99 EUR", Display(4999, "eur"))
	assert.Equal(t, "49.99", Display(4999, " "))
}

func TestLineTotal(t *testing.T) {
	assert.Equal(t, int64(5998), LineTotal(2999, 2))
	assert.Equal(t, int64(0), LineTotal(2999, 0))
}
