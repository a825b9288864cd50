package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnpack(t *testing.T) {
	var a, b, c string = "", "", "keep"
	assert.Equal(t, 2, Unpack([]string{"x", "y"}, &a, &b, &c))
	assert.Equal(t, []string{"x", "y", "keep"}, []string{a, b, c})

	assert.Equal(t, 2, Unpack([]string{"1", "2", "3", "4"}, &a, &b))
	assert.Equal(t, "1", a)
	assert.Equal(t, "2", b)

	assert.Zero(t, Unpack(nil, &a))
	assert.Equal(t, "1", a)
}
