package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskEmail(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"alice@example.com", "a…@e….com"},
		{"  Bob@Mail.Example.org ", "b…@m….example.org"},
		{"x@y.io", "x@y.io"},
		{"", ""},
		{"abc", "***"},
		{"notanemail", "n…l"},
		{"@example.com", "@…m"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, MaskEmail(c.in), c.in)
	}
}
