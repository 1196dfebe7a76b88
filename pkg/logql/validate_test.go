package logql

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidQuery(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{`{app="x"}`, true},
		{`{app="x"} | json | line_format "{{.msg}}"`, true},
		{`{app="x\"y"}`, true},
		{`{app="x"`, false},
		{`{app="x}`, false},
		{`{app="x\"}`, false},
		{`{app="x"}}`, false},
		{``, false},
		{"  \t", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsValidQuery(tt.query), "IsValidQuery(%q)", tt.query)
	}
}

func TestValidate_Errors(t *testing.T) {
	err := Validate(`{app="x"} |= "y`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidQuerySyntax))

	var se *SyntaxError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "unterminated string literal", se.Reason)
	assert.Equal(t, 13, se.Offset)

	err = Validate(`{app="x"`)
	require.True(t, errors.As(err, &se))
	assert.Equal(t, -1, se.Offset)
	assert.Contains(t, err.Error(), "unbalanced braces (1 '{' vs 0 '}')")
}

func TestBalanced(t *testing.T) {
	assert.True(t, Balanced(""))
	assert.True(t, Balanced(`{a="b"} `))
	assert.False(t, Balanced(`{a="b" `))
	assert.False(t, Balanced(`{a="b"} |= "c`))
}
