package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reposcope/reposcope/pkg/types"
)

func TestParse_Python(t *testing.T) {
	p := New(nil)

	src := []byte("def greet(name):\n    return \"hi \" + name\n")
	result, err := p.Parse(context.Background(), "greet.py", src)
	require.NoError(t, err)
	defer result.Close()

	assert.Equal(t, "python", result.Spec.Name)
	assert.False(t, result.HasError)
	assert.Equal(t, "module", result.Root().Type())
}

func TestParse_UnsupportedLanguage(t *testing.T) {
	p := New(nil)

	_, err := p.Parse(context.Background(), "build.gradle", []byte("apply plugin: 'java'"))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrUnsupportedLanguage)
}

func TestParse_SyntaxErrorIsSurfacedNotFatal(t *testing.T) {
	p := New(nil)

	src := []byte("def broken(:\n    pass\n")
	result, err := p.Parse(context.Background(), "broken.py", src)
	require.NoError(t, err)
	defer result.Close()

	assert.True(t, result.HasError)
}

func TestRegistry_Extensions(t *testing.T) {
	r := DefaultRegistry()
	exts := r.Extensions()

	for _, ext := range []string{"py", "go", "js", "ts", "rs"} {
		assert.True(t, exts[ext], "missing extension %s", ext)
	}
	assert.False(t, exts["gradle"])
}

func TestLanguage(t *testing.T) {
	p := New(nil)
	assert.Equal(t, "go", p.Language("main.go"))
	assert.Equal(t, "typescript", p.Language("app.tsx"))
	assert.Equal(t, "", p.Language("README.md"))
}
