package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"products":[
		{"id":"p1","name":"Lace Bodysuit","price":25,"category":"lingerie"},
		{"id":"p2","name":"Silk Robe","price":80,"category":"lingerie"},
		{"id":"p3","name":"Runway Gown","price":900,"category":"timeless"},
		{"id":"p4","name":"Mystery Box","price":10,"category":"misc"}
	]}`), 0o600))

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"catalog", "check", "--file", path})
	require.NoError(t, cmd.Execute())

	got := out.String()
	assert.Contains(t, got, "4 products\n")
	assert.Regexp(t, `Lingerie\s+2\s+open`, got)
	assert.Regexp(t, `Timeless\s+1\s+closed`, got)
	assert.Regexp(t, `Bucket Hats\s+0\s+open`, got)
	assert.Contains(t, got, "1 products without a collection:")
	assert.Contains(t, got, `p4 (Mystery Box) category "misc"`)
}

func TestCatalogCheck_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"products":[{"id":"p1","price":-1,"category":"lingerie"}]}`), 0o600))

	cmd := rootCmd()
	cmd.SetArgs([]string{"catalog", "check", "--file", path})
	require.Error(t, cmd.Execute())
}
