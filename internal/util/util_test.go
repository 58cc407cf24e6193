// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFileWithDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "state.json")

	require.NoError(t, AtomicWriteFileWithDir(path, []byte(`{"a":1}`), 0600, 0700))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
		dirInfo, err := os.Stat(filepath.Dir(path))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0700), dirInfo.Mode().Perm())
	}
}

func TestAtomicWriteFileWithDir_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, AtomicWriteFileWithDir(path, []byte("first version, longer"), 0644, 0755))
	require.NoError(t, AtomicWriteFileWithDir(path, []byte("second"), 0644, 0755))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func TestAtomicWriteFileWithDir_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	require.NoError(t, AtomicWriteFileWithDir(path, nil, 0644, 0755))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())
}

func TestAtomicWriteFileWithDir_TargetIsDirectory(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "occupied")
	require.NoError(t, os.Mkdir(target, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "keep"), []byte("x"), 0644))

	err := AtomicWriteFileWithDir(target, []byte("data"), 0644, 0755)
	assert.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file should be removed on failure")
}

// =============================================================================
// TRUNCATION TESTS
// =============================================================================

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{"fits", "hello", 5, "hello"},
		{"cut with ellipsis", "hello world", 5, "he..."},
		{"no room for ellipsis", "abcd", 3, "abc"},
		{"zero", "hello", 0, ""},
		{"empty", "", 4, ""},
		{"multibyte", "日本語のテキスト", 5, "日本..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateRunes(tt.input, tt.max))
		})
	}
}

func TestTruncateWidth(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{"fits", "gpt-4o", 10, "gpt-4o"},
		{"exact", "gpt-4o", 6, "gpt-4o"},
		{"cut", "Llama-3.1-8B-Instruct", 10, "Llama-3..."},
		{"zero", "gpt-4o", 0, ""},
		{"narrow", "abcdef", 2, "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateWidth(tt.input, tt.max))
		})
	}
}

func TestTruncateWidth_WideCharacters(t *testing.T) {
	got := TruncateWidth("日本語モデル名", 7)
	assert.LessOrEqual(t, runewidth.StringWidth(got), 7)
	assert.Contains(t, got, "...")
	assert.Equal(t, "日本語", TruncateWidth("日本語", 6))
}
