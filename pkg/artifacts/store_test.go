// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package artifacts

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreCreatesRunDirectory(t *testing.T) {
	root := t.TempDir()
	store, err := NewStore(root, "")
	require.NoError(t, err)
	assert.DirExists(t, store.Root())
	assert.NotEmpty(t, store.RunID())
}

func TestNewStoreHonorsExplicitRunID(t *testing.T) {
	root := t.TempDir()
	store, err := NewStore(root, "fixed-run-id")
	require.NoError(t, err)
	assert.Equal(t, "fixed-run-id", store.RunID())
	assert.Equal(t, filepath.Join(root, "fixed-run-id"), store.Root())
}

func TestDocPathsMatchesFilesystemLayout(t *testing.T) {
	root := t.TempDir()
	store, err := NewStore(root, "run1")
	require.NoError(t, err)

	paths, err := store.DocPaths("10006")
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(root, "run1", "10006"))
	assert.Equal(t, filepath.Join(root, "run1", "10006", "stage1.md"), paths.Stage1Markdown)
	assert.Equal(t, filepath.Join(root, "run1", "10006", "stage2_normalized.json"), paths.Stage2Normalized)
}

func TestOpenStoreFailsWhenMissing(t *testing.T) {
	root := t.TempDir()
	_, err := OpenStore(root, "does-not-exist")
	assert.Error(t, err)
}

func TestWriteJSONThenReadJSONRoundTrips(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "out", "doc.json")
	type payload struct {
		Name string `json:"name"`
	}
	require.NoError(t, WriteJSON(path, payload{Name: "a"}))
	assert.True(t, Exists(path))

	var got payload
	require.NoError(t, ReadJSON(path, &got))
	assert.Equal(t, "a", got.Name)
}
