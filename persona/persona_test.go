package persona

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitFrontmatter(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantFM   string
		wantBody string
	}{
		{
			name:     "valid frontmatter",
			input:    "---\ndescription: Test\n---\nThis is the body.",
			wantFM:   "description: Test",
			wantBody: "This is the body.",
		},
		{
			name:     "no frontmatter",
			input:    "Just a prompt.",
			wantBody: "Just a prompt.",
		},
		{
			name:     "missing closing delimiter",
			input:    "---\ndescription: Test\nbody",
			wantBody: "---\ndescription: Test\nbody",
		},
		{
			name:     "empty frontmatter",
			input:    "---\n---\nBody only.",
			wantBody: "Body only.",
		},
		{
			name:     "byte order mark",
			input:    "\ufeff---\nname: x\n---\nBody.",
			wantFM:   "name: x",
			wantBody: "Body.",
		},
		{
			name:     "crlf line endings",
			input:    "---\r\nname: x\r\n---\r\nLine 1\r\nLine 2",
			wantFM:   "name: x",
			wantBody: "Line 1\nLine 2",
		},
		{
			name:  "empty input",
			input: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm, body := SplitFrontmatter(tt.input)
			assert.Equal(t, tt.wantFM, fm)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestParse(t *testing.T) {
	data := []byte(`---
name: tutor
description: Patient programming tutor
tools:
  - web_search
  - current_time
model: gpt-4o-mini
temperature: 0.3
pacing: heavy
---
You are a patient tutor.`)

	p, err := Parse("file-name", data)
	require.NoError(t, err)
	assert.Equal(t, "tutor", p.Name)
	assert.Equal(t, "Patient programming tutor", p.Description)
	assert.Equal(t, []string{"web_search", "current_time"}, p.Tools)
	assert.Equal(t, "gpt-4o-mini", p.Model)
	require.NotNil(t, p.Temperature)
	assert.InDelta(t, 0.3, *p.Temperature, 1e-9)
	assert.Equal(t, "heavy", p.Pacing)
	assert.Equal(t, "You are a patient tutor.", p.Prompt)

	assert.True(t, p.Allows("web_search"))
	assert.False(t, p.Allows("web_fetch"))
	assert.Equal(t, "# tutor\nPatient programming tutor\n\nYou are a patient tutor.", p.SystemMessage())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "bad yaml", data: "---\ntools: [unclosed\n---\nbody"},
		{name: "empty prompt", data: "---\nname: x\n---\n   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("x", []byte(tt.data))
			assert.Error(t, err)
		})
	}

	_, err := Parse("", []byte("prompt"))
	assert.Error(t, err)
}

func TestParse_FallbackName(t *testing.T) {
	p, err := Parse("pirate", []byte("Talk like a pirate."))
	require.NoError(t, err)
	assert.Equal(t, "pirate", p.Name)
	assert.True(t, p.Allows("anything"))
	assert.Equal(t, "Talk like a pirate.", p.SystemMessage())
}

func TestLoadFS(t *testing.T) {
	fsys := fstest.MapFS{
		"pirate.md":          {Data: []byte("Talk like a pirate.")},
		"team/support.md":    {Data: []byte("---\nname: helpdesk\n---\nHelp users.")},
		"team/deep/notes.md": {Data: []byte("Take notes.")},
		"README.txt":         {Data: []byte("ignored")},
	}

	lib, err := LoadFS(fsys, "personas")
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "helpdesk", "notes", "pirate"}, lib.Names())

	p, err := lib.Get("helpdesk")
	require.NoError(t, err)
	assert.Equal(t, "personas/team/support.md", p.Path)

	def, err := lib.Get("")
	require.NoError(t, err)
	assert.Equal(t, DefaultName, def.Name)

	_, err = lib.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Len(t, lib.All(), 4)
}

func TestLoadFS_Duplicate(t *testing.T) {
	fsys := fstest.MapFS{
		"a/x.md": {Data: []byte("One.")},
		"b/x.md": {Data: []byte("Two.")},
	}
	_, err := LoadFS(fsys, ".")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `persona "x" defined in both`)
}

func TestLoadFS_OverridesDefault(t *testing.T) {
	fsys := fstest.MapFS{"default.md": {Data: []byte("Custom default.")}}
	lib, err := LoadFS(fsys, ".")
	require.NoError(t, err)
	p, err := lib.Get(DefaultName)
	require.NoError(t, err)
	assert.Equal(t, "Custom default.", p.Prompt)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "poet.md"), []byte("Answer in verse."), 0o600))

	lib, err := LoadDir(dir)
	require.NoError(t, err)
	p, err := lib.Get("poet")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "poet.md"), p.Path)

	lib, err = LoadDir(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultName}, lib.Names())

	fromFile, err := ParseFile(filepath.Join(dir, "poet.md"))
	require.NoError(t, err)
	assert.Equal(t, "poet", fromFile.Name)
}
