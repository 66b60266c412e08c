package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		content  string
		wantName string
		wantDesc string
		wantBody string
	}{
		{
			name:     "described",
			file:     "define.md",
			content:  "---\ndescription: Define a term\n---\nDefine $ARGUMENTS in one sentence.",
			wantName: "define",
			wantDesc: "Define a term",
			wantBody: "Define $ARGUMENTS in one sentence.",
		},
		{
			name:     "plain template",
			file:     "joke.md",
			content:  "Tell me a short joke.\n",
			wantName: "joke",
			wantBody: "Tell me a short joke.",
		},
		{
			name:     "renamed",
			file:     "tldr-v2.md",
			content:  "---\nname: tldr\n---\nSummarize in two lines: $ARGUMENTS",
			wantName: "tldr",
			wantBody: "Summarize in two lines: $ARGUMENTS",
		},
		{
			name: "multi-line body",
			file: "quiz.md",
			content: `---
description: Quiz me
---
Ask three questions about $ARGUMENTS.
Wait for each answer.`,
			wantName: "quiz",
			wantDesc: "Quiz me",
			wantBody: "Ask three questions about $ARGUMENTS.\nWait for each answer.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			cmd, err := ParseCommand(path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, cmd.Name)
			assert.Equal(t, tt.wantDesc, cmd.Description)
			assert.Equal(t, tt.wantBody, cmd.Content)
			assert.Equal(t, path, cmd.Path)
		})
	}
}

func TestParseCommand_FileNotFound(t *testing.T) {
	_, err := ParseCommand(filepath.Join(t.TempDir(), "missing.md"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseCommand_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "empty content",
			content: "---\ndescription: Nothing\n---\n",
			wantErr: "has no content",
		},
		{
			name:    "name with space",
			content: "---\nname: two words\n---\nDo it.",
			wantErr: "invalid command name",
		},
		{
			name:    "bad yaml",
			content: "---\ndescription: [unclosed\n---\nDo it.",
			wantErr: "parsing command frontmatter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cmd.md")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := ParseCommand(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
