package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// NewReadFile returns the read_file tool.
func NewReadFile() *Tool {
	return &Tool{
		Name: "read_file",
		Description: "Read the contents of a given relative file path. Use this when you want " +
			"to see what's inside a file. Do not use this with directory names.",
		InputSchema: Schema{
			Properties: map[string]Property{
				"path": {
					Type:        "string",
					Description: "The relative path of a file in the working directory.",
				},
			},
			Required: []string{"path"},
		},
		Run: func(_ context.Context, input json.RawMessage) (string, error) {
			var in struct {
				Path string `json:"path"`
			}
			if err := json.Unmarshal(input, &in); err != nil {
				return "", fmt.Errorf("ERROR: invalid input: %v", err)
			}
			if in.Path == "" {
				return "", errors.New("ERROR: missing required parameter: path")
			}
			content, err := os.ReadFile(in.Path)
			if err != nil {
				return "", err
			}
			return string(content), nil
		},
	}
}

// NewListFiles returns the list_files tool. Directories in the listing carry
// a trailing slash so the model can tell them apart from files.
func NewListFiles() *Tool {
	return &Tool{
		Name: "list_files",
		Description: "List files and directories at a given path. If no path is provided, " +
			"lists files in the current directory.",
		InputSchema: Schema{
			Properties: map[string]Property{
				"path": {
					Type: "string",
					Description: "Optional relative path to list files from. Defaults to " +
						"current directory if not provided.",
				},
			},
		},
		Run: func(_ context.Context, input json.RawMessage) (string, error) {
			var in struct {
				Path string `json:"path"`
			}
			if err := json.Unmarshal(input, &in); err != nil {
				return "", fmt.Errorf("ERROR: invalid input: %v", err)
			}
			dir := in.Path
			if dir == "" {
				dir = "."
			}

			files := []string{}
			err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				rel, err := filepath.Rel(dir, path)
				if err != nil {
					return err
				}
				if rel == "." {
					return nil
				}
				if d.IsDir() {
					files = append(files, rel+"/")
				} else {
					files = append(files, rel)
				}
				return nil
			})
			if err != nil {
				return "", err
			}

			out, err := json.Marshal(files)
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	}
}

// NewEditFile returns the edit_file tool: string replacement in an existing
// file, or file creation when old_str is empty.
func NewEditFile() *Tool {
	return &Tool{
		Name: "edit_file",
		Description: "Make edits to a text file or create a new file.\n\n" +
			"This tool ALWAYS requires three parameters: path, old_str, and new_str.\n\n" +
			"For existing files, every occurrence of 'old_str' is replaced with 'new_str'; " +
			"'old_str' must exist in the file and must be different from 'new_str'. " +
			"To create a new file, set 'old_str' to an empty string and 'new_str' to the " +
			"desired content.",
		InputSchema: Schema{
			Properties: map[string]Property{
				"path": {
					Type:        "string",
					Description: "The path to the file",
				},
				"old_str": {
					Type: "string",
					Description: "Text to search for in existing file. Use empty string " +
						"when creating new files.",
				},
				"new_str": {
					Type:        "string",
					Description: "Text to replace old_str with, or the content for new files.",
				},
			},
			Required: []string{"path", "old_str", "new_str"},
		},
		Run: func(_ context.Context, input json.RawMessage) (string, error) {
			// Pointers distinguish an absent parameter from an empty one;
			// empty old_str is meaningful (file creation).
			var in struct {
				Path   *string `json:"path"`
				OldStr *string `json:"old_str"`
				NewStr *string `json:"new_str"`
			}
			if err := json.Unmarshal(input, &in); err != nil {
				return "", fmt.Errorf("ERROR: invalid input: %v", err)
			}
			if in.Path == nil {
				return "", errors.New("ERROR: missing required parameter: path")
			}
			if in.OldStr == nil {
				return "", errors.New("ERROR: missing required parameter: old_str")
			}
			if in.NewStr == nil {
				return "", errors.New("ERROR: missing required parameter: new_str")
			}

			path, oldStr, newStr := *in.Path, *in.OldStr, *in.NewStr
			if path == "" {
				return "", errors.New("ERROR: 'path' must not be empty")
			}
			if oldStr == newStr {
				return "", errors.New("ERROR: 'old_str' must be different from 'new_str'")
			}

			if oldStr == "" {
				return createFile(path, newStr)
			}

			content, err := os.ReadFile(path)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return "", fmt.Errorf("ERROR: file '%s' not found", path)
				}
				return "", err
			}

			replaced := strings.ReplaceAll(string(content), oldStr, newStr)
			if replaced == string(content) {
				return "", fmt.Errorf("ERROR: '%s' not found in file %s", oldStr, path)
			}
			return createFile(path, replaced)
		},
	}
}

// createFile writes content to path, creating parent directories as needed.
func createFile(path, content string) (string, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("Failed to create file: %v", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("Failed to create file: %v", err)
	}
	return fmt.Sprintf("Successfully created file %s", path), nil
}
