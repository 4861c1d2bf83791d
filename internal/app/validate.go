package app

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	payloadschema "horse.fit/culldron/schema"
)

type validateResult struct {
	Scanned  int
	Valid    int
	Invalid  int
	Articles int
}

func runValidate(args []string) int {
	flags := flag.NewFlagSet("validate", flag.ContinueOnError)
	flags.SetOutput(os.Stderr)

	dir := flags.String("dir", "testdata/articles", "Directory containing .json article payload files")
	recursive := flags.Bool("recursive", true, "Recursively scan subdirectories")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	root := strings.TrimSpace(*dir)

	files, err := collectJSONFiles(root, *recursive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation setup failed: %v\n", err)
		return 1
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "Validation failed: no .json files found under %s\n", root)
		return 1
	}

	var result validateResult
	for _, path := range files {
		result.Scanned++
		count, err := validateArticleFile(path)
		if err != nil {
			result.Invalid++
			fmt.Fprintf(os.Stderr, "INVALID %s: %v\n", path, err)
			continue
		}
		result.Valid++
		result.Articles += count
	}

	fmt.Printf(
		"validate scanned=%d valid=%d invalid=%d articles=%d dir=%s recursive=%t\n",
		result.Scanned, result.Valid, result.Invalid, result.Articles, root, *recursive,
	)
	if result.Invalid > 0 {
		return 1
	}
	return 0
}

// validateArticleFile returns the number of payloads in a valid file. A file
// holds one payload object or an array of them.
func validateArticleFile(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read failed: %w", err)
	}
	if !json.Valid(raw) {
		return 0, errors.New("malformed JSON")
	}
	payloads, err := payloadschema.ValidateArticlePayloads(json.RawMessage(raw))
	if err != nil {
		return 0, err
	}
	return len(payloads), nil
}

// collectJSONFiles lists visible .json files under root in lexical order.
// Hidden files and hidden directories are skipped.
func collectJSONFiles(root string, recursive bool) ([]string, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("directory path is empty")
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		hidden := strings.HasPrefix(d.Name(), ".")
		if d.IsDir() {
			if path == root {
				return nil
			}
			if hidden || !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !hidden && strings.EqualFold(filepath.Ext(d.Name()), ".json") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory %s: %w", root, err)
	}

	slices.Sort(files)
	return files, nil
}
