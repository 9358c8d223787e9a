package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rezonia/facturx/internal/model"
)

var (
	invoiceExts   = []string{".json", ".yaml", ".yml"}
	verifiedExts  = []string{".xml", ".pdf"}
	generatedExts = []string{".xml"}
)

// collectFiles expands globs and walks directories, keeping files with
// one of the given extensions. Files named explicitly are always kept.
func collectFiles(args []string, exts []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", arg, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(arg); err != nil {
				return nil, fmt.Errorf("file not found: %s", arg)
			}
			matches = []string{arg}
		}

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil {
				continue
			}
			if info.IsDir() {
				found, err := walkDir(match, exts)
				if err != nil {
					return nil, err
				}
				files = append(files, found...)
				continue
			}
			if len(matches) == 1 || hasExt(match, exts) {
				files = append(files, match)
			}
		}
	}

	return files, nil
}

// walkDir returns the files under dir with one of exts, in lexical order
func walkDir(dir string, exts []string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && hasExt(path, exts) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func hasExt(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// readInvoice decodes a JSON or YAML invoice file, picking the decoder
// from the extension
func readInvoice(path string) (*model.Invoice, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return model.DecodeInvoice(f, model.FormatFromPath(path))
}

// writeOutput writes data to path, or to stdout when path is empty or "-"
func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
