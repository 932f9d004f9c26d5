package web

import (
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"
)

// TemplateParseFSRecursive parses every file with extension ext below templatesDir. Templates are named by
// their path relative to templatesDir, e.g. "partials/toast.gohtml".
func TemplateParseFSRecursive(
	templates fs.FS,
	templatesDir string,
	ext string,
	funcMap template.FuncMap) (*template.Template, error) {

	root := template.New("")
	err := fs.WalkDir(templates, templatesDir, func(filePath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(filePath, ext) {
			return nil
		}

		b, err := fs.ReadFile(templates, filePath)
		if err != nil {
			return err
		}

		name := strings.TrimPrefix(filePath, path.Clean(templatesDir)+"/")
		if _, err := root.New(name).Funcs(funcMap).Parse(string(b)); err != nil {
			return fmt.Errorf("parsing template %s failed: %w", name, err)
		}
		return nil
	})
	return root, err
}
