package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/JakeFAU/iconshelf/internal/icon"
)

// Write persists the icon list and category list as indented JSON. Both
// payloads are staged in temporary files next to their targets and renamed
// into place only once both are fully written.
func Write(fs afero.Fs, idx Index, iconsPath, categoriesPath string) error {
	icons := idx.Icons
	if icons == nil {
		icons = []icon.Record{}
	}
	categories := idx.Categories
	if categories == nil {
		categories = []string{}
	}
	iconsJSON, err := json.MarshalIndent(icons, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal icons: %w", err)
	}
	categoriesJSON, err := json.MarshalIndent(categories, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}

	iconsTmp, err := stage(fs, iconsPath, iconsJSON)
	if err != nil {
		return err
	}
	categoriesTmp, err := stage(fs, categoriesPath, categoriesJSON)
	if err != nil {
		_ = fs.Remove(iconsTmp)
		return err
	}
	if err := fs.Rename(iconsTmp, iconsPath); err != nil {
		_ = fs.Remove(iconsTmp)
		_ = fs.Remove(categoriesTmp)
		return wrapPath("rename", iconsPath, err)
	}
	if err := fs.Rename(categoriesTmp, categoriesPath); err != nil {
		_ = fs.Remove(categoriesTmp)
		return wrapPath("rename", categoriesPath, err)
	}
	return nil
}

func stage(fs afero.Fs, target string, data []byte) (string, error) {
	dir := filepath.Dir(target)
	if err := fs.MkdirAll(dir, 0o750); err != nil {
		return "", wrapPath("mkdir", dir, err)
	}
	f, err := afero.TempFile(fs, dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return "", wrapPath("create temp for", target, err)
	}
	name := f.Name()
	_, writeErr := f.Write(data)
	closeErr := f.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		_ = fs.Remove(name)
		return "", wrapPath("write", name, err)
	}
	return name, nil
}

// Load reads both artifacts back into a Library.
func Load(fs afero.Fs, iconsPath, categoriesPath string) (icon.Library, error) {
	var lib icon.Library
	if err := readJSON(fs, iconsPath, &lib.Icons); err != nil {
		return icon.Library{}, err
	}
	if err := readJSON(fs, categoriesPath, &lib.Categories); err != nil {
		return icon.Library{}, err
	}
	return lib, nil
}

func readJSON(fs afero.Fs, path string, dst any) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return wrapPath("read", path, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return wrapPath("decode", path, err)
	}
	return nil
}
