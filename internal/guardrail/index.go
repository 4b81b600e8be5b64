package guardrail

import (
	"archive/zip"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/dshills/bundlesmith/internal/javasrc"
)

var errNoRepository = errors.New("no platform repository configured")

// classIndex holds every class name found in the repository archives in
// dotted form, with inner classes joined by '.'.
type classIndex struct {
	classes  map[string]bool
	packages map[string]bool
	archives int
}

// scanRepository reads the central directory of every .jar under dir.
// Archives that cannot be opened are skipped.
func scanRepository(dir string) (*classIndex, error) {
	idx := &classIndex{classes: make(map[string]bool), packages: make(map[string]bool)}
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".jar") {
			return nil
		}
		zr, err := zip.OpenReader(p)
		if err != nil {
			return nil
		}
		defer zr.Close()
		idx.archives++
		for _, f := range zr.File {
			idx.add(f.Name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	if idx.archives == 0 {
		return nil, fmt.Errorf("no archives found in %s", dir)
	}
	return idx, nil
}

func (idx *classIndex) add(entry string) {
	if !strings.HasSuffix(entry, ".class") {
		return
	}
	name := strings.TrimSuffix(entry, ".class")
	if strings.HasPrefix(name, "META-INF/") {
		return
	}
	base := name[strings.LastIndex(name, "/")+1:]
	if base == "module-info" || base == "package-info" {
		return
	}
	dotted := strings.NewReplacer("/", ".", "$", ".").Replace(name)
	idx.classes[dotted] = true
	if i := strings.LastIndex(name, "/"); i > 0 {
		idx.packages[strings.ReplaceAll(name[:i], "/", ".")] = true
	}
}

// resolves reports whether imp names something present in the index or
// declared by the change-set.
func (idx *classIndex) resolves(imp javasrc.Import, declared map[string]bool) bool {
	known := func(name string) bool { return idx.classes[name] || declared[name] }
	switch {
	case imp.Static && imp.Wildcard:
		return known(imp.Name)
	case imp.Static:
		i := strings.LastIndex(imp.Name, ".")
		return i > 0 && known(imp.Name[:i])
	case imp.Wildcard:
		if idx.packages[imp.Name] || known(imp.Name) {
			return true
		}
		for name := range declared {
			if strings.HasPrefix(name, imp.Name+".") {
				return true
			}
		}
		return false
	default:
		return known(imp.Name)
	}
}
