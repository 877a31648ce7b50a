// Package scanner walks a knowledge root and classifies markdown files into
// session, plan, and learned categories by path convention.
package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/munin/internal/models"
)

// PlanPrefix marks standalone plan files anywhere under the root.
const PlanPrefix = "PLAN_"

// Directory conventions under the knowledge root.
const (
	SessionsDir = "sessions"
	PlansDir    = "plans"
	LearnedDir  = "learned"
)

// skipNames lists markdown files that live inside the root but are
// documentation about the root itself, not knowledge documents.
var skipNames = map[string]struct{}{
	"README.md": {},
	"INDEX.md":  {},
}

// Scan walks root and returns every classified markdown file. A missing
// root is not an error: the result is simply empty. Individual file
// failures (unreadable, stat errors) are collected into Errors and never
// abort the walk.
func Scan(root string) models.ScanResult {
	var res models.ScanResult

	absRoot, err := filepath.Abs(root)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("resolve root %s: %v", root, err))
		return res
	}
	if _, err := os.Stat(absRoot); os.IsNotExist(err) {
		return res
	}

	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("scan %s: %v", path, err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != absRoot && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}

		name := d.Name()
		if !strings.HasSuffix(name, ".md") || strings.HasPrefix(name, ".") {
			return nil
		}
		if _, skip := skipNames[name]; skip {
			return nil
		}

		rel, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("scan %s: %v", path, relErr))
			return nil
		}

		kind, ok := Classify(rel)
		if !ok {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("scan %s: %v", name, infoErr))
			return nil
		}

		// Index building will read this file; surface permission problems
		// here so a single bad file costs one error string, not a failed
		// rebuild.
		if f, openErr := os.Open(path); openErr != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("scan %s: %v", name, openErr))
			return nil
		} else {
			f.Close()
		}

		fi := models.FileInfo{
			Name:    name,
			AbsPath: path,
			RelPath: filepath.ToSlash(rel),
			Size:    info.Size(),
			Kind:    kind,
			ModTime: info.ModTime(),
		}
		switch kind {
		case models.KindSession:
			res.Sessions = append(res.Sessions, fi)
		case models.KindPlan, models.KindPointer:
			res.Plans = append(res.Plans, fi)
		case models.KindLearned:
			res.Learned = append(res.Learned, fi)
		}
		return nil
	})
	if walkErr != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("scan %s: %v", root, walkErr))
	}

	res.Total = len(res.Sessions) + len(res.Plans) + len(res.Learned)
	return res
}

// Classify maps a root-relative path to a document kind. Files under
// sessions/ are sessions, files under learned/ (any depth) are learned
// patterns, PLAN_-prefixed files are plans, and files under plans/ are plan
// pointer files. Anything else is not a knowledge document.
func Classify(rel string) (models.Kind, bool) {
	rel = filepath.ToSlash(rel)
	base := rel
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		base = rel[i+1:]
	}

	switch {
	case strings.HasPrefix(rel, SessionsDir+"/"):
		return models.KindSession, true
	case strings.HasPrefix(rel, LearnedDir+"/"):
		return models.KindLearned, true
	case strings.HasPrefix(base, PlanPrefix):
		return models.KindPlan, true
	case strings.HasPrefix(rel, PlansDir+"/"):
		return models.KindPointer, true
	}
	return "", false
}
