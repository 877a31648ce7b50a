package index

import (
	"regexp"
	"strings"
	"time"

	"github.com/starford/munin/internal/frontmatter"
	"github.com/starford/munin/internal/models"
	"github.com/starford/munin/internal/scanner"
)

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// planRow is the denormalized projection of a plan document.
type planRow struct {
	Path      string
	ID        string
	Title     string
	Author    string
	Status    string
	Topics    []string
	UpdatedAt time.Time
}

// sessionRow is the denormalized projection of a session document.
type sessionRow struct {
	Path   string
	Date   string
	Topics []string
	PlanID string
	Status string
}

// learnedRow is the denormalized projection of a learned-pattern document.
type learnedRow struct {
	Path     string
	Category string
	Keywords []string
}

// extractPlan derives plan fields from filename convention and frontmatter.
// The plan id comes from the PLAN_<id>.md convention, falling back to the
// frontmatter "id" field, then to the filename stem for pointer files.
func extractPlan(fi models.FileInfo, doc *frontmatter.Doc) planRow {
	row := planRow{Path: fi.RelPath, UpdatedAt: fi.ModTime}

	stem := strings.TrimSuffix(fi.Name, ".md")
	if strings.HasPrefix(stem, scanner.PlanPrefix) {
		row.ID = strings.TrimPrefix(stem, scanner.PlanPrefix)
	}
	if id, ok := doc.Frontmatter.GetString("id"); ok && id != "" {
		row.ID = id
	}
	if row.ID == "" {
		row.ID = stem
	}

	row.Title = deriveTitle(doc)
	row.Author, _ = doc.Frontmatter.GetString("author")
	row.Status = stringField(doc, "status")
	row.Topics, _ = doc.Frontmatter.GetStringList("topics")
	if u, ok := doc.Frontmatter.GetString("updated"); ok {
		if ts, err := time.Parse("2006-01-02", u); err == nil {
			row.UpdatedAt = ts
		}
	}
	return row
}

// extractSession derives session fields. The date comes from the
// YYYY-MM-DD filename prefix, falling back to the frontmatter "date" field.
func extractSession(fi models.FileInfo, doc *frontmatter.Doc) sessionRow {
	row := sessionRow{Path: fi.RelPath}

	if m := dateRe.FindString(fi.Name); m != "" {
		row.Date = m
	} else if d, ok := doc.Frontmatter.GetString("date"); ok {
		row.Date = d
	}

	row.Topics, _ = doc.Frontmatter.GetStringList("topics")
	row.PlanID = stringField(doc, "plan")
	row.Status = stringField(doc, "status")
	return row
}

// extractLearned derives learned-pattern fields. The category is the first
// subdirectory under learned/, or the frontmatter "category" field.
func extractLearned(fi models.FileInfo, doc *frontmatter.Doc) learnedRow {
	row := learnedRow{Path: fi.RelPath}

	rel := strings.TrimPrefix(fi.RelPath, scanner.LearnedDir+"/")
	if i := strings.IndexByte(rel, '/'); i > 0 {
		row.Category = rel[:i]
	}
	if c, ok := doc.Frontmatter.GetString("category"); ok && c != "" {
		row.Category = c
	}

	if kw, ok := doc.Frontmatter.GetStringList("keywords"); ok {
		row.Keywords = kw
	} else if kw, ok := doc.Frontmatter.GetStringList("tags"); ok {
		row.Keywords = kw
	}
	return row
}

// deriveTitle returns the frontmatter "title" if present, otherwise the
// first H1 heading, otherwise empty string.
func deriveTitle(doc *frontmatter.Doc) string {
	if t, ok := doc.Frontmatter.GetString("title"); ok && t != "" {
		return t
	}
	for _, line := range strings.Split(doc.Body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

// stringField reads a scalar frontmatter field in its string form,
// tolerating non-string scalars.
func stringField(doc *frontmatter.Doc, key string) string {
	v, ok := doc.Frontmatter.Get(key)
	if !ok {
		return ""
	}
	return v.AsString()
}
