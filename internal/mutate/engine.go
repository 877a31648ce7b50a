// Package mutate applies structured edits to knowledge documents: topic and
// file-reference additions in frontmatter, status changes, and targeted body
// insertions. Every write goes through the atomic storage provider, so a
// mutation either lands whole or not at all.
package mutate

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/starford/munin/internal/apperr"
	"github.com/starford/munin/internal/frontmatter"
	"github.com/starford/munin/internal/index"
	"github.com/starford/munin/internal/models"
	"github.com/starford/munin/internal/scanner"
	"github.com/starford/munin/internal/storage"
)

// Placement says where body content is inserted.
type Placement string

// Placements.
const (
	PlaceAppend  Placement = "append"
	PlacePrepend Placement = "prepend"
	PlaceAfter   Placement = "after"
	PlaceBefore  Placement = "before"
)

// Target identifies the document to mutate: a session by date or a plan by
// id.
type Target struct {
	Kind models.Kind // KindSession or KindPlan
	Key  string      // YYYY-MM-DD for sessions, plan id for plans
}

// Request is one mutation call. Zero fields are no-ops; a request with no
// effective operation is rejected as a usage error.
type Request struct {
	Target      Target
	AddTopics   []string
	AddFiles    []string
	SetStatus   string
	Content     string
	ContentFile string // file whose full text is appended to Content
	Placement   Placement
	Section     string // heading for inserted content
	Pattern     string // anchor line for after/before placements
	Shortcut    string // "done", "wip", or "append"
}

func (r Request) hasContent() bool {
	return r.Content != "" || r.ContentFile != ""
}

// Engine resolves targets through the index and rewrites documents through
// the storage provider.
type Engine struct {
	store  storage.Provider
	db     *index.DB
	logger *slog.Logger
}

// New creates a mutation engine.
func New(store storage.Provider, db *index.DB, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, db: db, logger: logger}
}

// Apply runs one mutation. The document is read, edited in memory, and
// written back atomically; a request that changes nothing reports
// Updated=false and writes nothing.
func (e *Engine) Apply(req Request) (models.MutationResult, error) {
	req = normalize(req)
	if err := validate(req); err != nil {
		return models.MutationResult{}, err
	}

	path, err := e.resolve(req.Target)
	if err != nil {
		return models.MutationResult{}, err
	}

	if req.ContentFile != "" {
		// A missing content source is a hard error, unlike per-file scan
		// failures.
		extra, readErr := os.ReadFile(req.ContentFile)
		if readErr != nil {
			return models.MutationResult{}, apperr.IO(req.ContentFile, readErr)
		}
		if req.Content != "" {
			req.Content = strings.TrimRight(req.Content, "\n") + "\n" + string(extra)
		} else {
			req.Content = string(extra)
		}
	}

	raw, err := e.store.Read(path)
	if err != nil {
		return models.MutationResult{}, apperr.IO(path, err)
	}
	doc, parseErr := frontmatter.Parse(string(raw))
	if parseErr != nil {
		// Reads tolerate malformed frontmatter; writes must not, or the
		// rewrite would silently discard whatever the author had there.
		return models.MutationResult{}, apperr.Parse(path, parseErr)
	}

	var changes []string

	for _, topic := range req.AddTopics {
		if doc.Frontmatter.AppendUnique("topics", topic) {
			changes = append(changes, "added topic "+topic)
		}
	}
	for _, file := range req.AddFiles {
		if doc.Frontmatter.AppendUnique("files", file) {
			changes = append(changes, "added file "+file)
		}
	}
	if req.SetStatus != "" {
		current, _ := doc.Frontmatter.GetString("status")
		if current != req.SetStatus {
			doc.Frontmatter.Set("status", frontmatter.String(req.SetStatus))
			changes = append(changes, fmt.Sprintf("status %s -> %s", displayStatus(current), req.SetStatus))
		}
	}

	if req.hasContent() {
		newBody, change, bodyErr := applyBody(doc.Body, req)
		if bodyErr != nil {
			return models.MutationResult{}, bodyErr
		}
		doc.Body = newBody
		changes = append(changes, change)
	}

	if len(changes) == 0 {
		return models.MutationResult{
			Updated:  false,
			FilePath: path,
			Message:  "no changes",
			Changes:  []string{},
		}, nil
	}

	out := frontmatter.Stringify(doc.Frontmatter, doc.Body)
	if err := e.store.Write(path, []byte(out)); err != nil {
		return models.MutationResult{}, apperr.IO(path, err)
	}
	e.logger.Info("mutation applied",
		slog.String("path", path),
		slog.Int("changes", len(changes)))

	return models.MutationResult{
		Updated:  true,
		FilePath: path,
		Message:  fmt.Sprintf("updated %s", path),
		Changes:  changes,
	}, nil
}

// normalize expands shortcuts into their explicit fields.
func normalize(req Request) Request {
	switch req.Shortcut {
	case "done":
		req.SetStatus = string(models.StatusComplete)
	case "wip":
		req.SetStatus = string(models.StatusActive)
	case "append":
		if req.Placement == "" {
			req.Placement = PlaceAppend
		}
		if req.Section == "" {
			req.Section = "Update"
		}
	}
	return req
}

func validate(req Request) error {
	switch req.Target.Kind {
	case models.KindSession, models.KindPlan:
	default:
		return apperr.Usage(fmt.Sprintf("mutation target must be a session or a plan, got %q", req.Target.Kind))
	}
	if req.Target.Key == "" {
		return apperr.Usage("mutation target key is required")
	}
	if req.Shortcut != "" && req.Shortcut != "done" && req.Shortcut != "wip" && req.Shortcut != "append" {
		return apperr.Usage(fmt.Sprintf("unknown shortcut %q", req.Shortcut))
	}
	if req.SetStatus != "" {
		if _, err := models.ParseStatus(req.SetStatus); err != nil {
			return err
		}
	}
	if req.hasContent() && req.Placement == "" {
		return apperr.Usage("content requires a placement (append, prepend, after, before)")
	}
	if !req.hasContent() && req.Placement != "" {
		return apperr.Usage("placement given without content")
	}
	if (req.Placement == PlaceAfter || req.Placement == PlaceBefore) && req.Pattern == "" {
		return apperr.Usage("after/before placement requires a pattern")
	}
	if len(req.AddTopics) == 0 && len(req.AddFiles) == 0 && req.SetStatus == "" && !req.hasContent() {
		return apperr.Usage("mutation has no operation")
	}
	return nil
}

// resolve maps the target to a root-relative document path. The filename
// convention is checked first; the index covers documents at
// non-conventional paths. An unknown key fails with close-by suggestions.
func (e *Engine) resolve(t Target) (string, error) {
	switch t.Kind {
	case models.KindSession:
		conventional := scanner.SessionsDir + "/" + t.Key + "-session.md"
		if e.store.Exists(conventional) {
			return conventional, nil
		}
		if path, found, err := e.db.SessionPathByDate(t.Key); err == nil && found {
			return path, nil
		}
		dates, _ := e.db.SessionDates()
		return "", apperr.NotFound(fmt.Sprintf("no session for date %s", t.Key), closest(t.Key, dates)...)

	case models.KindPlan:
		conventional := scanner.PlanPrefix + t.Key + ".md"
		if e.store.Exists(conventional) {
			return conventional, nil
		}
		if path, found, err := e.db.PlanPathByID(t.Key); err == nil && found {
			return path, nil
		}
		ids, _ := e.db.PlanIDs()
		return "", apperr.NotFound(fmt.Sprintf("no plan with id %s", t.Key), closest(t.Key, ids)...)
	}
	return "", apperr.Usage(fmt.Sprintf("unsupported target kind %q", t.Kind))
}

// applyBody inserts req.Content into body according to the placement and
// returns the new body plus a change description.
func applyBody(body string, req Request) (string, string, error) {
	content := strings.TrimRight(req.Content, "\n")

	block := content + "\n"
	if req.Section != "" {
		block = "## " + req.Section + "\n" + content + "\n"
	}

	switch req.Placement {
	case PlaceAppend:
		trimmed := strings.TrimRight(body, "\n")
		if trimmed == "" {
			return block, "appended content", nil
		}
		return trimmed + "\n\n" + block, "appended content", nil

	case PlacePrepend:
		if strings.TrimSpace(body) == "" {
			return block, "prepended content", nil
		}
		return block + "\n" + strings.TrimLeft(body, "\n"), "prepended content", nil

	case PlaceAfter, PlaceBefore:
		lines := strings.Split(body, "\n")
		var matches []int
		for i, l := range lines {
			if strings.Contains(l, req.Pattern) {
				matches = append(matches, i)
			}
		}
		switch {
		case len(matches) == 0:
			return "", "", apperr.NotFound(fmt.Sprintf("pattern %q not found", req.Pattern))
		case len(matches) > 1:
			nums := make([]int, len(matches))
			for i, m := range matches {
				nums[i] = m + 1
			}
			return "", "", apperr.Ambiguous(req.Pattern, nums)
		}
		at := matches[0]

		if req.Placement == PlaceBefore {
			out := append(append([]string{}, lines[:at]...), strings.TrimRight(block, "\n"))
			out = append(out, lines[at:]...)
			return strings.Join(out, "\n"), fmt.Sprintf("inserted before %q", req.Pattern), nil
		}

		// After: past the enclosing section, which runs until the next
		// "## " heading or end of document.
		end := len(lines)
		for i := at + 1; i < len(lines); i++ {
			if strings.HasPrefix(lines[i], "## ") {
				end = i
				break
			}
		}
		head := strings.TrimRight(strings.Join(lines[:end], "\n"), "\n")
		tail := strings.Join(lines[end:], "\n")
		out := head + "\n\n" + block
		if strings.TrimSpace(tail) != "" {
			out += "\n" + tail
		}
		return out, fmt.Sprintf("inserted after %q", req.Pattern), nil
	}
	return "", "", apperr.Usage(fmt.Sprintf("unknown placement %q", req.Placement))
}

func displayStatus(s string) string {
	if s == "" {
		return "(unset)"
	}
	return s
}

// closest returns candidates sharing a prefix or substring with key, capped
// at five, falling back to the first five candidates.
func closest(key string, candidates []string) []string {
	var near []string
	lower := strings.ToLower(key)
	for _, c := range candidates {
		cl := strings.ToLower(c)
		if strings.HasPrefix(cl, lower) || strings.HasPrefix(lower, cl) || strings.Contains(cl, lower) {
			near = append(near, c)
		}
	}
	if len(near) == 0 {
		near = candidates
	}
	if len(near) > 5 {
		near = near[:5]
	}
	return near
}
