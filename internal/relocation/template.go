package relocation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/vmunix/animarr/internal/library"
)

// DefaultTemplate is the naming template used when a pipe carries no
// configuration. {episode:02} zero-pads, {version} expands to " v2" for
// revisions above 1, {group} to "[Short] " when a group is bound.
const DefaultTemplate = "{series}/{group}{series} - {episode:02}{version}.{ext}"

// folderMatchThreshold is the minimum Jaro-Winkler similarity for reusing an
// existing on-disk series folder instead of creating a new one.
const folderMatchThreshold = 0.92

type templateConfig struct {
	Template string `json:"template"`
}

// TemplateProvider names files from release and episode metadata using a
// placeholder template, colocating them with an existing series folder when a
// sufficiently similar one already exists on disk.
type TemplateProvider struct {
	log *slog.Logger
}

// NewTemplateProvider creates the built-in template provider.
func NewTemplateProvider(log *slog.Logger) *TemplateProvider {
	if log == nil {
		log = slog.Default()
	}
	return &TemplateProvider{log: log.With("component", "relocation.template")}
}

func (p *TemplateProvider) Name() string { return "template" }

func (p *TemplateProvider) SupportsUnrecognized() bool { return false }

func (p *TemplateProvider) SupportsIncompleteMetadata() bool { return true }

func (p *TemplateProvider) ComputeTarget(_ context.Context, rc *Context) (Target, error) {
	cfg := templateConfig{Template: DefaultTemplate}
	if len(rc.Config) > 0 {
		if err := json.Unmarshal(rc.Config, &cfg); err != nil {
			return Target{}, fmt.Errorf("decode template config: %w", err)
		}
		if cfg.Template == "" {
			cfg.Template = DefaultTemplate
		}
	}

	if rc.Release == nil || len(rc.Release.CrossRefs) == 0 {
		return Target{Filename: ErrorSentinel + "no release bound"}, nil
	}

	series := "Unknown Series"
	if rc.Anime != nil {
		series = SanitizeFilename(rc.Anime.Title)
	}

	xref := rc.Release.CrossRefs[0]
	episode := xref.EpisodeID
	title := ""
	if len(rc.Episodes) > 0 && rc.Episodes[0] != nil {
		episode = int64(rc.Episodes[0].Number)
		title = SanitizeFilename(rc.Episodes[0].Title)
	}

	version := ""
	if rc.Release.Revision > 1 {
		version = fmt.Sprintf(" v%d", rc.Release.Revision)
	}
	group := ""
	if rc.Release.Group != nil && rc.Release.Group.ShortName != "" {
		group = "[" + SanitizeFilename(rc.Release.Group.ShortName) + "] "
	}

	ext := strings.TrimPrefix(path.Ext(rc.Location.RelativePath), ".")

	rel := applyTemplate(cfg.Template, map[string]any{
		"series":  series,
		"episode": episode,
		"title":   title,
		"version": version,
		"group":   group,
		"ext":     ext,
	})

	folder := p.pickDestination(rc)
	target := Target{}
	if folder != nil {
		target.FolderID = folder.ID
		// Reuse a near-identical series folder instead of forking a new one
		// over punctuation or romanization differences.
		if dir, file := path.Split(rel); dir != "" {
			if existing := p.matchExistingFolder(folder.Path, strings.Trim(dir, "/")); existing != "" {
				rel = path.Join(existing, file)
			}
		}
	}
	target.Path, target.Filename = path.Split(rel)
	return target, nil
}

// pickDestination returns the first destination-flagged managed folder, or
// nil to keep the file's current folder.
func (p *TemplateProvider) pickDestination(rc *Context) *library.ManagedFolder {
	for _, f := range rc.Folders {
		if f.DropType.IsDestination() {
			return f
		}
	}
	return nil
}

// matchExistingFolder scans the folder root's first-level directories for one
// sufficiently similar to want and returns its exact on-disk name.
func (p *TemplateProvider) matchExistingFolder(root, want string) string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if e.Name() == want {
			return e.Name()
		}
		score, err := edlib.StringsSimilarity(strings.ToLower(e.Name()), strings.ToLower(want), edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if score >= folderMatchThreshold {
			p.log.Debug("reusing existing series folder", "folder", e.Name(), "wanted", want, "score", score)
			return e.Name()
		}
	}
	return ""
}

// formatPattern matches {name} or {name:02} style placeholders.
var formatPattern = regexp.MustCompile(`\{(\w+)(?::(\d+))?\}`)

// applyTemplate substitutes variables into a template string. {name:02}
// zero-pads integer values.
func applyTemplate(template string, vars map[string]any) string {
	return formatPattern.ReplaceAllStringFunc(template, func(match string) string {
		parts := formatPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		val, ok := vars[parts[1]]
		if !ok {
			return match
		}
		if len(parts) >= 3 && parts[2] != "" {
			if width, err := strconv.Atoi(parts[2]); err == nil {
				switch v := val.(type) {
				case int:
					return fmt.Sprintf("%0*d", width, v)
				case int64:
					return fmt.Sprintf("%0*d", width, v)
				}
			}
		}
		return fmt.Sprintf("%v", val)
	})
}
