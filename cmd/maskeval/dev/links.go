package dev

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/pavise/maskeval/internal/dataset"
	"github.com/pavise/maskeval/internal/discovery"
)

// LinkIssue describes a single link problem found during validation.
type LinkIssue struct {
	Source string // source file (relative to dataset dir)
	Target string // link target
	Reason string // human-readable description
}

// LinkResult holds the output from dataset card link validation.
type LinkResult struct {
	BrokenLinks       []LinkIssue
	DirectoryLinks    []LinkIssue
	ScopeEscapes      []LinkIssue
	UnreferencedMasks []string
	TotalLinks        int
	ValidLinks        int
}

// Passed returns true when no link problems were found.
func (r *LinkResult) Passed() bool {
	return len(r.BrokenLinks) == 0 &&
		len(r.DirectoryLinks) == 0 &&
		len(r.ScopeEscapes) == 0 &&
		len(r.UnreferencedMasks) == 0
}

type extractedLink struct {
	target string
}

type fileEntry struct {
	relPath string
	links   []extractedLink
}

// CheckLinks validates the markdown card links of a dataset directory and
// looks for mask files no manifest sample references. External URLs are
// counted but not fetched.
func CheckLinks(datasetDir string) *LinkResult {
	r := &LinkResult{}

	mdFiles := collectMarkdownFiles(datasetDir)

	// Extract links from each card file.
	var entries []fileEntry
	for _, f := range mdFiles {
		relPath, _ := filepath.Rel(datasetDir, f)
		relPath = filepath.ToSlash(relPath)
		entries = append(entries, fileEntry{relPath: relPath, links: extractLinksFromFile(f)})
	}

	// Validate local links.
	linked := make(map[string]bool)
	for _, fe := range entries {
		for _, l := range fe.links {
			target := l.target
			if shouldSkipLink(target) {
				continue
			}
			if isExternalURL(target) {
				r.TotalLinks++
				r.ValidLinks++
				continue
			}

			localTarget := stripFragment(target)
			if localTarget == "" {
				continue // fragment-only
			}

			r.TotalLinks++

			sourceDir := filepath.Dir(filepath.Join(datasetDir, filepath.FromSlash(fe.relPath)))
			resolved := filepath.Clean(filepath.Join(sourceDir, filepath.FromSlash(localTarget)))

			if !isWithinDir(resolved, datasetDir) {
				r.ScopeEscapes = append(r.ScopeEscapes, LinkIssue{
					Source: fe.relPath, Target: target, Reason: "link escapes dataset directory",
				})
				continue
			}

			info, err := os.Stat(resolved)
			if err != nil {
				r.BrokenLinks = append(r.BrokenLinks, LinkIssue{
					Source: fe.relPath, Target: target, Reason: "target does not exist",
				})
				continue
			}

			if info.IsDir() {
				// Cards may legitimately point readers at preds/ and
				// truth/; only flag directories without a trailing slash,
				// where a file was probably intended.
				if !strings.HasSuffix(localTarget, "/") {
					r.DirectoryLinks = append(r.DirectoryLinks, LinkIssue{
						Source: fe.relPath, Target: target, Reason: "target is a directory, not a file",
					})
					continue
				}
			}

			r.ValidLinks++
			rel, err := filepath.Rel(datasetDir, resolved)
			if err == nil {
				linked[normalizePath(rel)] = true
			}
		}
	}

	r.UnreferencedMasks = findUnreferencedMasks(datasetDir, linked)

	return r
}

// collectMarkdownFiles walks dir and returns paths to .md files. Hidden
// directories are skipped.
func collectMarkdownFiles(dir string) []string {
	var files []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".md") {
			files = append(files, path)
		}
		return nil
	})
	return files
}

// extractLinksFromFile parses a markdown file and returns all link targets.
func extractLinksFromFile(filePath string) []extractedLink {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil
	}
	return extractLinksFromSource(data)
}

// extractLinksFromSource parses markdown bytes and extracts link/image destinations.
func extractLinksFromSource(source []byte) []extractedLink {
	md := goldmark.New()
	reader := text.NewReader(source)
	doc := md.Parser().Parse(reader)

	var links []extractedLink
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Link:
			links = append(links, extractedLink{target: string(v.Destination)})
		case *ast.Image:
			links = append(links, extractedLink{target: string(v.Destination)})
		case *ast.AutoLink:
			target := string(v.Label(source))
			if len(v.Protocol) > 0 && !strings.HasPrefix(target, string(v.Protocol)) {
				target = string(v.Protocol) + target
			}
			links = append(links, extractedLink{target: target})
		}
		return ast.WalkContinue, nil
	})
	return links
}

// isExternalURL returns true for http:// and https:// URLs.
func isExternalURL(target string) bool {
	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://")
}

// shouldSkipLink returns true for link schemes that should not be validated.
func shouldSkipLink(target string) bool {
	return strings.HasPrefix(target, "mailto:")
}

// stripFragment removes the #fragment portion of a URL or path.
func stripFragment(target string) string {
	if idx := strings.Index(target, "#"); idx >= 0 {
		return target[:idx]
	}
	return target
}

// isWithinDir returns true if path is inside dir (or is dir itself).
func isWithinDir(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

// findUnreferencedMasks reports PNG files under the dataset directory that
// neither a manifest sample nor a card link references. The manifest is
// loaded best-effort; a missing or broken eval.yaml skips the check since
// the schema validator reports that separately.
func findUnreferencedMasks(datasetDir string, linked map[string]bool) []string {
	m, err := dataset.Load(filepath.Join(datasetDir, discovery.ManifestFilename))
	if err != nil {
		return nil
	}

	referenced := make(map[string]bool)
	modelNames := m.ModelNames()
	if len(modelNames) == 0 {
		modelNames = []string{""}
	}
	for _, name := range modelNames {
		pairs, err := m.Pairs(datasetDir, name)
		if err != nil {
			continue
		}
		for _, p := range pairs {
			markReferenced(referenced, datasetDir, p.PredictionPath)
			markReferenced(referenced, datasetDir, p.TruthPath)
		}
	}

	var unreferenced []string
	_ = filepath.WalkDir(datasetDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != datasetDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".png") {
			return nil
		}
		rel, err := filepath.Rel(datasetDir, path)
		if err != nil {
			return nil
		}
		key := normalizePath(rel)
		if !referenced[key] && !linked[key] {
			unreferenced = append(unreferenced, filepath.ToSlash(rel))
		}
		return nil
	})
	sort.Strings(unreferenced)
	return unreferenced
}

// markReferenced records a pair path in the referenced set, keyed relative
// to the dataset directory.
func markReferenced(referenced map[string]bool, datasetDir, path string) {
	if path == "" {
		return
	}
	rel, err := filepath.Rel(datasetDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	referenced[normalizePath(rel)] = true
}

// normalizePath normalizes a path for comparison (case-insensitive on Windows).
func normalizePath(p string) string {
	p = filepath.ToSlash(p)
	if runtime.GOOS == "windows" {
		p = strings.ToLower(p)
	}
	return p
}
