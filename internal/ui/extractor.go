// File: internal/ui/extractor.go

// Package ui parses Android UI hierarchy dumps into a de-duplicated,
// deterministically ordered list of interactive elements with stable
// identifiers.
package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

// Role hint keyword sets, matched case-insensitively by containment against
// the element's resource-id, content-desc and text. Precedence is the listed
// order: search beats nav beats result.
var (
	searchKeywords = []string{"search", "query", "find"}
	navKeywords    = []string{"nav", "navigation", "tab", "toolbar", "home", "profile", "menu"}
	resultKeywords = []string{"result", "display", "output"}
)

// Extractor turns UI hierarchy XML into []Element.
type Extractor struct {
	logger *zap.Logger
	// minElementDist is the minimum Manhattan distance between element
	// centers; closer pairs collapse into the first element in reading order.
	minElementDist int
}

// NewExtractor creates an Extractor with the configured minimum element
// separation distance in pixels.
func NewExtractor(logger *zap.Logger, minElementDist int) *Extractor {
	return &Extractor{
		logger:         logger.Named("ui_extractor"),
		minElementDist: minElementDist,
	}
}

// ExtractFile parses the XML dump at path. An unreadable or malformed
// document yields an empty list and an error; the caller treats that as a
// skipped round, never a crash.
func (e *Extractor) ExtractFile(path string) ([]Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, fmt.Errorf("parsing ui dump %s: %w", path, err)
	}
	return e.extract(doc), nil
}

// ExtractBytes parses an in-memory XML dump. Used by tests and by callers
// that stream the dump without touching disk.
func (e *Extractor) ExtractBytes(data []byte) ([]Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parsing ui dump: %w", err)
	}
	return e.extract(doc), nil
}

// extract walks the whole tree once, carrying each node's parent explicitly
// so identifier generation can prefix the parent's identifier without
// re-deriving traversal state.
func (e *Extractor) extract(doc *etree.Document) []Element {
	var candidates []Element

	var walk func(node, parent *etree.Element)
	walk = func(node, parent *etree.Element) {
		if elem, ok := e.elementFromNode(node, parent); ok {
			candidates = append(candidates, elem)
		}
		for _, child := range node.ChildElements() {
			walk(child, node)
		}
	}
	for _, root := range doc.ChildElements() {
		walk(root, nil)
	}

	// Deterministic reading order: top to bottom, then left to right.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Bounds.Y1 != candidates[j].Bounds.Y1 {
			return candidates[i].Bounds.Y1 < candidates[j].Bounds.Y1
		}
		return candidates[i].Bounds.X1 < candidates[j].Bounds.X1
	})

	return e.dedupe(candidates)
}

// elementFromNode selects interactive nodes and builds their Element. A node
// qualifies when it is clickable or focusable and has a non-degenerate box.
func (e *Extractor) elementFromNode(node, parent *etree.Element) (Element, bool) {
	clickable := node.SelectAttrValue("clickable", "false") == "true"
	focusable := node.SelectAttrValue("focusable", "false") == "true"
	if !clickable && !focusable {
		return Element{}, false
	}

	boundsStr := node.SelectAttrValue("bounds", "")
	if boundsStr == "" {
		return Element{}, false
	}
	bounds, err := parseBounds(boundsStr)
	if err != nil {
		e.logger.Warn("Skipping element with malformed bounds",
			zap.String("bounds", boundsStr),
			zap.String("class", node.SelectAttrValue("class", "")),
			zap.Error(err))
		return Element{}, false
	}
	if bounds.Width() <= 0 || bounds.Height() <= 0 {
		return Element{}, false
	}

	identifier := identifierFor(node, bounds)
	if parent != nil {
		parentBounds, err := parseBounds(parent.SelectAttrValue("bounds", "[0,0][0,0]"))
		if err != nil {
			parentBounds = Rect{}
		}
		identifier = identifierFor(parent, parentBounds) + "." + identifier
	}

	// Prefer literal text, else the content description.
	text := node.SelectAttrValue("text", "")
	if text == "" {
		text = node.SelectAttrValue("content-desc", "")
	}

	return Element{
		Identifier: identifier,
		Bounds:     bounds,
		Clickable:  clickable,
		Focusable:  focusable,
		Role:       roleFor(node),
		Text:       text,
	}, true
}

// dedupe walks the sorted candidates and keeps an element only if its center
// is at least minElementDist (Manhattan) away from every already-kept center.
func (e *Extractor) dedupe(sorted []Element) []Element {
	kept := make([]Element, 0, len(sorted))
	for _, cand := range sorted {
		cx, cy := cand.Bounds.Center()
		tooClose := false
		for _, k := range kept {
			kx, ky := k.Bounds.Center()
			if abs(cx-kx)+abs(cy-ky) < e.minElementDist {
				tooClose = true
				break
			}
		}
		if !tooClose {
			kept = append(kept, cand)
		}
	}
	return kept
}

// identifierFor derives the stable identifier for a single node: a sanitized
// resource-id, else "<class>_<w>x<h>", plus a short sanitized content
// description when one exists.
func identifierFor(node *etree.Element, bounds Rect) string {
	var id string
	if resID := node.SelectAttrValue("resource-id", ""); resID != "" {
		id = strings.ReplaceAll(strings.ReplaceAll(resID, "/", "_"), ":", ".")
	} else {
		class := node.SelectAttrValue("class", "NoClass")
		id = fmt.Sprintf("%s_%dx%d", class, bounds.Width(), bounds.Height())
	}

	if desc := node.SelectAttrValue("content-desc", ""); desc != "" && len(desc) < 25 {
		if s := sanitizeDesc(desc); s != "" {
			id += "_" + s
		}
	}
	return id
}

// sanitizeDesc keeps alphanumerics, underscores and dashes, mapping spaces
// to underscores, so the identifier stays usable as a file name.
func sanitizeDesc(desc string) string {
	var b strings.Builder
	for _, r := range desc {
		switch {
		case r == ' ':
			b.WriteRune('_')
		case r == '_' || r == '-':
			b.WriteRune(r)
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// roleFor matches the node's textual attributes against the role keyword
// sets. First match wins in search > nav > result precedence.
func roleFor(node *etree.Element) Role {
	resID := strings.ToLower(node.SelectAttrValue("resource-id", ""))
	desc := strings.ToLower(node.SelectAttrValue("content-desc", ""))
	text := strings.ToLower(node.SelectAttrValue("text", ""))
	class := strings.ToLower(node.SelectAttrValue("class", ""))
	searchSpace := resID + " " + desc + " " + text

	if containsAny(searchSpace, searchKeywords) || strings.Contains(class, "searchview") {
		return RoleSearchBar
	}
	if containsAny(searchSpace, navKeywords) ||
		strings.Contains(class, "bottomnavigation") || strings.Contains(class, "tabwidget") {
		return RoleNavItem
	}
	if containsAny(searchSpace, resultKeywords) {
		return RoleResult
	}
	return RoleNone
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// parseBounds parses the uiautomator bounds format "[x1,y1][x2,y2]".
func parseBounds(s string) (Rect, error) {
	var r Rect
	if _, err := fmt.Sscanf(s, "[%d,%d][%d,%d]", &r.X1, &r.Y1, &r.X2, &r.Y2); err != nil {
		return Rect{}, fmt.Errorf("malformed bounds %q: %w", s, err)
	}
	return r, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
