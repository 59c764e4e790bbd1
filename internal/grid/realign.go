// Package grid rewrites a contribution-calendar table in place so the visual
// week starts on Monday instead of Sunday. It operates on parsed HTML trees;
// binding to a live page is the caller's concern.
package grid

import (
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const (
	// TableClass identifies the calendar table in the hosting page.
	TableClass = "js-calendar-graph-table"
	// Selector is the stable CSS selector used to locate the table.
	Selector = "table." + TableClass

	// MarkerAttr records that a given table instance has already been
	// corrected. The page drops it together with the table on re-render,
	// which is exactly the lifetime the marker needs.
	MarkerAttr   = "data-week-start"
	MarkerValue  = "monday"
	sundayAbbrev = "Sun"
	weekRows     = 7
)

// Realigner performs the Sunday-first to Monday-first correction.
type Realigner struct {
	log *zap.Logger
}

// NewRealigner returns a Realigner logging through the given logger.
// A nil logger disables logging.
func NewRealigner(log *zap.Logger) *Realigner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Realigner{log: log.Named("realign")}
}

// Realign checks whether table is a well-formed Sunday-first calendar grid
// and, if so, rewrites it to Monday-first and sets the correction marker.
// It reports whether the tree was changed. Structural mismatches return
// false silently; they recur benignly while the page is still rendering.
// Failures during mutation are recovered and logged, and the marker is left
// unset so a later pass can retry.
func (r *Realigner) Realign(table *html.Node) (changed bool) {
	if table == nil {
		return false
	}
	if attr(table, MarkerAttr) == MarkerValue {
		return false
	}
	body := singleTBody(table)
	if body == nil {
		return false
	}
	rows := childElements(body, "tr")
	if len(rows) != weekRows {
		return false
	}
	cells := rowCells(rows[0])
	if len(cells) < 2 {
		return false
	}
	label := hiddenLabel(cells[0])
	if label == nil || strings.TrimSpace(textContent(label)) != sundayAbbrev {
		return false
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("grid mutation aborted", zap.Any("panic", rec))
			changed = false
		}
	}()

	// Move Sunday below Saturday. Rows 1..6 shift up one slot, keeping
	// their relative order.
	sunday := rows[0]
	body.RemoveChild(sunday)
	body.AppendChild(sunday)

	// The vertical shift misaligns Sunday's data cells by one week column;
	// dropping the first data cell re-syncs them.
	if cells := rowCells(sunday); len(cells) > 1 {
		sunday.RemoveChild(cells[1])
	}

	// The label was hidden while Sunday sat in the top row. Reveal it.
	if style := attr(label, "style"); style != "" {
		if patched, ok := patchClip(style); ok {
			setAttr(label, "style", patched)
		}
	}

	setAttr(table, MarkerAttr, MarkerValue)
	return true
}

// patchClip rewrites a clip-path declaration whose value is a zero-size
// circle to the no-op "none". Declarations are edited structurally rather
// than by substring replacement; everything else in the style string is
// preserved verbatim.
func patchClip(style string) (string, bool) {
	decls := strings.Split(style, ";")
	changed := false
	for i, decl := range decls {
		name, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(name), "clip-path") {
			continue
		}
		if !isZeroCircle(strings.TrimSpace(value)) {
			continue
		}
		lead := decl[:len(decl)-len(strings.TrimLeft(decl, " \t"))]
		decls[i] = lead + "clip-path: none"
		changed = true
	}
	if !changed {
		return style, false
	}
	return strings.Join(decls, ";"), true
}

// isZeroCircle matches circle() clip shapes with a zero radius, such as
// "circle(0)", "Circle(0px)" or "circle(0 at 50% 50%)".
func isZeroCircle(value string) bool {
	v := strings.ToLower(value)
	if !strings.HasPrefix(v, "circle(") || !strings.HasSuffix(v, ")") {
		return false
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(v, "circle("), ")")
	fields := strings.Fields(inner)
	if len(fields) == 0 {
		return false
	}
	radius := fields[0]
	for _, unit := range []string{"px", "em", "rem", "%"} {
		if strings.HasSuffix(radius, unit) {
			radius = strings.TrimSuffix(radius, unit)
			break
		}
	}
	return radius == "0" || radius == "0.0"
}
