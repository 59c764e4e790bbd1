package grid

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// FindTable locates the calendar table in a parsed document or fragment by
// its well-known class. It returns nil when no such table exists.
func FindTable(doc *html.Node) *html.Node {
	var table *html.Node
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if table != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "table" && hasClass(n, TableClass) {
			table = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	if doc != nil {
		traverse(doc)
	}
	return table
}

// Render serializes a node back to markup.
func Render(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// singleTBody returns the table's body container, or nil unless the table
// has exactly one.
func singleTBody(table *html.Node) *html.Node {
	var body *html.Node
	for c := table.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "tbody" {
			if body != nil {
				return nil
			}
			body = c
		}
	}
	return body
}

// childElements returns the direct child elements of n with the given tag,
// skipping whitespace text nodes the parser keeps between rows.
func childElements(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			out = append(out, c)
		}
	}
	return out
}

// rowCells returns a row's cells in order, the label cell first.
func rowCells(row *html.Node) []*html.Node {
	var cells []*html.Node
	for c := row.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
			cells = append(cells, c)
		}
	}
	return cells
}

// hiddenLabel finds the day-name marker inside a label cell: the first
// descendant element flagged as hidden from assistive technology.
func hiddenLabel(cell *html.Node) *html.Node {
	var found *html.Node
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && attr(n, "aria-hidden") == "true" {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	for c := cell.FirstChild; c != nil; c = c.NextSibling {
		traverse(c)
	}
	return found
}

// textContent concatenates the text nodes under n.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(n)
	return sb.String()
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
