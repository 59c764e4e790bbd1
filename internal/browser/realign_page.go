package browser

import (
	"context"
	"strings"

	"github.com/go-rod/rod"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"weekshift/internal/grid"
)

// PageRealigner applies the Monday-first correction to a live page. It pulls
// the calendar table's markup, runs the tree-level realigner on it, and
// writes the corrected markup back in a single outerHTML assignment so the
// page never observes a half-mutated grid.
type PageRealigner struct {
	page *rod.Page
	re   *grid.Realigner
	log  *zap.Logger
}

// NewPageRealigner wires a realigner to a page. A nil logger disables
// logging.
func NewPageRealigner(page *rod.Page, re *grid.Realigner, log *zap.Logger) *PageRealigner {
	if log == nil {
		log = zap.NewNop()
	}
	return &PageRealigner{page: page, re: re, log: log.Named("realign")}
}

// WaitReady blocks until the document's structural content is available.
// It returns immediately when the page has already fired its load event.
func (p *PageRealigner) WaitReady(ctx context.Context) error {
	return p.page.Context(ctx).WaitLoad()
}

// Check locates the calendar table and realigns it if needed, reporting
// whether the table was found at all. Every failure is absorbed here; a
// fault must never propagate into the page or the event delivery that
// triggered the check.
func (p *PageRealigner) Check(ctx context.Context) (found bool) {
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error("page check aborted", zap.Any("panic", rec))
		}
	}()

	page := p.page.Context(ctx)
	has, el, err := page.Has(grid.Selector)
	if err != nil {
		p.log.Debug("selector query failed", zap.Error(err))
		return false
	}
	if !has {
		return false
	}

	markup, err := el.HTML()
	if err != nil {
		p.log.Warn("read grid markup", zap.Error(err))
		return true
	}
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		p.log.Warn("parse grid markup", zap.Error(err))
		return true
	}
	table := grid.FindTable(doc)
	if table == nil {
		return true
	}
	if !p.re.Realign(table) {
		return true
	}
	out, err := grid.Render(table)
	if err != nil {
		p.log.Error("serialize corrected grid", zap.Error(err))
		return true
	}
	if _, err := el.Eval(`(markup) => { this.outerHTML = markup }`, out); err != nil {
		p.log.Error("write corrected grid back", zap.Error(err))
		return true
	}
	p.log.Info("calendar grid realigned to Monday-first")
	return true
}
