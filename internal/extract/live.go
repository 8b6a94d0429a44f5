package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/quayside-labs/quayscrape/internal/config"
)

// listFramesJS enumerates the page's iframes with their visibility.
// Frames are addressed by index in later calls since many portal frames
// carry no id.
const listFramesJS = `(function() {
	const frames = [];
	document.querySelectorAll('iframe').forEach((el, index) => {
		const style = window.getComputedStyle(el);
		frames.push({
			index: index,
			id: el.id || '',
			visible: style.display !== 'none' && style.visibility !== 'hidden' && el.offsetParent !== null,
		});
	});
	return frames;
})()`

// fillSearchJS locates a terminal/location input inside the frame by a
// keyword heuristic, fills it, and triggers a search control (click on a
// Search/Query/Find/Go labelled element, else an Enter key-press).
const fillSearchJS = `(function(frameIndex, code) {
	const el = document.querySelectorAll('iframe')[frameIndex];
	if (!el) return { error: 'frame gone' };
	let doc, win;
	try {
		doc = el.contentDocument;
		win = el.contentWindow;
		if (!doc) return { error: 'cross-origin frame' };
	} catch (e) {
		return { error: 'cross-origin frame' };
	}

	const keywords = ['terminal', 'loc', 'port', 'yard'];
	let filled = false;
	let target = null;
	for (const input of doc.querySelectorAll('input[type="text"]')) {
		const hint = ((input.placeholder || '') + (input.id || '') + (input.name || '')).toLowerCase();
		if (keywords.some(kw => hint.includes(kw))) {
			input.value = code;
			input.dispatchEvent(new Event('input', { bubbles: true }));
			input.dispatchEvent(new Event('change', { bubbles: true }));
			filled = true;
			target = input;
			break;
		}
	}

	const labels = ['search', 'query', 'find', 'go'];
	let clicked = false;
	for (const ctl of doc.querySelectorAll('span, a, button')) {
		const text = (ctl.innerText || '').trim().toLowerCase();
		if (labels.includes(text)) {
			ctl.click();
			clicked = true;
			break;
		}
	}
	if (!clicked && target) {
		const ev = new KeyboardEvent('keydown', { key: 'Enter', keyCode: 13, bubbles: true });
		target.dispatchEvent(ev);
	}
	return { filled: filled, clicked: clicked };
})`

// collectFrameJS gathers, from one frame, the union of (a) ExtJS grid
// stores (kept even when empty, since an empty grid still communicates
// page structure), (b) DOM nodes bearing grid marker classes, and
// (c) plain tables with the static-mode drop/classify rules.
const collectFrameJS = `(function(frameIndex) {
	const el = document.querySelectorAll('iframe')[frameIndex];
	if (!el) return { error: 'frame gone' };
	let doc, win;
	try {
		doc = el.contentDocument;
		win = el.contentWindow;
		if (!doc) return { error: 'cross-origin frame' };
	} catch (e) {
		return { error: 'cross-origin frame' };
	}

	const grids = [];
	const Ext = win.Ext;
	if (typeof Ext !== 'undefined' && Ext.ComponentQuery) {
		Ext.ComponentQuery.query('grid').forEach((grid) => {
			const store = grid.getStore && grid.getStore();
			if (!store) return;
			const columns = grid.columns ? grid.columns.map(c => c.text || c.dataIndex || '') : [];
			const records = [];
			store.each(record => {
				const row = {};
				for (const key in record.data) {
					const v = record.data[key];
					row[key] = v === null || v === undefined ? '' : String(v);
				}
				records.push(row);
			});
			grids.push({ title: grid.title || '', columns: columns, records: records });
		});
	}

	const tables = [];
	doc.querySelectorAll('.x-grid-view, .x-grid-item-container').forEach((view, idx) => {
		const rows = [];
		view.querySelectorAll('.x-grid-row, .x-grid-item').forEach(row => {
			const cells = [];
			row.querySelectorAll('.x-grid-cell, .x-grid-cell-inner, td').forEach(cell => {
				cells.push(cell.innerText.trim());
			});
			if (cells.length > 0 && cells.some(c => c)) rows.push(cells);
		});
		if (rows.length > 0) tables.push({ id: 'gridview_' + idx, headers: [], rows: rows });
	});

	doc.querySelectorAll('table').forEach((table, idx) => {
		const rows = [];
		let headers = null;
		table.querySelectorAll('tr').forEach(tr => {
			const cells = [];
			const isHeader = tr.querySelectorAll('th').length > 0;
			tr.querySelectorAll('td, th').forEach(cell => cells.push(cell.innerText.trim()));
			if (cells.length === 0 || !cells.some(c => c)) return;
			if (isHeader && headers === null) { headers = cells; return; }
			rows.push(cells);
		});
		if (rows.length > 0 || headers !== null) {
			tables.push({ id: 'table_' + idx, headers: headers || [], rows: rows });
		}
	});

	return { grids: grids, tables: tables };
})`

// openDataPageJS clicks the first top-level menu or tab item pointing at
// a data page. Portals land on a dashboard after login; the grids live
// behind a schedule/availability menu entry.
const openDataPageJS = `(function() {
	const labels = ['vessel schedule', 'schedule', 'availability', 'import', 'inquiry'];
	for (const label of labels) {
		for (const ctl of document.querySelectorAll('a, span.x-tab-inner, span.x-menu-item-text, button, li')) {
			const text = (ctl.innerText || '').trim().toLowerCase();
			if (text === label || (text.length < 40 && text.includes(label))) {
				ctl.click();
				return { clicked: true, label: text };
			}
		}
	}
	return { clicked: false };
})()`

type frameInfo struct {
	Index   int    `json:"index"`
	ID      string `json:"id"`
	Visible bool   `json:"visible"`
}

type framePayload struct {
	Error string `json:"error"`
	Grids []struct {
		Title   string              `json:"title"`
		Columns []string            `json:"columns"`
		Records []map[string]string `json:"records"`
	} `json:"grids"`
	Tables []struct {
		ID      string     `json:"id"`
		Headers []string   `json:"headers"`
		Rows    [][]string `json:"rows"`
	} `json:"tables"`
}

// LiveExtractor walks the visible frames of an authenticated, scripted
// browser page and collects grid/table state from each.
type LiveExtractor struct {
	cfg    config.BrowserConfig
	logger *zap.Logger
}

// NewLiveExtractor creates a live-DOM extractor.
func NewLiveExtractor(cfg config.BrowserConfig, logger *zap.Logger) *LiveExtractor {
	return &LiveExtractor{cfg: cfg, logger: logger.Named("live_extract")}
}

// Extract runs the frame walk on the tab bound to ctx, filling the
// location code into any search field it can identify first. A frame
// that fails is recorded in FrameErrors and does not abort its siblings.
func (e *LiveExtractor) Extract(ctx context.Context, locationCode string) (*LiveResult, error) {
	result := &LiveResult{
		Grids:       []Grid{},
		Tables:      []Table{},
		FrameErrors: map[string]string{},
	}

	// Settle delay: the frame content is rendered asynchronously after
	// the tab reports ready.
	if err := chromedp.Run(ctx, chromedp.Sleep(e.cfg.SettleDelay)); err != nil {
		return result, err
	}

	if err := chromedp.Run(ctx,
		chromedp.Location(&result.URL),
		chromedp.Title(&result.Title),
	); err != nil {
		return result, err
	}

	e.openDataPage(ctx)

	var frames []frameInfo
	if err := chromedp.Run(ctx, chromedp.Evaluate(listFramesJS, &frames)); err != nil {
		return result, fmt.Errorf("extract: failed to enumerate frames: %w", err)
	}
	e.logger.Info("Enumerated frames", zap.Int("count", len(frames)))

	for _, frame := range frames {
		if !frame.Visible {
			e.logger.Debug("Skipping hidden frame", zap.String("frame", frameName(frame)))
			continue
		}
		e.extractFrame(ctx, frame, locationCode, result)
	}
	return result, nil
}

// openDataPage steers from the post-login dashboard toward the page
// carrying the data grids. Best effort: when no menu entry matches, the
// frame walk proceeds on the current page.
func (e *LiveExtractor) openDataPage(ctx context.Context) {
	var nav struct {
		Clicked bool   `json:"clicked"`
		Label   string `json:"label"`
	}
	if err := chromedp.Run(ctx, chromedp.Evaluate(openDataPageJS, &nav)); err != nil {
		e.logger.Debug("Menu navigation failed", zap.Error(err))
		return
	}
	if nav.Clicked {
		e.logger.Info("Opened data page", zap.String("menu", nav.Label))
		_ = chromedp.Run(ctx, chromedp.Sleep(e.cfg.SettleDelay))
	}
}

// extractFrame processes a single frame; its errors land in
// result.FrameErrors only.
func (e *LiveExtractor) extractFrame(ctx context.Context, frame frameInfo, locationCode string, result *LiveResult) {
	name := frameName(frame)

	var search struct {
		Error   string `json:"error"`
		Filled  bool   `json:"filled"`
		Clicked bool   `json:"clicked"`
	}
	err := chromedp.Run(ctx,
		chromedp.Evaluate(callJS(fillSearchJS, frame.Index, locationCode), &search),
	)
	if err != nil {
		result.FrameErrors[name] = err.Error()
		return
	}
	if search.Error != "" {
		result.FrameErrors[name] = search.Error
		return
	}
	if search.Filled || search.Clicked {
		// Give the triggered query time to come back.
		_ = chromedp.Run(ctx, chromedp.Sleep(e.cfg.SubmitWait))
	}
	_ = chromedp.Run(ctx, chromedp.Sleep(e.cfg.SettleDelay))

	var payload framePayload
	if err := chromedp.Run(ctx, chromedp.Evaluate(callJS(collectFrameJS, frame.Index), &payload)); err != nil {
		result.FrameErrors[name] = err.Error()
		return
	}
	if payload.Error != "" {
		result.FrameErrors[name] = payload.Error
		return
	}

	for _, g := range payload.Grids {
		result.Grids = append(result.Grids, Grid{
			SourceFrame: name,
			Title:       g.Title,
			Columns:     g.Columns,
			Records:     g.Records,
		})
	}
	for _, t := range payload.Tables {
		result.Tables = append(result.Tables, Table{
			ID:          t.ID,
			Headers:     t.Headers,
			Rows:        t.Rows,
			RowCount:    len(t.Rows),
			SourceFrame: name,
		})
	}
	e.logger.Info("Extracted frame",
		zap.String("frame", name),
		zap.Int("grids", len(payload.Grids)),
		zap.Int("tables", len(payload.Tables)))
}

// frameName gives a stable identifier for a frame with or without an id
// attribute.
func frameName(f frameInfo) string {
	if f.ID != "" {
		return f.ID
	}
	return "frame_" + strconv.Itoa(f.Index)
}

// callJS applies a JS function literal to the given arguments.
func callJS(fn string, args ...any) string {
	encoded := make([]string, len(args))
	for i, arg := range args {
		b, _ := json.Marshal(arg)
		encoded[i] = string(b)
	}
	call := fn + "("
	for i, e := range encoded {
		if i > 0 {
			call += ", "
		}
		call += e
	}
	return call + ")"
}
