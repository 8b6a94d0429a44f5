package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// skippedSchemes are anchor targets that never lead to a page.
var skippedSchemes = []string{"javascript:", "#", "mailto:"}

// Parse extracts a Record from a fetched document body. It degrades
// rather than fails: on an internal error mid-extraction the
// already-collected data is returned together with the error.
func Parse(html string, base URLResolver) (record *Record, err error) {
	record = &Record{
		Headings: make(map[string][]string),
		Links:    []Link{},
		Tables:   []Table{},
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extract: partial result: %v", r)
		}
	}()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return record, err
	}

	record.Title = cleanText(doc.Find("title").First().Text())
	record.MetaDescription = cleanText(doc.Find("meta[name='description']").AttrOr("content", ""))

	for level := 1; level <= 6; level++ {
		tag := "h" + strconv.Itoa(level)
		doc.Find(tag).Each(func(_ int, h *goquery.Selection) {
			if text := cleanText(h.Text()); text != "" {
				record.Headings[tag] = append(record.Headings[tag], text)
			}
		})
	}

	record.Links = parseLinks(doc, base)
	record.Tables = parseTables(doc)
	return record, nil
}

// parseLinks collects anchors with non-empty visible text, skipping
// script/fragment/mail pseudo-targets and rewriting relative hrefs
// against the base origin.
func parseLinks(doc *goquery.Document, base URLResolver) []Link {
	links := []Link{}
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		text := cleanText(a.Text())
		if href == "" || text == "" {
			return
		}
		for _, scheme := range skippedSchemes {
			if strings.HasPrefix(href, scheme) {
				return
			}
		}
		links = append(links, Link{Text: text, Href: base.AbsoluteURL(href)})
	})
	return links
}

// parseTables applies the table invariants: a row with zero non-empty
// cells is dropped, and the first row containing a header cell becomes
// the header row, excluded from Rows and RowCount.
func parseTables(doc *goquery.Document) []Table {
	tables := []Table{}
	doc.Find("table").Each(func(idx int, tableSel *goquery.Selection) {
		var headers []string
		rows := [][]string{}

		tableSel.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			cells := []string{}
			anyContent := false
			tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
				text := cleanText(cell.Text())
				cells = append(cells, text)
				if text != "" {
					anyContent = true
				}
			})
			if len(cells) == 0 || !anyContent {
				return
			}
			if headers == nil && tr.Find("th").Length() > 0 {
				headers = cells
				return
			}
			rows = append(rows, cells)
		})

		if len(rows) == 0 && len(headers) == 0 {
			return
		}
		if headers == nil {
			headers = []string{}
		}
		tables = append(tables, Table{
			ID:       strconv.Itoa(idx),
			Headers:  headers,
			Rows:     rows,
			RowCount: len(rows),
		})
	})
	return tables
}
