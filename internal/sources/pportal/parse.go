package pportal

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/728jm2pczg-glitch/bid-aggregator/internal/logger"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/sources"
)

// The result table's markup has shifted between portal releases, so
// selectors are tried most-specific first.
var tableSelectors = []string{
	"table.search-result tbody tr",
	"table.result-table tbody tr",
	"#searchResult tbody tr",
	".searchResultList tbody tr",
	"table tbody tr",
}

var countPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+)\s*件`),
	regexp.MustCompile(`件数[：:]\s*(\d+)`),
	regexp.MustCompile(`(\d+)\s*件中`),
}

// "2025/01/15 ～ 2025/02/15" with tilde or hyphen separators.
var publishRangePattern = regexp.MustCompile(`(\d{4}/\d{2}/\d{2})\s*[～~-]\s*(\d{4}/\d{2}/\d{2})`)

// parseResults extracts records and the reported total from a result
// page. A page with no recognizable table yields zero records, not an
// error: an empty result page has the same shape.
func parseResults(body []byte, baseURL string, log logger.Interface) ([]sources.Record, int, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, 0, &sources.ParseError{Err: fmt.Errorf("failed to parse result page: %w", err)}
	}

	total := parseTotal(string(body))

	var rows *goquery.Selection
	for _, selector := range tableSelectors {
		rows = doc.Find(selector)
		if rows.Length() > 0 {
			break
		}
	}
	if rows == nil || rows.Length() == 0 {
		log.Warn("no result table found in response", "total", total)
		return nil, total, nil
	}

	records := make([]sources.Record, 0, rows.Length())
	rows.Each(func(_ int, row *goquery.Selection) {
		rec, ok := parseRow(row, baseURL)
		if !ok {
			return
		}
		records = append(records, rec)
	})

	return records, total, nil
}

// parseTotal finds the reported hit count, first matching pattern wins.
func parseTotal(html string) int {
	for _, pattern := range countPatterns {
		if m := pattern.FindStringSubmatch(html); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil {
				return n
			}
		}
	}
	return 0
}

// parseRow reads one result row. Columns are positional: link cell with
// the case number, then title, organization, category, publish range.
// Header rows and malformed rows report ok=false and are skipped.
func parseRow(row *goquery.Selection, baseURL string) (sources.Record, bool) {
	cells := row.Find("td")
	if cells.Length() < 3 {
		return sources.Record{}, false
	}

	var rec sources.Record

	link := row.Find("a").First()
	if link.Length() > 0 {
		rec.Key = strings.TrimSpace(link.Text())
		if href, ok := link.Attr("href"); ok && href != "" {
			rec.URL = resolveURL(baseURL, href)
		}
	}

	rec.Title = strings.TrimSpace(cells.Eq(1).Text())
	rec.Organization = strings.TrimSpace(cells.Eq(2).Text())
	if cells.Length() > 3 {
		rec.Category = strings.TrimSpace(cells.Eq(3).Text())
	}
	if cells.Length() > 4 {
		if m := publishRangePattern.FindStringSubmatch(cells.Eq(4).Text()); m != nil {
			rec.PublishedRaw = strings.ReplaceAll(m[1], "/", "-")
			rec.DeadlineRaw = strings.ReplaceAll(m[2], "/", "-")
		}
	}

	if rec.Title == "" {
		return sources.Record{}, false
	}
	return rec, true
}

func resolveURL(baseURL, href string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
