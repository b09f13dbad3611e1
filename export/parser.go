// Package export parses collection export files into catalog items. The
// export format is CSV with site-dependent header labels, so parsing is
// driven by a header alias table rather than fixed column positions.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-collection-sync/core"
)

// Status labels after normalization. Anything unrecognized maps to unknown so
// a new site label never breaks a sync.
const (
	StatusOwned      = "owned"
	StatusWishlist   = "wishlist"
	StatusPreordered = "preordered"
	StatusUnknown    = "unknown"
)

var headerAliases = map[string]string{
	"id":           "key",
	"item id":      "key",
	"item_id":      "key",
	"catalog id":   "key",
	"catalog_id":   "key",
	"name":         "name",
	"title":        "name",
	"category":     "category",
	"type":         "category",
	"status":       "status",
	"state":        "status",
	"nsfw":         "nsfw",
	"adult":        "nsfw",
	"price":        "price",
	"paid":         "price",
	"release date": "release_date",
	"release_date": "release_date",
	"released":     "release_date",
	"tier":         "tier",
	"priority":     "tier",
}

var statusAliases = map[string]string{
	"owned":      StatusOwned,
	"own":        StatusOwned,
	"collection": StatusOwned,
	"wishlist":   StatusWishlist,
	"wish":       StatusWishlist,
	"wanted":     StatusWishlist,
	"preordered": StatusPreordered,
	"preorder":   StatusPreordered,
	"pre-order":  StatusPreordered,
	"ordered":    StatusPreordered,
}

var releaseDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/2006",
	"2006-01",
	"January 2006",
	"Jan 2006",
	"2006",
}

// CSVParser implements core.ExportParser.
type CSVParser struct{}

func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

// Parse reads a CSV export and returns its items in file order. Rows whose
// key column is missing or non-numeric are skipped rather than failing the
// whole export. A missing or unmappable header row is an error.
func (p *CSVParser) Parse(raw []byte) ([]core.CatalogItem, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("export: export payload is empty")
	}

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("export: read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("export: export payload is empty")
	}

	columns := mapHeader(records[0])
	if _, ok := columns["key"]; !ok {
		return nil, fmt.Errorf("export: export header has no item key column")
	}

	items := make([]core.CatalogItem, 0, len(records)-1)
	for _, record := range records[1:] {
		item, ok := parseRow(columns, record)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func mapHeader(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, label := range header {
		canonical, ok := headerAliases[strings.ToLower(strings.TrimSpace(label))]
		if !ok {
			continue
		}
		if _, taken := columns[canonical]; taken {
			continue
		}
		columns[canonical] = i
	}
	return columns
}

func parseRow(columns map[string]int, record []string) (core.CatalogItem, bool) {
	field := func(name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	key := field("key")
	if !core.ValidItemKey(key) {
		return core.CatalogItem{}, false
	}

	item := core.CatalogItem{
		Key:      key,
		Name:     field("name"),
		Category: field("category"),
		Status:   NormalizeStatus(field("status")),
		NSFW:     parseFlag(field("nsfw")),
		TierHint: core.NormalizeTier(field("tier")),
	}
	if price, ok := parsePrice(field("price")); ok {
		item.Price = &price
	}
	if released, ok := parseReleaseDate(field("release_date")); ok {
		item.ReleaseDate = &released
	}
	return item, true
}

// NormalizeStatus maps a site status label onto the canonical set.
func NormalizeStatus(label string) string {
	if status, ok := statusAliases[strings.ToLower(strings.TrimSpace(label))]; ok {
		return status
	}
	return StatusUnknown
}

func parseFlag(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "y", "x":
		return true
	}
	return false
}

func parsePrice(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	value = strings.TrimLeft(value, "$€£¥ ")
	value = strings.ReplaceAll(value, ",", "")
	price, err := strconv.ParseFloat(value, 64)
	if err != nil || price < 0 {
		return 0, false
	}
	return price, true
}

func parseReleaseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range releaseDateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

var _ core.ExportParser = (*CSVParser)(nil)
