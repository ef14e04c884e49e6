package ingest

import "strings"

var columnNameSanitizer = strings.NewReplacer(" ", "", "_", "", ".", "", "-", "", "/", "")

func normalizeColumnName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	name = strings.TrimPrefix(name, "\ufeff")
	return columnNameSanitizer.Replace(name)
}

// header resolves column positions by any of several accepted names.
type header []string

func (h header) index(names ...string) int {
	if len(names) == 0 {
		return -1
	}
	targets := make(map[string]struct{}, len(names))
	for _, name := range names {
		targets[normalizeColumnName(name)] = struct{}{}
	}
	for i, col := range h {
		if _, ok := targets[normalizeColumnName(col)]; ok {
			return i
		}
	}
	return -1
}

// Accepted header names per field.
var (
	vendorColumns      = []string{"vendor", "vendor_name", "vendorname", "supplier"}
	descriptionColumns = []string{"description", "item", "product", "product name"}

	salesQuantityColumns = []string{"sales_quantity", "salesquantity", "quantity", "qty"}
	salesDollarsColumns  = []string{"sales_dollars", "salesdollars", "dollars", "amount", "revenue"}
	salesDateColumns     = []string{"sales_date", "salesdate", "date"}

	purchaseQuantityColumns = []string{"purchase_quantity", "purchasequantity", "quantity", "qty"}
	purchaseDollarsColumns  = []string{"purchase_dollars", "purchasedollars", "dollars", "amount", "cost"}
	purchaseDateColumns     = []string{"receiving_date", "receivingdate", "po_date", "podate", "purchase_date", "date"}

	stockColumns = []string{"on_hand", "onhand", "stock", "current_stock", "quantity"}
)
