package analytics

import (
	"fmt"

	"github.com/andresuchdata/vendor-analytics/internal/domain"
)

// ValidationIssue is a data quality warning found in the raw inputs.
type ValidationIssue struct {
	Dataset string `json:"dataset"`
	Check   string `json:"check"`
	Count   int    `json:"count"`
	Message string `json:"message"`
}

const (
	DatasetSales     = "sales"
	DatasetPurchases = "purchases"

	CheckEmpty           = "empty"
	CheckNegativeDollars = "negative_dollars"
	CheckMissingDate     = "missing_date"
)

// ValidateInputs runs the data quality checks on both datasets. Issues are
// informational and never block a run.
func ValidateInputs(sales []domain.SalesRecord, purchases []domain.PurchaseRecord) []ValidationIssue {
	var issues []ValidationIssue

	if len(sales) == 0 {
		issues = append(issues, ValidationIssue{Dataset: DatasetSales, Check: CheckEmpty, Message: "sales dataset is empty"})
	}
	if len(purchases) == 0 {
		issues = append(issues, ValidationIssue{Dataset: DatasetPurchases, Check: CheckEmpty, Message: "purchases dataset is empty"})
	}

	var negSales, undated int
	for _, r := range sales {
		if r.Dollars < 0 {
			negSales++
		}
		if r.Date == nil {
			undated++
		}
	}
	if negSales > 0 {
		issues = append(issues, ValidationIssue{
			Dataset: DatasetSales,
			Check:   CheckNegativeDollars,
			Count:   negSales,
			Message: fmt.Sprintf("found %d sales records with negative dollars", negSales),
		})
	}
	if undated > 0 {
		issues = append(issues, ValidationIssue{
			Dataset: DatasetSales,
			Check:   CheckMissingDate,
			Count:   undated,
			Message: fmt.Sprintf("found %d sales records without a date; they are excluded from forecasts", undated),
		})
	}

	var negPurchases int
	for _, r := range purchases {
		if r.Dollars < 0 {
			negPurchases++
		}
	}
	if negPurchases > 0 {
		issues = append(issues, ValidationIssue{
			Dataset: DatasetPurchases,
			Check:   CheckNegativeDollars,
			Count:   negPurchases,
			Message: fmt.Sprintf("found %d purchase records with negative dollars", negPurchases),
		})
	}

	return issues
}
