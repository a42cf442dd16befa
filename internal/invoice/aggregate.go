package invoice

import (
	"strings"

	"invoicepost/internal/models"
)

// Classify returns the sessions whose raw source label contains the given
// keyword, preserving original order. Substring matching, not equality: the
// source emits variants like "assisted-remote" that still bill as assisted.
func Classify(sessions []models.Session, keyword string) []models.Session {
	var matched []models.Session
	for _, session := range sessions {
		if strings.Contains(session.TypeLabel(), keyword) {
			matched = append(matched, session)
		}
	}
	return matched
}

// SumAmount sums the final amounts of a bucket and formats the result with
// the cent rounding rule. The rounding is applied once to the running sum,
// not per element. An empty bucket sums to "0.00".
func SumAmount(sessions []models.Session) string {
	total := 0.0
	for _, session := range sessions {
		total += session.Amount()
	}
	return models.FormatAmount(total)
}

// GrandTotal sums final amounts across all buckets as one running sum. It must
// never be computed from the pre-rounded per-category totals; that compounds
// rounding error and drifts from the externally issued invoice.
func GrandTotal(buckets ...[]models.Session) string {
	total := 0.0
	for _, bucket := range buckets {
		for _, session := range bucket {
			total += session.Amount()
		}
	}
	return models.FormatAmount(total)
}

// DetectAdjustments reports whether any usage session carries a non-zero fee
// or subsidy. Training sessions have no adjustment concept and never
// participate.
func DetectAdjustments(sessions []models.Session) (feeFlag, subsidyFlag bool) {
	for _, session := range sessions {
		usage, ok := session.(*models.UsageSession)
		if !ok {
			continue
		}
		if usage.Fee > 0 {
			feeFlag = true
		}
		if usage.Subsidy > 0 {
			subsidyFlag = true
		}
	}
	return feeFlag, subsidyFlag
}
