package models

// ChargeSummary holds the computed totals for one group's invoice. Amounts are
// pre-formatted strings (2 decimals, half-up at the cent) so that what is
// rendered and what was summed can never drift apart.
type ChargeSummary struct {
	Autonomous string
	Assisted   string
	Training   string
	GrandTotal string

	// FeeAdjusted / SubsidyAdjusted report whether any usage session in the
	// invoice carried a non-zero fee or subsidy. The renderer only mentions
	// adjustments at all when one of these is set.
	FeeAdjusted     bool
	SubsidyAdjusted bool
}
