package invoice

import (
	"fmt"
	"strings"
	"time"
)

// The invoice reference embeds the billing date as an 8-digit YYYYMMDD
// substring at a fixed offset.
const (
	refDateOffset = 17
	refDateLength = 8
)

// InvoiceDate is the billing-period date derived from an invoice reference.
type InvoiceDate struct {
	Time time.Time

	// Year and MonthName name the issue date and drive the output directory
	// layout. SessionsMonthName is the month the billed sessions took place
	// in, one month before issue.
	Year              string
	MonthName         string
	SessionsMonthName string

	// Display is the issue date in DD/MM/YYYY form for the rendered document.
	Display string
}

// ParseInvoiceDate extracts the billing date from an invoice reference. A
// reference without a readable date is fatal for the whole run: nothing can
// be billed without the period.
func ParseInvoiceDate(ref string) (InvoiceDate, error) {
	if len(ref) < refDateOffset+refDateLength {
		return InvoiceDate{}, fmt.Errorf("%w: invoice reference %q has no embedded date", ErrConfiguration, ref)
	}
	t, err := time.Parse("20060102", ref[refDateOffset:refDateOffset+refDateLength])
	if err != nil {
		return InvoiceDate{}, fmt.Errorf("%w: invoice reference %q: %v", ErrConfiguration, ref, err)
	}

	sessionsMonth := t.Month() - 1
	if sessionsMonth < time.January {
		sessionsMonth = time.December
	}

	return InvoiceDate{
		Time:              t,
		Year:              t.Format("2006"),
		MonthName:         t.Month().String(),
		SessionsMonthName: sessionsMonth.String(),
		Display:           t.Format("02/01/2006"),
	}, nil
}

// DocumentFileName builds the deterministic file name for one group's invoice
// document. Split codes embed vertical bars, which are not safe in paths, so
// they are replaced with hyphens.
func DocumentFileName(invoiceRef, billedCode string) string {
	name := fmt.Sprintf("invoice_%s-%s.html", invoiceRef, billedCode)
	return strings.ReplaceAll(name, "|", "-")
}
