package inactivity

import (
	"fmt"
	"strings"

	"github.com/vistapay/merchant-radar/internal/features"
)

const dateLayout = "2006-01-02"

// FormatLastTransaction renders the merchant's most recent transaction as
// the colored HTML fragment the dashboard expects:
//
//	<span style="color:green;">+1500.50</span> - 2024-01-10
//
// Credits are green with a leading +, debits red with a leading -. With
// no amount but a known date, only "- <date>" is rendered; with nothing
// known, the result is empty. Absent values never leak into the output
// as placeholder text.
func FormatLastTransaction(row *features.Row) string {
	var b strings.Builder

	if row.LastTxAmount != nil {
		sign, color := "-", "red"
		if row.LastTxCredit {
			sign, color = "+", "green"
		}
		fmt.Fprintf(&b, `<span style="color:%s;">%s%.2f</span> - `, color, sign, *row.LastTxAmount)
	} else if row.LastTxAt != nil {
		b.WriteString("- ")
	}

	if row.LastTxAt != nil {
		b.WriteString(row.LastTxAt.Format(dateLayout))
	}

	return strings.TrimSuffix(b.String(), " - ")
}
