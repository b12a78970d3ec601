package handler

import (
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var monthNames = [...]string{
	"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

// formatMoney renders d as Brazilian currency, e.g. "R$ 1.234,56".
func formatMoney(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return "R$ " + message.NewPrinter(language.BrazilianPortuguese).Sprintf("%.2f", f)
}

func formatMoneyFloat(f float64) string {
	return formatMoney(decimal.NewFromFloat(f))
}

// formatNumber renders an optional form value with the pt-BR separators.
func formatNumber(f *float64) string {
	if f == nil {
		return ""
	}
	return message.NewPrinter(language.BrazilianPortuguese).Sprintf("%.2f", *f)
}

func monthName(m int) string {
	if m < 1 || m > 12 {
		return strconv.Itoa(m)
	}
	return monthNames[m-1]
}

func isChecked(b *bool) bool {
	return b == nil || *b
}
