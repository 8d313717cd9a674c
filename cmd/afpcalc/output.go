package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"agrifood.ai/internal/sim/scenario"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func num(v float64, prec int) string { return strconv.FormatFloat(v, 'f', prec, 64) }

func printOutcome(w io.Writer, out *scenario.Outcome) error {
	s := out.Summary
	t := newTable("metric", "value", "unit").
		Row("net emissions", num(s.NetEmissions/1e6, 2), "Mt CO2e/yr").
		Row("gross emissions", num(s.GrossEmissions/1e6, 2), "Mt CO2e/yr").
		Row("forest sequestration", num(s.ForestSequestration/1e6, 2), "Mt CO2e/yr").
		Row("CCS sequestration", num(s.CCSSequestration/1e6, 2), "Mt CO2e/yr").
		Row("spared area", num(s.SparedArea/1e3, 1), "kha").
		Row("forest area", num(s.ForestArea/1e3, 1), "kha").
		Row("CCS spending", num(s.CCSSpending/1e9, 2), "£bn").
		Row("animal food change", num(s.AnimalFoodChange, 1), "%").
		Row("self-sufficiency", num(s.SelfSufficiency, 1), "%").
		Row("intake", num(s.Kcal, 0), "kcal/cap/day")

	preset := out.Preset
	if preset == "" {
		preset = "custom"
	}
	if _, err := fmt.Fprintf(w, "run %s  preset %q  year %d  steps %d\n", out.RunID, preset, s.Year, len(out.Steps)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}
	for _, wr := range out.Warnings {
		if _, err := fmt.Fprintf(w, "warning %s [%s] %s\n", wr.Code, wr.Step, wr.Message); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "digest %s\n", out.Digest)
	return err
}

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
