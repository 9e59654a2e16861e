// Package report renders dataset reports for the terminal.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/knoguchi/kbsearch/internal/repository"
	"github.com/knoguchi/kbsearch/internal/service"
)

// Format is an output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// contentPreview bounds how much content the text format prints per result.
const contentPreview = 300

// ParseFormat parses a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("invalid format %q: must be text, json, or yaml", s)
	}
}

// Printer writes reports in one format.
type Printer struct {
	out    io.Writer
	format Format
	colors bool
}

// NewPrinter creates a printer. colors only affects the text format.
func NewPrinter(out io.Writer, format Format, colors bool) *Printer {
	return &Printer{out: out, format: format, colors: colors}
}

// Print writes the reports of a run.
func (p *Printer) Print(reports []service.DatasetReport) error {
	switch p.format {
	case FormatJSON:
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	case FormatYAML:
		enc := yaml.NewEncoder(p.out)
		enc.SetIndent(2)
		if err := enc.Encode(reports); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	default:
		for _, r := range reports {
			p.printText(r)
		}
		return nil
	}
}

func (p *Printer) style(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if p.colors {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

func (p *Printer) printText(r service.DatasetReport) {
	title := r.DatasetID
	if r.DatasetName != "" {
		title = fmt.Sprintf("%s (%s)", r.DatasetID, r.DatasetName)
	}
	p.style(color.FgCyan, color.Bold).Fprintf(p.out, "--- Results for Dataset: %s ---\n", title)

	if r.Error != nil {
		p.style(color.FgRed).Fprintf(p.out, "error: %s\n", r.Error.Error())
		if r.Error.Preview != "" {
			p.style(color.Faint).Fprintf(p.out, "  response: %s\n", r.Error.Preview)
		}
		fmt.Fprintln(p.out)
		return
	}

	if r.Reranked {
		p.style(color.FgGreen).Fprintf(p.out, "reranked with %s\n", r.RerankModel)
	}
	if r.Len() == 0 {
		p.style(color.FgYellow).Fprintln(p.out, "no results")
		fmt.Fprintln(p.out)
		return
	}

	if r.Reranked {
		for _, res := range r.RerankedResults {
			p.style(color.Bold).Fprintf(p.out, "%d. %s", res.RerankPosition, res.Source)
			fmt.Fprintf(p.out, "  rerank %.4f, retrieval %s\n", res.RerankScore, formatScore(res.OriginalScore))
			p.printContent(&res.Content)
		}
	} else {
		for i, res := range r.Results {
			p.style(color.Bold).Fprintf(p.out, "%d. %s", i+1, res.Source)
			fmt.Fprintf(p.out, "  score %s\n", formatScore(res.Score))
			p.printContent(res.Content)
		}
	}
	fmt.Fprintln(p.out)
}

func (p *Printer) printContent(content *string) {
	if content == nil || *content == "" {
		return
	}
	text := strings.Join(strings.Fields(*content), " ")
	if runes := []rune(text); len(runes) > contentPreview {
		text = string(runes[:contentPreview]) + "..."
	}
	p.style(color.Faint).Fprintf(p.out, "   %s\n", text)
}

func formatScore(score *float64) string {
	if score == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", *score)
}

// datasetRow is the serialized form of a dataset in a listing.
type datasetRow struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Datasets writes a dataset listing.
func (p *Printer) Datasets(datasets []*repository.Dataset) error {
	rows := make([]datasetRow, 0, len(datasets))
	for _, ds := range datasets {
		rows = append(rows, datasetRow{ID: ds.ID, Name: ds.DisplayName(), Description: ds.Description})
	}

	switch p.format {
	case FormatJSON:
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case FormatYAML:
		enc := yaml.NewEncoder(p.out)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	default:
		if len(rows) == 0 {
			p.style(color.FgYellow).Fprintln(p.out, "no datasets")
			return nil
		}
		for _, row := range rows {
			p.style(color.Bold).Fprint(p.out, row.ID)
			fmt.Fprintf(p.out, "  %s\n", row.Name)
		}
		return nil
	}
}
