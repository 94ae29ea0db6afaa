package view

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Format names an output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", eris.Errorf("view: unknown format %q", s)
	}
}

// QueryResult groups the cards produced by one query.
type QueryResult struct {
	Query   string `json:"query" yaml:"query"`
	Outcome string `json:"outcome" yaml:"outcome"`
	Cards   []Card `json:"cards" yaml:"cards"`
}

// Write encodes results to out in the given format.
func Write(out io.Writer, format Format, results []QueryResult) error {
	switch format {
	case FormatJSON:
		return WriteJSON(out, results)
	case FormatYAML:
		return WriteYAML(out, results)
	default:
		return WriteText(out, results)
	}
}

// WriteText prints a heading per query followed by one aligned block per
// card. The selected option of each row is shown in brackets.
func WriteText(out io.Writer, results []QueryResult) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for i, res := range results {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		_, _ = fmt.Fprintf(w, "== %s ==\n", res.Query)
		writeCards(w, res.Cards)
	}
	return eris.Wrap(w.Flush(), "view: flush text")
}

func writeCards(w io.Writer, cards []Card) {
	if len(cards) == 0 {
		_, _ = fmt.Fprintln(w, "No results.")
		return
	}
	for i, c := range cards {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		_, _ = fmt.Fprintf(w, "%s\n", c.Salt)
		_, _ = fmt.Fprintf(w, "  Form\t%s\n", joinChoices(c.Forms))
		if len(c.Strengths) > 0 {
			_, _ = fmt.Fprintf(w, "  Strength\t%s\n", joinChoices(c.Strengths))
		}
		if len(c.Packagings) > 0 {
			_, _ = fmt.Fprintf(w, "  Packaging\t%s\n", joinChoices(c.Packagings))
		}
		_, _ = fmt.Fprintf(w, "  \t%s\n", c.PriceLabel)
	}
}

func joinChoices(cs []Choice) string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		if c.Selected {
			parts = append(parts, "["+c.Value+"]")
			continue
		}
		parts = append(parts, c.Value)
	}
	return strings.Join(parts, "  ")
}

// WriteJSON writes v as indented JSON.
func WriteJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "view: encode json")
}

// WriteYAML writes v as a YAML document.
func WriteYAML(out io.Writer, v any) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "view: encode yaml")
	}
	return eris.Wrap(enc.Close(), "view: close yaml encoder")
}
