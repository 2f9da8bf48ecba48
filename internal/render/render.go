// Package render formats a domain.ResultSet. Every renderer prints exactly the
// counts and skews the aggregator produced, in the same order.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/lipgloss/tree"
	"sigs.k8s.io/yaml"

	"github.com/HaPhanBaoMinh/kskew/internal/domain"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTree Format = "tree"
)

var Formats = []Format{FormatText, FormatYAML, FormatJSON, FormatTree}

func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == strings.ToLower(s) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q (want one of text, yaml, json, tree)", s)
}

// Write renders rs in format f to w.
func Write(w io.Writer, rs domain.ResultSet, f Format) error {
	switch f {
	case FormatJSON:
		b, err := JSON(rs)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	case FormatYAML:
		b, err := YAML(rs)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	case FormatTree:
		if len(rs) == 0 {
			return nil
		}
		_, err := fmt.Fprintln(w, Tree(rs))
		return err
	default:
		_, err := io.WriteString(w, Text(rs))
		return err
	}
}

// Text renders one titled TOPOLOGY | COUNT | SKEW table per owner. An empty
// result renders as "".
func Text(rs domain.ResultSet) string {
	var b strings.Builder
	for i, r := range rs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(r.Resource.String())
		b.WriteString("\n")
		b.WriteString(rowTable(r).String())
		b.WriteString("\n")
	}
	return b.String()
}

func rowTable(r domain.SkewRow) *table.Table {
	cell := lipgloss.NewStyle().PaddingRight(2)
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderColumn(false).
		Headers("TOPOLOGY", "COUNT", "SKEW").
		StyleFunc(func(row, col int) lipgloss.Style { return cell })
	for _, c := range r.Topology {
		t.Row(c.Domain, strconv.Itoa(c.Count), strconv.Itoa(c.Skew))
	}
	return t
}

// JSON renders rs as an indented array; an empty result is "[]".
func JSON(rs domain.ResultSet) ([]byte, error) {
	if rs == nil {
		rs = domain.ResultSet{}
	}
	b, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding json: %w", err)
	}
	return b, nil
}

func YAML(rs domain.ResultSet) ([]byte, error) {
	if rs == nil {
		rs = domain.ResultSet{}
	}
	b, err := yaml.Marshal(rs)
	if err != nil {
		return nil, fmt.Errorf("encoding yaml: %w", err)
	}
	return b, nil
}

// Tree renders owners as branches and domains as leaves.
func Tree(rs domain.ResultSet) string {
	root := tree.Root(".")
	for _, r := range rs {
		branch := tree.Root(r.Resource.String())
		for _, c := range r.Topology {
			branch.Child(c.String())
		}
		root.Child(branch)
	}
	return root.String()
}
