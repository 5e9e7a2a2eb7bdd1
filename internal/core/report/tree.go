// Package report models QuickBooks report documents: the hierarchical
// Columns/Rows tree returned by the Reports API and the flat table the rest
// of the system consumes.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RowKind tags what a row represents within a report.
type RowKind string

const (
	KindHeader  RowKind = "Header"
	KindData    RowKind = "Data"
	KindSummary RowKind = "Summary"
)

// Column describes one report column: its display title and the semantic
// type QuickBooks assigns to it (Money, Account, String, Date, ...).
type Column struct {
	Title string
	Type  string
}

// Node is a row node in the typed report tree: either a *Section or a Leaf.
type Node interface {
	node()
}

// Section is a grouping node: an optional header row, an optional value row
// carried by the section node itself, nested rows, and an optional subtotal
// row.
type Section struct {
	Header   *Line
	Detail   *Leaf
	Children []Node
	Summary  *Line
}

// Leaf is a value row.
type Leaf struct {
	Kind  RowKind
	Cells []string
}

// Line carries the cell values of a header or summary row.
type Line struct {
	Cells []string
}

func (*Section) node() {}
func (Leaf) node()     {}

// Tree is the typed form of a report document, parsed once at the API
// boundary.
type Tree struct {
	Columns []Column
	Nodes   []Node
}

// Raw wire shapes. QuickBooks keys the row discriminator as "type" in
// current payloads while older ones carried "RowType"; both are accepted,
// RowType winning when present.
type rawReport struct {
	Columns rawColumns `json:"Columns"`
	Rows    rawRows    `json:"Rows"`
}

type rawColumns struct {
	Column []rawColumn `json:"Column"`
}

type rawColumn struct {
	ColTitle string `json:"ColTitle"`
	Title    string `json:"Title"`
	Name     string `json:"Name"`
	ColType  string `json:"ColType"`
}

type rawRows struct {
	Row []rawRow `json:"Row"`
}

type rawRow struct {
	RowType string     `json:"RowType"`
	Type    string     `json:"type"`
	Header  *rawHeader `json:"Header"`
	Summary *rawHeader `json:"Summary"`
	ColData []rawCell  `json:"ColData"`
	Rows    *rawRows   `json:"Rows"`
}

type rawHeader struct {
	ColData []rawCell `json:"ColData"`
}

type rawCell struct {
	Value string `json:"value"`
}

// Decode parses a raw report JSON document into a typed Tree.
func Decode(data []byte) (*Tree, error) {
	var raw rawReport
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode report document: %w", err)
	}

	tree := &Tree{
		Columns: make([]Column, 0, len(raw.Columns.Column)),
	}

	for _, c := range raw.Columns.Column {
		title := strings.TrimSpace(c.ColTitle)
		if title == "" {
			title = strings.TrimSpace(c.Title)
		}
		if title == "" {
			title = strings.TrimSpace(c.Name)
		}
		if title == "" {
			title = "Column"
		}
		tree.Columns = append(tree.Columns, Column{
			Title: title,
			Type:  strings.TrimSpace(c.ColType),
		})
	}

	if raw.Rows.Row != nil {
		tree.Nodes = convertRows(&raw.Rows)
	}

	return tree, nil
}

func convertRows(rr *rawRows) []Node {
	if rr == nil {
		return nil
	}

	var nodes []Node
	for _, r := range rr.Row {
		nodes = append(nodes, convertRow(r)...)
	}
	return nodes
}

// convertRow turns one raw row into typed nodes. ColData on a section-shaped
// node becomes the section's Detail row, emitted between the header and the
// nested rows; a Rows-bearing node not marked as a section splices its
// children at the same level.
func convertRow(r rawRow) []Node {
	kind := strings.ToLower(strings.TrimSpace(r.RowType))
	if kind == "" {
		kind = strings.ToLower(strings.TrimSpace(r.Type))
	}

	isSection := kind == "section" || r.Header != nil || r.Summary != nil

	var own *Leaf
	if len(r.ColData) > 0 {
		leafKind := KindData
		if kind == "summary" {
			leafKind = KindSummary
		}
		own = &Leaf{Kind: leafKind, Cells: cellValues(r.ColData)}
	}

	if isSection {
		section := &Section{Detail: own}
		if r.Header != nil {
			section.Header = &Line{Cells: cellValues(r.Header.ColData)}
		}
		section.Children = convertRows(r.Rows)
		if r.Summary != nil {
			section.Summary = &Line{Cells: cellValues(r.Summary.ColData)}
		}
		return []Node{section}
	}

	var nodes []Node
	if own != nil {
		nodes = append(nodes, *own)
	}
	if r.Rows != nil {
		nodes = append(nodes, convertRows(r.Rows)...)
	}
	return nodes
}

func cellValues(cells []rawCell) []string {
	values := make([]string, len(cells))
	for i, c := range cells {
		values[i] = c.Value
	}
	return values
}
