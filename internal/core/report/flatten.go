package report

// FlatRow is one row of a flattened report: the nesting depth of the section
// it came from, the row kind, and cell values aligned positionally to the
// table's columns.
type FlatRow struct {
	Level int
	Kind  RowKind
	Cells []string
}

// FlatTable is the flat form of a report tree. It is produced fresh per
// report fetch and never mutated afterwards.
type FlatTable struct {
	Columns []Column
	Rows    []FlatRow
}

// Flatten converts a typed report tree into a FlatTable preserving document
// order. A section's header is emitted at the section's own level, then its
// detail row if the node carried one, its nested rows one level deeper, and
// its summary back at the section's level.
// Every emitted row is padded (or truncated) to exactly the column count.
// Flatten reads the tree without modifying it, so repeated calls yield
// identical tables.
func Flatten(tree *Tree) *FlatTable {
	table := &FlatTable{
		Columns: append([]Column(nil), tree.Columns...),
	}

	width := len(tree.Columns)

	var walk func(nodes []Node, level int)
	walk = func(nodes []Node, level int) {
		for _, node := range nodes {
			switch n := node.(type) {
			case Leaf:
				table.Rows = append(table.Rows, FlatRow{
					Level: level,
					Kind:  n.Kind,
					Cells: alignCells(n.Cells, width),
				})
			case *Section:
				if n.Header != nil {
					table.Rows = append(table.Rows, FlatRow{
						Level: level,
						Kind:  KindHeader,
						Cells: alignCells(n.Header.Cells, width),
					})
				}
				if n.Detail != nil {
					table.Rows = append(table.Rows, FlatRow{
						Level: level,
						Kind:  n.Detail.Kind,
						Cells: alignCells(n.Detail.Cells, width),
					})
				}
				walk(n.Children, level+1)
				if n.Summary != nil {
					table.Rows = append(table.Rows, FlatRow{
						Level: level,
						Kind:  KindSummary,
						Cells: alignCells(n.Summary.Cells, width),
					})
				}
			}
		}
	}
	walk(tree.Nodes, 0)

	return table
}

// alignCells copies cells into a slice of exactly width entries, right-padding
// with empty strings and dropping any excess.
func alignCells(cells []string, width int) []string {
	aligned := make([]string, width)
	for i := 0; i < width && i < len(cells); i++ {
		aligned[i] = cells[i]
	}
	return aligned
}

// Cell returns the value at column index idx, or the empty string when the
// index is out of range.
func (r FlatRow) Cell(idx int) string {
	if idx < 0 || idx >= len(r.Cells) {
		return ""
	}
	return r.Cells[idx]
}
