package trainhmm

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Table is a dense (states x timesteps) matrix of
// probabilities.
// It is stored column by column so that each timestep is
// a contiguous slice.
type Table struct {
	rows int
	cols int
	data []float64
}

// NewTable creates a zero Table.
func NewTable(rows, cols int) *Table {
	return &Table{rows: rows, cols: cols, data: make([]float64, rows*cols)}
}

// Rows returns the number of states.
func (t *Table) Rows() int {
	return t.rows
}

// Cols returns the number of timesteps.
func (t *Table) Cols() int {
	return t.cols
}

// At returns the entry for state s at time col.
func (t *Table) At(s, col int) float64 {
	return t.data[col*t.rows+s]
}

// Set sets the entry for state s at time col.
func (t *Table) Set(s, col int, val float64) {
	t.data[col*t.rows+s] = val
}

// Column returns the entries for time col.
// The result aliases the table.
func (t *Table) Column(col int) []float64 {
	return t.data[col*t.rows : (col+1)*t.rows]
}

// ColumnSum returns the total mass at time col.
func (t *Table) ColumnSum(col int) float64 {
	return floats.Sum(t.Column(col))
}

// Forward computes the forward table for the switch
// assignment sigma.
//
// Entry (s, t) is the unnormalized probability of being
// in state s at time t, having emitted the observed
// departures 1 through t.
// The first column is uniform over all states.
func (m *Model) Forward(sigma SwitchAssignment) (*Table, error) {
	return m.fill(sigma, func(right, left int, prev []float64) (float64, int) {
		return prev[right] + prev[left], right
	}, nil)
}

// Likelihood computes the total probability of the
// observations given sigma, which is the mass in the last
// column of the forward table.
func (m *Model) Likelihood(sigma SwitchAssignment) (float64, error) {
	table, err := m.Forward(sigma)
	if err != nil {
		return 0, err
	}
	return tableLikelihood(table)
}

func tableLikelihood(table *Table) (float64, error) {
	if table.Cols() < 1 {
		return 0, fmt.Errorf("%w: forward table has no columns", ErrInsufficientObservations)
	}
	return table.ColumnSum(table.Cols() - 1), nil
}
