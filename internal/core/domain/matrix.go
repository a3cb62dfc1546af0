package domain

// MatrixCell is one (innovation type, insurance line) combination used to
// balance daily publication coverage.
type MatrixCell struct {
	InnovationType InnovationType
	InsuranceLine  InsuranceLine
}

// Key returns the stable string form used for coverage bookkeeping.
func (c MatrixCell) Key() string {
	return string(c.InnovationType) + "-" + string(c.InsuranceLine)
}

// MatrixCells is the fixed 2x3 coverage matrix in its canonical
// enumeration order. The publication selector walks cells in this order,
// so changing it changes which cells are filled first when quota runs out.
func MatrixCells() []MatrixCell {
	return []MatrixCell{
		{InnovationProduct, LineProperty},
		{InnovationProduct, LineHealth},
		{InnovationProduct, LineLife},
		{InnovationMarketing, LineProperty},
		{InnovationMarketing, LineHealth},
		{InnovationMarketing, LineLife},
	}
}
