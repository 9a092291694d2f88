package game

import (
	"encoding/json"
	"errors"
)

// Symbol is the mark a player places on the board
type Symbol string

const (
	Empty Symbol = ""
	X     Symbol = "X"
	O     Symbol = "O"
)

// Other returns the opposing symbol
func (s Symbol) Other() Symbol {
	switch s {
	case X:
		return O
	case O:
		return X
	default:
		return Empty
	}
}

// ErrIllegalMove is returned when a move targets a cell outside the grid or an occupied cell
var ErrIllegalMove = errors.New("illegal move")

// BoardSize is the number of cells on the 3x3 grid
const BoardSize = 9

// Board is an immutable snapshot of the grid, row-major.
type Board [BoardSize]Symbol

var winningLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, // rows
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8}, // columns
	{0, 4, 8}, {2, 4, 6},            // diagonals
}

// Apply returns a copy of the board with symbol placed at index.
func (b Board) Apply(index int, s Symbol) (Board, error) {
	if index < 0 || index >= BoardSize {
		return b, ErrIllegalMove
	}
	if s != X && s != O {
		return b, ErrIllegalMove
	}
	if b[index] != Empty {
		return b, ErrIllegalMove
	}
	b[index] = s
	return b, nil
}

// Filled returns the number of non-empty cells
func (b Board) Filled() int {
	n := 0
	for _, c := range b {
		if c != Empty {
			n++
		}
	}
	return n
}

// MarshalJSON encodes empty cells as null, which is what clients render from.
func (b Board) MarshalJSON() ([]byte, error) {
	cells := make([]interface{}, BoardSize)
	for i, c := range b {
		if c != Empty {
			cells[i] = string(c)
		}
	}
	return json.Marshal(cells)
}

// OutcomeKind classifies an evaluated board
type OutcomeKind int

const (
	Ongoing OutcomeKind = iota
	Win
	Draw
)

func (k OutcomeKind) String() string {
	switch k {
	case Win:
		return "WIN"
	case Draw:
		return "DRAW"
	default:
		return "ONGOING"
	}
}

// Outcome is the result of evaluating a board. Winner is set only for Win.
type Outcome struct {
	Kind   OutcomeKind
	Winner Symbol
}

// Evaluate checks the 8 winning lines in order; the first satisfied line wins.
func Evaluate(b Board) Outcome {
	for _, line := range winningLines {
		a := b[line[0]]
		if a != Empty && a == b[line[1]] && a == b[line[2]] {
			return Outcome{Kind: Win, Winner: a}
		}
	}
	if b.Filled() == BoardSize {
		return Outcome{Kind: Draw}
	}
	return Outcome{Kind: Ongoing}
}
