package game

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boardOf(cells string) Board {
	var b Board
	for i, c := range cells {
		switch c {
		case 'X':
			b[i] = X
		case 'O':
			b[i] = O
		}
	}
	return b
}

func TestEvaluateEveryWinningLine(t *testing.T) {
	for _, sym := range []Symbol{X, O} {
		for _, line := range winningLines {
			var b Board
			for _, i := range line {
				b[i] = sym
			}
			got := Evaluate(b)
			assert.Equal(t, Outcome{Kind: Win, Winner: sym}, got, "line %v for %s", line, sym)
		}
	}
}

func TestEvaluateExamples(t *testing.T) {
	tests := []struct {
		name  string
		board string
		want  Outcome
	}{
		{"top row", "XXX______", Outcome{Kind: Win, Winner: X}},
		{"full board no line", "XOXOXOOXO", Outcome{Kind: Draw}},
		{"one empty cell no line", "XOXOXOOX_", Outcome{Kind: Ongoing}},
		{"empty", "_________", Outcome{Kind: Ongoing}},
		{"full board with line is a win", "XXXOOXOXO", Outcome{Kind: Win, Winner: X}},
		{"anti diagonal", "__O_O_O__", Outcome{Kind: Win, Winner: O}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(boardOf(tt.board)))
		})
	}
}

func TestApplyRejectsIllegalMoves(t *testing.T) {
	b := boardOf("X________")

	_, err := b.Apply(-1, O)
	assert.ErrorIs(t, err, ErrIllegalMove)
	_, err = b.Apply(9, O)
	assert.ErrorIs(t, err, ErrIllegalMove)
	_, err = b.Apply(0, O)
	assert.ErrorIs(t, err, ErrIllegalMove)
	_, err = b.Apply(1, Empty)
	assert.ErrorIs(t, err, ErrIllegalMove)
}

func TestApplyDoesNotMutateReceiver(t *testing.T) {
	b := boardOf("X________")
	next, err := b.Apply(4, O)
	require.NoError(t, err)

	assert.Equal(t, Empty, b[4])
	assert.Equal(t, O, next[4])
	assert.Equal(t, 1, b.Filled())
	assert.Equal(t, 2, next.Filled())
}

func TestBoardJSONUsesNullForEmptyCells(t *testing.T) {
	data, err := json.Marshal(boardOf("X___O____"))
	require.NoError(t, err)
	assert.JSONEq(t, `["X",null,null,null,"O",null,null,null,null]`, string(data))
}

func TestSymbolOther(t *testing.T) {
	assert.Equal(t, O, X.Other())
	assert.Equal(t, X, O.Other())
	assert.Equal(t, Empty, Empty.Other())
}
