package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReleasedStatus(t *testing.T) {
	cases := []struct {
		name   string
		book   Book
		expect string
	}{
		{"not lendable", Book{Lendable: false, AvailableCopies: 3, TotalCopies: 3}, BookUnavailable},
		{"copies remain", Book{Lendable: true, AvailableCopies: 1, TotalCopies: 2}, BookAvailable},
		{"no copies left", Book{Lendable: true, AvailableCopies: 0, TotalCopies: 2}, BookReserved},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, tc.book.ReleasedStatus())
		})
	}
}
