package ordernumber

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linzen78111/pos2/internal/entity"
)

func TestUsedSequences(t *testing.T) {
	ids := []string{
		"20250711-T001",
		"20250711-T003",
		"20250711-D002",
		"20250711-T003",
		"20250712-T004",
		"20250711-T12",
		"20250711-Tabc",
		"garbage",
		"",
		"20250711-X005",
	}

	assert.Equal(t, []int{1, 3}, UsedSequences(ids, "20250711", entity.Takeout))
	assert.Equal(t, []int{2}, UsedSequences(ids, "20250711", entity.DineIn))
	assert.Equal(t, []int{1, 3, 4}, UsedSequences(ids, "202507", entity.Takeout))
	assert.Empty(t, UsedSequences(nil, "20250711", entity.Takeout))
}

func TestUsedSequencesSortsNumerically(t *testing.T) {
	ids := []string{"20250711-T010", "20250711-T002", "20250711-T100"}
	assert.Equal(t, []int{2, 10, 100}, UsedSequences(ids, "20250711", entity.Takeout))
}

func TestNextFree(t *testing.T) {
	n, err := NextFree(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = NextFree([]int{1, 3})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = NextFree([]int{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	all := make([]int, 0, MaxSequence)
	for i := MinSequence; i <= MaxSequence; i++ {
		all = append(all, i)
	}
	_, err = NextFree(all)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestParse(t *testing.T) {
	id, err := Parse("20250711-T001")
	require.NoError(t, err)
	assert.Equal(t, ID{Date: "20250711", DineType: entity.Takeout, Sequence: 1}, id)
	assert.Equal(t, "20250711-T001", id.String())

	id, err = Parse("20250711-D999")
	require.NoError(t, err)
	assert.Equal(t, entity.DineIn, id.DineType)

	for _, bad := range []string{"20250711-T000", "20250711-T1", "2025071-T001", "20250711-X001", "20250711T001", " 20250711-T001"} {
		_, err := Parse(bad)
		assert.ErrorIs(t, err, ErrInvalid, bad)
	}
}

func TestFormatAndDate(t *testing.T) {
	day := time.Date(2025, 7, 11, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, "20250711", DateOf(day))
	assert.Equal(t, "20250711-D042", Format(DateOf(day), entity.DineIn, 42))
}

func TestValidDatePrefixAndLike(t *testing.T) {
	assert.True(t, ValidDatePrefix("20250711"))
	assert.True(t, ValidDatePrefix("2025"))
	assert.False(t, ValidDatePrefix(""))
	assert.False(t, ValidDatePrefix("2025%"))
	assert.False(t, ValidDatePrefix("202507110"))
	assert.Equal(t, "20250711%-T%", LikePattern("20250711", entity.Takeout))
}
