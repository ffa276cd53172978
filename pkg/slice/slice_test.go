// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package slice_test

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/taskdeck/pkg/slice"
)

func TestMapAndFilter(t *testing.T) {
	numbers := []int{1, 2, 3, 4}

	assert.Equal(t, []string{"1", "2", "3", "4"}, slice.Map(numbers, strconv.Itoa))
	assert.Equal(t, []int{2, 4}, slice.Filter(numbers, func(n int) bool { return n%2 == 0 }))
}

func TestEmptyResultsEncodeAsArrays(t *testing.T) {
	none := slice.Filter([]int{1, 3}, func(n int) bool { return n%2 == 0 })
	encoded, err := json.Marshal(none)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(encoded))

	mapped := slice.Map[int, string](nil, strconv.Itoa)
	encoded, err = json.Marshal(mapped)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(encoded))
}
