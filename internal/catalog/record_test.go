package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap_DropsNonPrimitiveFields(t *testing.T) {
	r, err := FromMap(map[string]any{
		"title":  "Neuro 歌回",
		"author": "vedal987",
		"date":   float64(1704067200),
		"url":    "https://www.bilibili.com/video/BV1xx",
		"bv":     "BV1xx",
		"pic":    map[string]any{"url": "x"},
		"tags":   []any{"a", "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, Record{
		Title:  "Neuro 歌回",
		Author: "vedal987",
		Date:   "1704067200",
		URL:    "https://www.bilibili.com/video/BV1xx",
		BV:     "BV1xx",
	}, r)
}

func TestFromMap_DefaultsAuthor(t *testing.T) {
	r, err := FromMap(map[string]any{"title": "t", "bv": "BV1", "author": map[string]any{}})
	require.NoError(t, err)
	assert.Equal(t, UnknownAuthor, r.Author)
}

func TestFromMap_RequiresTitleAndBV(t *testing.T) {
	_, err := FromMap(map[string]any{"bv": "BV1"})
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = FromMap(map[string]any{"title": "song", "bv": "  "})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestRecord_UnmarshalJSON(t *testing.T) {
	var r Record
	err := json.Unmarshal([]byte(`{"title":"a","bv":"BV1","date":20240101,"extra":[1]}`), &r)
	require.NoError(t, err)
	assert.Equal(t, "20240101", r.Date)
	assert.Equal(t, UnknownAuthor, r.Author)
}
