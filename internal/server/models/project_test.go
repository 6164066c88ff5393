package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/newwaysadmin/slipsync/internal/common"
)

const sampleDoc = `{
	"lastModified": 1700000000000,
	"isClosed": false,
	"ownerPersonName": "somchai",
	"billReferences": ["P1_bill_000.jpg", "P1_bill_001.jpg"],
	"slipAmount": 1250.50,
	"noteLines": ["first", "second"]
}`

func TestParseEnvelope(t *testing.T) {
	e, err := ParseEnvelope("P1", []byte(sampleDoc))
	require.NoError(t, err)

	assert.Equal(t, "P1", e.ID)
	assert.Equal(t, int64(1700000000000), e.LastModified)
	assert.False(t, e.IsClosed)
	assert.Equal(t, "somchai", e.OwnerName)
	assert.Equal(t, []string{"P1_bill_000.jpg", "P1_bill_001.jpg"}, e.BillRefs)
}

func TestParseEnvelopeInvalid(t *testing.T) {
	_, err := ParseEnvelope("P1", []byte(`{broken`))
	assert.ErrorIs(t, err, common.ErrInvalidPayload)

	_, err = ParseEnvelope("P1", []byte(`[1,2,3]`))
	assert.ErrorIs(t, err, common.ErrInvalidPayload)
}

func TestParseEnvelopeMissingFields(t *testing.T) {
	e, err := ParseEnvelope("P2", []byte(`{"slipAmount": 10}`))
	require.NoError(t, err)

	assert.Zero(t, e.LastModified)
	assert.False(t, e.IsClosed)
	assert.Empty(t, e.OwnerName)
	assert.Empty(t, e.BillRefs)
}

func TestStampPreservesForeignFields(t *testing.T) {
	e, err := ParseEnvelope("P1", []byte(sampleDoc))
	require.NoError(t, err)

	require.NoError(t, e.Stamp(1800000000000))

	doc := gjson.ParseBytes(e.Raw)
	assert.Equal(t, int64(1800000000000), doc.Get("lastModified").Int())
	assert.Equal(t, 1250.50, doc.Get("slipAmount").Float())
	assert.Equal(t, "second", doc.Get("noteLines.1").String())
	assert.Equal(t, int64(1800000000000), e.LastModified)
}

func TestMarkClosed(t *testing.T) {
	e, err := ParseEnvelope("P1", []byte(sampleDoc))
	require.NoError(t, err)

	require.NoError(t, e.MarkClosed("alice"))

	doc := gjson.ParseBytes(e.Raw)
	assert.True(t, doc.Get("isClosed").Bool())
	assert.Equal(t, "alice", doc.Get("closedBy").String())
	assert.True(t, e.IsClosed)
}

func TestMetadataProjection(t *testing.T) {
	e, err := ParseEnvelope("P1", []byte(sampleDoc))
	require.NoError(t, err)

	m := e.Metadata()
	assert.Equal(t, MetadataEntry{
		ID:           "P1",
		LastModified: 1700000000000,
		BillCount:    2,
		OwnerName:    "somchai",
		IsClosed:     false,
	}, m)
}

func TestBillAssetKey(t *testing.T) {
	assert.Equal(t, "P1_bill_007.jpg", BillAssetKey("P1", 7))
	assert.Equal(t, "P1.png", ScanAssetKey("P1", ".png"))
}
