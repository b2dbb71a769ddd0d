package lineitem

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/seqdesk/internal/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type catalogStub struct {
	items map[snowflake.ID]Snapshot
}

func (c catalogStub) Snapshots(_ context.Context, ids []snowflake.ID) (map[snowflake.ID]Snapshot, error) {
	out := map[snowflake.ID]Snapshot{}
	for _, id := range ids {
		if snap, ok := c.items[id]; ok {
			out[id] = snap
		}
	}
	return out, nil
}

func TestQuantityUnmarshal(t *testing.T) {
	var in struct {
		A Quantity  `json:"a"`
		B Quantity  `json:"b"`
		C Quantity  `json:"c"`
		D Quantity  `json:"d"`
		E *Quantity `json:"e"`
		F Quantity  `json:"f"`
	}
	err := json.Unmarshal([]byte(`{"a": 3, "b": "4", "c": "", "d": "abc", "e": "12", "f": 2.0}`), &in)
	require.NoError(t, err)

	assert.Equal(t, Quantity(3), in.A)
	assert.Equal(t, Quantity(4), in.B)
	assert.Equal(t, Quantity(0), in.C)
	assert.Equal(t, Quantity(0), in.D)
	require.NotNil(t, in.E)
	assert.Equal(t, Quantity(12), *in.E)
	assert.Equal(t, Quantity(2), in.F)
}

func TestQuantityUnmarshalRejectsLossyValues(t *testing.T) {
	cases := map[string]Quantity{
		`"2.5"`:                 0,
		`12.9`:                  0,
		`1e30`:                  0,
		`-1e30`:                 0,
		`"9223372036854775808"`: 0,
		`-4`:                    0,
		`10001`:                 0,
		`"1e2"`:                 100,
		`10000`:                 MaxQuantity,
		`" 7 "`:                 7,
	}
	for raw, want := range cases {
		var q Quantity = 99
		require.NoError(t, json.Unmarshal([]byte(raw), &q), raw)
		assert.Equal(t, want, q, raw)
	}

	var in struct {
		Q Quantity  `json:"q"`
		B *Quantity `json:"b"`
		H Quantity  `json:"h"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"q":"2.5","b":12.9,"h":1e30}`), &in))
	assert.Equal(t, Quantity(0), in.Q)
	require.NotNil(t, in.B)
	assert.Equal(t, Quantity(0), *in.B)
	assert.Equal(t, Quantity(0), in.H)
}

func TestQuantityBounded(t *testing.T) {
	assert.Equal(t, int64(5), Quantity(5).Bounded())
	assert.Equal(t, int64(MaxQuantity), Quantity(MaxQuantity).Bounded())
	assert.Equal(t, int64(0), Quantity(MaxQuantity+1).Bounded())
	assert.Equal(t, int64(0), Quantity(-3).Bounded())
}

func TestSnapshotTierRoundTrip(t *testing.T) {
	var snap Snapshot
	assert.Nil(t, snap.Tier())

	snap.SetTier(&pricing.Tier{MinIncluded: 9, AdditionalRate: decimal.NewFromInt(50)})
	tier := snap.Tier()
	require.NotNil(t, tier)
	assert.Equal(t, int64(9), tier.MinIncluded)
	assert.True(t, tier.AdditionalRate.Equal(decimal.NewFromInt(50)))

	snap.SetTier(nil)
	assert.Nil(t, snap.TierMinIncluded)
	assert.False(t, snap.TierAdditionalRate.Valid)
}

func TestBuildAndSummarize(t *testing.T) {
	node, _ := snowflake.NewNode(1)
	flatID := node.Generate()
	tieredID := node.Generate()

	tiered := Snapshot{ServiceID: tieredID, Name: "WGS analysis", Category: "Bioinformatics", Price: decimal.NewFromInt(1000), PricingModel: pricing.ModelTieredBySamples}
	tiered.SetTier(&pricing.Tier{MinIncluded: 9, AdditionalRate: decimal.NewFromInt(50)})
	catalog := catalogStub{items: map[snowflake.ID]Snapshot{
		flatID:   {ServiceID: flatID, Name: "Library prep", Category: "Sequencing", Price: decimal.NewFromInt(500), PricingModel: pricing.ModelFlat},
		tieredID: tiered,
	}}

	samples := Quantity(12)
	items, err := Build(context.Background(), catalog, []Input{
		{ServiceID: flatID.String(), Quantity: 2},
		{ServiceID: tieredID.String(), Quantity: 1, BillingCount: &samples},
		{ServiceID: flatID.String(), Quantity: 0},
	})
	require.NoError(t, err)
	require.Len(t, items, 3)

	summary := Summarize(items, true)
	assert.True(t, summary.Totals.Total.Equal(decimal.NewFromInt(1892)))
	assert.True(t, items[0].Amount.Equal(decimal.NewFromInt(1000)))
	assert.True(t, items[1].UnitAmount.Equal(decimal.NewFromInt(1150)))
	assert.True(t, items[2].Amount.IsZero())
}

func TestBuildRejectsUnknownService(t *testing.T) {
	_, err := Build(context.Background(), catalogStub{}, []Input{{ServiceID: "42", Quantity: 1}})
	assert.ErrorIs(t, err, ErrUnknownService)

	_, err = Build(context.Background(), catalogStub{}, []Input{{ServiceID: "not-an-id", Quantity: 1}})
	assert.ErrorIs(t, err, ErrUnknownService)

	_, err = Build(context.Background(), catalogStub{}, nil)
	assert.ErrorIs(t, err, ErrNoLines)
}
