package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradebook/internal/money"
)

// recordingLedger captures every snapshot forwarded to it, keyed by
// tradable id, so tests can assert on final state without a real
// registry.UserRegistry.
type recordingLedger struct {
	latest map[string]Snapshot
}

func newRecordingLedger() *recordingLedger {
	return &recordingLedger{latest: make(map[string]Snapshot)}
}

func (l *recordingLedger) UpdateTradable(user string, snap Snapshot) {
	l.latest[snap.ID] = snap
}

// recordingMarket captures the last UpdateMarket call.
type recordingMarket struct {
	calls int
	buyPrice, sellPrice       money.Price
	buyHasPrice, sellHasPrice bool
	buyVol, sellVol           int
}

func (m *recordingMarket) UpdateMarket(symbol string, buyPrice money.Price, buyHasPrice bool, buyVol int, sellPrice money.Price, sellHasPrice bool, sellVol int) {
	m.calls++
	m.buyPrice, m.buyHasPrice, m.buyVol = buyPrice, buyHasPrice, buyVol
	m.sellPrice, m.sellHasPrice, m.sellVol = sellPrice, sellHasPrice, sellVol
}

func newTestProductBook() (*ProductBook, *recordingLedger, *recordingMarket, *money.Cache) {
	cache := money.NewCache()
	ledger := newRecordingLedger()
	mkt := &recordingMarket{}
	pb := NewProductBook("TGT", ledger, mkt)
	return pb, ledger, mkt, cache
}

func mustOrder(t *testing.T, cache *money.Cache, user string, priceCents int, side Side, volume int) *Tradable {
	t.Helper()
	tr, err := NewTradable(KindOrder, user, "TGT", cache.Intern(priceCents), side, volume)
	require.NoError(t, err)
	return tr
}

// Scenario 1: exact-cross full fill.
func TestProductBookExactCrossFullFill(t *testing.T) {
	pb, _, mkt, cache := newTestProductBook()

	_, err := pb.Add(mustOrder(t, cache, "AAA", 10000, Sell, 50))
	require.NoError(t, err)
	_, err = pb.Add(mustOrder(t, cache, "BBB", 10000, Buy, 50))
	require.NoError(t, err)

	assert.True(t, pb.Buy.IsEmpty())
	assert.True(t, pb.Sell.IsEmpty())
	assert.False(t, mkt.buyHasPrice)
	assert.False(t, mkt.sellHasPrice)
	assert.Equal(t, 0, mkt.buyVol)
	assert.Equal(t, 0, mkt.sellVol)
}

// Scenario 2: no cross.
func TestProductBookNoCross(t *testing.T) {
	pb, _, mkt, cache := newTestProductBook()

	_, err := pb.Add(mustOrder(t, cache, "AAA", 10100, Sell, 10))
	require.NoError(t, err)
	_, err = pb.Add(mustOrder(t, cache, "BBB", 10000, Buy, 10))
	require.NoError(t, err)

	assert.Equal(t, 10000, mkt.buyPrice.Cents())
	assert.Equal(t, 10, mkt.buyVol)
	assert.Equal(t, 10100, mkt.sellPrice.Cents())
	assert.Equal(t, 10, mkt.sellVol)
	assert.Equal(t, 100, cache.Subtract(mkt.sellPrice, mkt.buyPrice).Cents())
}

// Scenario 3: pro-rata partial within a single level.
func TestProductBookProRataPartialSingleLevel(t *testing.T) {
	pb, ledger, _, cache := newTestProductBook()

	a := mustOrder(t, cache, "AAA", 10000, Sell, 40)
	b := mustOrder(t, cache, "BBB", 10000, Sell, 40)
	c := mustOrder(t, cache, "CCC", 10000, Sell, 20)
	for _, o := range []*Tradable{a, b, c} {
		_, err := pb.Add(o)
		require.NoError(t, err)
	}

	_, err := pb.Add(mustOrder(t, cache, "DDD", 10000, Buy, 30))
	require.NoError(t, err)

	assert.Equal(t, 12, ledger.latest[a.ID()].FilledVolume)
	assert.Equal(t, 12, ledger.latest[b.ID()].FilledVolume)
	assert.Equal(t, 6, ledger.latest[c.ID()].FilledVolume)
	assert.Equal(t, 28, ledger.latest[a.ID()].RemainingVolume)
	assert.Equal(t, 28, ledger.latest[b.ID()].RemainingVolume)
	assert.Equal(t, 14, ledger.latest[c.ID()].RemainingVolume)
	assert.Equal(t, 70, pb.Sell.TopVolume())
}

// Scenario 4: sweep one level fully, then pro-rata the next.
func TestProductBookSweepPlusPartialAcrossLevels(t *testing.T) {
	pb, ledger, _, cache := newTestProductBook()

	a := mustOrder(t, cache, "AAA", 10000, Sell, 10)
	b := mustOrder(t, cache, "BBB", 10100, Sell, 20)
	_, err := pb.Add(a)
	require.NoError(t, err)
	_, err = pb.Add(b)
	require.NoError(t, err)

	_, err = pb.Add(mustOrder(t, cache, "CCC", 10100, Buy, 25))
	require.NoError(t, err)

	assert.Equal(t, 10, ledger.latest[a.ID()].FilledVolume)
	assert.Equal(t, 0, ledger.latest[a.ID()].RemainingVolume)
	assert.Equal(t, 15, ledger.latest[b.ID()].FilledVolume)
	assert.Equal(t, 5, ledger.latest[b.ID()].RemainingVolume)
}

// Scenario 5: quote replacement cancels the prior pair outright.
func TestProductBookQuoteReplacement(t *testing.T) {
	pb, ledger, _, cache := newTestProductBook()

	firstBuy, firstSell, err := pb.AddQuote(Quote{
		User: "CCC", Product: "TGT",
		BuyPrice: cache.Intern(9900), BuyVol: 5,
		SellPrice: cache.Intern(10100), SellVol: 5,
	})
	require.NoError(t, err)

	secondBuy, secondSell, err := pb.AddQuote(Quote{
		User: "CCC", Product: "TGT",
		BuyPrice: cache.Intern(9800), BuyVol: 7,
		SellPrice: cache.Intern(10200), SellVol: 7,
	})
	require.NoError(t, err)

	assert.Equal(t, 5, ledger.latest[firstBuy.ID].CancelledVolume)
	assert.Equal(t, 5, ledger.latest[firstSell.ID].CancelledVolume)
	assert.False(t, pb.Buy.HasLevel(cache.Intern(9900)))
	assert.False(t, pb.Sell.HasLevel(cache.Intern(10100)))
	assert.True(t, pb.Buy.HasLevel(cache.Intern(9800)))
	assert.True(t, pb.Sell.HasLevel(cache.Intern(10200)))
	assert.Equal(t, 7, secondBuy.RemainingVolume)
	assert.Equal(t, 7, secondSell.RemainingVolume)
}

// A malformed replacement quote must not disturb the resting quote it
// would have replaced: validation happens before any removal.
func TestProductBookAddQuoteRejectsMalformedReplacementWithoutMutation(t *testing.T) {
	pb, ledger, _, cache := newTestProductBook()

	firstBuy, firstSell, err := pb.AddQuote(Quote{
		User: "CCC", Product: "TGT",
		BuyPrice: cache.Intern(9900), BuyVol: 5,
		SellPrice: cache.Intern(10100), SellVol: 5,
	})
	require.NoError(t, err)

	_, _, err = pb.AddQuote(Quote{
		User: "CCC", Product: "TGT",
		BuyPrice: cache.Intern(9800), BuyVol: 10000, // invalid volume
		SellPrice: cache.Intern(10200), SellVol: 7,
	})
	require.Error(t, err)

	assert.True(t, pb.Buy.HasLevel(cache.Intern(9900)), "original quote buy side must still be resting")
	assert.True(t, pb.Sell.HasLevel(cache.Intern(10100)), "original quote sell side must still be resting")
	assert.False(t, pb.Buy.HasLevel(cache.Intern(9800)))
	assert.False(t, pb.Sell.HasLevel(cache.Intern(10200)))
	assert.Equal(t, 0, ledger.latest[firstBuy.ID].CancelledVolume)
	assert.Equal(t, 0, ledger.latest[firstSell.ID].CancelledVolume)
}

// Scenario 6: cancel the only resting interest, then publish the
// empty market.
func TestProductBookCancelAndPublish(t *testing.T) {
	pb, ledger, mkt, cache := newTestProductBook()

	d := mustOrder(t, cache, "DDD", 10000, Buy, 10)
	_, err := pb.Add(d)
	require.NoError(t, err)

	snap, ok := pb.Cancel(Buy, d.ID())
	require.True(t, ok)
	assert.Equal(t, 0, snap.RemainingVolume)
	assert.Equal(t, 10, snap.CancelledVolume)
	assert.Equal(t, 0, ledger.latest[d.ID()].RemainingVolume)
	assert.Equal(t, 10, ledger.latest[d.ID()].CancelledVolume)
	assert.False(t, mkt.buyHasPrice)
	assert.Equal(t, 0, mkt.buyVol)
}

// Invariant: original = remaining + cancelled + filled at every step.
func TestProductBookVolumeConservationInvariant(t *testing.T) {
	pb, ledger, _, cache := newTestProductBook()

	a := mustOrder(t, cache, "AAA", 10000, Sell, 30)
	_, err := pb.Add(a)
	require.NoError(t, err)
	_, err = pb.Add(mustOrder(t, cache, "BBB", 10000, Buy, 10))
	require.NoError(t, err)

	snap := ledger.latest[a.ID()]
	assert.Equal(t, snap.OriginalVolume, snap.RemainingVolume+snap.CancelledVolume+snap.FilledVolume)
}

func TestProductBookMatchIsPublishedExactlyOncePerCall(t *testing.T) {
	pb, _, mkt, cache := newTestProductBook()

	_, err := pb.Add(mustOrder(t, cache, "AAA", 10000, Sell, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, mkt.calls)

	_, _, err = pb.AddQuote(Quote{
		User: "BBB", Product: "TGT",
		BuyPrice: cache.Intern(9900), BuyVol: 5,
		SellPrice: cache.Intern(10100), SellVol: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, mkt.calls, "AddQuote must publish exactly once despite inserting two tradables")
}
