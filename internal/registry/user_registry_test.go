package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradebook/internal/book"
	"tradebook/internal/market"
	"tradebook/internal/money"
)

func TestUserRegistryInitAndGetUser(t *testing.T) {
	r := NewUserRegistry()
	require.NoError(t, r.Init([]string{"aaa", "BBB"}))

	ledger, err := r.GetUser("aaa")
	require.NoError(t, err)
	assert.Equal(t, "AAA", ledger.ID())

	_, err = r.GetUser("ZZZ")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRegistryUpdateTradableIgnoresUnknownUser(t *testing.T) {
	r := NewUserRegistry()
	require.NoError(t, r.Init([]string{"AAA"}))

	snap := book.Snapshot{User: "ZZZ", ID: "some-id"}
	r.UpdateTradable("ZZZ", snap)

	_, err := r.GetUser("ZZZ")
	assert.Error(t, err, "UpdateTradable must not create a ledger for an unknown user")
}

func TestUserLedgerUpdateTradableIsLatestByID(t *testing.T) {
	r := NewUserRegistry()
	require.NoError(t, r.Init([]string{"AAA"}))

	first := book.Snapshot{User: "AAA", ID: "order-1", RemainingVolume: 10}
	second := book.Snapshot{User: "AAA", ID: "order-1", RemainingVolume: 4}
	r.UpdateTradable("AAA", first)
	r.UpdateTradable("AAA", second)

	ledger, err := r.GetUser("AAA")
	require.NoError(t, err)
	assert.Contains(t, ledger.String(), "RemainingVolume: 4")
	assert.NotContains(t, ledger.String(), "RemainingVolume: 10")
}

func TestUserLedgerUpdateTradableIgnoresEmptyID(t *testing.T) {
	r := NewUserRegistry()
	require.NoError(t, r.Init([]string{"AAA"}))
	r.UpdateTradable("AAA", book.Snapshot{User: "AAA", ID: ""})

	ledger, err := r.GetUser("AAA")
	require.NoError(t, err)
	assert.Equal(t, "  User Id: AAA\n", ledger.String())
}

func TestUserLedgerCurrentMarkets(t *testing.T) {
	cache := money.NewCache()
	r := NewUserRegistry()
	require.NoError(t, r.Init([]string{"AAA"}))
	l, err := r.GetUser("AAA")
	require.NoError(t, err)

	buy := market.Side{Price: cache.Intern(10000), Volume: 5}
	sell := market.Side{Price: cache.Intern(10100), Volume: 5}
	l.UpdateCurrentMarket("TGT", buy, sell)

	assert.Equal(t, "TGT $100.00x5 - $101.00x5\n", l.GetCurrentMarkets())
}
