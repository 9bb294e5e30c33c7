package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradebook/internal/book"
	"tradebook/internal/money"
)

func TestParseMessageHeartbeatAndLogBook(t *testing.T) {
	buf := make([]byte, 2)
	buf[1] = byte(Heartbeat)
	msg, err := ParseMessage(buf)
	require.NoError(t, err)
	assert.Equal(t, Heartbeat, msg.GetType())

	buf[1] = byte(LogBook)
	msg, err = ParseMessage(buf)
	require.NoError(t, err)
	assert.Equal(t, LogBook, msg.GetType())
}

func TestParseMessageTooShortHeader(t *testing.T) {
	_, err := ParseMessage([]byte{0})
	assert.ErrorIs(t, err, ErrMessageTooShort)
}

func TestParseMessageInvalidType(t *testing.T) {
	_, err := ParseMessage([]byte{0xff, 0xff})
	assert.ErrorIs(t, err, ErrInvalidMessageType)
}

func TestNewOrderMessageRoundTrip(t *testing.T) {
	want := NewOrderMessage{
		BaseMessage: BaseMessage{TypeOf: NewOrder},
		Side:        book.Buy,
		PriceCents:  10050,
		Volume:      25,
		User:        "AAA",
		Symbol:      "AAPL",
	}
	got, err := ParseMessage(want.Serialize())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestNewOrderMessageTooShort(t *testing.T) {
	want := NewOrderMessage{Side: book.Buy, PriceCents: 1, Volume: 1, User: "AAA", Symbol: "AAPL"}
	buf := want.Serialize()
	_, err := ParseMessage(buf[:len(buf)-2])
	assert.ErrorIs(t, err, ErrMessageTooShort)
}

func TestCancelOrderMessageRoundTrip(t *testing.T) {
	want := CancelOrderMessage{
		BaseMessage: BaseMessage{TypeOf: CancelOrder},
		Side:        book.Sell,
		Symbol:      "TGT",
		ID:          "AAATGT0001000000001",
	}
	got, err := ParseMessage(want.Serialize())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestQuoteMessageRoundTrip(t *testing.T) {
	want := QuoteMessage{
		BaseMessage:    BaseMessage{TypeOf: Quote},
		User:           "BBB",
		Symbol:         "TGT",
		BuyPriceCents:  9900,
		BuyVolume:      5,
		SellPriceCents: 10100,
		SellVolume:     7,
	}
	got, err := ParseMessage(want.Serialize())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCancelQuoteMessageRoundTrip(t *testing.T) {
	want := CancelQuoteMessage{
		BaseMessage: BaseMessage{TypeOf: CancelQuote},
		User:        "BBB",
		Symbol:      "TGT",
	}
	got, err := ParseMessage(want.Serialize())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReportSerializeExecutionLayout(t *testing.T) {
	cache := money.NewCache()
	r := reportFromSnapshot(42, book.Snapshot{
		Side:         book.Buy,
		FilledVolume: 10,
		Price:        cache.Intern(10050),
		Product:      "TGT",
		ID:           "AAATGT0001000000001",
	})
	buf := r.Serialize()

	assert.Equal(t, byte(ExecutionReport), buf[0])
	assert.Equal(t, byte(book.Buy), buf[1])
	assert.Equal(t, byte(len("TGT")), buf[32])
	assert.Equal(t, "TGT", string(buf[reportFixedHeaderLen:reportFixedHeaderLen+3]))
	assert.Equal(t, "AAATGT0001000000001", string(buf[reportFixedHeaderLen+3:reportFixedHeaderLen+3+len(r.ID)]))
}

func TestReportSerializeErrorLayout(t *testing.T) {
	r := errorReport(7, assertError{"boom"})
	buf := r.Serialize()

	assert.Equal(t, byte(ErrorReport), buf[0])
	assert.Equal(t, uint32(len("boom")), r.ErrStrLen)
	assert.Equal(t, "boom", string(buf[reportFixedHeaderLen:reportFixedHeaderLen+len("boom")]))
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }
