// Package wire implements the binary request/response protocol used
// by the demonstration TCP front end, and the front end itself. The
// protocol is a thin, explicit encoding over internal/engine
// operations — it is not part of the matching core.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"tradebook/internal/book"
)

var (
	// ErrInvalidMessageType is returned when the leading type tag does
	// not match a known request.
	ErrInvalidMessageType = errors.New("invalid message type")
	// ErrMessageTooShort is returned when a message's declared
	// variable-length fields would read past the buffer.
	ErrMessageTooShort = errors.New("message too short for declared field lengths")
)

// MessageType tags a request on the wire.
type MessageType uint16

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
	Quote
	CancelQuote
	LogBook
)

// ReportMessageType tags a response on the wire.
type ReportMessageType uint8

const (
	ExecutionReport ReportMessageType = iota
	ErrorReport
)

// BaseMessageHeaderLen is the leading type tag common to every request.
const BaseMessageHeaderLen = 2

// Message is any parsed request.
type Message interface {
	GetType() MessageType
}

// BaseMessage carries the common type tag.
type BaseMessage struct {
	TypeOf MessageType
}

// GetType implements Message.
func (m BaseMessage) GetType() MessageType { return m.TypeOf }

// ParseMessage dispatches on the leading type tag and decodes the
// rest of buf into the matching request type.
func ParseMessage(buf []byte) (Message, error) {
	if len(buf) < BaseMessageHeaderLen {
		return nil, fmt.Errorf("%w: message too short to contain header", ErrMessageTooShort)
	}
	typeOf := MessageType(binary.BigEndian.Uint16(buf[0:2]))
	body := buf[2:]
	switch typeOf {
	case Heartbeat:
		return BaseMessage{TypeOf: Heartbeat}, nil
	case NewOrder:
		return parseNewOrder(body)
	case CancelOrder:
		return parseCancelOrder(body)
	case Quote:
		return parseQuoteMessage(body)
	case CancelQuote:
		return parseCancelQuoteMessage(body)
	case LogBook:
		return BaseMessage{TypeOf: LogBook}, nil
	default:
		return nil, ErrInvalidMessageType
	}
}

// NewOrderMessageHeaderLen is the fixed portion preceding the
// variable-length symbol: Side(1) SymbolLen(1) PriceCents(8) Volume(4)
// User(3).
const NewOrderMessageHeaderLen = 1 + 1 + 8 + 4 + 3

// NewOrderMessage requests a resting order be submitted.
type NewOrderMessage struct {
	BaseMessage
	Side       book.Side
	PriceCents int64
	Volume     uint32
	User       string
	Symbol     string
}

func parseNewOrder(buf []byte) (NewOrderMessage, error) {
	if len(buf) < NewOrderMessageHeaderLen {
		return NewOrderMessage{}, ErrMessageTooShort
	}
	m := NewOrderMessage{BaseMessage: BaseMessage{TypeOf: NewOrder}}
	m.Side = book.Side(buf[0])
	symbolLen := int(buf[1])
	m.PriceCents = int64(binary.BigEndian.Uint64(buf[2:10]))
	m.Volume = binary.BigEndian.Uint32(buf[10:14])
	m.User = string(buf[14:17])
	if len(buf) < NewOrderMessageHeaderLen+symbolLen {
		return NewOrderMessage{}, ErrMessageTooShort
	}
	m.Symbol = string(buf[17 : 17+symbolLen])
	return m, nil
}

// Serialize encodes m for a client to send.
func (m NewOrderMessage) Serialize() []byte {
	buf := make([]byte, BaseMessageHeaderLen+NewOrderMessageHeaderLen+len(m.Symbol))
	binary.BigEndian.PutUint16(buf[0:2], uint16(NewOrder))
	buf[2] = byte(m.Side)
	buf[3] = byte(len(m.Symbol))
	binary.BigEndian.PutUint64(buf[4:12], uint64(m.PriceCents))
	binary.BigEndian.PutUint32(buf[12:16], m.Volume)
	copy(buf[16:19], m.User)
	copy(buf[19:], m.Symbol)
	return buf
}

// CancelOrderMessageHeaderLen is the fixed portion preceding the
// variable-length symbol and tradable id: Side(1) SymbolLen(1) IDLen(2).
const CancelOrderMessageHeaderLen = 1 + 1 + 2

// CancelOrderMessage requests a resting order or quote side be
// cancelled.
type CancelOrderMessage struct {
	BaseMessage
	Side   book.Side
	Symbol string
	ID     string
}

func parseCancelOrder(buf []byte) (CancelOrderMessage, error) {
	if len(buf) < CancelOrderMessageHeaderLen {
		return CancelOrderMessage{}, ErrMessageTooShort
	}
	m := CancelOrderMessage{BaseMessage: BaseMessage{TypeOf: CancelOrder}}
	m.Side = book.Side(buf[0])
	symbolLen := int(buf[1])
	idLen := int(binary.BigEndian.Uint16(buf[2:4]))
	if len(buf) < CancelOrderMessageHeaderLen+symbolLen+idLen {
		return CancelOrderMessage{}, ErrMessageTooShort
	}
	m.Symbol = string(buf[4 : 4+symbolLen])
	m.ID = string(buf[4+symbolLen : 4+symbolLen+idLen])
	return m, nil
}

// Serialize encodes m for a client to send.
func (m CancelOrderMessage) Serialize() []byte {
	buf := make([]byte, BaseMessageHeaderLen+CancelOrderMessageHeaderLen+len(m.Symbol)+len(m.ID))
	binary.BigEndian.PutUint16(buf[0:2], uint16(CancelOrder))
	buf[2] = byte(m.Side)
	buf[3] = byte(len(m.Symbol))
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(m.ID)))
	offset := 6
	copy(buf[offset:], m.Symbol)
	offset += len(m.Symbol)
	copy(buf[offset:], m.ID)
	return buf
}

// QuoteMessageHeaderLen is the fixed portion preceding the
// variable-length symbol: SymbolLen(1) BuyPriceCents(8) BuyVolume(4)
// SellPriceCents(8) SellVolume(4) User(3).
const QuoteMessageHeaderLen = 1 + 8 + 4 + 8 + 4 + 3

// QuoteMessage requests a two-sided quote be submitted, replacing any
// prior resting quote from the same user on the same symbol.
type QuoteMessage struct {
	BaseMessage
	User           string
	Symbol         string
	BuyPriceCents  int64
	BuyVolume      uint32
	SellPriceCents int64
	SellVolume     uint32
}

func parseQuoteMessage(buf []byte) (QuoteMessage, error) {
	if len(buf) < QuoteMessageHeaderLen {
		return QuoteMessage{}, ErrMessageTooShort
	}
	m := QuoteMessage{BaseMessage: BaseMessage{TypeOf: Quote}}
	symbolLen := int(buf[0])
	m.BuyPriceCents = int64(binary.BigEndian.Uint64(buf[1:9]))
	m.BuyVolume = binary.BigEndian.Uint32(buf[9:13])
	m.SellPriceCents = int64(binary.BigEndian.Uint64(buf[13:21]))
	m.SellVolume = binary.BigEndian.Uint32(buf[21:25])
	m.User = string(buf[25:28])
	if len(buf) < QuoteMessageHeaderLen+symbolLen {
		return QuoteMessage{}, ErrMessageTooShort
	}
	m.Symbol = string(buf[28 : 28+symbolLen])
	return m, nil
}

// Serialize encodes m for a client to send.
func (m QuoteMessage) Serialize() []byte {
	buf := make([]byte, BaseMessageHeaderLen+QuoteMessageHeaderLen+len(m.Symbol))
	binary.BigEndian.PutUint16(buf[0:2], uint16(Quote))
	buf[2] = byte(len(m.Symbol))
	binary.BigEndian.PutUint64(buf[3:11], uint64(m.BuyPriceCents))
	binary.BigEndian.PutUint32(buf[11:15], m.BuyVolume)
	binary.BigEndian.PutUint64(buf[15:23], uint64(m.SellPriceCents))
	binary.BigEndian.PutUint32(buf[23:27], m.SellVolume)
	copy(buf[27:30], m.User)
	copy(buf[30:], m.Symbol)
	return buf
}

// CancelQuoteMessageHeaderLen is the fixed portion preceding the
// variable-length symbol: SymbolLen(1) User(3).
const CancelQuoteMessageHeaderLen = 1 + 3

// CancelQuoteMessage requests both sides of a user's resting quote on
// a symbol be cancelled.
type CancelQuoteMessage struct {
	BaseMessage
	User   string
	Symbol string
}

func parseCancelQuoteMessage(buf []byte) (CancelQuoteMessage, error) {
	if len(buf) < CancelQuoteMessageHeaderLen {
		return CancelQuoteMessage{}, ErrMessageTooShort
	}
	m := CancelQuoteMessage{BaseMessage: BaseMessage{TypeOf: CancelQuote}}
	symbolLen := int(buf[0])
	m.User = string(buf[1:4])
	if len(buf) < CancelQuoteMessageHeaderLen+symbolLen {
		return CancelQuoteMessage{}, ErrMessageTooShort
	}
	m.Symbol = string(buf[4 : 4+symbolLen])
	return m, nil
}

// Serialize encodes m for a client to send.
func (m CancelQuoteMessage) Serialize() []byte {
	buf := make([]byte, BaseMessageHeaderLen+CancelQuoteMessageHeaderLen+len(m.Symbol))
	binary.BigEndian.PutUint16(buf[0:2], uint16(CancelQuote))
	buf[2] = byte(len(m.Symbol))
	copy(buf[3:6], m.User)
	copy(buf[6:], m.Symbol)
	return buf
}

// reportFixedHeaderLen covers every fixed-width Report field:
// MessageType(1) Side(1) Timestamp(8) Quantity(8) PriceCents(8)
// CounterpartyLen(2) ErrStrLen(4) SymbolLen(1) IDLen(2).
const reportFixedHeaderLen = 1 + 1 + 8 + 8 + 8 + 2 + 4 + 1 + 2

// Report is a fill or error notification sent back to a client.
// Unlike the fixed 4-byte ticker and 16-byte UUID this protocol's
// ancestor used, Symbol and ID here carry their own declared lengths,
// since neither a product symbol nor a Tradable id in this system is
// fixed-width.
type Report struct {
	MessageType     ReportMessageType
	Side            book.Side
	Timestamp       uint64
	Quantity        uint64
	PriceCents      int64
	CounterpartyLen uint16
	ErrStrLen       uint32
	Symbol          string
	ID              string
	Err             string
	Counterparty    string
}

// Serialize converts the report to be sent on the wire.
func (r *Report) Serialize() []byte {
	total := reportFixedHeaderLen + len(r.Symbol) + len(r.ID) + int(r.ErrStrLen) + int(r.CounterpartyLen)
	buf := make([]byte, total)
	buf[0] = byte(r.MessageType)
	buf[1] = byte(r.Side)
	binary.BigEndian.PutUint64(buf[2:10], r.Timestamp)
	binary.BigEndian.PutUint64(buf[10:18], r.Quantity)
	binary.BigEndian.PutUint64(buf[18:26], uint64(r.PriceCents))
	binary.BigEndian.PutUint16(buf[26:28], r.CounterpartyLen)
	binary.BigEndian.PutUint32(buf[28:32], r.ErrStrLen)
	buf[32] = byte(len(r.Symbol))
	binary.BigEndian.PutUint16(buf[33:35], uint16(len(r.ID)))

	offset := reportFixedHeaderLen
	copy(buf[offset:], r.Symbol)
	offset += len(r.Symbol)
	copy(buf[offset:], r.ID)
	offset += len(r.ID)
	if r.ErrStrLen > 0 {
		copy(buf[offset:], r.Err)
		offset += int(r.ErrStrLen)
	}
	if r.CounterpartyLen > 0 {
		copy(buf[offset:], r.Counterparty)
	}
	return buf
}

// reportFromSnapshot builds an ExecutionReport describing the current
// state of snap.
func reportFromSnapshot(tick uint64, snap book.Snapshot) *Report {
	return &Report{
		MessageType: ExecutionReport,
		Side:        snap.Side,
		Timestamp:   tick,
		Quantity:    uint64(snap.FilledVolume),
		PriceCents:  int64(snap.Price.Cents()),
		Symbol:      snap.Product,
		ID:          snap.ID,
	}
}

// errorReport builds an ErrorReport carrying err's message.
func errorReport(tick uint64, err error) *Report {
	msg := err.Error()
	return &Report{
		MessageType: ErrorReport,
		Timestamp:   tick,
		ErrStrLen:   uint32(len(msg)),
		Err:         msg,
	}
}
