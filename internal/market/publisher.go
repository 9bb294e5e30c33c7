// Package market implements top-of-book fanout: a per-symbol
// observer list (Publisher) and the banner-printing composer
// (Tracker) that feeds it.
package market

import (
	"fmt"

	"tradebook/internal/money"
)

// Side holds the top price and volume for one side of one symbol's
// book at publication time.
type Side struct {
	Price  money.Price
	Volume int
}

// String renders "{price}x{volume}", e.g. "$98.10x105".
func (s Side) String() string {
	return fmt.Sprintf("%sx%d", s.Price, s.Volume)
}

// Observer receives current-market updates for symbols it has
// subscribed to.
type Observer interface {
	UpdateCurrentMarket(symbol string, buy, sell Side)
}

// Publisher fans out top-of-book snapshots to subscribed observers,
// in subscription order, per symbol.
type Publisher struct {
	observers map[string][]Observer
}

// NewPublisher constructs an empty Publisher.
func NewPublisher() *Publisher {
	return &Publisher{observers: make(map[string][]Observer)}
}

// Subscribe appends obs to symbol's observer list.
func (p *Publisher) Subscribe(symbol string, obs Observer) {
	p.observers[symbol] = append(p.observers[symbol], obs)
}

// Unsubscribe removes the first matching observer for symbol, if any.
func (p *Publisher) Unsubscribe(symbol string, obs Observer) {
	list := p.observers[symbol]
	for i, o := range list {
		if o == obs {
			p.observers[symbol] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Accept fans out (symbol, buy, sell) to every subscriber, in
// subscription order.
func (p *Publisher) Accept(symbol string, buy, sell Side) {
	for _, obs := range p.observers[symbol] {
		obs.UpdateCurrentMarket(symbol, buy, sell)
	}
}
