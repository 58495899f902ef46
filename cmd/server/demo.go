package main

import (
	"context"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"shardbook/domain/message"
	"shardbook/domain/orderbook"
	"shardbook/service"
)

// runDemo replays a short scripted session on symbol 1 and a random
// crossing flow on the other symbols, then returns once queues drain.
func runDemo(ctx context.Context, e *service.Engine, log logrus.FieldLogger) {
	gtc := func(id orderbook.OrderID, side orderbook.Side, price orderbook.Price, qty orderbook.Quantity) message.Message {
		return message.Add(orderbook.NewOrder(id, 1, orderbook.GoodTillCancel, side, price, qty))
	}

	script := []message.Message{
		gtc(1, orderbook.Bid, 100, 10),
		gtc(2, orderbook.Ask, 101, 100),
		gtc(3, orderbook.Bid, 101, 3),
		message.Amend(orderbook.Modify{ID: 1, Side: orderbook.Bid, Price: 101, Qty: 200}),
		message.Cancel(1),
		gtc(4, orderbook.Bid, 99, 25),
		gtc(5, orderbook.Ask, 102, 40),
	}
	for _, msg := range script {
		submit(ctx, e, 1, msg)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for s := 2; s <= e.Router().NumSymbols(); s++ {
		symbol := orderbook.Symbol(s)
		for id := orderbook.OrderID(1); id <= 1000; id++ {
			side := orderbook.Side(rng.Intn(2))
			price := orderbook.Price(10_000 + rng.Intn(50) - 25)
			qty := orderbook.Quantity(1 + rng.Intn(100))
			o := orderbook.NewOrder(id, symbol, orderbook.GoodTillCancel, side, price, qty)
			if !submit(ctx, e, symbol, message.Add(o)) {
				return
			}
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := e.WaitIdle(waitCtx); err != nil {
		log.WithError(err).Warn("demo feed did not drain")
	}
	log.Info("demo feed done")
}

// submit retries on backpressure until ctx ends.
func submit(ctx context.Context, e *service.Engine, s orderbook.Symbol, msg message.Message) bool {
	for !e.Submit(s, msg) {
		if e.Router().QueueFor(s) == nil || ctx.Err() != nil {
			return false
		}
		time.Sleep(50 * time.Microsecond)
	}
	return true
}
