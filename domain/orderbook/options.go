package orderbook

type options struct {
	fillOrKill    bool
	inPlaceReduce bool
}

type Option func(*options)

// WithFillOrKill makes FillOrKill orders execute completely on arrival or
// be rejected without trades. Without it every kind matches identically.
func WithFillOrKill() Option {
	return func(o *options) { o.fillOrKill = true }
}

// WithInPlaceReduce keeps an order's time priority when a modify leaves
// side and price unchanged and does not raise the quantity. Without it
// every modify is a cancel followed by a fresh add at the back of the level.
func WithInPlaceReduce() Option {
	return func(o *options) { o.inPlaceReduce = true }
}
