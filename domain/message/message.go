// Package message is the tagged order intent carried through shard queues.
package message

import (
	"fmt"

	"shardbook/domain/orderbook"
)

type Kind uint8

const (
	KindAdd Kind = iota
	KindModify
	KindCancel
)

func (k Kind) String() string {
	switch k {
	case KindAdd:
		return "add"
	case KindModify:
		return "modify"
	case KindCancel:
		return "cancel"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Message holds exactly one intent; which field is meaningful depends on
// Kind. It is passed by value so queues never share memory with callers.
type Message struct {
	Kind    Kind
	Order   orderbook.Order
	Modify  orderbook.Modify
	OrderID orderbook.OrderID
}

func Add(o orderbook.Order) Message {
	return Message{Kind: KindAdd, Order: o}
}

// Amend wraps a modify intent.
func Amend(m orderbook.Modify) Message {
	return Message{Kind: KindModify, Modify: m}
}

func Cancel(id orderbook.OrderID) Message {
	return Message{Kind: KindCancel, OrderID: id}
}

// ID is the order the message refers to.
func (m Message) ID() orderbook.OrderID {
	switch m.Kind {
	case KindAdd:
		return m.Order.ID
	case KindModify:
		return m.Modify.ID
	default:
		return m.OrderID
	}
}

func (m Message) String() string {
	switch m.Kind {
	case KindAdd:
		o := m.Order
		return fmt.Sprintf("add id=%d %s %s %d@%d", o.ID, o.Kind, o.Side, o.RemainingQty, o.Price)
	case KindModify:
		md := m.Modify
		return fmt.Sprintf("modify id=%d %s %d@%d", md.ID, md.Side, md.Qty, md.Price)
	case KindCancel:
		return fmt.Sprintf("cancel id=%d", m.OrderID)
	default:
		return m.Kind.String()
	}
}
