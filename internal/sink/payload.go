// Package sink implements notify.Sink destinations for committed orders.
package sink

import (
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/wello-store/internal/domain/notify"
)

// recordPayload is the order-ledger recorder body:
// {order_id, name, email, items, amount, utr}.
func recordPayload(e notify.OrderPlaced) []byte {
	var enc jx.Encoder
	enc.Obj(func(enc *jx.Encoder) {
		enc.Field("order_id", func(enc *jx.Encoder) { enc.Str(e.OrderID) })
		enc.Field("name", func(enc *jx.Encoder) { enc.Str(e.UserName) })
		enc.Field("email", func(enc *jx.Encoder) { enc.Str(e.UserEmail) })
		enc.Field("items", func(enc *jx.Encoder) { enc.Str(e.Items) })
		enc.Field("amount", func(enc *jx.Encoder) { enc.Int64(e.Amount) })
		enc.Field("utr", func(enc *jx.Encoder) { enc.Str(e.PaymentRef) })
	})
	return enc.Bytes()
}

// mailPayload is the email sink body: {email, message}.
func mailPayload(e notify.OrderPlaced) []byte {
	var enc jx.Encoder
	enc.Obj(func(enc *jx.Encoder) {
		enc.Field("email", func(enc *jx.Encoder) { enc.Str(e.UserEmail) })
		enc.Field("message", func(enc *jx.Encoder) { enc.Str(notify.EmailMessage(e)) })
	})
	return enc.Bytes()
}

// eventPayload is the Kafka message value.
func eventPayload(e notify.OrderPlaced) []byte {
	var enc jx.Encoder
	enc.Obj(func(enc *jx.Encoder) {
		enc.Field("type", func(enc *jx.Encoder) { enc.Str("order_placed") })
		enc.Field("order_id", func(enc *jx.Encoder) { enc.Str(e.OrderID) })
		enc.Field("name", func(enc *jx.Encoder) { enc.Str(e.UserName) })
		enc.Field("email", func(enc *jx.Encoder) { enc.Str(e.UserEmail) })
		enc.Field("items", func(enc *jx.Encoder) { enc.Str(e.Items) })
		enc.Field("amount", func(enc *jx.Encoder) { enc.Int64(e.Amount) })
		enc.Field("utr", func(enc *jx.Encoder) { enc.Str(e.PaymentRef) })
		enc.Field("placed_at", func(enc *jx.Encoder) { enc.Str(e.PlacedAt.UTC().Format(time.RFC3339)) })
	})
	return enc.Bytes()
}
