// Package qrshare shares typed values between devices through QR codes.
//
// A value is encoded to a text payload, rendered as a QR symbol, scanned on
// another device and decoded back into the same type. Decoding is strict:
// a payload whose structure does not match the target type is rejected and
// the receiving side keeps its previous value.
//
// Basic example:
//
//	type Contact struct {
//	    ID   int    `json:"id"`
//	    Name string `json:"name"`
//	}
//
//	png, err := qrshare.QRCode(Contact{ID: 42, Name: "alice"})
//	...
//	c, err := qrshare.Import[Contact]([]byte(`{"id":42,"name":"alice"}`))
//
// Sharer ties the pieces together for one type:
//
//	sharer := qrshare.New[Contact](
//	    qrshare.WithSchema(registry, "contact"),      // versioned envelopes
//	    qrshare.WithStore(offload.NewMemoryStore(), time.Hour), // oversized payloads
//	)
//	img, err := sharer.Image(ctx, contact)
//
//	bound := sharer.Bind(Contact{})
//	sess, err := sharer.Scan(ctx, camera, bound)
//	defer sess.Stop()
//	for c := range bound.Watch(ctx) {
//	    fmt.Println("scanned", c.Name)
//	}
//
// Options:
//   - WithCodec: payload codec. Default is JSON.
//   - WithSchema: wrap payloads in versioned envelopes and upcast old ones.
//   - WithStore: keep payloads larger than a QR symbol in a shared store.
//   - WithQROptions: error-correction level, image size and border.
//   - WithLogger, WithTracerProvider: observability.
//
// Packages:
//   - payload: codecs and the typed encode/decode pair
//   - schema: versioned envelopes and upcasters
//   - qrcode: rendering and image decoding
//   - scanner: scan sessions over frame sources
//   - binding: a value kept in sync with scans
//   - offload: stores for oversized payloads
//   - relay: forwarding scans to NATS, Kafka or in-process subscribers
package qrshare
