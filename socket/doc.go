// Package socket provides the persistent duplex WebSocket client shared by the
// interactive and chat clients.
//
// A [Client] owns one long-lived connection at a time. It performs the
// handshake, correlates method calls with their replies over the shared
// connection, dispatches unsolicited server pushes to subscribed handlers and
// reconnects on its own after the connection drops.
//
// # Thread Safety
//
// [Client] is safe for concurrent use by multiple goroutines. Handlers
// registered with [Client.Subscribe] run on the read loop goroutine: they must
// not block and must not issue requests synchronously.
//
// # Basic Usage
//
//	pool, err := socket.NewEndpointPool("wss://a.example.com/gameClient", "wss://b.example.com/gameClient")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client := socket.New(pool,
//	    socket.WithAuthToken(token),
//	    socket.WithHeader("X-Protocol-Version", "2.0"),
//	)
//	defer client.Close()
//
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	if err := client.Ready(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := client.Call(ctx, "getTime", nil)
//
// # Observability
//
// Use [WithLogger], [WithMetrics], [WithOnStateChange], [WithOnSend] and
// [WithOnReceive] to add logging and monitoring to the client.
package socket
