package server

import (
	"context"
	"net"
	"testing"
	"time"

	"mini-rpc/codec"
	"mini-rpc/message"
	"mini-rpc/protocol"
)

func addHandler(ctx context.Context, params []any) (any, error) {
	a := params[0].(float64)
	b := params[1].(float64)
	return a + b, nil
}

func TestServerDispatchesRegisteredMethod(t *testing.T) {
	svr := New(nil, nil, nil, nil)
	svr.Register("Arith", "default", "1.0", "Add", addHandler)

	go svr.Serve("tcp", ":8888", "", nil)
	time.Sleep(100 * time.Millisecond)

	conn, err := net.Dial("tcp", ":8888")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	cdc := codec.MustGet(codec.TagJSON)
	req := &message.Request{Interface: "Arith", Method: "Add", Group: "default", Version: "1.0", Params: []any{1, 2}}
	body, err := cdc.Encode(req)
	if err != nil {
		t.Fatal(err)
	}

	header := &protocol.Header{MsgType: protocol.MsgTypeRequest, CodecTag: byte(codec.TagJSON), RequestID: 42}
	if err := protocol.Encode(conn, header, body); err != nil {
		t.Fatal(err)
	}

	replyHeader, replyBody, err := protocol.Decode(conn)
	if err != nil {
		t.Fatal(err)
	}
	if replyHeader.RequestID != header.RequestID {
		t.Fatalf("expected request id %d, got %d", header.RequestID, replyHeader.RequestID)
	}
	if replyHeader.MsgType != protocol.MsgTypeResponse {
		t.Fatalf("expected response frame, got msg type %d", replyHeader.MsgType)
	}

	var resp message.Response
	if err := cdc.Decode(replyBody, &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.IsSuccess() {
		t.Fatalf("expected success, got %+v", resp)
	}
	if resp.Payload.(float64) != 3 {
		t.Fatalf("expected 3, got %v", resp.Payload)
	}
}

func TestServerUnknownMethodReturnsFailure(t *testing.T) {
	svr := New(nil, nil, nil, nil)
	svr.Register("Arith", "default", "1.0", "Add", addHandler)

	go svr.Serve("tcp", ":8891", "", nil)
	time.Sleep(100 * time.Millisecond)

	conn, err := net.Dial("tcp", ":8891")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	cdc := codec.MustGet(codec.TagJSON)
	req := &message.Request{Interface: "Arith", Method: "Missing", Group: "default", Version: "1.0"}
	body, _ := cdc.Encode(req)
	header := &protocol.Header{MsgType: protocol.MsgTypeRequest, CodecTag: byte(codec.TagJSON), RequestID: 7}
	if err := protocol.Encode(conn, header, body); err != nil {
		t.Fatal(err)
	}

	_, replyBody, err := protocol.Decode(conn)
	if err != nil {
		t.Fatal(err)
	}
	var resp message.Response
	if err := cdc.Decode(replyBody, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.IsSuccess() {
		t.Fatal("expected failure for unknown method")
	}
}
