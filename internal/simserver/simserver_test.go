package simserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"lhd/internal/apint"
	"lhd/internal/exec"
	"lhd/internal/ir"
)

func TestSessionEmitRoundTrip(t *testing.T) {
	srv := NewServer()
	sessCh := make(chan *Session, 1)

	httpSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := srv.Accept(w, r)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		sessCh <- sess
	}))
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer clientConn.Close()

	var sess *Session
	select {
	case sess = <-sessCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server-side session")
	}
	if sess.ID == "" {
		t.Fatalf("expected non-empty session ID")
	}

	ctx := ir.NewContext()
	sigArg := ir.NewArgument(ctx.NewSignal(ctx.Int(8)), "q", ir.Out)
	val := ctx.ConstInt(8, apint.FromUint64(8, 0x2A))
	sess.Emit(exec.Event{Signal: sigArg, Value: val})

	var got WireEvent
	if err := clientConn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.SignalName != "q" {
		t.Fatalf("expected signal name q, got %q", got.SignalName)
	}
	if got.Value != val.String() {
		t.Fatalf("expected value %q, got %q", val.String(), got.Value)
	}

	if _, ok := srv.Session(sess.ID); !ok {
		t.Fatalf("expected session to be tracked by ID")
	}
	srv.Forget(sess.ID)
	if _, ok := srv.Session(sess.ID); ok {
		t.Fatalf("expected session to be forgotten")
	}
}
