package channel

import (
	"context"
	"testing"
)

func TestMemoryActorMsgChannelApproxLen(t *testing.T) {
	f := NewMemoryFactory()
	ch := f.ActorMsgChannel("T_abc")
	ctx := context.Background()

	if n, _ := ch.ApproxLen(ctx); n != 0 {
		t.Fatalf("expected empty queue, got %d", n)
	}

	if err := ch.PutMsg(ctx, Message{Payload: "hi", Metadata: map[string]string{"_abaco_Content-Type": "str"}}); err != nil {
		t.Fatalf("PutMsg: %v", err)
	}
	if n, _ := ch.ApproxLen(ctx); n != 1 {
		t.Fatalf("expected 1 message, got %d", n)
	}
}

func TestMemoryCommandChannelRecordsOneCommandPerCall(t *testing.T) {
	f := NewMemoryFactory()
	cc := f.CommandChannel()
	ctx := context.Background()

	if err := cc.PutCmd(ctx, Command{ActorID: "T_abc", Image: "hello:2", StopExisting: true}); err != nil {
		t.Fatalf("PutCmd: %v", err)
	}
	cmds := f.Commands()
	if len(cmds) != 1 {
		t.Fatalf("expected exactly one command, got %d", len(cmds))
	}
	if !cmds[0].StopExisting {
		t.Fatal("expected stop_existing=true to survive")
	}
}

func TestMemoryWorkerChannelShutdown(t *testing.T) {
	f := NewMemoryFactory()
	w := f.WorkerChannel("ch1").(*memoryWorkerChannel)
	if w.ShutdownRequested() {
		t.Fatal("shutdown should not be requested yet")
	}
	if err := w.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !w.ShutdownRequested() {
		t.Fatal("expected shutdown to be recorded")
	}
}
