package queue

import (
	"context"
	"testing"
	"time"
)

func TestMemory_EnqueueConsumeAck(t *testing.T) {
	q := NewMemory()
	ctx := context.Background()

	if err := q.Enqueue(ctx, Processing, Payload{JobID: "job-1"}, 0); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	msg, err := q.Consume(ctx, Processing)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if msg.Payload.JobID != "job-1" {
		t.Fatalf("job id = %s, want job-1", msg.Payload.JobID)
	}
	if err := q.Ack(ctx, Processing, msg.Handle); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if q.ReadyLen(Processing) != 0 {
		t.Fatalf("ready len = %d, want 0", q.ReadyLen(Processing))
	}
}

func TestMemory_ConsumeEmptyReturnsErrNoData(t *testing.T) {
	q := NewMemory()
	_, err := q.Consume(context.Background(), Processing)
	if err != ErrNoData {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestMemory_DelayedEnqueueNotImmediatelyReady(t *testing.T) {
	q := NewMemory()
	ctx := context.Background()

	if err := q.Enqueue(ctx, Verification, Payload{JobID: "job-2"}, 100*time.Millisecond); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if q.ReadyLen(Verification) != 0 {
		t.Fatalf("ready len before delay = %d, want 0", q.ReadyLen(Verification))
	}
	time.Sleep(150 * time.Millisecond)
	if q.ReadyLen(Verification) != 1 {
		t.Fatalf("ready len after delay = %d, want 1", q.ReadyLen(Verification))
	}
}

func TestMemory_NackRedeliversToReady(t *testing.T) {
	q := NewMemory()
	ctx := context.Background()

	_ = q.Enqueue(ctx, Processing, Payload{JobID: "job-3"}, 0)
	msg, err := q.Consume(ctx, Processing)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := q.Nack(ctx, Processing, msg.Handle); err != nil {
		t.Fatalf("nack: %v", err)
	}
	if q.ReadyLen(Processing) != 1 {
		t.Fatalf("ready len after nack = %d, want 1", q.ReadyLen(Processing))
	}
}

func TestMemory_SendToDeadLetter(t *testing.T) {
	q := NewMemory()
	ctx := context.Background()

	_ = q.Enqueue(ctx, Processing, Payload{JobID: "job-4"}, 0)
	msg, err := q.Consume(ctx, Processing)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := q.SendToDeadLetter(ctx, Processing, msg.Handle, "unknown job"); err != nil {
		t.Fatalf("send to dead letter: %v", err)
	}
	dead := q.DeadLettered(Processing)
	if len(dead) != 1 || dead[0].JobID != "job-4" {
		t.Fatalf("dead lettered = %+v, want one entry for job-4", dead)
	}
	if q.ReadyLen(Processing) != 0 {
		t.Fatalf("ready len = %d, want 0", q.ReadyLen(Processing))
	}
}
