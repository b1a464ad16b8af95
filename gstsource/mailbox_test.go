package gstsource

import (
	"testing"
	"time"

	camstream "github.com/duncanrhamill/cv-camstream"
)

func frameWithSeq(seq uint64) camstream.RawFrame {
	return camstream.RawFrame{Seq: seq, Timestamp: time.Now()}
}

func TestMailbox_DeliversFrame(t *testing.T) {
	box := newMailbox()
	box.put(frameWithSeq(1))

	select {
	case raw := <-box.ch:
		if raw.Seq != 1 {
			t.Errorf("Seq = %d, want 1", raw.Seq)
		}
	default:
		t.Fatal("mailbox empty after put")
	}
}

func TestMailbox_LatestWins(t *testing.T) {
	box := newMailbox()
	box.put(frameWithSeq(1))
	box.put(frameWithSeq(2))
	box.put(frameWithSeq(3))

	select {
	case raw := <-box.ch:
		if raw.Seq != 3 {
			t.Errorf("Seq = %d, want 3 (latest)", raw.Seq)
		}
	default:
		t.Fatal("mailbox empty after puts")
	}
	if got := box.dropped.Load(); got != 2 {
		t.Errorf("dropped = %d, want 2", got)
	}
}

func TestMailbox_PutNeverBlocks(t *testing.T) {
	box := newMailbox()
	done := make(chan struct{})
	go func() {
		for seq := uint64(1); seq <= 100; seq++ {
			box.put(frameWithSeq(seq))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("put blocked with no consumer")
	}
}

func TestMailbox_Discard(t *testing.T) {
	box := newMailbox()

	// Discarding an empty mailbox must not block or panic.
	box.discard()

	box.put(frameWithSeq(7))
	box.discard()

	select {
	case raw := <-box.ch:
		t.Fatalf("frame %d survived discard", raw.Seq)
	default:
	}

	// The slot is free again for the next delivery.
	box.put(frameWithSeq(8))
	select {
	case raw := <-box.ch:
		if raw.Seq != 8 {
			t.Errorf("Seq = %d, want 8", raw.Seq)
		}
	default:
		t.Fatal("mailbox empty after put following discard")
	}
}
