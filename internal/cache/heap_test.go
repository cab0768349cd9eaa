// Guardian - Tick-Synchronous Movement Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vectrixdevelops/guardiansponge-sub001

package cache

import (
	"fmt"
	"testing"
)

func TestTickHeap_BasicOperations(t *testing.T) {
	h := NewTickHeap[string]()

	h.Push("c", "third", 30)
	h.Push("a", "first", 10)
	h.Push("b", "second", 20)

	if h.Len() != 3 {
		t.Fatalf("Expected len 3, got %d", h.Len())
	}

	if peek := h.Peek(); peek == nil || peek.Key != "a" {
		t.Fatalf("Expected peek a, got %+v", peek)
	}

	for _, want := range []string{"a", "b", "c"} {
		got := h.Pop()
		if got == nil || got.Key != want {
			t.Fatalf("Expected pop %s, got %+v", want, got)
		}
	}

	if h.Pop() != nil {
		t.Error("Expected nil pop on empty heap")
	}
}

func TestTickHeap_TiesPopInInsertionOrder(t *testing.T) {
	h := NewTickHeap[int]()
	for i := 0; i < 20; i++ {
		h.Push(fmt.Sprintf("k%02d", i), i, 5)
	}

	for i := 0; i < 20; i++ {
		e := h.Pop()
		if e.Value != i {
			t.Fatalf("Expected value %d, got %d", i, e.Value)
		}
	}
}

func TestTickHeap_PushExistingReschedules(t *testing.T) {
	h := NewTickHeap[string]()
	h.Push("a", "v1", 10)
	h.Push("b", "v1", 20)
	h.Push("a", "v2", 30)

	if h.Len() != 2 {
		t.Fatalf("Expected len 2, got %d", h.Len())
	}
	if first := h.Pop(); first.Key != "b" {
		t.Errorf("Expected b first after reschedule, got %s", first.Key)
	}
	if second := h.Pop(); second.Value != "v2" || second.Due != 30 {
		t.Errorf("Expected rescheduled a, got %+v", second)
	}
}

func TestTickHeap_Remove(t *testing.T) {
	h := NewTickHeap[int]()
	h.Push("a", 1, 1)
	h.Push("b", 2, 2)
	h.Push("c", 3, 3)

	if removed := h.Remove("b"); removed == nil || removed.Value != 2 {
		t.Fatalf("Expected to remove b, got %+v", removed)
	}
	if h.Remove("b") != nil {
		t.Error("Expected nil on second remove")
	}
	if h.Get("b") != nil {
		t.Error("Expected b to be gone")
	}
	if h.Len() != 2 {
		t.Errorf("Expected len 2, got %d", h.Len())
	}
}

func TestTickHeap_PopDue(t *testing.T) {
	h := NewTickHeap[int]()
	for i := 1; i <= 10; i++ {
		h.Push(fmt.Sprintf("k%d", i), i, uint64(i*10))
	}

	due := h.PopDue(35)
	if len(due) != 3 {
		t.Fatalf("Expected 3 due entries, got %d", len(due))
	}
	for i, e := range due {
		if e.Value != i+1 {
			t.Errorf("Expected value %d at %d, got %d", i+1, i, e.Value)
		}
	}

	if got := h.PopDue(35); len(got) != 0 {
		t.Errorf("Expected nothing further due, got %d", len(got))
	}
	if h.Len() != 7 {
		t.Errorf("Expected len 7, got %d", h.Len())
	}

	h.Clear()
	if h.Len() != 0 || h.Peek() != nil {
		t.Error("Expected empty heap after Clear")
	}
}

func BenchmarkTickHeap_Push(b *testing.B) {
	h := NewTickHeap[int]()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.Push(fmt.Sprintf("key%d", i), i, uint64(i%4096))
	}
}
