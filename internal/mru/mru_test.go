package mru

import (
	"fmt"
	"reflect"
	"testing"
)

func TestPushInsertsAtFront(t *testing.T) {
	list := Push(nil, "a")
	list = Push(list, "b")
	list = Push(list, "c")
	if want := []string{"c", "b", "a"}; !reflect.DeepEqual(list, want) {
		t.Fatalf("Push() = %v, want %v", list, want)
	}
}

func TestPushMovesExistingToFront(t *testing.T) {
	list := []string{"c", "b", "a"}
	got := Push(list, "a")
	if want := []string{"a", "c", "b"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Push() = %v, want %v", got, want)
	}
	if want := []string{"c", "b", "a"}; !reflect.DeepEqual(list, want) {
		t.Fatalf("input modified to %v", list)
	}
}

func TestPushIsIdempotent(t *testing.T) {
	once := Push([]string{"x", "y"}, "z")
	twice := Push(once, "z")
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("Push() twice = %v, want %v", twice, once)
	}
}

func TestPushBoundsLength(t *testing.T) {
	var list []string
	for i := 0; i < 25; i++ {
		list = Push(list, fmt.Sprintf("v%d", i))
		if len(list) > MaxEntries {
			t.Fatalf("len(Push()) = %d, want <= %d", len(list), MaxEntries)
		}
	}
	if list[0] != "v24" || list[MaxEntries-1] != "v15" {
		t.Fatalf("Push() = %v", list)
	}
}

func TestRePushingFirstValueKeepsSize(t *testing.T) {
	var list []string
	for i := 0; i < MaxEntries; i++ {
		list = Push(list, fmt.Sprintf("v%d", i))
	}
	got := Push(list, "v0")
	if len(got) != MaxEntries {
		t.Fatalf("len(Push()) = %d, want %d", len(got), MaxEntries)
	}
	if got[0] != "v0" || got[1] != "v9" || got[MaxEntries-1] != "v1" {
		t.Fatalf("Push() = %v", got)
	}
}

func TestContains(t *testing.T) {
	if !Contains([]string{"a", "b"}, "b") {
		t.Fatalf("Contains(b) = false")
	}
	if Contains(nil, "b") {
		t.Fatalf("Contains(nil) = true")
	}
}
