// this code is from https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package buffer

import "testing"

func TestLRUReplacer(t *testing.T) {
	r := NewLRUReplacer(7)

	r.Insert(1)
	r.Insert(2)
	r.Insert(3)
	r.Insert(4)
	r.Insert(5)
	r.Erase(4)

	if r.Size() != 4 {
		t.Fatalf("Size() = %d, want 4", r.Size())
	}

	r.Insert(3) // moves 3 back to most-recently-unpinned

	wantOrder := []FrameID{1, 2, 5, 3}
	for _, want := range wantOrder {
		got, ok := r.Victim()
		if !ok {
			t.Fatalf("Victim() returned no frame, wanted %d", want)
		}
		if got != want {
			t.Fatalf("Victim() = %d, want %d", got, want)
		}
	}

	if _, ok := r.Victim(); ok {
		t.Fatalf("Victim() on empty replacer should return ok=false")
	}
}

func TestLRUReplacerEraseUntracked(t *testing.T) {
	r := NewLRUReplacer(1)
	if r.Erase(42) {
		t.Fatalf("Erase() on untracked frame should return false")
	}
}
