package dailyset

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestGenerateBoardDeterministic(t *testing.T) {
	for _, date := range []string{"2025-09-01", "2024-02-29", "2026-10-15"} {
		a := GenerateBoard(date)
		b := GenerateBoard(date)
		if !reflect.DeepEqual(a, b) {
			t.Errorf("%s: boards differ:\n%v\n%v", date, a, b)
		}
	}
}

func TestGenerateBoardConstraints(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 60; i++ {
		date := start.AddDate(0, 0, i).Format(DateLayout)
		b := GenerateBoard(date)

		if len(b) != BoardSize {
			t.Fatalf("%s: board size = %d, want %d", date, len(b), BoardSize)
		}
		if hasDuplicates(b) {
			t.Fatalf("%s: board has duplicates", date)
		}
		if !HasTriple(b) {
			t.Errorf("%s: board has no set", date)
		}
		if !hasAllShapes(b) {
			t.Errorf("%s: board misses a shape", date)
		}
	}
}

func TestGenerateBoardVariesByDate(t *testing.T) {
	a := GenerateBoard("2025-09-01")
	b := GenerateBoard("2025-09-02")
	if reflect.DeepEqual(a, b) {
		t.Error("consecutive dates produced the same board")
	}
}

func TestSeed(t *testing.T) {
	if got := Seed("2025-09-01"); got != 20250901 {
		t.Errorf("Seed = %d, want 20250901", got)
	}
	if got := Seed("no digits"); got != 0 {
		t.Errorf("Seed = %d, want 0", got)
	}
}

func TestBoardJSON(t *testing.T) {
	b := Board{card(0, 1, 2, 3), card(2, 2, 2, 1)}
	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `[[0,1,2,3],[2,2,2,1]]` {
		t.Errorf("json = %s", data)
	}

	var bad Card
	if err := json.Unmarshal([]byte(`[0,1,2]`), &bad); err == nil {
		t.Error("expected error for 3-attribute card")
	}
	if err := json.Unmarshal([]byte(`[0,1,2,0]`), &bad); err == nil {
		t.Error("expected error for number 0")
	}
}

func TestBoardPickAndWithout(t *testing.T) {
	b := GenerateBoard("2025-09-01")

	tests := []struct {
		name    string
		indices []int
		wantErr bool
	}{
		{"valid", []int{0, 5, 11}, false},
		{"two indices", []int{0, 1}, true},
		{"four indices", []int{0, 1, 2, 3}, true},
		{"duplicate", []int{1, 1, 2}, true},
		{"negative", []int{-1, 1, 2}, true},
		{"out of range", []int{0, 1, 12}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Pick(tt.indices)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidIndices) || !errors.Is(err, ErrValidation) {
					t.Errorf("err = %v, want ErrInvalidIndices", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}

	rest := b.Without([]int{0, 11, 5})
	if len(rest) != BoardSize-3 {
		t.Fatalf("remaining = %d, want %d", len(rest), BoardSize-3)
	}
	want := append(append(Board{}, b[1:5]...), b[6:11]...)
	if !reflect.DeepEqual(rest, want) {
		t.Errorf("Without = %v, want %v", rest, want)
	}
	if len(b) != BoardSize {
		t.Error("Without mutated the receiver")
	}
}

func TestNormalizeDate(t *testing.T) {
	now := time.Date(2026, 10, 15, 23, 0, 0, 0, time.UTC)
	if got, _ := NormalizeDate("", now); got != "2026-10-15" {
		t.Errorf("empty date = %q, want today", got)
	}
	if _, err := NormalizeDate("15/10/2026", now); !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want validation error", err)
	}
	if got := DateRange(now, 3, 7); len(got) != 10 || got[0] != "2026-10-15" || got[9] != "2026-10-12" {
		t.Errorf("DateRange = %v", got)
	}
}
