package vector

import "testing"

func TestNormalize_PadsShortVector(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	got := Normalize(in, 6)

	if len(got) != 6 {
		t.Fatalf("length: got %d, want 6", len(got))
	}
	for i, v := range in {
		if got[i] != v {
			t.Errorf("got[%d] = %v, want %v", i, got[i], v)
		}
	}
	for i := len(in); i < 6; i++ {
		if got[i] != 0 {
			t.Errorf("got[%d] = %v, want 0 (padding)", i, got[i])
		}
	}
}

func TestNormalize_TruncatesLongVector(t *testing.T) {
	in := []float32{1, 2, 3, 4, 5}
	got := Normalize(in, 2)

	if len(got) != 2 {
		t.Fatalf("length: got %d, want 2", len(got))
	}
	if got[0] != 1 || got[1] != 2 {
		t.Errorf("got %v, want [1 2]", got)
	}
}

func TestNormalize_ExactLengthPassesThrough(t *testing.T) {
	in := []float32{1, 2, 3}
	got := Normalize(in, 3)

	if len(got) != 3 {
		t.Fatalf("length: got %d, want 3", len(got))
	}
	// Exact-length input must not be copied.
	if &got[0] != &in[0] {
		t.Error("expected pass-through of the input slice, got a copy")
	}
}

func TestNormalize_EmptyInputYieldsAllZero(t *testing.T) {
	for _, in := range [][]float32{nil, {}} {
		got := Normalize(in, 4)
		if len(got) != 4 {
			t.Fatalf("length: got %d, want 4", len(got))
		}
		for i, v := range got {
			if v != 0 {
				t.Errorf("got[%d] = %v, want 0", i, v)
			}
		}
	}
}

// Mirrors the deployment that motivated normalization: a 768-dimension
// nomic-embed-text vector stored in a 1536-dimension column.
func TestNormalize_SelfHostedInto1536(t *testing.T) {
	in := make([]float32, 768)
	for i := range in {
		in[i] = float32(i) / 768
	}

	got := Normalize(in, DefaultDimensions)
	if len(got) != DefaultDimensions {
		t.Fatalf("length: got %d, want %d", len(got), DefaultDimensions)
	}
	for i := range in {
		if got[i] != in[i] {
			t.Fatalf("got[%d] = %v, want %v", i, got[i], in[i])
		}
	}
	for i := 768; i < DefaultDimensions; i++ {
		if got[i] != 0 {
			t.Fatalf("got[%d] = %v, want 0", i, got[i])
		}
	}
}

func TestNormalize_NonPositiveDimsPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for dims=0")
		}
	}()
	Normalize([]float32{1}, 0)
}
