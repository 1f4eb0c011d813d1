package openai

import "testing"

func TestModelDimensions_TextEmbedding3Small(t *testing.T) {
	if got := modelDimensions("text-embedding-3-small"); got != 1536 {
		t.Errorf("got %d, want 1536", got)
	}
}

func TestModelDimensions_TextEmbedding3Large(t *testing.T) {
	if got := modelDimensions("text-embedding-3-large"); got != 3072 {
		t.Errorf("got %d, want 3072", got)
	}
}

func TestModelDimensions_Unknown(t *testing.T) {
	if got := modelDimensions("future-model"); got != 1536 {
		t.Errorf("got %d, want default 1536", got)
	}
}

func TestNew_MissingAPIKey(t *testing.T) {
	if _, err := New("", "text-embedding-3-small"); err == nil {
		t.Fatal("expected error for empty apiKey, got nil")
	}
}

func TestNew_DefaultModel(t *testing.T) {
	p, err := New("sk-test", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.ModelID() != DefaultModel {
		t.Errorf("ModelID(): got %q, want %q", p.ModelID(), DefaultModel)
	}
	if p.Dimensions() != 1536 {
		t.Errorf("Dimensions(): got %d, want 1536", p.Dimensions())
	}
}

func TestFloat64ToFloat32(t *testing.T) {
	in := []float64{0.25, -1.5, 3}
	got := float64ToFloat32(in)
	if len(got) != len(in) {
		t.Fatalf("length: got %d, want %d", len(got), len(in))
	}
	for i := range in {
		if float64(got[i]) != in[i] {
			t.Errorf("got[%d] = %v, want %v", i, got[i], in[i])
		}
	}
}
