package media

import (
	"context"
	"testing"

	"github.com/mnemo-app/mnemo/pkg/journal"
)

func TestNoSigner(t *testing.T) {
	urls, err := NoSigner{}.SignURLs(context.Background(), []string{"a/b.jpg"})
	if err != nil {
		t.Fatalf("SignURLs: %v", err)
	}
	if len(urls) != 0 {
		t.Errorf("want empty map, got %v", urls)
	}
}

func TestNewMinioSigner_Validation(t *testing.T) {
	if _, err := NewMinioSigner(MinioConfig{Bucket: "media"}); err == nil {
		t.Error("want error for empty endpoint")
	}
	if _, err := NewMinioSigner(MinioConfig{Endpoint: "localhost:9000"}); err == nil {
		t.Error("want error for empty bucket")
	}
	s, err := NewMinioSigner(MinioConfig{Endpoint: "localhost:9000", Bucket: "media"})
	if err != nil {
		t.Fatalf("NewMinioSigner: %v", err)
	}
	if s.ttl != DefaultURLTTL {
		t.Errorf("ttl: got %v, want %v", s.ttl, DefaultURLTTL)
	}
}

func TestCollectPaths_DistinctAndOrdered(t *testing.T) {
	memories := []journal.Memory{
		{Media: []journal.Media{
			{StoragePath: "alice/1.jpg"},
			{StoragePath: "alice/2.mp4"},
		}},
		{Media: []journal.Media{
			{StoragePath: "alice/1.jpg"}, // duplicate
			{StoragePath: ""},            // unset
		}},
	}

	paths := CollectPaths(memories)
	if len(paths) != 2 || paths[0] != "alice/1.jpg" || paths[1] != "alice/2.mp4" {
		t.Errorf("CollectPaths: got %v", paths)
	}
}

func TestFillURLs(t *testing.T) {
	memories := []journal.Memory{
		{Media: []journal.Media{
			{StoragePath: "alice/1.jpg"},
			{StoragePath: "alice/unsigned.jpg"},
		}},
	}

	FillURLs(memories, map[string]string{
		"alice/1.jpg": "https://cdn.example/alice/1.jpg?sig=abc",
	})

	if got := memories[0].Media[0].URL; got != "https://cdn.example/alice/1.jpg?sig=abc" {
		t.Errorf("signed URL: got %q", got)
	}
	if memories[0].Media[1].URL != "" {
		t.Errorf("unsigned attachment should keep empty URL, got %q", memories[0].Media[1].URL)
	}
}
