package main

import (
	"context"
	"errors"
	"testing"
)

type memImages struct {
	keys    map[string][]string
	objects map[string][]byte
	getErr  error
}

func (m *memImages) ListEnrollmentImages(ctx context.Context, code string) ([]string, error) {
	return m.keys[code], nil
}

func (m *memImages) GetObject(ctx context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.objects[key], nil
}

func TestFetchStoredImages(t *testing.T) {
	src := &memImages{
		keys: map[string][]string{"106": {"enrollments/106/a.jpg", "enrollments/106/b.jpg"}},
		objects: map[string][]byte{
			"enrollments/106/a.jpg": []byte("a"),
			"enrollments/106/b.jpg": []byte("b"),
		},
	}

	got, err := fetchStoredImages(context.Background(), src, "106")
	if err != nil {
		t.Fatalf("fetchStoredImages() error: %v", err)
	}
	if len(got) != 2 || string(got[0]) != "a" || string(got[1]) != "b" {
		t.Errorf("images = %q", got)
	}

	if _, err := fetchStoredImages(context.Background(), src, "107"); err == nil {
		t.Error("expected error for a student with no stored images")
	}

	src.getErr = errors.New("bucket gone")
	if _, err := fetchStoredImages(context.Background(), src, "106"); !errors.Is(err, src.getErr) {
		t.Errorf("err = %v, want %v", err, src.getErr)
	}
}
