package service

import (
	"errors"
	"testing"
)

func TestPagination(t *testing.T) {
	svc := New(newMemStore(), Options{DefaultLimit: 10, MaxLimit: 50})

	tests := []struct {
		name      string
		page      string
		limit     string
		wantPage  int
		wantLimit int
		wantErr   error
	}{
		{"defaults", "", "", 1, 10, nil},
		{"explicit", "3", "20", 3, 20, nil},
		{"clamped limit", "1", "500", 1, 50, nil},
		{"zero page", "0", "", 0, 0, ErrInvalidPage},
		{"negative page", "-2", "", 0, 0, ErrInvalidPage},
		{"non numeric page", "abc", "", 0, 0, ErrInvalidPage},
		{"zero limit", "", "0", 0, 0, ErrInvalidLimit},
		{"non numeric limit", "", "ten", 0, 0, ErrInvalidLimit},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			page, limit, err := svc.Pagination(tc.page, tc.limit)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Pagination(%q, %q) error = %v, want %v", tc.page, tc.limit, err, tc.wantErr)
			}
			if page != tc.wantPage || limit != tc.wantLimit {
				t.Fatalf("Pagination(%q, %q) = %d, %d, want %d, %d", tc.page, tc.limit, page, limit, tc.wantPage, tc.wantLimit)
			}
		})
	}
}
