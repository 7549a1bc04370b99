package audiocast

import (
	"testing"
	"time"
)

func TestNewAssetID(t *testing.T) {
	arrival := time.UnixMilli(1700000000123)
	id := NewAssetID(arrival)

	if id != "1700000000123" {
		t.Errorf("unexpected id %q", id)
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			t.Fatalf("id contains a non-digit: %q", id)
		}
	}
}

func TestAssetID_PlaylistName(t *testing.T) {
	if got := AssetID("42").PlaylistName(); got != "42.m3u8" {
		t.Errorf("PlaylistName: got %q", got)
	}
}
