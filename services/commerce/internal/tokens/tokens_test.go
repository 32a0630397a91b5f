package tokens

import "testing"

func TestNewDownloadToken_Unique(t *testing.T) {
	raw1, hash1, err := NewDownloadToken()
	if err != nil {
		t.Fatalf("NewDownloadToken: %v", err)
	}
	raw2, hash2, err := NewDownloadToken()
	if err != nil {
		t.Fatalf("NewDownloadToken: %v", err)
	}
	if raw1 == raw2 {
		t.Fatal("expected unique raw tokens")
	}
	if hash1 == hash2 {
		t.Fatal("expected unique hashes")
	}
}

func TestNewDownloadToken_HashMatchesRecompute(t *testing.T) {
	raw, hash, err := NewDownloadToken()
	if err != nil {
		t.Fatalf("NewDownloadToken: %v", err)
	}
	if Hash(raw) != hash {
		t.Fatal("expected Hash(raw) to equal stored digest")
	}
}

func TestNewDownloadToken_HashLength(t *testing.T) {
	_, hash, err := NewDownloadToken()
	if err != nil {
		t.Fatalf("NewDownloadToken: %v", err)
	}
	// SHA-256 hex = 64 chars
	if len(hash) != 64 {
		t.Fatalf("expected SHA-256 hex hash (64 chars), got %d: %s", len(hash), hash)
	}
}

func TestHash_Deterministic(t *testing.T) {
	if Hash("abc") != Hash("abc") {
		t.Fatal("expected deterministic hash")
	}
	if Hash("abc") == Hash("abd") {
		t.Fatal("expected different hashes for different inputs")
	}
}
