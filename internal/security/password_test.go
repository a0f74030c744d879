package security

import (
	"bytes"
	"errors"
	"testing"
)

func testHasher() *Hasher {
	// Low cost to keep the suite fast; verification reads parameters from
	// the hash, so this does not weaken the assertions.
	return NewHasher(Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 16, SaltLen: 8})
}

func TestHashAndVerify(t *testing.T) {
	h := testHasher()

	hash, err := h.Hash("Str0ng!Pw")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	ok, err := h.Verify("Str0ng!Pw", hash)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("correct password rejected")
	}

	ok, err = h.Verify("wrong-password", hash)
	if err != nil {
		t.Fatalf("verify wrong: %v", err)
	}
	if ok {
		t.Fatal("wrong password accepted")
	}
}

func TestHashIsSalted(t *testing.T) {
	h := testHasher()

	first, err := h.Hash("Str0ng!Pw")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	second, err := h.Hash("Str0ng!Pw")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if bytes.Equal(first, second) {
		t.Fatal("two hashes of the same password must differ")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	h := testHasher()

	for _, hash := range [][]byte{
		nil,
		[]byte(""),
		[]byte("not-a-hash"),
		[]byte("$argon2id$v=19$garbled"),
		[]byte("$bcrypt$whatever"),
	} {
		if _, err := h.Verify("password", hash); !errors.Is(err, ErrHashFormat) {
			t.Errorf("hash %q: got %v, want ErrHashFormat", hash, err)
		}
	}
}

func TestVerifyHonorsEmbeddedParams(t *testing.T) {
	// A hash created at one cost must verify under a hasher configured with
	// a different cost.
	a := NewHasher(Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 16, SaltLen: 8})
	b := NewHasher(Argon2Params{Time: 2, Memory: 16 * 1024, Threads: 2, KeyLen: 32, SaltLen: 16})

	hash, err := a.Hash("Str0ng!Pw")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	ok, err := b.Verify("Str0ng!Pw", hash)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("hash must verify regardless of hasher cost settings")
	}
}
