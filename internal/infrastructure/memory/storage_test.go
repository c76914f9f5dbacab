package memory

import (
	"bytes"
	"testing"
)

func TestStorage_GetSet(t *testing.T) {
	storage := NewStorage()

	if _, ok := storage.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}

	storage.Set("basket_items", []byte(`[]`))
	value, ok := storage.Get("basket_items")
	if !ok || !bytes.Equal(value, []byte(`[]`)) {
		t.Errorf("expected stored value back, got %q, %v", value, ok)
	}

	storage.Set("basket_items", []byte(`[1]`))
	value, _ = storage.Get("basket_items")
	if !bytes.Equal(value, []byte(`[1]`)) {
		t.Errorf("expected overwrite, got %q", value)
	}
}

func TestStorage_CopiesBuffers(t *testing.T) {
	storage := NewStorage()

	in := []byte("abc")
	storage.Set("k", in)
	in[0] = 'X'

	out, _ := storage.Get("k")
	if !bytes.Equal(out, []byte("abc")) {
		t.Errorf("store aliased the caller buffer, got %q", out)
	}

	out[0] = 'Y'
	again, _ := storage.Get("k")
	if !bytes.Equal(again, []byte("abc")) {
		t.Errorf("store handed out its own buffer, got %q", again)
	}
}
