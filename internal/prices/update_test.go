package prices

import (
	"testing"
)

func TestDecodeUpdate_FullMap(t *testing.T) {
	data := []byte(`{
		"BTC": {"current": "110000", "previous24h": "100000", "change24h": "10000", "changePercentage24h": "10"},
		"ETH": {"current": "4000", "previous24h": "4100"}
	}`)

	update, err := DecodeUpdate(data)
	if err != nil {
		t.Fatalf("DecodeUpdate failed: %v", err)
	}

	full, ok := update.(FullUpdate)
	if !ok {
		t.Fatalf("update = %T, want FullUpdate", update)
	}
	if len(full.Prices) != 2 {
		t.Errorf("symbols = %d, want 2", len(full.Prices))
	}
	if got := full.Prices["BTC"].Current; !got.Equal(dec("110000")) {
		t.Errorf("BTC current = %s, want 110000", got)
	}
}

func TestDecodeUpdate_SinglePatch(t *testing.T) {
	data := []byte(`{"symbol": "BTC", "price": {"current": "111000"}}`)

	update, err := DecodeUpdate(data)
	if err != nil {
		t.Fatalf("DecodeUpdate failed: %v", err)
	}

	patch, ok := update.(PatchUpdate)
	if !ok {
		t.Fatalf("update = %T, want PatchUpdate", update)
	}
	if patch.Symbol != "BTC" {
		t.Errorf("symbol = %s, want BTC", patch.Symbol)
	}
	if patch.Patch.Current == nil || !patch.Patch.Current.Equal(dec("111000")) {
		t.Errorf("current = %v, want 111000", patch.Patch.Current)
	}
	if patch.Patch.Previous24h != nil {
		t.Error("previous24h should be nil when omitted")
	}
}

func TestDecodeUpdate_UnquotedNumbers(t *testing.T) {
	data := []byte(`{"symbol": "ETH", "price": {"current": 4000.5, "previous24h": 3900}}`)

	update, err := DecodeUpdate(data)
	if err != nil {
		t.Fatalf("DecodeUpdate failed: %v", err)
	}

	patch, ok := update.(PatchUpdate)
	if !ok {
		t.Fatalf("update = %T, want PatchUpdate", update)
	}
	if !patch.Patch.Current.Equal(dec("4000.5")) {
		t.Errorf("current = %s, want 4000.5", patch.Patch.Current)
	}
}

func TestDecodeUpdate_Garbage(t *testing.T) {
	if _, err := DecodeUpdate([]byte(`[1,2,3]`)); err == nil {
		t.Error("expected error for non-object payload")
	}
}
