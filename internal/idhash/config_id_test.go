package idhash

import (
	"testing"

	"github.com/cchevrot/backtest/internal/domain"
)

func TestComputeConfigID(t *testing.T) {
	id := ComputeConfigID(`{"a":1}`)
	if len(id) != 64 {
		t.Errorf("Expected hash length 64, got %d", len(id))
	}
	if id != ComputeConfigID(`{"a":1}`) {
		t.Error("Determinism failed")
	}
	if id == ComputeConfigID(`{"a":2}`) {
		t.Error("Different keys should produce different hash")
	}
}

func TestConfigID_OrderIndependent(t *testing.T) {
	a := domain.Params{}
	a["take_profit_pnl"] = domain.Number(70)
	a["trade_start_hour"] = domain.Clock(9*60 + 30)

	b := domain.Params{}
	b["trade_start_hour"] = domain.Clock(9*60 + 30)
	b["take_profit_pnl"] = domain.Number(70)

	idA, keyA, err := ConfigID(a)
	if err != nil {
		t.Fatalf("ConfigID failed: %v", err)
	}
	idB, keyB, _ := ConfigID(b)
	if idA != idB || keyA != keyB {
		t.Errorf("Expected identical ids, got %s / %s", idA, idB)
	}
}

func TestConfigID_RejectsInvalid(t *testing.T) {
	if _, _, err := ConfigID(domain.Params{"": domain.Number(1)}); err == nil {
		t.Error("Expected error for empty parameter name")
	}
}

func TestComputeDataSetID(t *testing.T) {
	base := ComputeDataSetID([]string{"2024-01-02", "2024-01-03"})
	if base == ComputeDataSetID([]string{"2024-01-03", "2024-01-02"}) {
		t.Error("Day order should change the id")
	}
	if base == ComputeDataSetID([]string{"2024-01-02"}) {
		t.Error("Different day sets should produce different hash")
	}
}
