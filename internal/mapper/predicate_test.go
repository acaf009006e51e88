package mapper

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestCompilePredicates_NumericComparisons(t *testing.T) {
	preds, err := CompilePredicates([]string{"amount > 10", "amount < 20", "amount <= 1_000 * 1e18"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	args := map[string]any{"amount": big.NewInt(15)}
	for _, p := range preds {
		ok, err := p(args)
		if err != nil {
			t.Fatalf("eval: %v", err)
		}
		if !ok {
			t.Fatalf("expected predicate to pass")
		}
	}
}

func TestCompilePredicates_LargeAmounts(t *testing.T) {
	preds, err := CompilePredicates([]string{"amount >= wei(1e18)"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	oneEther, _ := new(big.Int).SetString("1000000000000000000", 10)
	ok, _ := preds[0](map[string]any{"amount": oneEther})
	if !ok {
		t.Fatalf("expected 1e18 to satisfy >= wei(1e18)")
	}
	ok, _ = preds[0](map[string]any{"amount": new(big.Int).Sub(oneEther, big.NewInt(1))})
	if ok {
		t.Fatalf("expected 1e18-1 to fail")
	}
}

func TestCompilePredicates_AddressMembership(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	preds, err := CompilePredicates([]string{"token in 0x00000000000000000000000000000000000000AA,0x01", "token != 0x02"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	for _, p := range preds {
		ok, err := p(map[string]any{"token": addr})
		if err != nil || !ok {
			t.Fatalf("expected predicate to pass, ok=%v err=%v", ok, err)
		}
	}
}

func TestCompilePredicates_MissingFieldFails(t *testing.T) {
	preds, err := CompilePredicates([]string{"memo contains bridge"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	ok, err := preds[0](map[string]any{"amount": big.NewInt(1)})
	if err != nil || ok {
		t.Fatalf("expected false without error, got %v err=%v", ok, err)
	}
}

func TestCompilePredicates_Invalid(t *testing.T) {
	for _, expr := range []string{"amount", "amount >", " in a,b"} {
		if _, err := CompilePredicates([]string{expr}); err == nil {
			t.Fatalf("expected error for %q", expr)
		}
	}
}
