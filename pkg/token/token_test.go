package token

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	tokenAddr = common.HexToAddress("0x000000000000000000000000000000000000000a")
	alice     = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	bob       = common.HexToAddress("0xBB00000000000000000000000000000000000000")
	engine    = common.HexToAddress("0x00000000000000000000000000000000000e5c60")
)

func bi(v int64) *big.Int { return big.NewInt(v) }

func TestMintAndBalance(t *testing.T) {
	tk := NewToken(tokenAddr, "TokenA", "TKA")

	if err := tk.Mint(alice, bi(1000)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if got := tk.BalanceOf(alice); got.Cmp(bi(1000)) != 0 {
		t.Errorf("balance = %v, want 1000", got)
	}
	if got := tk.BalanceOf(bob); got.Sign() != 0 {
		t.Errorf("expected zero balance for bob, got %v", got)
	}

	if err := tk.Mint(alice, bi(0)); err == nil {
		t.Error("expected error for zero mint")
	}
}

func TestApproveAndAllowance(t *testing.T) {
	tk := NewToken(tokenAddr, "TokenA", "TKA")

	if err := tk.Approve(alice, engine, bi(500)); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if got := tk.Allowance(alice, engine); got.Cmp(bi(500)) != 0 {
		t.Errorf("allowance = %v, want 500", got)
	}

	// Re-approval replaces, not accumulates
	tk.Approve(alice, engine, bi(100))
	if got := tk.Allowance(alice, engine); got.Cmp(bi(100)) != 0 {
		t.Errorf("allowance after re-approve = %v, want 100", got)
	}
}

func TestPull(t *testing.T) {
	tk := NewToken(tokenAddr, "TokenA", "TKA")
	tk.Mint(alice, bi(1000))
	tk.Approve(alice, engine, bi(300))

	if err := tk.Pull(alice, engine, bi(200)); err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if got := tk.BalanceOf(alice); got.Cmp(bi(800)) != 0 {
		t.Errorf("owner balance = %v, want 800", got)
	}
	if got := tk.BalanceOf(engine); got.Cmp(bi(200)) != 0 {
		t.Errorf("engine balance = %v, want 200", got)
	}
	if got := tk.Allowance(alice, engine); got.Cmp(bi(100)) != 0 {
		t.Errorf("allowance = %v, want 100 (consumed)", got)
	}

	// Allowance exhausted
	err := tk.Pull(alice, engine, bi(200))
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Errorf("expected ErrInsufficientAllowance, got %v", err)
	}

	// Balance short even with allowance
	tk.Approve(alice, engine, bi(10000))
	err = tk.Pull(alice, engine, bi(900))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}

	// Failed pulls moved nothing
	if got := tk.BalanceOf(alice); got.Cmp(bi(800)) != 0 {
		t.Errorf("balance changed on failed pull: %v", got)
	}
}

func TestPush(t *testing.T) {
	tk := NewToken(tokenAddr, "TokenA", "TKA")
	tk.Mint(alice, bi(500))
	tk.Approve(alice, engine, bi(500))
	tk.Pull(alice, engine, bi(500))

	if err := tk.Push(engine, bob, bi(300)); err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if got := tk.BalanceOf(bob); got.Cmp(bi(300)) != 0 {
		t.Errorf("recipient balance = %v, want 300", got)
	}

	err := tk.Push(engine, bob, bi(300))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds for over-push, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	tk := NewToken(tokenAddr, "TokenA", "TKA")
	reg.Register(tokenAddr, tk)

	got, err := reg.Resolve(tokenAddr)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got != Ledger(tk) {
		t.Error("resolved wrong ledger")
	}

	_, err = reg.Resolve(bob)
	if !errors.Is(err, ErrUnknownAsset) {
		t.Errorf("expected ErrUnknownAsset, got %v", err)
	}
}
