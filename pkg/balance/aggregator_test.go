package balance

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"wave-swap/pkg/types"
)

const usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

func num(s string) types.Balance {
	return types.Numeric(decimal.RequireFromString(s))
}

func TestMerge(t *testing.T) {
	auth := types.Balance{Kind: types.BalanceAuthRequired}
	deposited := types.Balance{Kind: types.BalanceDeposited}

	cases := []struct {
		name     string
		existing types.Balance
		exists   bool
		incoming types.Balance
		want     types.Balance
	}{
		{"numeric over absent", types.Balance{}, false, num("5"), num("5")},
		{"numeric over sentinel", auth, true, num("5"), num("5")},
		{"numeric over numeric", num("3"), true, num("5"), num("5")},
		{"sentinel over absent", types.Balance{}, false, auth, auth},
		{"sentinel over zero", num("0"), true, deposited, deposited},
		{"sentinel over sentinel", auth, true, deposited, deposited},
		{"sentinel loses to numeric", num("5"), true, auth, num("5")},
		{"deposited loses to numeric", num("0.25"), true, deposited, num("0.25")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Merge(tc.existing, tc.exists, tc.incoming)
			if got.Kind != tc.want.Kind || !got.Amount.Equal(tc.want.Amount) {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

// A numeric entry must survive any interleaving of sentinel arrivals around it.
func TestMergeSentinelNeverDowngrades(t *testing.T) {
	auth := types.Balance{Kind: types.BalanceAuthRequired}
	known := num("12.5")

	afterSentinelFirst := Merge(Merge(types.Balance{}, false, auth), true, known)
	afterNumericFirst := Merge(Merge(types.Balance{}, false, known), true, auth)

	if !afterSentinelFirst.IsNumeric() || !afterNumericFirst.IsNumeric() {
		t.Fatal("numeric must win regardless of arrival order")
	}
	if !afterSentinelFirst.Amount.Equal(afterNumericFirst.Amount) {
		t.Errorf("arrival order changed the result: %s vs %s", afterSentinelFirst, afterNumericFirst)
	}
}

type fakePlain struct {
	sol    types.Balance
	tokens map[string]types.Balance
	errs   map[string]error
}

func (f *fakePlain) SolBalance(ctx context.Context, owner solana.PublicKey) (types.Balance, error) {
	return f.sol, nil
}

func (f *fakePlain) TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (types.Balance, error) {
	if err := f.errs[mint.String()]; err != nil {
		return types.Balance{}, err
	}
	return f.tokens[mint.String()], nil
}

type fakeConfidential struct {
	view  map[string]types.Balance
	err   error
	calls int
}

func (f *fakeConfidential) ConfidentialBalances(ctx context.Context, identity string) (map[string]types.Balance, error) {
	f.calls++
	return f.view, f.err
}

func TestRefreshMergesBothUniverses(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	plain := &fakePlain{
		sol:    num("2.5"),
		tokens: map[string]types.Balance{usdcMint: num("100")},
	}
	conf := &fakeConfidential{view: map[string]types.Balance{
		usdcMint: {Kind: types.BalanceAuthRequired},
	}}
	agg := NewAggregator(plain, conf)

	selected := []types.Token{{Address: usdcMint, Decimals: 6, Symbol: "USDC"}}
	if err := agg.Refresh(context.Background(), owner, selected); err != nil {
		t.Fatal(err)
	}

	if b, ok := agg.Get(NativeMint); !ok || b.Amount.String() != "2.5" {
		t.Errorf("native balance missing or wrong: %v %v", b, ok)
	}
	if b, ok := agg.Get(usdcMint); !ok || b.Amount.String() != "100" {
		t.Errorf("plain USDC balance missing or wrong: %v %v", b, ok)
	}
	confKey := types.ConfidentialAddressPrefix + usdcMint
	if b, ok := agg.Get(confKey); !ok || b.Kind != types.BalanceAuthRequired {
		t.Errorf("confidential sentinel missing or wrong: %v %v", b, ok)
	}
	if b, ok := agg.PrivacyMap()[usdcMint]; !ok || b.Kind != types.BalanceAuthRequired {
		t.Errorf("privacy map entry missing or wrong: %v %v", b, ok)
	}
}

func TestRefreshSkipsFailedPlainFetches(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	plain := &fakePlain{
		sol:  num("1"),
		errs: map[string]error{usdcMint: errors.New("rpc down")},
	}
	conf := &fakeConfidential{view: map[string]types.Balance{}}
	agg := NewAggregator(plain, conf)
	agg.apply(usdcMint, num("100"))

	selected := []types.Token{{Address: usdcMint, Decimals: 6, Symbol: "USDC"}}
	if err := agg.Refresh(context.Background(), owner, selected); err != nil {
		t.Fatalf("a single plain fetch failure must not fail the refresh: %v", err)
	}
	// The stale entry stays rather than being wiped.
	if b, ok := agg.Get(usdcMint); !ok || b.Amount.String() != "100" {
		t.Errorf("expected the previous entry to survive, got %v %v", b, ok)
	}
}

func TestRefreshSurfacesConfidentialError(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	plain := &fakePlain{sol: num("1")}
	conf := &fakeConfidential{err: errors.New("backend down")}
	agg := NewAggregator(plain, conf)

	if err := agg.Refresh(context.Background(), owner, nil); err == nil {
		t.Fatal("expected the confidential fetch error to surface")
	}
}

func TestRefreshSkipsConfidentialAddresses(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	plain := &fakePlain{sol: num("1"), errs: map[string]error{}}
	conf := &fakeConfidential{view: map[string]types.Balance{}}
	agg := NewAggregator(plain, conf)

	selected := []types.Token{{Address: types.ConfidentialAddressPrefix + usdcMint, Decimals: 6, Symbol: "cUSDC"}}
	if err := agg.Refresh(context.Background(), owner, selected); err != nil {
		t.Fatal(err)
	}
	// Nothing plain is fetched for a confidential address, so no entry appears.
	if _, ok := agg.Get(types.ConfidentialAddressPrefix + usdcMint); ok {
		t.Error("confidential-wrapped addresses must not be fetched as plain mints")
	}
}

func TestCredit(t *testing.T) {
	agg := NewAggregator(&fakePlain{}, &fakeConfidential{})
	confKey := types.ConfidentialAddressPrefix + usdcMint

	agg.Credit(confKey, decimal.RequireFromString("10"))
	if b, _ := agg.Get(confKey); b.Amount.String() != "10" {
		t.Fatalf("expected 10, got %s", b)
	}

	agg.Credit(confKey, decimal.RequireFromString("2.5"))
	if b, _ := agg.Get(confKey); b.Amount.String() != "12.5" {
		t.Errorf("expected accumulation to 12.5, got %s", b)
	}
	if b := agg.PrivacyMap()[usdcMint]; b.Amount.String() != "12.5" {
		t.Errorf("credit must mirror into the privacy map, got %s", b)
	}
}

func TestCreditReplacesSentinel(t *testing.T) {
	agg := NewAggregator(&fakePlain{}, &fakeConfidential{})
	agg.ApplyConfidential(map[string]types.Balance{usdcMint: {Kind: types.BalanceDeposited}})

	confKey := types.ConfidentialAddressPrefix + usdcMint
	agg.Credit(confKey, decimal.RequireFromString("7"))
	if b, _ := agg.Get(confKey); !b.IsNumeric() || b.Amount.String() != "7" {
		t.Errorf("credit over a sentinel must yield the credited amount alone, got %s", b)
	}
}

func TestApplyConfidentialIsMergeNotOverwrite(t *testing.T) {
	agg := NewAggregator(&fakePlain{}, &fakeConfidential{})
	agg.ApplyConfidential(map[string]types.Balance{usdcMint: num("50")})
	agg.ApplyConfidential(map[string]types.Balance{usdcMint: {Kind: types.BalanceAuthRequired}})

	if b := agg.PrivacyMap()[usdcMint]; !b.IsNumeric() || b.Amount.String() != "50" {
		t.Errorf("a sentinel must not overwrite a known numeric balance, got %s", b)
	}
}
