package policy

import "testing"

func TestMainnetPolicyTunables(t *testing.T) {
	p := MainnetPolicy()
	if p.MaxChannelSizeSat != 16_777_215 {
		t.Fatalf("unexpected max channel size: %d", p.MaxChannelSizeSat)
	}
	if !p.UseChainState {
		t.Fatalf("mainnet policy should enforce chain state checks")
	}
}

func TestTestnetPolicyLoosensMainnet(t *testing.T) {
	main := MainnetPolicy()
	test := TestnetPolicy()

	if test.MaxChannelSizeSat <= main.MaxChannelSizeSat {
		t.Fatalf("testnet max channel size should exceed mainnet's")
	}
	if test.UseChainState {
		t.Fatalf("testnet policy should not enforce chain state checks")
	}
	if test.MinDelay >= main.MinDelay {
		t.Fatalf("testnet min delay should be looser than mainnet's")
	}
}

func TestCheckFeeWindow(t *testing.T) {
	p := MainnetPolicy()

	cases := []struct {
		name    string
		feeSat  uint64
		wantErr bool
	}{
		{"below minimum", p.MinFeeSat - 1, true},
		{"at minimum", p.MinFeeSat, false},
		{"at maximum", p.MaxFeeSat, false},
		{"above maximum", p.MaxFeeSat + 1, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := p.checkFeeWindow(c.feeSat)
			if (err != nil) != c.wantErr {
				t.Fatalf("fee %d: got err=%v, want error=%v", c.feeSat, err, c.wantErr)
			}
		})
	}
}

func TestCheckContestDelay(t *testing.T) {
	p := MainnetPolicy()

	if err := p.checkContestDelay("holder", p.MinDelay-1); err == nil {
		t.Fatalf("expected failure for delay below minimum")
	}
	if err := p.checkContestDelay("holder", p.MaxDelay+1); err == nil {
		t.Fatalf("expected failure for delay above maximum")
	}
	if err := p.checkContestDelay("holder", p.MinDelay); err != nil {
		t.Fatalf("unexpected failure at minimum delay: %v", err)
	}
}

func TestCheckFeerateWindow(t *testing.T) {
	p := MainnetPolicy()

	if err := p.checkFeerateWindow(p.MinFeeratePerKw - 1); err == nil {
		t.Fatalf("expected failure below minimum feerate")
	}
	if err := p.checkFeerateWindow(p.MaxFeeratePerKw + 1); err == nil {
		t.Fatalf("expected failure above maximum feerate")
	}
	if err := p.checkFeerateWindow(p.MinFeeratePerKw); err != nil {
		t.Fatalf("unexpected failure at minimum feerate: %v", err)
	}
}
