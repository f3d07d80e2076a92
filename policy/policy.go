// Package policy implements the signer's stateless policy engine: the
// tunable safety bounds every channel sign operation is checked against
// before lnwallet.ChannelSlot touches key material.
package policy

// SimplePolicy is the tunable configuration of SimpleValidator. It is a
// plain value: no mutexes, no global state, constructed once per network
// at node startup and never mutated afterward.
type SimplePolicy struct {
	MinDelay uint16
	MaxDelay uint16

	MaxChannelSizeSat uint64
	MaxPushSat        uint64

	EpsilonSat uint64

	MaxHTLCs         int
	MaxHTLCValueSat  uint64

	MinFeeratePerKw uint32
	MaxFeeratePerKw uint32

	MinFeeSat uint64
	MaxFeeSat uint64

	// UseChainState gates every check against the front end's current
	// chain height: the HTLC cltv_expiry window in commitment checks, the
	// HTLC-transaction expiry check in ValidateHtlcTx, and the delayed and
	// justice sweep lock_time checks. Off for networks
	// (regtest, tests) where a front end may not supply a meaningful
	// chain height.
	UseChainState bool

	RelayFeePerKw uint32
}

// MinDustLimitSat is BOLT-3's fixed dust threshold for a p2wsh/p2wpkh
// output; not a policy tunable, since relaxing it would break consensus
// with every other implementation's relay rules.
const MinDustLimitSat = 546

// MainnetPolicy returns the conservative tunables the signer applies on
// mainnet.
func MainnetPolicy() *SimplePolicy {
	return &SimplePolicy{
		MinDelay:          144,
		MaxDelay:          2016,
		MaxChannelSizeSat: 16_777_215,
		MaxPushSat:        16_777_215,
		EpsilonSat:        2_000,
		MaxHTLCs:          966,
		MaxHTLCValueSat:   16_777_215,
		MinFeeratePerKw:   253,
		MaxFeeratePerKw:   500_000,
		MinFeeSat:         100,
		MaxFeeSat:         21_000,
		UseChainState:     true,
		RelayFeePerKw:     253,
	}
}

// TestnetPolicy returns the looser tunables the signer applies on
// testnet/regtest, where operators routinely exercise edge cases (large
// channels and pushes, short delays, larger absolute fees) that mainnet's
// policy would reject. The feerate window is the same as mainnet's.
func TestnetPolicy() *SimplePolicy {
	p := MainnetPolicy()
	p.MinDelay = 4
	p.MaxDelay = 2016
	p.MaxChannelSizeSat = 167_772_150
	p.MaxPushSat = 167_772_150
	p.MaxFeeSat = 100_000
	p.UseChainState = false
	return p
}
