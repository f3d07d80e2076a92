package lnwallet

import (
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/remotesigner/keychain"
	"github.com/stretchr/testify/require"
)

var errTestRejected = errors.New("rejected by fakeValidator")

// fakeValidator lets these tests exercise ChannelSlot's own bookkeeping
// (phase transitions, persistence calls, state advancement) without pulling
// in the policy package's real checks. Each method defaults to accepting;
// a test overrides the one it cares about.
type fakeValidator struct {
	channelValueErr    error
	counterpartyRevErr error
}

func (v *fakeValidator) ValidateChannelValue(setup *ChannelSetup) error {
	return v.channelValueErr
}
func (v *fakeValidator) ValidateReadyChannel(WalletContext, *ChannelSetup, []uint32) error {
	return nil
}
func (v *fakeValidator) ValidateCounterpartyCommitmentTx(
	*EnforcementState, uint64, *btcec.PublicKey, *ChannelSetup, ChainState, *CommitmentInfo2) error {
	return nil
}
func (v *fakeValidator) ValidateHolderCommitmentTx(
	*EnforcementState, uint64, *btcec.PublicKey, *ChannelSetup, ChainState, *CommitmentInfo2) error {
	return nil
}
func (v *fakeValidator) ValidateCounterpartyRevocation(
	*EnforcementState, uint64, [32]byte, *btcec.PublicKey) error {
	return v.counterpartyRevErr
}
func (v *fakeValidator) ValidateHtlcTx(*ChannelSetup, ChainState, bool, *HTLCInfo2, uint32) error {
	return nil
}
func (v *fakeValidator) ValidateDelayedSweep(*ChannelSetup, ChainState, WalletContext, []uint32, []byte, uint32) error {
	return nil
}
func (v *fakeValidator) ValidateCounterpartyHtlcSweep(*ChannelSetup, ChainState, WalletContext, []uint32, []byte, uint32, *HTLCInfo2) error {
	return nil
}
func (v *fakeValidator) ValidateJusticeSweep(*ChannelSetup, ChainState, WalletContext, []uint32, []byte, uint32) error {
	return nil
}
func (v *fakeValidator) ValidateMutualClose(*ChannelSetup, *EnforcementState, WalletContext, []*CloseOutput) error {
	return nil
}
func (v *fakeValidator) ValidateOnchainTx(
	WalletContext, map[int]*FundingOutputChannel, *wire.MsgTx, []int64, [][]uint32) error {
	return nil
}

// fakePersister records every SaveChannel call instead of touching disk.
type fakePersister struct {
	saves int
}

func (p *fakePersister) SaveChannel(id0 [32]byte, slot *ChannelSlot) error {
	p.saves++
	return nil
}

func testKeyManager(t *testing.T) *keychain.KeyManager {
	t.Helper()
	var seed keychain.Seed
	for i := range seed {
		seed[i] = byte(i)
	}
	return keychain.NewKeyManager(seed, keychain.NodeConfig{
		KeyDerivationStyle: keychain.Lnd,
		Network:            &chaincfg.RegressionNetParams,
	})
}

func testSetup(t *testing.T) *ChannelSetup {
	t.Helper()
	return &ChannelSetup{
		ChannelValueSat:                   1_000_000,
		HolderSelectedContestDelay:        144,
		CounterpartySelectedContestDelay:  144,
		CounterpartyPoints:                *testChannelPoints(t, 60),
		CommitmentType:                    Legacy,
	}
}

func TestChannelSlotReadyPromotesStubAndPersists(t *testing.T) {
	var id0 [32]byte
	copy(id0[:], "channel-ready-test-id-0000000000")

	persister := &fakePersister{}
	validator := &fakeValidator{}
	slot := NewChannelSlot(id0, nil, testKeyManager(t), validator, persister)
	require.Equal(t, StubPhase, slot.Phase)

	err := slot.Ready(testSetup(t))
	require.NoError(t, err)
	require.Equal(t, ReadyPhase, slot.Phase)
	require.NotNil(t, slot.State)
	require.Equal(t, 1, persister.saves)

	// A second call is rejected outright, regardless of the validator.
	err = slot.Ready(testSetup(t))
	require.Error(t, err)
}

func TestChannelSlotReadyPropagatesValidatorRejection(t *testing.T) {
	var id0 [32]byte
	copy(id0[:], "channel-ready-reject-test-id-000")

	persister := &fakePersister{}
	validator := &fakeValidator{channelValueErr: errTestRejected}
	slot := NewChannelSlot(id0, nil, testKeyManager(t), validator, persister)

	err := slot.Ready(testSetup(t))
	require.ErrorIs(t, err, errTestRejected)
	require.Equal(t, StubPhase, slot.Phase)
	require.Equal(t, 0, persister.saves)
}

func TestRestoreChannelSlotSkipsValidation(t *testing.T) {
	var id0 [32]byte
	copy(id0[:], "channel-restore-test-id-00000000")

	setup := testSetup(t)
	state := NewEnforcementState()
	// A validator that would reject everything must not be consulted by
	// restore: restoring replays persisted fact, it does not re-decide it.
	validator := &fakeValidator{channelValueErr: errTestRejected}
	persister := &fakePersister{}

	slot := RestoreChannelSlot(id0, nil, ReadyPhase, setup, state, testKeyManager(t), validator, persister)
	require.Equal(t, ReadyPhase, slot.Phase)
	require.Same(t, setup, slot.Setup)
	require.Same(t, state, slot.State)
}

func TestValidateCounterpartyRevocationRejectsMismatchedSecret(t *testing.T) {
	var id0 [32]byte
	copy(id0[:], "channel-revoke-mismatch-test-id0")

	km := testKeyManager(t)
	persister := &fakePersister{}
	validator := &fakeValidator{}
	slot := NewChannelSlot(id0, nil, km, validator, persister)
	require.NoError(t, slot.Ready(testSetup(t)))

	point0 := testPoint(t, 1)
	info0 := &CommitmentInfo2{}
	require.NoError(t, slot.State.SetNextCounterpartyCommitNum(1, point0, info0))

	var wrongSecret [32]byte
	wrongSecret[0] = 0xff
	err := slot.ValidateCounterpartyRevocation(0, wrongSecret)
	require.Error(t, err)
}

func TestValidateCounterpartyRevocationAdvancesStateOnMatch(t *testing.T) {
	var id0 [32]byte
	copy(id0[:], "channel-revoke-match-test-id0000")

	km := testKeyManager(t)
	persister := &fakePersister{}
	validator := &fakeValidator{}
	slot := NewChannelSlot(id0, nil, km, validator, persister)
	require.NoError(t, slot.Ready(testSetup(t)))

	secretPriv := testPrivKey(t, 77)
	point := secretPriv.PubKey()
	info := &CommitmentInfo2{}
	require.NoError(t, slot.State.SetNextCounterpartyCommitNum(1, point, info))

	var secret [32]byte
	copy(secret[:], secretPriv.Serialize())

	require.NoError(t, slot.ValidateCounterpartyRevocation(0, secret))
	require.Equal(t, uint64(1), slot.State.NextCounterpartyRevokeNum)
}

func TestValidateCounterpartyRevocationPropagatesValidatorRejection(t *testing.T) {
	var id0 [32]byte
	copy(id0[:], "channel-revoke-policy-test-id000")

	km := testKeyManager(t)
	persister := &fakePersister{}
	validator := &fakeValidator{counterpartyRevErr: errTestRejected}
	slot := NewChannelSlot(id0, nil, km, validator, persister)
	require.NoError(t, slot.Ready(testSetup(t)))

	secretPriv := testPrivKey(t, 77)
	point := secretPriv.PubKey()
	info := &CommitmentInfo2{}
	require.NoError(t, slot.State.SetNextCounterpartyCommitNum(1, point, info))

	var secret [32]byte
	copy(secret[:], secretPriv.Serialize())

	err := slot.ValidateCounterpartyRevocation(0, secret)
	require.ErrorIs(t, err, errTestRejected)
	// Rejected by the policy layer after the point check already passed;
	// the state must not have advanced.
	require.Equal(t, uint64(0), slot.State.NextCounterpartyRevokeNum)
}

func TestRequireSoleOutputRejectsMismatchedDestination(t *testing.T) {
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(1000, []byte{0x00, 0x14, 0x01}))

	require.NoError(t, requireSoleOutput(tx, []byte{0x00, 0x14, 0x01}))
	require.Error(t, requireSoleOutput(tx, []byte{0x00, 0x14, 0x02}))
}

func TestRequireSoleOutputRejectsExtraOutput(t *testing.T) {
	dest := []byte{0x00, 0x14, 0x01}
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(1000, dest))
	// A sweep tx funding an extra, unaccounted output alongside the
	// asserted destination must be rejected outright.
	tx.AddTxOut(wire.NewTxOut(500, []byte{0x00, 0x14, 0x02}))

	require.Error(t, requireSoleOutput(tx, dest))
}

func TestSignMutualCloseTxRejectsTooManyOutputs(t *testing.T) {
	var id0 [32]byte
	copy(id0[:], "channel-close-too-many-outputs0")

	km := testKeyManager(t)
	persister := &fakePersister{}
	validator := &fakeValidator{}
	slot := NewChannelSlot(id0, nil, km, validator, persister)
	require.NoError(t, slot.Ready(testSetup(t)))

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(100, []byte{0x00}))
	tx.AddTxOut(wire.NewTxOut(200, []byte{0x01}))
	tx.AddTxOut(wire.NewTxOut(300, []byte{0x02}))

	// The shape check rejects this tx before any wallet lookup is needed.
	_, err := slot.SignMutualCloseTx(tx, nil)
	require.Error(t, err)
}

func TestSignOperationsRejectStubPhase(t *testing.T) {
	var id0 [32]byte
	copy(id0[:], "channel-stub-rejects-test-id0000")

	slot := NewChannelSlot(id0, nil, testKeyManager(t), &fakeValidator{}, &fakePersister{})

	_, err := slot.SignCounterpartyCommitmentTx(nil, nil, 0, testPoint(t, 1), ChainState{}, nil)
	require.Error(t, err)

	err = slot.ValidateCounterpartyRevocation(0, [32]byte{})
	require.Error(t, err)
}
