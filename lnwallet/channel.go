package lnwallet

import (
	"bytes"
	"crypto/sha256"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/remotesigner/keychain"
	"github.com/lightninglabs/remotesigner/signererror"
)

// ChannelPhase distinguishes a channel that exists only as an id/nonce
// pair (Stub) from one whose funding parameters and counterparty points
// are known (Ready). Grounded on the teacher's commitmentChain/updateLog
// split between "a channel exists" and "a channel has usable state",
// generalized to the stub/ready split SPEC_FULL describes.
type ChannelPhase int

const (
	StubPhase ChannelPhase = iota
	ReadyPhase
)

func doubleSha256(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:]
}

// requireSoleOutput enforces that tx is the canonical one-in, one-out
// sweep shape and that its single output pays destScript exactly, so that
// a policy check run against a caller-asserted destination is guaranteed
// to describe the transaction actually being signed rather than a
// different one smuggled in alongside matching parameters.
func requireSoleOutput(tx *wire.MsgTx, destScript []byte) error {
	if len(tx.TxIn) != 1 {
		return signererror.BadFormat(
			"sweep tx must have exactly one input, has %d", len(tx.TxIn))
	}
	if len(tx.TxOut) != 1 {
		return signererror.BadFormat(
			"sweep tx must have exactly one output, has %d", len(tx.TxOut))
	}
	if !bytes.Equal(tx.TxOut[0].PkScript, destScript) {
		return signererror.BadFormat(
			"sweep tx output does not match the asserted destination script")
	}
	return nil
}

// Persister is the persistence boundary a Channel writes its state
// through at the end of every successful sign operation. Defined here so
// Channel does not import the concrete channeldb package.
type Persister interface {
	SaveChannel(id0 [32]byte, slot *ChannelSlot) error
}

// ChannelSlot is the node's one persisted record for one channel: an id,
// the nonce its keys were derived from, and, once Ready, the immutable
// setup and the mutable enforcement state. A Stub has Setup == nil and
// State == nil.
type ChannelSlot struct {
	mu sync.Mutex

	ID0   [32]byte
	Nonce []byte

	Phase ChannelPhase
	Setup *ChannelSetup
	State *EnforcementState

	keyManager *keychain.KeyManager
	validator  Validator
	persister  Persister
}

// NewChannelSlot creates a Stub slot for id0, bound to nonce (id0's bytes
// if nonce is nil, per spec). The slot keeps persister for its later
// transitions but is not saved here; the caller (signer.Node) writes its
// first record after insertion succeeds.
func NewChannelSlot(
	id0 [32]byte, nonce []byte, km *keychain.KeyManager,
	validator Validator, persister Persister) *ChannelSlot {

	if nonce == nil {
		nonce = append([]byte(nil), id0[:]...)
	}

	return &ChannelSlot{
		ID0:        id0,
		Nonce:      nonce,
		Phase:      StubPhase,
		keyManager: km,
		validator:  validator,
		persister:  persister,
	}
}

// RestoreChannelSlot reconstructs a ChannelSlot from a persisted record,
// installing phase/setup/state directly rather than replaying Ready's
// validation. Used by signer.Node when restoring a node's channels from
// channeldb at startup, mirroring the teacher's restore_channel building a
// ChannelSlot variant straight from persisted fields.
func RestoreChannelSlot(
	id0 [32]byte, nonce []byte, phase ChannelPhase, setup *ChannelSetup,
	state *EnforcementState, km *keychain.KeyManager, validator Validator,
	persister Persister) *ChannelSlot {

	return &ChannelSlot{
		ID0:        id0,
		Nonce:      nonce,
		Phase:      phase,
		Setup:      setup,
		State:      state,
		keyManager: km,
		validator:  validator,
		persister:  persister,
	}
}

// channelKeys re-derives this channel's basepoints and commitment seed.
// Never cached beyond the call that needs them, per the design note that
// the KeyManager holds no long-lived secret material beyond the seed.
func (c *ChannelSlot) channelKeys() *keychain.ChannelKeys {
	channelValueSat := uint64(0)
	if c.Setup != nil {
		channelValueSat = c.Setup.ChannelValueSat
	}
	return c.keyManager.ChannelKeysWithID(c.ID0, c.Nonce, channelValueSat)
}

// GetChannelBasepoints returns the five basepoints derived for this
// channel. Allowed on a Stub: the front end needs these to propose
// channel parameters before the channel is Ready.
func (c *ChannelSlot) GetChannelBasepoints() ChannelPoints {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.channelKeys()
	return ChannelPoints{
		FundingPubKey:       keys.FundingPubKey(),
		RevocationBasePoint: keys.RevocationBasePoint(),
		PaymentBasePoint:    keys.PaymentBasePoint(),
		DelayedBasePoint:    keys.DelayedBasePoint(),
		HtlcBasePoint:       keys.HtlcBasePoint(),
	}
}

// GetPerCommitmentPoint returns the per-commitment point for commitment
// number n. Allowed on a Stub only for n == 0.
func (c *ChannelSlot) GetPerCommitmentPoint(n uint64) (*btcec.PublicKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkStubAllowed(n); err != nil {
		return nil, err
	}
	return keychain.PerCommitmentPoint(c.channelKeys(), n), nil
}

// GetPerCommitmentSecret returns the per-commitment secret for commitment
// number n. Invariant (4) is enforced here: the secret is released only
// once next_holder_commit_num has reached n+2.
func (c *ChannelSlot) GetPerCommitmentSecret(n uint64) ([32]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Phase == StubPhase {
		return [32]byte{}, signererror.Policy("channel %x is a stub", c.ID0)
	}
	if c.State.NextHolderCommitNum < n+2 {
		return [32]byte{}, signererror.Policy(
			"cannot release per-commitment secret %d: next_holder_commit_num %d < %d",
			n, c.State.NextHolderCommitNum, n+2)
	}
	return keychain.PerCommitmentSecret(c.channelKeys(), n), nil
}

// CheckFutureSecret reports whether secret is the per-commitment secret
// for commitment number n. Allowed on a Stub.
func (c *ChannelSlot) CheckFutureSecret(n uint64, secret [32]byte) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return keychain.CheckFutureSecret(c.channelKeys(), n, secret)
}

func (c *ChannelSlot) checkStubAllowed(commitNum uint64) error {
	if c.Phase == StubPhase && commitNum != 0 {
		return signererror.Policy(
			"channel %x is a stub; only per_commitment_point(0) is allowed",
			c.ID0)
	}
	return nil
}

// Ready promotes a Stub slot to Ready, installing its immutable setup and
// a freshly-zeroed EnforcementState. A retry on an already-Ready slot
// fails; idempotence for ready_channel is the caller's (signer.Node's)
// responsibility, since it alone knows whether the stored setup matches.
func (c *ChannelSlot) Ready(setup *ChannelSetup) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Phase == ReadyPhase {
		return signererror.Policy(
			"channel %x is already ready; ready_channel may not be retried", c.ID0)
	}

	if err := c.validator.ValidateChannelValue(setup); err != nil {
		return err
	}

	c.Setup = setup
	c.State = NewEnforcementState()
	c.Phase = ReadyPhase

	if err := c.persister.SaveChannel(c.ID0, c); err != nil {
		return signererror.Wrap(err, "persisting ready_channel for %x", c.ID0)
	}
	return nil
}

func (c *ChannelSlot) requireReady() error {
	if c.Phase != ReadyPhase {
		return signererror.Policy("channel %x is a stub", c.ID0)
	}
	return nil
}

func (c *ChannelSlot) persist() error {
	if err := c.persister.SaveChannel(c.ID0, c); err != nil {
		return signererror.Wrap(err, "persisting channel %x", c.ID0)
	}
	return nil
}

// fundingPoints returns the local and counterparty ChannelPoints for this
// channel, in (local, remote) order, suitable for DeriveCommitmentKeys.
func (c *ChannelSlot) fundingPoints() (*ChannelPoints, *ChannelPoints) {
	keys := c.channelKeys()
	local := &ChannelPoints{
		FundingPubKey:       keys.FundingPubKey(),
		RevocationBasePoint: keys.RevocationBasePoint(),
		PaymentBasePoint:    keys.PaymentBasePoint(),
		DelayedBasePoint:    keys.DelayedBasePoint(),
		HtlcBasePoint:       keys.HtlcBasePoint(),
	}
	return local, &c.Setup.CounterpartyPoints
}

// SignCounterpartyCommitmentTx implements sign_counterparty_commitment_tx:
// validates and counter-signs a commitment transaction the counterparty
// will broadcast, advancing next_counterparty_commit_num on success.
// outputWitscripts carries the front end's asserted witness script for each
// of tx's outputs, one entry per wire.TxOut, consumed by DecodeCommitmentTx
// to classify every real output against the set of templates info predicts.
func (c *ChannelSlot) SignCounterpartyCommitmentTx(
	tx *wire.MsgTx, outputWitscripts [][]byte, commitNum uint64, point *btcec.PublicKey,
	chainState ChainState, info *CommitmentOutputs) ([]byte, error) {

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireReady(); err != nil {
		return nil, err
	}

	localPoints, remotePoints := c.fundingPoints()
	keys := DeriveCommitmentKeys(point, false, c.Setup.CommitmentType, localPoints, remotePoints)

	decoded, err := DecodeCommitmentTx(
		tx, outputWitscripts, c.Setup, keys, localPoints.FundingPubKey, true, info,
	)
	if err != nil {
		return nil, err
	}

	if err := c.validator.ValidateCounterpartyCommitmentTx(
		c.State, commitNum, point, c.Setup, chainState, decoded); err != nil {
		return nil, err
	}

	ck := c.channelKeys()
	redeemScript, _, err := FundingScript(localPoints.FundingPubKey, remotePoints.FundingPubKey)
	if err != nil {
		return nil, signererror.Wrap(err, "building funding script")
	}

	sigHashes := txscript.NewTxSigHashes(tx)
	sig, err := SignRawSigHash(
		tx, sigHashes, 0, int64(c.Setup.ChannelValueSat), redeemScript, ck.FundingKey,
	)
	if err != nil {
		return nil, signererror.Wrap(err, "signing counterparty commitment")
	}

	if err := c.State.SetNextCounterpartyCommitNum(commitNum+1, point, decoded); err != nil {
		return nil, err
	}
	if err := c.State.CheckInvariants(); err != nil {
		return nil, err
	}
	if err := c.persist(); err != nil {
		return nil, err
	}

	return sig, nil
}

// ValidateHolderCommitmentTx implements validate_holder_commitment_tx as a
// standalone front-end-facing check (used to satisfy the
// next_holder_commit_num == 1 prerequisite validate_onchain_tx checks
// before funding broadcast), without producing a signature. On success it
// advances next_holder_commit_num and records info as the current holder
// commitment, the same state transition SignHolderCommitmentTx makes.
func (c *ChannelSlot) ValidateHolderCommitmentTx(
	commitNum uint64, point *btcec.PublicKey, chainState ChainState,
	info *CommitmentInfo2) error {

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireReady(); err != nil {
		return err
	}
	if err := c.validator.ValidateHolderCommitmentTx(
		c.State, commitNum, point, c.Setup, chainState, info); err != nil {
		return err
	}
	if err := c.State.SetNextHolderCommitNum(commitNum + 1); err != nil {
		return err
	}
	c.State.CurrentHolderCommitInfo = info
	return c.persist()
}

// SignHolderCommitmentTx implements sign_holder_commitment_tx: validates
// and signs the holder's own next commitment transaction, advancing
// next_holder_commit_num on success. outputWitscripts carries the front
// end's asserted witness script for each of tx's outputs, consumed the same
// way SignCounterpartyCommitmentTx uses it.
func (c *ChannelSlot) SignHolderCommitmentTx(
	tx *wire.MsgTx, outputWitscripts [][]byte, commitNum uint64, chainState ChainState,
	info *CommitmentOutputs) ([]byte, error) {

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireReady(); err != nil {
		return nil, err
	}

	point := keychain.PerCommitmentPoint(c.channelKeys(), commitNum)
	localPoints, remotePoints := c.fundingPoints()
	keys := DeriveCommitmentKeys(point, true, c.Setup.CommitmentType, localPoints, remotePoints)

	decoded, err := DecodeCommitmentTx(
		tx, outputWitscripts, c.Setup, keys, localPoints.FundingPubKey, false, info,
	)
	if err != nil {
		return nil, err
	}

	if err := c.validator.ValidateHolderCommitmentTx(
		c.State, commitNum, point, c.Setup, chainState, decoded); err != nil {
		return nil, err
	}

	ck := c.channelKeys()
	redeemScript, _, err := FundingScript(localPoints.FundingPubKey, remotePoints.FundingPubKey)
	if err != nil {
		return nil, signererror.Wrap(err, "building funding script")
	}

	sigHashes := txscript.NewTxSigHashes(tx)
	sig, err := SignRawSigHash(
		tx, sigHashes, 0, int64(c.Setup.ChannelValueSat), redeemScript, ck.FundingKey,
	)
	if err != nil {
		return nil, signererror.Wrap(err, "signing holder commitment")
	}

	if err := c.State.SetNextHolderCommitNum(commitNum + 1); err != nil {
		return nil, err
	}
	c.State.CurrentHolderCommitInfo = decoded
	if err := c.persist(); err != nil {
		return nil, err
	}

	return sig, nil
}

// ValidateCounterpartyRevocation implements validate_counterparty_revocation
// and, on success, advances next_counterparty_revoke_num.
func (c *ChannelSlot) ValidateCounterpartyRevocation(
	revokeNum uint64, secret [32]byte) error {

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireReady(); err != nil {
		return err
	}

	point, err := c.State.GetPreviousCounterpartyPoint(revokeNum)
	if err != nil {
		return err
	}

	priv, _ := btcec.PrivKeyFromBytes(secret[:])
	derivedPoint := priv.PubKey()
	if !derivedPoint.IsEqual(point) {
		return signererror.Policy(
			"revocation secret for %d does not match the stored point", revokeNum)
	}

	if err := c.validator.ValidateCounterpartyRevocation(
		c.State, revokeNum, secret, point); err != nil {
		return err
	}

	if err := c.State.SetNextCounterpartyRevokeNum(revokeNum + 1); err != nil {
		return err
	}
	if err := c.State.CheckInvariants(); err != nil {
		return err
	}
	return c.persist()
}

// htlcKeyRing resolves the broadcaster/countersigner HTLC keys and
// revocation key at a given per-commitment point, for the side identified
// by isCounterpartyCommit.
func (c *ChannelSlot) htlcKeyRing(
	point *btcec.PublicKey, isCounterpartyCommit bool) *CommitmentKeys {

	localPoints, remotePoints := c.fundingPoints()
	return DeriveCommitmentKeys(
		point, !isCounterpartyCommit, c.Setup.CommitmentType, localPoints, remotePoints,
	)
}

// SignHolderHtlcTx implements sign_holder_htlc_tx: signs a second-level
// HTLC timeout or success transaction spending an HTLC carried by the
// holder's own commitment.
func (c *ChannelSlot) SignHolderHtlcTx(
	tx *wire.MsgTx, commitNum uint64, offered bool, htlc *HTLCInfo2,
	chainState ChainState, feeratePerKw uint32) ([]byte, error) {

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireReady(); err != nil {
		return nil, err
	}
	if err := c.validator.ValidateHtlcTx(c.Setup, chainState, offered, htlc, feeratePerKw); err != nil {
		return nil, err
	}

	point := keychain.PerCommitmentPoint(c.channelKeys(), commitNum)
	keys := c.htlcKeyRing(point, false)
	confirmedSpend := c.Setup.CommitmentType == Anchors
	witnessScript, _, err := HTLCScript(
		offered, confirmedSpend, htlc.CltvExpiry,
		keys.BroadcasterHtlcKey, keys.CountersignerHtlcKey, keys.RevocationKey,
		htlc.PaymentHash[:],
	)
	if err != nil {
		return nil, signererror.Wrap(err, "building holder HTLC script")
	}

	ck := c.channelKeys()
	htlcKey := TweakPrivKey(ck.HtlcBase, point)

	sigHashes := txscript.NewTxSigHashes(tx)
	sig, err := signWitness(
		tx, sigHashes, 0, int64(htlc.ValueSat), witnessScript, htlcKey,
	)
	if err != nil {
		return nil, signererror.Wrap(err, "signing holder HTLC tx")
	}
	return sig, nil
}

// SignCounterpartyHtlcTx implements sign_counterparty_htlc_tx: signs this
// node's half of a second-level HTLC transaction built against the
// counterparty's commitment.
func (c *ChannelSlot) SignCounterpartyHtlcTx(
	tx *wire.MsgTx, point *btcec.PublicKey, offered bool, htlc *HTLCInfo2,
	chainState ChainState, feeratePerKw uint32) ([]byte, error) {

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireReady(); err != nil {
		return nil, err
	}
	if err := c.validator.ValidateHtlcTx(c.Setup, chainState, offered, htlc, feeratePerKw); err != nil {
		return nil, err
	}

	keys := c.htlcKeyRing(point, true)
	confirmedSpend := c.Setup.CommitmentType == Anchors
	witnessScript, _, err := HTLCScript(
		offered, confirmedSpend, htlc.CltvExpiry,
		keys.BroadcasterHtlcKey, keys.CountersignerHtlcKey, keys.RevocationKey,
		htlc.PaymentHash[:],
	)
	if err != nil {
		return nil, signererror.Wrap(err, "building counterparty HTLC script")
	}

	ck := c.channelKeys()
	htlcKey := TweakPrivKey(ck.HtlcBase, point)

	sigHashes := txscript.NewTxSigHashes(tx)
	sig, err := signWitness(
		tx, sigHashes, 0, int64(htlc.ValueSat), witnessScript, htlcKey,
	)
	if err != nil {
		return nil, signererror.Wrap(err, "signing counterparty HTLC tx")
	}
	return sig, nil
}

// SignDelayedSweep implements sign_delayed_sweep: sweeps the holder's own
// matured to-local output after its CSV delay.
func (c *ChannelSlot) SignDelayedSweep(
	tx *wire.MsgTx, commitNum uint64, amtSat int64, wallet WalletContext,
	destPath []uint32, destScript []byte, chainState ChainState) ([]byte, error) {

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireReady(); err != nil {
		return nil, err
	}
	if err := requireSoleOutput(tx, destScript); err != nil {
		return nil, err
	}

	if err := c.validator.ValidateDelayedSweep(
		c.Setup, chainState, wallet, destPath, destScript, tx.LockTime); err != nil {
		return nil, err
	}

	point := keychain.PerCommitmentPoint(c.channelKeys(), commitNum)
	keys := c.htlcKeyRing(point, false)
	script, err := CommitScriptToSelf(
		c.Setup.CounterpartySelectedContestDelay, keys.ToBroadcasterDelayedKey, keys.RevocationKey,
	)
	if err != nil {
		return nil, signererror.Wrap(err, "building to-local script")
	}

	ck := c.channelKeys()
	delayedKey := TweakPrivKey(ck.DelayedBase, point)

	sigHashes := txscript.NewTxSigHashes(tx)
	witness, err := CommitSpendTimeout(tx, sigHashes, 0, amtSat, script, delayedKey)
	if err != nil {
		return nil, signererror.Wrap(err, "signing delayed sweep")
	}
	return witness[0], nil
}

// SignCounterpartyHtlcSweep implements sign_counterparty_htlc_sweep:
// sweeps an HTLC output the counterparty offered or received, after the
// counterparty has breached by broadcasting a revoked commitment carrying
// it (revocation-branch spend) or, for HTLCs the holder received, after
// learning the preimage.
func (c *ChannelSlot) SignCounterpartyHtlcSweep(
	tx *wire.MsgTx, point *btcec.PublicKey, offered bool, htlc *HTLCInfo2,
	amtSat int64, wallet WalletContext, destPath []uint32, destScript []byte,
	chainState ChainState) ([]byte, error) {

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireReady(); err != nil {
		return nil, err
	}
	if err := requireSoleOutput(tx, destScript); err != nil {
		return nil, err
	}

	if err := c.validator.ValidateCounterpartyHtlcSweep(
		c.Setup, chainState, wallet, destPath, destScript, tx.LockTime, htlc); err != nil {
		return nil, err
	}

	keys := c.htlcKeyRing(point, true)
	confirmedSpend := c.Setup.CommitmentType == Anchors
	witnessScript, _, err := HTLCScript(
		offered, confirmedSpend, htlc.CltvExpiry,
		keys.BroadcasterHtlcKey, keys.CountersignerHtlcKey, keys.RevocationKey,
		htlc.PaymentHash[:],
	)
	if err != nil {
		return nil, signererror.Wrap(err, "building counterparty HTLC sweep script")
	}

	ck := c.channelKeys()
	htlcKey := TweakPrivKey(ck.HtlcBase, point)

	sigHashes := txscript.NewTxSigHashes(tx)
	sig, err := signWitness(tx, sigHashes, 0, amtSat, witnessScript, htlcKey)
	if err != nil {
		return nil, signererror.Wrap(err, "signing counterparty HTLC sweep")
	}
	return sig, nil
}

// SignJusticeSweep implements sign_justice_sweep: sweeps a breached
// to-local output using the revocation key recovered from a leaked
// per-commitment secret.
func (c *ChannelSlot) SignJusticeSweep(
	tx *wire.MsgTx, revokedPoint *btcec.PublicKey, revocationSecret *btcec.PrivateKey,
	amtSat int64, wallet WalletContext, destPath []uint32, destScript []byte,
	chainState ChainState) ([]byte, error) {

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireReady(); err != nil {
		return nil, err
	}
	if err := requireSoleOutput(tx, destScript); err != nil {
		return nil, err
	}

	if err := c.validator.ValidateJusticeSweep(
		c.Setup, chainState, wallet, destPath, destScript, tx.LockTime); err != nil {
		return nil, err
	}

	ck := c.channelKeys()
	revocationKey := DeriveRevocationPrivKey(ck.RevocationBase, revocationSecret)

	delayedKey := TweakPubKey(c.Setup.CounterpartyPoints.DelayedBasePoint, revokedPoint)
	script, err := CommitScriptToSelf(
		c.Setup.HolderSelectedContestDelay, delayedKey, revocationKey.PubKey(),
	)
	if err != nil {
		return nil, signererror.Wrap(err, "building justice script")
	}

	sigHashes := txscript.NewTxSigHashes(tx)
	witness, err := CommitSpendRevoke(tx, sigHashes, 0, amtSat, script, revocationKey)
	if err != nil {
		return nil, signererror.Wrap(err, "signing justice sweep")
	}
	return witness[0], nil
}

// SignMutualCloseTx implements sign_mutual_close_tx: validates and signs
// the channel's final closing transaction, setting mutual_close_signed.
// The outputs ValidateMutualClose checks are read directly off tx rather
// than accepted as caller-supplied parameters, so a transaction cannot
// carry outputs of its own choosing behind a policy check run against
// different, merely-plausible values.
func (c *ChannelSlot) SignMutualCloseTx(
	tx *wire.MsgTx, wallet WalletContext) ([]byte, error) {

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireReady(); err != nil {
		return nil, err
	}
	if tx.Version != 2 {
		return nil, signererror.BadFormat(
			"mutual close tx version must be 2, got %d", tx.Version)
	}
	if len(tx.TxIn) != 1 {
		return nil, signererror.BadFormat(
			"mutual close tx must have exactly one input, has %d", len(tx.TxIn))
	}
	if len(tx.TxOut) < 1 || len(tx.TxOut) > 2 {
		return nil, signererror.BadFormat(
			"mutual close tx must have one or two outputs, has %d", len(tx.TxOut))
	}

	outputs := make([]*CloseOutput, len(tx.TxOut))
	for i, out := range tx.TxOut {
		outputs[i] = &CloseOutput{ValueSat: uint64(out.Value), PkScript: out.PkScript}
	}

	if err := c.validator.ValidateMutualClose(c.Setup, c.State, wallet, outputs); err != nil {
		return nil, err
	}

	localPoints, remotePoints := c.fundingPoints()
	redeemScript, _, err := FundingScript(localPoints.FundingPubKey, remotePoints.FundingPubKey)
	if err != nil {
		return nil, signererror.Wrap(err, "building funding script")
	}

	ck := c.channelKeys()
	sigHashes := txscript.NewTxSigHashes(tx)
	sig, err := SignRawSigHash(
		tx, sigHashes, 0, int64(c.Setup.ChannelValueSat), redeemScript, ck.FundingKey,
	)
	if err != nil {
		return nil, signererror.Wrap(err, "signing mutual close")
	}

	c.State.MutualCloseSigned = true
	if err := c.persist(); err != nil {
		return nil, err
	}
	return sig, nil
}

// SignMutualCloseTxPhase2 implements sign_mutual_close_tx_phase2: a retry
// path that re-signs the already-agreed closing transaction without
// re-running ValidateMutualClose. It requires MutualCloseSigned to already
// be set by a prior SignMutualCloseTx call.
func (c *ChannelSlot) SignMutualCloseTxPhase2(tx *wire.MsgTx) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireReady(); err != nil {
		return nil, err
	}
	if !c.State.MutualCloseSigned {
		return nil, signererror.Policy(
			"sign_mutual_close_tx_phase2 called before mutual close was signed")
	}

	localPoints, remotePoints := c.fundingPoints()
	redeemScript, _, err := FundingScript(localPoints.FundingPubKey, remotePoints.FundingPubKey)
	if err != nil {
		return nil, signererror.Wrap(err, "building funding script")
	}

	ck := c.channelKeys()
	sigHashes := txscript.NewTxSigHashes(tx)
	return SignRawSigHash(
		tx, sigHashes, 0, int64(c.Setup.ChannelValueSat), redeemScript, ck.FundingKey,
	)
}

// SignChannelAnnouncement dual-signs a channel_announcement message with
// both the node identity key and the channel's funding key, the two
// signatures BOLT-7 requires from each side of a channel.
func (c *ChannelSlot) SignChannelAnnouncement(
	nodeKey *btcec.PrivateKey, msg []byte) (nodeSig, bitcoinSig []byte, err error) {

	c.mu.Lock()
	defer c.mu.Unlock()

	digest := doubleSha256(msg)

	nSig := ecdsa.Sign(nodeKey, digest)
	ck := c.channelKeys()
	bSig := ecdsa.Sign(ck.FundingKey, digest)

	return nSig.Serialize(), bSig.Serialize(), nil
}
