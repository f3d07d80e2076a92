package signer

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/remotesigner/channeldb"
	"github.com/lightninglabs/remotesigner/keychain"
	"github.com/lightninglabs/remotesigner/lnwallet"
	"github.com/stretchr/testify/require"
	"github.com/tv42/zbase32"
)

func testSeed(t *testing.T, b byte) keychain.Seed {
	t.Helper()
	var s keychain.Seed
	for i := range s {
		s[i] = b
	}
	return s
}

func tempNodeDB(t *testing.T) *channeldb.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := channeldb.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestNode(t *testing.T, seedByte byte) *Node {
	t.Helper()
	db := tempNodeDB(t)
	cfg := keychain.NodeConfig{KeyDerivationStyle: keychain.Lnd}
	n, err := NewNode(cfg, testSeed(t, seedByte), "regtest", db, nil)
	require.NoError(t, err)
	t.Cleanup(n.Stop)
	return n
}

func TestNewNodeDeterministicID(t *testing.T) {
	db1 := tempNodeDB(t)
	db2 := tempNodeDB(t)
	cfg := keychain.NodeConfig{KeyDerivationStyle: keychain.Lnd}

	n1, err := NewNode(cfg, testSeed(t, 7), "regtest", db1, nil)
	require.NoError(t, err)
	defer n1.Stop()

	n2, err := NewNode(cfg, testSeed(t, 7), "regtest", db2, nil)
	require.NoError(t, err)
	defer n2.Stop()

	require.Equal(t, n1.GetID(), n2.GetID())
}

func TestRestoreNodeRoundTrip(t *testing.T) {
	db := tempNodeDB(t)
	cfg := keychain.NodeConfig{KeyDerivationStyle: keychain.Lnd}
	seed := testSeed(t, 9)

	n, err := NewNode(cfg, seed, "regtest", db, nil)
	require.NoError(t, err)
	nodeID := n.GetID()

	_, err = n.NewChannel(nil, nil)
	require.NoError(t, err)
	n.Stop()

	entry, err := db.FetchNode(nodeID)
	require.NoError(t, err)

	restored, err := RestoreNode(nodeID, entry, db)
	require.NoError(t, err)
	defer restored.Stop()

	require.Equal(t, nodeID, restored.GetID())
	require.Equal(t, 1, restored.ChannelCount())
}

func TestNewChannelIdempotent(t *testing.T) {
	n := newTestNode(t, 1)

	var id0 [32]byte
	copy(id0[:], []byte("test-channel-deadbeefdeadbeefdex"))
	nonce := []byte("nonce-1")

	slot1, err := n.NewChannel(&id0, nonce)
	require.NoError(t, err)

	slot2, err := n.NewChannel(&id0, nonce)
	require.NoError(t, err)
	require.Same(t, slot1, slot2)

	_, err = n.NewChannel(&id0, []byte("different-nonce"))
	require.Error(t, err)
}

func TestReadyChannelValidatesBeforePromoting(t *testing.T) {
	n := newTestNode(t, 2)

	slot, err := n.NewChannel(nil, nil)
	require.NoError(t, err)

	basepoints := slot.GetChannelBasepoints()
	setup := &lnwallet.ChannelSetup{
		ChannelValueSat:                  1_000_000,
		HolderSelectedContestDelay:       144,
		CounterpartySelectedContestDelay: 144,
		CounterpartyPoints: lnwallet.ChannelPoints{
			FundingPubKey:       basepoints.FundingPubKey,
			RevocationBasePoint: basepoints.RevocationBasePoint,
			PaymentBasePoint:    basepoints.PaymentBasePoint,
			DelayedBasePoint:    basepoints.DelayedBasePoint,
			HtlcBasePoint:       basepoints.HtlcBasePoint,
		},
	}

	ready, err := n.ReadyChannel(slot.ID0, nil, setup, nil)
	require.NoError(t, err)
	require.Equal(t, lnwallet.ReadyPhase, ready.Phase)

	// An absurd contest delay is rejected by the policy before the slot
	// flips to Ready.
	slot2, err := n.NewChannel(nil, nil)
	require.NoError(t, err)
	badSetup := &lnwallet.ChannelSetup{
		ChannelValueSat:                  1_000_000,
		HolderSelectedContestDelay:       1,
		CounterpartySelectedContestDelay: 144,
		CounterpartyPoints:               setup.CounterpartyPoints,
	}
	_, err = n.ReadyChannel(slot2.ID0, nil, badSetup, nil)
	require.Error(t, err)
	require.Equal(t, lnwallet.StubPhase, slot2.Phase)
}

func TestReadyChannelPermanentIDAlias(t *testing.T) {
	n := newTestNode(t, 3)

	slot, err := n.NewChannel(nil, nil)
	require.NoError(t, err)
	basepoints := slot.GetChannelBasepoints()

	setup := &lnwallet.ChannelSetup{
		ChannelValueSat:                  500_000,
		HolderSelectedContestDelay:       144,
		CounterpartySelectedContestDelay: 144,
		CounterpartyPoints: lnwallet.ChannelPoints{
			FundingPubKey:       basepoints.FundingPubKey,
			RevocationBasePoint: basepoints.RevocationBasePoint,
			PaymentBasePoint:    basepoints.PaymentBasePoint,
			DelayedBasePoint:    basepoints.DelayedBasePoint,
			HtlcBasePoint:       basepoints.HtlcBasePoint,
		},
	}

	var permanentID [32]byte
	copy(permanentID[:], []byte("permanent-channel-id-01234567890"))

	_, err = n.ReadyChannel(slot.ID0, &permanentID, setup, nil)
	require.NoError(t, err)

	resolved, err := n.resolve(permanentID)
	require.NoError(t, err)
	require.Equal(t, slot.ID0, resolved.ID0)
}

func TestEcdhAgreement(t *testing.T) {
	n1 := newTestNode(t, 4)
	n2 := newTestNode(t, 5)

	pub1 := n1.NodeSecret().PubKey()
	pub2 := n2.NodeSecret().PubKey()

	s1, err := n1.Ecdh(pub2)
	require.NoError(t, err)
	s2, err := n2.Ecdh(pub1)
	require.NoError(t, err)

	require.Equal(t, s1, s2)
}

func TestSignMessageAndNodeAnnouncement(t *testing.T) {
	n := newTestNode(t, 6)

	msg := []byte("hello lightning")
	sig, err := n.SignMessage(msg)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	announce := []byte("node-announcement-payload")
	derSig, err := n.SignNodeAnnouncement(announce)
	require.NoError(t, err)
	require.NotEmpty(t, derSig)

	update := []byte("channel-update-payload")
	derSig2, err := n.SignChannelUpdate(update)
	require.NoError(t, err)
	require.NotEmpty(t, derSig2)
}

func TestSignMessageZbase32DecodesToRawSignature(t *testing.T) {
	n := newTestNode(t, 6)

	msg := []byte("hello lightning")
	raw, err := n.SignMessage(msg)
	require.NoError(t, err)

	encoded, err := n.SignMessageZbase32(msg)
	require.NoError(t, err)

	decoded, err := zbase32.DecodeString(encoded)
	require.NoError(t, err)
	require.Equal(t, raw, decoded)
}

func TestSignInvoice(t *testing.T) {
	n := newTestNode(t, 8)

	sig, err := n.SignInvoice("lnbc2500u", []byte{1, 2, 3, 4, 5})
	require.NoError(t, err)
	require.Len(t, sig, 65)
}

func TestAllowlistAddRemove(t *testing.T) {
	n := newTestNode(t, 10)

	addr := regtestP2WPKHAddress(t)
	err := n.AddAllowlist([]string{addr})
	require.NoError(t, err)

	list, err := n.Allowlist()
	require.NoError(t, err)
	require.Contains(t, list, addr)

	err = n.RemoveAllowlist([]string{addr})
	require.NoError(t, err)

	list, err = n.Allowlist()
	require.NoError(t, err)
	require.NotContains(t, list, addr)
}

func regtestP2WPKHAddress(t *testing.T) string {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	script, err := keychain.P2WPKHScript(priv.PubKey())
	require.NoError(t, err)
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(script, &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	require.Len(t, addrs, 1)
	return addrs[0].EncodeAddress()
}

func TestSignFundingTxSegwitInput(t *testing.T) {
	n := newTestNode(t, 11)

	path := []uint32{0, 0, 1}
	key, err := n.keyManager.WalletKey(path)
	require.NoError(t, err)
	script, err := keychain.P2WPKHScript(key.PubKey())
	require.NoError(t, err)

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 0}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(90_000, script))

	witnesses, err := n.SignFundingTx(
		tx,
		[][]uint32{path},
		[]int64{100_000},
		[]lnwallet.SpendType{lnwallet.SpendTypeP2WPKH},
		nil,
		[][]uint32{path},
	)
	require.NoError(t, err)
	require.Len(t, witnesses, 1)
	require.Len(t, witnesses[0], 2)
}

func TestSignFundingTxInvalidSpendTypeSkipped(t *testing.T) {
	n := newTestNode(t, 12)

	opath := []uint32{0, 0, 0}
	key, err := n.keyManager.WalletKey(opath)
	require.NoError(t, err)
	script, err := keychain.P2WPKHScript(key.PubKey())
	require.NoError(t, err)

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 0}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(90_000, script))

	witnesses, err := n.SignFundingTx(
		tx,
		[][]uint32{{0, 0, 1}},
		[]int64{100_000},
		[]lnwallet.SpendType{lnwallet.SpendTypeInvalid},
		nil,
		[][]uint32{opath},
	)
	require.NoError(t, err)
	require.Len(t, witnesses, 1)
	require.Nil(t, witnesses[0])
}

func TestSignFundingPSBTSignsOwnedInput(t *testing.T) {
	n := newTestNode(t, 13)

	path := []uint32{0, 0, 2}
	key, err := n.keyManager.WalletKey(path)
	require.NoError(t, err)
	script, err := keychain.P2WPKHScript(key.PubKey())
	require.NoError(t, err)

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 0}, nil, nil))
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 1}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(190_000, script))

	packet, err := psbt.NewFromUnsignedTx(tx)
	require.NoError(t, err)
	packet.Inputs[0].WitnessUtxo = wire.NewTxOut(100_000, script)
	// Input 1 belongs to a counterparty contribution the signer was
	// never asked to sign.

	err = n.SignFundingPSBT(packet, map[int][]uint32{0: path})
	require.NoError(t, err)

	require.NotEmpty(t, packet.Inputs[0].PartialSigs)
	require.Empty(t, packet.Inputs[1].PartialSigs)
}
