package lnwallet

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

func testPrivKey(t *testing.T, seed byte) *btcec.PrivateKey {
	t.Helper()
	var b [32]byte
	for i := range b {
		b[i] = seed
	}
	priv, _ := btcec.PrivKeyFromBytes(b[:])
	return priv
}

func testChannelPoints(t *testing.T, base byte) *ChannelPoints {
	t.Helper()
	return &ChannelPoints{
		FundingPubKey:       testPrivKey(t, base+0).PubKey(),
		RevocationBasePoint: testPrivKey(t, base+1).PubKey(),
		PaymentBasePoint:    testPrivKey(t, base+2).PubKey(),
		DelayedBasePoint:    testPrivKey(t, base+3).PubKey(),
		HtlcBasePoint:       testPrivKey(t, base+4).PubKey(),
	}
}

func TestDeriveCommitmentKeysLegacyTweaksPaymentKey(t *testing.T) {
	point := testPrivKey(t, 200).PubKey()
	local := testChannelPoints(t, 10)
	remote := testChannelPoints(t, 60)

	keys := DeriveCommitmentKeys(point, true, Legacy, local, remote)

	// Legacy tweaks the countersigner's payment basepoint with the
	// per-commitment point, so it must differ from the raw basepoint.
	require.False(t, keys.ToCountersignerKey.IsEqual(remote.PaymentBasePoint))
}

func TestDeriveCommitmentKeysStaticRemoteKeyUsesRawBasepoint(t *testing.T) {
	point := testPrivKey(t, 200).PubKey()
	local := testChannelPoints(t, 10)
	remote := testChannelPoints(t, 60)

	keys := DeriveCommitmentKeys(point, true, StaticRemoteKey, local, remote)

	require.True(t, keys.ToCountersignerKey.IsEqual(remote.PaymentBasePoint))
}

func buildLegacyCommitmentTx(t *testing.T, setup *ChannelSetup, keys *CommitmentKeys,
	toBroadcasterSat, toCountersignerSat uint64) (*wire.MsgTx, [][]byte) {

	t.Helper()

	toBroadcasterScript, err := CommitScriptToSelf(
		setup.CounterpartySelectedContestDelay, keys.ToBroadcasterDelayedKey, keys.RevocationKey,
	)
	require.NoError(t, err)
	toBroadcasterPk, err := witnessScriptHash(toBroadcasterScript)
	require.NoError(t, err)

	toCountersignerPk, err := P2WPKHScript(keys.ToCountersignerKey)
	require.NoError(t, err)

	tx := wire.NewMsgTx(2)
	tx.AddTxOut(wire.NewTxOut(int64(toBroadcasterSat), toBroadcasterPk))
	tx.AddTxOut(wire.NewTxOut(int64(toCountersignerSat), toCountersignerPk))

	return tx, [][]byte{toBroadcasterScript, nil}
}

func TestDecodeCommitmentTxMatchesRealOutputs(t *testing.T) {
	local := testChannelPoints(t, 10)
	remote := testChannelPoints(t, 60)
	point := testPrivKey(t, 200).PubKey()

	setup := &ChannelSetup{
		HolderSelectedContestDelay:       144,
		CounterpartySelectedContestDelay: 150,
		CommitmentType:                   Legacy,
	}
	keys := DeriveCommitmentKeys(point, true, Legacy, local, remote)

	tx, outputWitscripts := buildLegacyCommitmentTx(t, setup, keys, 500_000, 400_000)

	claimed := &CommitmentOutputs{
		ToBroadcasterValueSat:   500_000,
		ToCountersignerValueSat: 400_000,
		FeeratePerKw:            253,
	}

	decoded, err := DecodeCommitmentTx(
		tx, outputWitscripts, setup, keys, local.FundingPubKey, false, claimed,
	)
	require.NoError(t, err)
	require.Equal(t, uint64(500_000), decoded.ToBroadcasterValueSat)
	require.Equal(t, uint64(400_000), decoded.ToCountersignerValueSat)
	require.Equal(t, setup.CounterpartySelectedContestDelay, decoded.ToSelfDelay)
}

func TestDecodeCommitmentTxRejectsUnaccountedOutput(t *testing.T) {
	local := testChannelPoints(t, 10)
	remote := testChannelPoints(t, 60)
	point := testPrivKey(t, 200).PubKey()

	setup := &ChannelSetup{
		HolderSelectedContestDelay:       144,
		CounterpartySelectedContestDelay: 150,
		CommitmentType:                   Legacy,
	}
	keys := DeriveCommitmentKeys(point, true, Legacy, local, remote)

	tx, outputWitscripts := buildLegacyCommitmentTx(t, setup, keys, 500_000, 400_000)

	// A front end claims only the two balances above, but the real
	// transaction smuggles in a third output the claimed description never
	// mentions, funded by shrinking the implicit fee.
	tx.AddTxOut(wire.NewTxOut(2_000, []byte{0x00, 0x14, 0x01}))
	outputWitscripts = append(outputWitscripts, nil)

	claimed := &CommitmentOutputs{
		ToBroadcasterValueSat:   500_000,
		ToCountersignerValueSat: 400_000,
		FeeratePerKw:            253,
	}

	_, err := DecodeCommitmentTx(
		tx, outputWitscripts, setup, keys, local.FundingPubKey, false, claimed,
	)
	require.Error(t, err)
}

func TestDecodeCommitmentTxRejectsMismatchedWitnessScript(t *testing.T) {
	local := testChannelPoints(t, 10)
	remote := testChannelPoints(t, 60)
	point := testPrivKey(t, 200).PubKey()

	setup := &ChannelSetup{
		HolderSelectedContestDelay:       144,
		CounterpartySelectedContestDelay: 150,
		CommitmentType:                   Legacy,
	}
	keys := DeriveCommitmentKeys(point, true, Legacy, local, remote)

	tx, outputWitscripts := buildLegacyCommitmentTx(t, setup, keys, 500_000, 400_000)
	// Pair the to-broadcaster output with a witness script that does not
	// hash to its own pkScript.
	outputWitscripts[0] = []byte{0x51}

	claimed := &CommitmentOutputs{
		ToBroadcasterValueSat:   500_000,
		ToCountersignerValueSat: 400_000,
		FeeratePerKw:            253,
	}

	_, err := DecodeCommitmentTx(
		tx, outputWitscripts, setup, keys, local.FundingPubKey, false, claimed,
	)
	require.Error(t, err)
}

func TestDeriveCommitmentKeysSwapsBroadcasterByCommitSide(t *testing.T) {
	point := testPrivKey(t, 200).PubKey()
	local := testChannelPoints(t, 10)
	remote := testChannelPoints(t, 60)

	ourKeys := DeriveCommitmentKeys(point, true, Legacy, local, remote)
	theirKeys := DeriveCommitmentKeys(point, false, Legacy, local, remote)

	require.False(t, ourKeys.ToBroadcasterDelayedKey.IsEqual(theirKeys.ToBroadcasterDelayedKey))
}
