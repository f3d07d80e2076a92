package lnwallet

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/remotesigner/signererror"
)

// CommitmentKeys holds the five per-commitment keys derived for one side of
// one commitment transaction, the inputs every script_utils.go template
// needs. Grounded on the teacher's deriveCommitmentKeys, generalized from
// a single-commitment-type keyring to the per-CommitmentType templates
// SPEC_FULL describes.
type CommitmentKeys struct {
	ToBroadcasterDelayedKey *btcec.PublicKey
	ToCountersignerKey      *btcec.PublicKey
	RevocationKey           *btcec.PublicKey
	BroadcasterHtlcKey      *btcec.PublicKey
	CountersignerHtlcKey    *btcec.PublicKey
}

// DeriveCommitmentKeys computes the five tweaked per-commitment keys for
// one side's view of a commitment at perCommitmentPoint, following BOLT-3:
// the broadcaster's delayed key and both HTLC keys are tweaked off their
// basepoints and perCommitmentPoint, the countersigner's payment key is
// tweaked the same way unless the channel uses StaticRemoteKey or Anchors
// (where it is the raw basepoint), and the revocation key combines the
// countersigner's revocation basepoint with perCommitmentPoint.
func DeriveCommitmentKeys(
	perCommitmentPoint *btcec.PublicKey, isOurCommit bool,
	commitType CommitmentType, localPoints, remotePoints *ChannelPoints) *CommitmentKeys {

	var broadcaster, countersigner *ChannelPoints
	if isOurCommit {
		broadcaster, countersigner = localPoints, remotePoints
	} else {
		broadcaster, countersigner = remotePoints, localPoints
	}

	toCountersignerKey := TweakPubKey(countersigner.PaymentBasePoint, perCommitmentPoint)
	if commitType != Legacy {
		toCountersignerKey = countersigner.PaymentBasePoint
	}

	return &CommitmentKeys{
		ToBroadcasterDelayedKey: TweakPubKey(broadcaster.DelayedBasePoint, perCommitmentPoint),
		ToCountersignerKey:      toCountersignerKey,
		RevocationKey: DeriveRevocationPubkey(
			countersigner.RevocationBasePoint, perCommitmentPoint,
		),
		BroadcasterHtlcKey:   TweakPubKey(broadcaster.HtlcBasePoint, perCommitmentPoint),
		CountersignerHtlcKey: TweakPubKey(countersigner.HtlcBasePoint, perCommitmentPoint),
	}
}

// CommitmentOutputs is what the front end asserts a commitment transaction
// is meant to carry: the balances and the in-flight HTLCs. Nothing here is
// trusted on its own — DecodeCommitmentTx treats each field only as a
// candidate template to match against tx's real outputs, one for one, and
// fails the whole decode if a candidate is never matched (when required)
// or if a real output matches no candidate at all.
type CommitmentOutputs struct {
	ToBroadcasterValueSat   uint64
	ToCountersignerValueSat uint64
	OfferedHTLCs            []HTLCInfo2
	ReceivedHTLCs           []HTLCInfo2
	FeeratePerKw            uint32
}

// expectedOutput is one candidate template DecodeCommitmentTx tries to
// match against tx's real outputs: the pkScript (and, for a p2wsh
// output, the witness script that hashes to it) it must carry, the value
// it must carry, and whether its absence from tx is itself an error (a
// side's balance or an HTLC may be omitted once dust; the anchor outputs
// are optional by definition).
type expectedOutput struct {
	label         string
	pkScript      []byte
	witnessScript []byte
	valueSat      uint64
	required      bool
}

// DecodeCommitmentTx classifies every real output of tx against the set of
// templates setup, keys and claimed together predict the transaction must
// carry, and fails the decode if any real output matches none of them or
// any required template is never matched. output_witscripts[i] is the
// front end's asserted witness (redeem) script for tx.TxOut[i] (empty for
// the Legacy and StaticRemoteKey to-countersigner output, a plain p2wpkh
// with no witness script); before an asserted witness script is allowed to satisfy any
// template, DecodeCommitmentTx independently hashes it and requires the
// result to equal tx.TxOut[i].PkScript, so a front end cannot pair a
// script it invented with someone else's output.
//
// Matching every real output, rather than only searching for the claimed
// ones among tx's outputs, closes the gap a one-directional search leaves
// open: a commitment transaction can no longer carry an extra, unaccounted
// output funded by quietly shrinking the fee.
func DecodeCommitmentTx(
	tx *wire.MsgTx, outputWitscripts [][]byte, setup *ChannelSetup, keys *CommitmentKeys,
	fundingKey *btcec.PublicKey, isCounterpartyBroadcaster bool,
	claimed *CommitmentOutputs) (*CommitmentInfo2, error) {

	if tx.Version != 2 {
		return nil, signererror.BadFormat(
			"commitment transaction version must be 2, got %d", tx.Version)
	}
	if len(outputWitscripts) != len(tx.TxOut) {
		return nil, signererror.Invalid(
			"output_witscripts has %d entries, tx has %d outputs",
			len(outputWitscripts), len(tx.TxOut))
	}

	var expected []expectedOutput

	toLocalKey := keys.ToCountersignerKey
	toLocalDelayed := keys.ToBroadcasterDelayedKey
	toSelfDelay := setup.CounterpartySelectedContestDelay
	if isCounterpartyBroadcaster {
		toSelfDelay = setup.HolderSelectedContestDelay
	}

	if claimed.ToBroadcasterValueSat > 0 {
		script, err := CommitScriptToSelf(toSelfDelay, toLocalDelayed, keys.RevocationKey)
		if err != nil {
			return nil, signererror.Wrap(err, "building to-broadcaster script")
		}
		pkScript, err := witnessScriptHash(script)
		if err != nil {
			return nil, signererror.Wrap(err, "hashing to-broadcaster script")
		}
		expected = append(expected, expectedOutput{
			"to_broadcaster", pkScript, script, claimed.ToBroadcasterValueSat, true,
		})
	}

	if claimed.ToCountersignerValueSat > 0 {
		witnessScript, pkScript, err := toCountersignerScript(setup.CommitmentType, toLocalKey)
		if err != nil {
			return nil, signererror.Wrap(err, "building to-countersigner script")
		}
		expected = append(expected, expectedOutput{
			"to_countersigner", pkScript, witnessScript, claimed.ToCountersignerValueSat, true,
		})
	}

	if setup.CommitmentType == Anchors {
		anchorKeys := []*btcec.PublicKey{fundingKey, setup.CounterpartyPoints.FundingPubKey}
		for _, anchorKey := range anchorKeys {
			if anchorKey == nil {
				continue
			}
			anchorScript, err := CommitScriptAnchor(anchorKey)
			if err != nil {
				return nil, signererror.Wrap(err, "building anchor script")
			}
			anchorPk, err := witnessScriptHash(anchorScript)
			if err != nil {
				return nil, signererror.Wrap(err, "hashing anchor script")
			}
			expected = append(expected, expectedOutput{
				"anchor", anchorPk, anchorScript, 330, false,
			})
		}
	}

	confirmedSpend := setup.CommitmentType == Anchors
	for _, h := range claimed.OfferedHTLCs {
		witnessScript, pkScript, err := HTLCScript(
			true, confirmedSpend, h.CltvExpiry,
			keys.BroadcasterHtlcKey, keys.CountersignerHtlcKey,
			keys.RevocationKey, h.PaymentHash[:],
		)
		if err != nil {
			return nil, signererror.Wrap(err, "building offered HTLC script")
		}
		expected = append(expected, expectedOutput{
			"offered_htlc", pkScript, witnessScript, h.ValueSat, true,
		})
	}
	for _, h := range claimed.ReceivedHTLCs {
		witnessScript, pkScript, err := HTLCScript(
			false, confirmedSpend, h.CltvExpiry,
			keys.BroadcasterHtlcKey, keys.CountersignerHtlcKey,
			keys.RevocationKey, h.PaymentHash[:],
		)
		if err != nil {
			return nil, signererror.Wrap(err, "building received HTLC script")
		}
		expected = append(expected, expectedOutput{
			"received_htlc", pkScript, witnessScript, h.ValueSat, true,
		})
	}

	matched := make([]bool, len(expected))
	for i, out := range tx.TxOut {
		wscript := outputWitscripts[i]
		if len(wscript) > 0 {
			boundScript, err := witnessScriptHash(wscript)
			if err != nil {
				return nil, signererror.Wrap(err, "hashing output %d witness script", i)
			}
			if !scriptsEqual(boundScript, out.PkScript) {
				return nil, signererror.BadFormat(
					"commitment tx output %d: supplied witness script does "+
						"not hash to the output's own pkScript", i)
			}
		}

		found := -1
		for j, exp := range expected {
			if matched[j] {
				continue
			}
			if !scriptsEqual(out.PkScript, exp.pkScript) || uint64(out.Value) != exp.valueSat {
				continue
			}
			if len(exp.witnessScript) > 0 &&
				(len(wscript) == 0 || !scriptsEqual(wscript, exp.witnessScript)) {
				continue
			}
			found = j
			break
		}
		if found == -1 {
			return nil, signererror.BadFormat(
				"commitment tx output %d matches no known template", i)
		}
		matched[found] = true
	}

	for j, exp := range expected {
		if exp.required && !matched[j] {
			return nil, signererror.BadFormat(
				"commitment transaction missing expected %s output "+
					"(value=%d)", exp.label, exp.valueSat)
		}
	}

	return &CommitmentInfo2{
		IsCounterpartyBroadcaster:  isCounterpartyBroadcaster,
		ToBroadcasterValueSat:      claimed.ToBroadcasterValueSat,
		ToCountersignerValueSat:    claimed.ToCountersignerValueSat,
		ToBroadcasterDelayedPubKey: toLocalDelayed,
		ToCountersignerPubKey:      toLocalKey,
		RevocationPubKey:           keys.RevocationKey,
		ToSelfDelay:                toSelfDelay,
		OfferedHTLCs:               append([]HTLCInfo2(nil), claimed.OfferedHTLCs...),
		ReceivedHTLCs:              append([]HTLCInfo2(nil), claimed.ReceivedHTLCs...),
		FeeratePerKw:               claimed.FeeratePerKw,
	}, nil
}

func toCountersignerScript(
	commitType CommitmentType, key *btcec.PublicKey) (witnessScript, pkScript []byte, err error) {

	if commitType != Anchors {
		pkScript, err = P2WPKHScript(key)
		return nil, pkScript, err
	}

	witnessScript, err = CommitScriptToRemoteConfirmed(key)
	if err != nil {
		return nil, nil, err
	}
	pkScript, err = witnessScriptHash(witnessScript)
	if err != nil {
		return nil, nil, err
	}
	return witnessScript, pkScript, nil
}

func scriptsEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
