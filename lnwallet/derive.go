package lnwallet

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
)

// TweakPubKey derives one commitment's payment/delayed/htlc pubkey from a
// channel basepoint and the per-commitment point, following BOLT-3's
// elliptic-curve homomorphism: pubkey = basepoint + SHA256(perCommitmentPoint
// || basepoint)*G. The teacher corpus's deriveRevocationPubkey used this
// same "add a hash-derived point" trick for a single case (revocation);
// this is the general per-commitment tweak BOLT-3 applies to all three of
// the non-revocation basepoints.
func TweakPubKey(basePoint, perCommitmentPoint *btcec.PublicKey) *btcec.PublicKey {
	tweakBytes := singleTweakBytes(perCommitmentPoint, basePoint)
	return addTweakToPubKey(basePoint, tweakBytes)
}

// TweakPrivKey derives the private key matching TweakPubKey's public
// output, given the channel's basepoint private key.
func TweakPrivKey(baseKey *btcec.PrivateKey, perCommitmentPoint *btcec.PublicKey) *btcec.PrivateKey {
	tweakBytes := singleTweakBytes(perCommitmentPoint, baseKey.PubKey())
	return addTweakToPrivKey(baseKey, tweakBytes)
}

func singleTweakBytes(perCommitmentPoint, basePoint *btcec.PublicKey) [32]byte {
	h := sha256.New()
	h.Write(perCommitmentPoint.SerializeCompressed())
	h.Write(basePoint.SerializeCompressed())
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// DeriveRevocationPubkey derives the revocation pubkey for one commitment,
// combining the counterparty's revocation basepoint with our own
// per-commitment point so that divulging our per-commitment secret lets
// the counterparty (and only the counterparty) reconstruct the matching
// private key:
//
//	revocationPubKey := revocationBasePoint*SHA256(revocationBasePoint ||
//		perCommitmentPoint) + perCommitmentPoint*SHA256(perCommitmentPoint ||
//		revocationBasePoint)
func DeriveRevocationPubkey(revocationBasePoint, perCommitmentPoint *btcec.PublicKey) *btcec.PublicKey {
	baseTweak := singleTweakBytes(revocationBasePoint, perCommitmentPoint)
	pointTweak := singleTweakBytes(perCommitmentPoint, revocationBasePoint)

	term1 := scalarMultPoint(revocationBasePoint, baseTweak)
	term2 := scalarMultPoint(perCommitmentPoint, pointTweak)

	return addPoints(term1, term2)
}

// DeriveRevocationPrivKey derives the private key matching
// DeriveRevocationPubkey, given our revocation basepoint's private key and
// the per-commitment secret the counterparty has revealed.
func DeriveRevocationPrivKey(
	revocationBaseKey *btcec.PrivateKey, perCommitmentSecret *btcec.PrivateKey) *btcec.PrivateKey {

	revocationBasePoint := revocationBaseKey.PubKey()
	perCommitmentPoint := perCommitmentSecret.PubKey()

	baseTweak := singleTweakBytes(revocationBasePoint, perCommitmentPoint)
	pointTweak := singleTweakBytes(perCommitmentPoint, revocationBasePoint)

	var s1, s2, baseScalar, pointScalar btcec.ModNScalar
	s1.SetByteSlice(baseTweak[:])
	s2.SetByteSlice(pointTweak[:])
	baseScalar.Set(&revocationBaseKey.Key)
	pointScalar.Set(&perCommitmentSecret.Key)

	baseScalar.Mul(&s1)
	pointScalar.Mul(&s2)
	baseScalar.Add(&pointScalar)

	sumBytes := baseScalar.Bytes()
	priv, _ := btcec.PrivKeyFromBytes(sumBytes[:])
	return priv
}

func addTweakToPubKey(base *btcec.PublicKey, tweak [32]byte) *btcec.PublicKey {
	tweakPoint := scalarBaseMult(tweak)
	return addPoints(base, tweakPoint)
}

func addTweakToPrivKey(base *btcec.PrivateKey, tweak [32]byte) *btcec.PrivateKey {
	var tweakScalar, baseScalar btcec.ModNScalar
	tweakScalar.SetByteSlice(tweak[:])
	baseScalar.Set(&base.Key)
	baseScalar.Add(&tweakScalar)
	sumBytes := baseScalar.Bytes()
	priv, _ := btcec.PrivKeyFromBytes(sumBytes[:])
	return priv
}

func scalarBaseMult(scalarBytes [32]byte) *btcec.PublicKey {
	var scalar btcec.ModNScalar
	scalar.SetByteSlice(scalarBytes[:])
	var result btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(&scalar, &result)
	result.ToAffine()
	return btcec.NewPublicKey(&result.X, &result.Y)
}

func scalarMultPoint(point *btcec.PublicKey, scalarBytes [32]byte) *btcec.PublicKey {
	var scalar btcec.ModNScalar
	scalar.SetByteSlice(scalarBytes[:])

	var affine, jacobian btcec.JacobianPoint
	point.AsJacobian(&affine)

	btcec.ScalarMultNonConst(&scalar, &affine, &jacobian)
	jacobian.ToAffine()
	return btcec.NewPublicKey(&jacobian.X, &jacobian.Y)
}

func addPoints(a, b *btcec.PublicKey) *btcec.PublicKey {
	var aJ, bJ, sumJ btcec.JacobianPoint
	a.AsJacobian(&aJ)
	b.AsJacobian(&bJ)
	btcec.AddNonConst(&aJ, &bJ, &sumJ)
	sumJ.ToAffine()
	return btcec.NewPublicKey(&sumJ.X, &sumJ.Y)
}
