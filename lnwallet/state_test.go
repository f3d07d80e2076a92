package lnwallet

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
)

func testPoint(t *testing.T, seed byte) *btcec.PublicKey {
	t.Helper()
	var b [32]byte
	for i := range b {
		b[i] = seed
	}
	priv, _ := btcec.PrivKeyFromBytes(b[:])
	return priv.PubKey()
}

func TestEnforcementStateInitialInvariants(t *testing.T) {
	s := NewEnforcementState()
	require.NoError(t, s.CheckInvariants())
}

func TestSetNextHolderCommitNum(t *testing.T) {
	s := NewEnforcementState()

	require.NoError(t, s.SetNextHolderCommitNum(0))
	require.NoError(t, s.SetNextHolderCommitNum(1))
	require.Equal(t, uint64(1), s.NextHolderCommitNum)

	require.NoError(t, s.SetNextHolderCommitNum(1))

	require.Error(t, s.SetNextHolderCommitNum(5))
	require.Equal(t, uint64(1), s.NextHolderCommitNum)
}

func TestSetNextCounterpartyCommitNumAdvanceAndRetry(t *testing.T) {
	s := NewEnforcementState()
	point0 := testPoint(t, 1)
	info0 := &CommitmentInfo2{ToBroadcasterValueSat: 100}

	require.NoError(t, s.SetNextCounterpartyCommitNum(1, point0, info0))
	require.Equal(t, uint64(1), s.NextCounterpartyCommitNum)
	require.True(t, s.CurrentCounterpartyPoint.IsEqual(point0))

	// Retry with the same point/info succeeds.
	require.NoError(t, s.SetNextCounterpartyCommitNum(1, point0, info0))

	// Retry with a different point fails.
	point1 := testPoint(t, 2)
	require.Error(t, s.SetNextCounterpartyCommitNum(1, point1, info0))

	// Advancing to two ahead of revoke num 0 is allowed (max lead is two);
	// a third step ahead is rejected.
	info1 := &CommitmentInfo2{ToBroadcasterValueSat: 200}
	require.NoError(t, s.SetNextCounterpartyCommitNum(2, point1, info1))

	point2 := testPoint(t, 3)
	info2 := &CommitmentInfo2{ToBroadcasterValueSat: 300}
	err := s.SetNextCounterpartyCommitNum(3, point2, info2)
	require.Error(t, err)
}

func TestSetNextCounterpartyRevokeNumTracksCommitNum(t *testing.T) {
	s := NewEnforcementState()
	point0 := testPoint(t, 1)
	info0 := &CommitmentInfo2{}
	point1 := testPoint(t, 2)
	info1 := &CommitmentInfo2{}

	require.NoError(t, s.SetNextCounterpartyCommitNum(1, point0, info0))
	require.NoError(t, s.SetNextCounterpartyCommitNum(2, point1, info1))
	require.NotNil(t, s.PreviousCounterpartyPoint)

	// Skipping a revocation (0 -> 2) is rejected.
	require.Error(t, s.SetNextCounterpartyRevokeNum(2))

	require.NoError(t, s.SetNextCounterpartyRevokeNum(1))
	require.Equal(t, uint64(1), s.NextCounterpartyRevokeNum)
	// Revoke num caught up to commit num minus one: previous point clears.
	require.Nil(t, s.PreviousCounterpartyPoint)

	require.NoError(t, s.CheckInvariants())
}

func TestGetPreviousCounterpartyPoint(t *testing.T) {
	s := NewEnforcementState()
	point0 := testPoint(t, 1)
	info0 := &CommitmentInfo2{}
	point1 := testPoint(t, 2)
	info1 := &CommitmentInfo2{}

	require.NoError(t, s.SetNextCounterpartyCommitNum(1, point0, info0))
	require.NoError(t, s.SetNextCounterpartyCommitNum(2, point1, info1))

	got, err := s.GetPreviousCounterpartyPoint(1)
	require.NoError(t, err)
	require.True(t, got.IsEqual(point1))

	got, err = s.GetPreviousCounterpartyPoint(0)
	require.NoError(t, err)
	require.True(t, got.IsEqual(point0))

	_, err = s.GetPreviousCounterpartyPoint(5)
	require.Error(t, err)
}
