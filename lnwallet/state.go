package lnwallet

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightninglabs/remotesigner/signererror"
)

// EnforcementState is the heart of the per-channel state machine: the
// commitment counters, the most recent validated commitment descriptions,
// and the mutual-close flag. Every method here is a guarded assignment —
// it either performs a valid transition (including a no-op retry of the
// last transition) or returns a PolicyFailure and leaves the state
// untouched. Callers (lnwallet.Channel) hold the channel's mutex for the
// duration of a call into this type; EnforcementState itself does no
// locking.
type EnforcementState struct {
	NextHolderCommitNum       uint64
	NextCounterpartyCommitNum uint64
	NextCounterpartyRevokeNum uint64

	CurrentCounterpartyPoint  *btcec.PublicKey
	PreviousCounterpartyPoint *btcec.PublicKey

	CurrentHolderCommitInfo       *CommitmentInfo2
	CurrentCounterpartyCommitInfo *CommitmentInfo2
	PreviousCounterpartyCommitInfo *CommitmentInfo2

	MutualCloseSigned bool
}

// NewEnforcementState returns the all-zero state a freshly readied channel
// starts in: no commitment has been signed for either side, and revocation
// tracking starts at zero.
func NewEnforcementState() *EnforcementState {
	return &EnforcementState{}
}

// CheckInvariants verifies the two numeric invariants spec.md §3 requires
// to hold at every external observation point. ChannelSlot calls it after
// each successful counterparty commit and revocation transition (the only
// transitions that move these counters) as a self-check, not as the primary
// enforcement mechanism (each setter already enforces the transition rules
// that keep these true).
func (s *EnforcementState) CheckInvariants() error {
	if !(s.NextCounterpartyRevokeNum <= s.NextCounterpartyCommitNum &&
		s.NextCounterpartyCommitNum <= s.NextCounterpartyRevokeNum+2) {

		return signererror.New(signererror.Internal,
			"invariant violated: revoke=%d commit=%d",
			s.NextCounterpartyRevokeNum, s.NextCounterpartyCommitNum)
	}

	wantPrevious := s.NextCounterpartyCommitNum > s.NextCounterpartyRevokeNum+1
	havePrevious := s.PreviousCounterpartyPoint != nil
	if wantPrevious != havePrevious {
		return signererror.New(signererror.Internal,
			"invariant violated: previous point presence mismatch "+
				"revoke=%d commit=%d have_previous=%v",
			s.NextCounterpartyRevokeNum, s.NextCounterpartyCommitNum, havePrevious)
	}
	return nil
}

// SetNextHolderCommitNum advances the holder commitment counter. new must
// equal the current value (an idempotent retry, a no-op) or current+1; any
// other value is a PolicyFailure.
func (s *EnforcementState) SetNextHolderCommitNum(newNum uint64) error {
	switch {
	case newNum == s.NextHolderCommitNum:
		return nil
	case newNum == s.NextHolderCommitNum+1:
		s.NextHolderCommitNum = newNum
		return nil
	default:
		return signererror.Policy(
			"invalid next_holder_commit_num transition: %d -> %d",
			s.NextHolderCommitNum, newNum)
	}
}

// SetNextCounterpartyCommitNum advances the counterparty commitment
// counter, recording the new commitment's per-commitment point and
// decoded description. newNum must be >= 1. A retry (newNum equal to the
// current value) requires the supplied point and info to match what's
// already stored, or it fails naming both. Advancing by exactly one is
// only permitted while staying within two commitments of the last
// revoked one.
func (s *EnforcementState) SetNextCounterpartyCommitNum(
	newNum uint64, point *btcec.PublicKey, info *CommitmentInfo2) error {

	if newNum < 1 {
		return signererror.Policy(
			"next_counterparty_commit_num must be >= 1, got %d", newNum)
	}

	switch {
	case newNum == s.NextCounterpartyCommitNum:
		if !pubKeyEqual(point, s.CurrentCounterpartyPoint) ||
			!s.CurrentCounterpartyCommitInfo.Equal(info) {

			return signererror.Policy(
				"retry of counterparty commit %d with changed "+
					"point or info (current commit=%d, revoke=%d)",
				newNum, s.NextCounterpartyCommitNum,
				s.NextCounterpartyRevokeNum)
		}
		return nil

	case newNum == s.NextCounterpartyCommitNum+1:
		if newNum > s.NextCounterpartyRevokeNum+2 {
			return signererror.Policy(
				"counterparty commit %d is more than two ahead "+
					"of revoke num %d", newNum, s.NextCounterpartyRevokeNum)
		}
		s.PreviousCounterpartyPoint = s.CurrentCounterpartyPoint
		s.PreviousCounterpartyCommitInfo = s.CurrentCounterpartyCommitInfo
		s.CurrentCounterpartyPoint = point
		s.CurrentCounterpartyCommitInfo = info
		s.NextCounterpartyCommitNum = newNum
		return nil

	default:
		return signererror.Policy(
			"invalid next_counterparty_commit_num transition: "+
				"%d -> %d (revoke num=%d)",
			s.NextCounterpartyCommitNum, newNum, s.NextCounterpartyRevokeNum)
	}
}

// SetNextCounterpartyRevokeNum advances the revocation counter. newNum
// must be >= 1. A retry (equal to the current value) is a no-op. Advancing
// by exactly one requires staying at or behind the commit counter; on
// success, if the advance catches the revoke counter up to the commit
// counter minus one, the previous point/info are cleared since nothing
// still needs them.
func (s *EnforcementState) SetNextCounterpartyRevokeNum(newNum uint64) error {
	if newNum < 1 {
		return signererror.Policy(
			"next_counterparty_revoke_num must be >= 1, got %d", newNum)
	}

	switch {
	case newNum == s.NextCounterpartyRevokeNum:
		return nil

	case newNum == s.NextCounterpartyRevokeNum+1:
		if newNum > s.NextCounterpartyCommitNum {
			return signererror.Policy(
				"counterparty revoke num %d would exceed commit num %d",
				newNum, s.NextCounterpartyCommitNum)
		}
		s.NextCounterpartyRevokeNum = newNum
		if newNum+1 >= s.NextCounterpartyCommitNum {
			s.PreviousCounterpartyPoint = nil
			s.PreviousCounterpartyCommitInfo = nil
		}
		return nil

	default:
		return signererror.Policy(
			"invalid next_counterparty_revoke_num transition: "+
				"%d -> %d (commit num=%d)",
			s.NextCounterpartyRevokeNum, newNum, s.NextCounterpartyCommitNum)
	}
}

// GetPreviousCounterpartyPoint returns the per-commitment point for
// commitNum, which must be either the current counterparty commitment
// number minus one (the current point) or minus two (the previous point,
// if it's still stored). Any other request fails — the point for an
// older commitment was never retained.
func (s *EnforcementState) GetPreviousCounterpartyPoint(
	commitNum uint64) (*btcec.PublicKey, error) {

	switch {
	case s.NextCounterpartyCommitNum >= 1 && commitNum == s.NextCounterpartyCommitNum-1:
		return s.CurrentCounterpartyPoint, nil

	case s.NextCounterpartyCommitNum >= 2 && commitNum == s.NextCounterpartyCommitNum-2:
		if s.PreviousCounterpartyPoint == nil {
			return nil, signererror.Policy(
				"no previous commitment point retained for commit %d "+
					"(current commit num=%d)", commitNum, s.NextCounterpartyCommitNum)
		}
		return s.PreviousCounterpartyPoint, nil

	default:
		return nil, signererror.Policy(
			"commit point requested for %d, current commit num=%d",
			commitNum, s.NextCounterpartyCommitNum)
	}
}
