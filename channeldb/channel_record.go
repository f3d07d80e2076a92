package channeldb

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/tlv"
	"github.com/lightninglabs/remotesigner/lnwallet"
)

const (
	typeChanNonce       tlv.Type = 0
	typeChanValueSat    tlv.Type = 1
	typeChanSetup       tlv.Type = 2
	typeChanState       tlv.Type = 3
	typeChanPhase       tlv.Type = 4

	typeSetupFundingOutpoint  tlv.Type = 0
	typeSetupChannelValueSat  tlv.Type = 1
	typeSetupPushValueMsat    tlv.Type = 2
	typeSetupIsOutbound       tlv.Type = 3
	typeSetupHolderDelay      tlv.Type = 4
	typeSetupCounterpartyDelay tlv.Type = 5
	typeSetupCounterpartyPoints tlv.Type = 6
	typeSetupCounterpartyShutdown tlv.Type = 7
	typeSetupHolderShutdown   tlv.Type = 8
	typeSetupCommitmentType   tlv.Type = 9

	typePointsFunding    tlv.Type = 0
	typePointsRevocation tlv.Type = 1
	typePointsPayment    tlv.Type = 2
	typePointsDelayed    tlv.Type = 3
	typePointsHtlc       tlv.Type = 4

	typeStateNextHolderCommit       tlv.Type = 0
	typeStateNextCounterpartyCommit tlv.Type = 1
	typeStateNextCounterpartyRevoke tlv.Type = 2
	typeStateCurrentCPPoint         tlv.Type = 3
	typeStatePreviousCPPoint        tlv.Type = 4
	typeStateCurrentHolderInfo      tlv.Type = 5
	typeStateCurrentCPInfo          tlv.Type = 6
	typeStatePreviousCPInfo         tlv.Type = 7
	typeStateMutualCloseSigned      tlv.Type = 8

	typeInfoIsCPBroadcaster   tlv.Type = 0
	typeInfoToBroadcasterSat  tlv.Type = 1
	typeInfoToCountersignerSat tlv.Type = 2
	typeInfoToBroadcasterKey  tlv.Type = 3
	typeInfoToCountersignerKey tlv.Type = 4
	typeInfoRevocationKey     tlv.Type = 5
	typeInfoToSelfDelay       tlv.Type = 6
	typeInfoOfferedHTLCs      tlv.Type = 7
	typeInfoReceivedHTLCs     tlv.Type = 8
	typeInfoFeeratePerKw      tlv.Type = 9
)

// ChannelEntry is the persisted form of channels/<node_pubkey>/<channel_id0>.
type ChannelEntry struct {
	Nonce           []byte
	ChannelValueSat uint64
	Phase           lnwallet.ChannelPhase
	Setup           *lnwallet.ChannelSetup
	State           *lnwallet.EnforcementState
}

func serializeChannelPoints(p *lnwallet.ChannelPoints) ([]byte, error) {
	return encodeStream(
		pubKeyRecord(typePointsFunding, &p.FundingPubKey),
		pubKeyRecord(typePointsRevocation, &p.RevocationBasePoint),
		pubKeyRecord(typePointsPayment, &p.PaymentBasePoint),
		pubKeyRecord(typePointsDelayed, &p.DelayedBasePoint),
		pubKeyRecord(typePointsHtlc, &p.HtlcBasePoint),
	)
}

func deserializeChannelPoints(data []byte) (lnwallet.ChannelPoints, error) {
	var p lnwallet.ChannelPoints
	err := decodeStream(
		data,
		pubKeyRecord(typePointsFunding, &p.FundingPubKey),
		pubKeyRecord(typePointsRevocation, &p.RevocationBasePoint),
		pubKeyRecord(typePointsPayment, &p.PaymentBasePoint),
		pubKeyRecord(typePointsDelayed, &p.DelayedBasePoint),
		pubKeyRecord(typePointsHtlc, &p.HtlcBasePoint),
	)
	return p, err
}

func serializeChannelSetup(s *lnwallet.ChannelSetup) ([]byte, error) {
	pointsBlob, err := serializeChannelPoints(&s.CounterpartyPoints)
	if err != nil {
		return nil, err
	}

	isOutbound := uint8(0)
	if s.IsOutbound {
		isOutbound = 1
	}
	commitType := uint8(s.CommitmentType)

	records := []tlv.Record{
		outpointRecord(typeSetupFundingOutpoint, &s.FundingOutpoint),
		tlv.MakePrimitiveRecord(typeSetupChannelValueSat, &s.ChannelValueSat),
		tlv.MakePrimitiveRecord(typeSetupPushValueMsat, &s.PushValueMsat),
		tlv.MakePrimitiveRecord(typeSetupIsOutbound, &isOutbound),
		tlv.MakePrimitiveRecord(typeSetupHolderDelay, &s.HolderSelectedContestDelay),
		tlv.MakePrimitiveRecord(typeSetupCounterpartyDelay, &s.CounterpartySelectedContestDelay),
		blobRecord(typeSetupCounterpartyPoints, &pointsBlob),
	}
	if len(s.CounterpartyShutdownScript) > 0 {
		records = append(records, scriptRecord(typeSetupCounterpartyShutdown, &s.CounterpartyShutdownScript))
	}
	if len(s.HolderShutdownScript) > 0 {
		records = append(records, scriptRecord(typeSetupHolderShutdown, &s.HolderShutdownScript))
	}
	records = append(records, tlv.MakePrimitiveRecord(typeSetupCommitmentType, &commitType))

	return encodeStream(records...)
}

func deserializeChannelSetup(data []byte) (*lnwallet.ChannelSetup, error) {
	var (
		fundingOutpoint           wire.OutPoint
		channelValueSat           uint64
		pushValueMsat             uint64
		isOutbound                uint8
		holderDelay               uint16
		counterpartyDelay         uint16
		pointsBlob                []byte
		commitType                uint8
		counterpartyShutdown      []byte
		holderShutdown            []byte
	)

	err := decodeStream(
		data,
		outpointRecord(typeSetupFundingOutpoint, &fundingOutpoint),
		tlv.MakePrimitiveRecord(typeSetupChannelValueSat, &channelValueSat),
		tlv.MakePrimitiveRecord(typeSetupPushValueMsat, &pushValueMsat),
		tlv.MakePrimitiveRecord(typeSetupIsOutbound, &isOutbound),
		tlv.MakePrimitiveRecord(typeSetupHolderDelay, &holderDelay),
		tlv.MakePrimitiveRecord(typeSetupCounterpartyDelay, &counterpartyDelay),
		blobRecord(typeSetupCounterpartyPoints, &pointsBlob),
		scriptRecord(typeSetupCounterpartyShutdown, &counterpartyShutdown),
		scriptRecord(typeSetupHolderShutdown, &holderShutdown),
		tlv.MakePrimitiveRecord(typeSetupCommitmentType, &commitType),
	)
	if err != nil {
		return nil, err
	}

	points, err := deserializeChannelPoints(pointsBlob)
	if err != nil {
		return nil, err
	}

	return &lnwallet.ChannelSetup{
		FundingOutpoint:                   fundingOutpoint,
		ChannelValueSat:                   channelValueSat,
		PushValueMsat:                     pushValueMsat,
		IsOutbound:                        isOutbound != 0,
		HolderSelectedContestDelay:        holderDelay,
		CounterpartySelectedContestDelay:  counterpartyDelay,
		CounterpartyPoints:                points,
		CounterpartyShutdownScript:        counterpartyShutdown,
		HolderShutdownScript:              holderShutdown,
		CommitmentType:                    lnwallet.CommitmentType(commitType),
	}, nil
}

func serializeHTLCList(htlcs []lnwallet.HTLCInfo2) []byte {
	var buf bytes.Buffer
	var count [2]byte
	binary.BigEndian.PutUint16(count[:], uint16(len(htlcs)))
	buf.Write(count[:])
	for _, h := range htlcs {
		var scratch [44]byte
		binary.BigEndian.PutUint64(scratch[0:8], h.ValueSat)
		copy(scratch[8:40], h.PaymentHash[:])
		binary.BigEndian.PutUint32(scratch[40:44], h.CltvExpiry)
		buf.Write(scratch[:])
	}
	return buf.Bytes()
}

func deserializeHTLCList(data []byte) ([]lnwallet.HTLCInfo2, error) {
	r := bytes.NewReader(data)
	var count [2]byte
	if _, err := io.ReadFull(r, count[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint16(count[:])
	htlcs := make([]lnwallet.HTLCInfo2, n)
	for i := range htlcs {
		var scratch [44]byte
		if _, err := io.ReadFull(r, scratch[:]); err != nil {
			return nil, err
		}
		htlcs[i].ValueSat = binary.BigEndian.Uint64(scratch[0:8])
		copy(htlcs[i].PaymentHash[:], scratch[8:40])
		htlcs[i].CltvExpiry = binary.BigEndian.Uint32(scratch[40:44])
	}
	return htlcs, nil
}

func serializeCommitmentInfo(info *lnwallet.CommitmentInfo2) ([]byte, error) {
	if info == nil {
		return nil, nil
	}

	isCP := uint8(0)
	if info.IsCounterpartyBroadcaster {
		isCP = 1
	}
	offered := serializeHTLCList(info.OfferedHTLCs)
	received := serializeHTLCList(info.ReceivedHTLCs)

	return encodeStream(
		tlv.MakePrimitiveRecord(typeInfoIsCPBroadcaster, &isCP),
		tlv.MakePrimitiveRecord(typeInfoToBroadcasterSat, &info.ToBroadcasterValueSat),
		tlv.MakePrimitiveRecord(typeInfoToCountersignerSat, &info.ToCountersignerValueSat),
		pubKeyRecord(typeInfoToBroadcasterKey, &info.ToBroadcasterDelayedPubKey),
		pubKeyRecord(typeInfoToCountersignerKey, &info.ToCountersignerPubKey),
		pubKeyRecord(typeInfoRevocationKey, &info.RevocationPubKey),
		tlv.MakePrimitiveRecord(typeInfoToSelfDelay, &info.ToSelfDelay),
		blobRecord(typeInfoOfferedHTLCs, &offered),
		blobRecord(typeInfoReceivedHTLCs, &received),
		tlv.MakePrimitiveRecord(typeInfoFeeratePerKw, &info.FeeratePerKw),
	)
}

func deserializeCommitmentInfo(data []byte) (*lnwallet.CommitmentInfo2, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var (
		isCP                      uint8
		toBroadcasterSat          uint64
		toCountersignerSat        uint64
		toBroadcasterKey          *btcec.PublicKey
		toCountersignerKey        *btcec.PublicKey
		revocationKey             *btcec.PublicKey
		toSelfDelay               uint16
		offered, received         []byte
		feeratePerKw              uint32
	)

	err := decodeStream(
		data,
		tlv.MakePrimitiveRecord(typeInfoIsCPBroadcaster, &isCP),
		tlv.MakePrimitiveRecord(typeInfoToBroadcasterSat, &toBroadcasterSat),
		tlv.MakePrimitiveRecord(typeInfoToCountersignerSat, &toCountersignerSat),
		pubKeyRecord(typeInfoToBroadcasterKey, &toBroadcasterKey),
		pubKeyRecord(typeInfoToCountersignerKey, &toCountersignerKey),
		pubKeyRecord(typeInfoRevocationKey, &revocationKey),
		tlv.MakePrimitiveRecord(typeInfoToSelfDelay, &toSelfDelay),
		blobRecord(typeInfoOfferedHTLCs, &offered),
		blobRecord(typeInfoReceivedHTLCs, &received),
		tlv.MakePrimitiveRecord(typeInfoFeeratePerKw, &feeratePerKw),
	)
	if err != nil {
		return nil, err
	}

	offeredHTLCs, err := deserializeHTLCList(offered)
	if err != nil {
		return nil, err
	}
	receivedHTLCs, err := deserializeHTLCList(received)
	if err != nil {
		return nil, err
	}

	return &lnwallet.CommitmentInfo2{
		IsCounterpartyBroadcaster:  isCP != 0,
		ToBroadcasterValueSat:      toBroadcasterSat,
		ToCountersignerValueSat:    toCountersignerSat,
		ToBroadcasterDelayedPubKey: toBroadcasterKey,
		ToCountersignerPubKey:      toCountersignerKey,
		RevocationPubKey:           revocationKey,
		ToSelfDelay:                toSelfDelay,
		OfferedHTLCs:               offeredHTLCs,
		ReceivedHTLCs:              receivedHTLCs,
		FeeratePerKw:               feeratePerKw,
	}, nil
}

func serializeEnforcementState(s *lnwallet.EnforcementState) ([]byte, error) {
	currentHolderInfo, err := serializeCommitmentInfo(s.CurrentHolderCommitInfo)
	if err != nil {
		return nil, err
	}
	currentCPInfo, err := serializeCommitmentInfo(s.CurrentCounterpartyCommitInfo)
	if err != nil {
		return nil, err
	}
	previousCPInfo, err := serializeCommitmentInfo(s.PreviousCounterpartyCommitInfo)
	if err != nil {
		return nil, err
	}

	mutualClose := uint8(0)
	if s.MutualCloseSigned {
		mutualClose = 1
	}

	records := []tlv.Record{
		tlv.MakePrimitiveRecord(typeStateNextHolderCommit, &s.NextHolderCommitNum),
		tlv.MakePrimitiveRecord(typeStateNextCounterpartyCommit, &s.NextCounterpartyCommitNum),
		tlv.MakePrimitiveRecord(typeStateNextCounterpartyRevoke, &s.NextCounterpartyRevokeNum),
	}
	if s.CurrentCounterpartyPoint != nil {
		records = append(records, pubKeyRecord(typeStateCurrentCPPoint, &s.CurrentCounterpartyPoint))
	}
	if s.PreviousCounterpartyPoint != nil {
		records = append(records, pubKeyRecord(typeStatePreviousCPPoint, &s.PreviousCounterpartyPoint))
	}
	if currentHolderInfo != nil {
		records = append(records, blobRecord(typeStateCurrentHolderInfo, &currentHolderInfo))
	}
	if currentCPInfo != nil {
		records = append(records, blobRecord(typeStateCurrentCPInfo, &currentCPInfo))
	}
	if previousCPInfo != nil {
		records = append(records, blobRecord(typeStatePreviousCPInfo, &previousCPInfo))
	}
	records = append(records, tlv.MakePrimitiveRecord(typeStateMutualCloseSigned, &mutualClose))

	return encodeStream(records...)
}

func deserializeEnforcementState(data []byte) (*lnwallet.EnforcementState, error) {
	var (
		nextHolderCommit       uint64
		nextCounterpartyCommit uint64
		nextCounterpartyRevoke uint64
		mutualClose            uint8
		currentCPPoint         *btcec.PublicKey
		previousCPPoint        *btcec.PublicKey
		currentHolderInfoBlob  []byte
		currentCPInfoBlob      []byte
		previousCPInfoBlob     []byte
	)

	err := decodeStream(
		data,
		tlv.MakePrimitiveRecord(typeStateNextHolderCommit, &nextHolderCommit),
		tlv.MakePrimitiveRecord(typeStateNextCounterpartyCommit, &nextCounterpartyCommit),
		tlv.MakePrimitiveRecord(typeStateNextCounterpartyRevoke, &nextCounterpartyRevoke),
		pubKeyRecord(typeStateCurrentCPPoint, &currentCPPoint),
		pubKeyRecord(typeStatePreviousCPPoint, &previousCPPoint),
		blobRecord(typeStateCurrentHolderInfo, &currentHolderInfoBlob),
		blobRecord(typeStateCurrentCPInfo, &currentCPInfoBlob),
		blobRecord(typeStatePreviousCPInfo, &previousCPInfoBlob),
		tlv.MakePrimitiveRecord(typeStateMutualCloseSigned, &mutualClose),
	)
	if err != nil {
		return nil, err
	}

	currentHolderInfo, err := deserializeCommitmentInfo(currentHolderInfoBlob)
	if err != nil {
		return nil, err
	}
	currentCPInfo, err := deserializeCommitmentInfo(currentCPInfoBlob)
	if err != nil {
		return nil, err
	}
	previousCPInfo, err := deserializeCommitmentInfo(previousCPInfoBlob)
	if err != nil {
		return nil, err
	}

	return &lnwallet.EnforcementState{
		NextHolderCommitNum:            nextHolderCommit,
		NextCounterpartyCommitNum:      nextCounterpartyCommit,
		NextCounterpartyRevokeNum:      nextCounterpartyRevoke,
		CurrentCounterpartyPoint:       currentCPPoint,
		PreviousCounterpartyPoint:      previousCPPoint,
		CurrentHolderCommitInfo:        currentHolderInfo,
		CurrentCounterpartyCommitInfo:  currentCPInfo,
		PreviousCounterpartyCommitInfo: previousCPInfo,
		MutualCloseSigned:              mutualClose != 0,
	}, nil
}

func serializeChannelEntry(e *ChannelEntry) ([]byte, error) {
	phase := uint8(e.Phase)
	records := []tlv.Record{
		scriptRecord(typeChanNonce, &e.Nonce),
		tlv.MakePrimitiveRecord(typeChanValueSat, &e.ChannelValueSat),
	}
	if e.Setup != nil {
		setupBlob, err := serializeChannelSetup(e.Setup)
		if err != nil {
			return nil, err
		}
		records = append(records, blobRecord(typeChanSetup, &setupBlob))
	}
	if e.State != nil {
		stateBlob, err := serializeEnforcementState(e.State)
		if err != nil {
			return nil, err
		}
		records = append(records, blobRecord(typeChanState, &stateBlob))
	}
	records = append(records, tlv.MakePrimitiveRecord(typeChanPhase, &phase))

	return encodeStream(records...)
}

func deserializeChannelEntry(data []byte) (*ChannelEntry, error) {
	var (
		nonce           []byte
		channelValueSat uint64
		phase           uint8
		setupBlob       []byte
		stateBlob       []byte
	)

	err := decodeStream(
		data,
		scriptRecord(typeChanNonce, &nonce),
		tlv.MakePrimitiveRecord(typeChanValueSat, &channelValueSat),
		blobRecord(typeChanSetup, &setupBlob),
		blobRecord(typeChanState, &stateBlob),
		tlv.MakePrimitiveRecord(typeChanPhase, &phase),
	)
	if err != nil {
		return nil, err
	}

	e := &ChannelEntry{
		Nonce:           nonce,
		ChannelValueSat: channelValueSat,
		Phase:           lnwallet.ChannelPhase(phase),
	}
	if len(setupBlob) > 0 {
		e.Setup, err = deserializeChannelSetup(setupBlob)
		if err != nil {
			return nil, err
		}
	}
	if len(stateBlob) > 0 {
		e.State, err = deserializeEnforcementState(stateBlob)
		if err != nil {
			return nil, err
		}
	}
	return e, nil
}
