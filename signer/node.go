// Package signer implements Node, the top-level owner of one signer
// identity: its key manager, its allowlist, and the map of channels
// dispatch routes into. Node is the layer a front-end's RPC handlers call
// directly; everything below it (lnwallet, policy, keychain) is agnostic
// to how it's reached.
package signer

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/remotesigner/channeldb"
	"github.com/lightninglabs/remotesigner/keychain"
	"github.com/lightninglabs/remotesigner/lnwallet"
	"github.com/lightninglabs/remotesigner/policy"
	"github.com/lightninglabs/remotesigner/signererror"
	"github.com/tv42/zbase32"
)

// ParamsForNetwork maps the network name persisted in a NodeEntry (and
// accepted at new_node) to its chaincfg.Params, mirroring the set of
// networks the front end may run against.
func ParamsForNetwork(name string) (*chaincfg.Params, error) {
	switch name {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "simnet":
		return &chaincfg.SimNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, signererror.Invalid("unknown network %q", name)
	}
}

// Node owns one signer identity: its KeyManager, its allowlist, and every
// channel it has ever created or restored, addressed by channel_id0 and,
// once assigned, by permanent channel id as well.
type Node struct {
	nodeID  [33]byte
	network *chaincfg.Params
	netName string

	keyManager *keychain.KeyManager
	wallet     *nodeWallet

	validatorFactory policy.ValidatorFactory
	db               *channeldb.DB
	batcher          *allowlistBatcher

	mu       sync.Mutex
	channels map[[32]byte]*lnwallet.ChannelSlot
	aliases  map[[32]byte][32]byte
}

// nodePersister adapts channeldb.DB's (nodeID, channelID, entry) shape to
// the (id0, *ChannelSlot) shape lnwallet.Persister expects, so Channel
// never needs to know its own node's identity.
type nodePersister struct {
	nodeID [33]byte
	db     *channeldb.DB
}

func (p *nodePersister) SaveChannel(id0 [32]byte, slot *lnwallet.ChannelSlot) error {
	entry := &channeldb.ChannelEntry{
		Nonce:           slot.Nonce,
		ChannelValueSat: channelValueOf(slot),
		Phase:           slot.Phase,
		Setup:           slot.Setup,
		State:           slot.State,
	}
	return p.db.SaveChannel(p.nodeID, id0, entry)
}

func channelValueOf(slot *lnwallet.ChannelSlot) uint64 {
	if slot.Setup == nil {
		return 0
	}
	return slot.Setup.ChannelValueSat
}

// NewNode implements new_node: derives a fresh identity from seed,
// persists its nodes/<node_pubkey> record, and seeds its allowlist.
func NewNode(
	cfg keychain.NodeConfig, seed keychain.Seed, netName string,
	db *channeldb.DB, allowlist [][]byte) (*Node, error) {

	network, err := ParamsForNetwork(netName)
	if err != nil {
		return nil, err
	}
	cfg.Network = network

	km := keychain.NewKeyManager(seed, cfg)

	n := newNode(km, network, netName, db)
	n.wallet.replace(allowlist)

	var nodeID [33]byte
	copy(nodeID[:], n.keyManager.NodeSecret().PubKey().SerializeCompressed())
	n.nodeID = nodeID
	n.batcher = newAllowlistBatcher(nodeID, db)

	entry := &channeldb.NodeEntry{
		Seed:               seed,
		KeyDerivationStyle: cfg.KeyDerivationStyle,
		Network:            netName,
	}
	if err := db.CreateNode(nodeID, entry); err != nil {
		return nil, signererror.Wrap(err, "persisting new node %x", nodeID)
	}
	if len(allowlist) > 0 {
		if err := db.SaveAllowlist(nodeID, allowlist); err != nil {
			return nil, signererror.Wrap(err, "persisting initial allowlist for %x", nodeID)
		}
	}

	log.Infof("created node %x on %s", nodeID, netName)
	return n, nil
}

// RestoreNode implements restore_node: rebuilds a Node's KeyManager from a
// persisted NodeEntry and repopulates its channels and allowlist from db.
func RestoreNode(nodeID [33]byte, entry *channeldb.NodeEntry, db *channeldb.DB) (*Node, error) {
	network, err := ParamsForNetwork(entry.Network)
	if err != nil {
		return nil, err
	}

	cfg := keychain.NodeConfig{
		KeyDerivationStyle: entry.KeyDerivationStyle,
		Network:            network,
	}
	km := keychain.NewKeyManager(entry.Seed, cfg)

	n := newNode(km, network, entry.Network, db)
	n.nodeID = nodeID
	n.batcher = newAllowlistBatcher(nodeID, db)

	var gotID [33]byte
	copy(gotID[:], km.NodeSecret().PubKey().SerializeCompressed())
	if gotID != nodeID {
		return nil, signererror.New(
			signererror.Internal,
			"restored node id %x does not match persisted id %x", gotID, nodeID)
	}

	allowlist, err := db.FetchAllowlist(nodeID)
	if err != nil {
		return nil, signererror.Wrap(err, "loading allowlist for %x", nodeID)
	}
	n.wallet.replace(allowlist)

	channelEntries, err := db.FetchNodeChannels(nodeID)
	if err != nil {
		return nil, signererror.Wrap(err, "loading channels for %x", nodeID)
	}
	for id0, ce := range channelEntries {
		validator := n.validatorFactory.MakeValidator(n.netName, nodeID, id0)
		slot := lnwallet.RestoreChannelSlot(
			id0, ce.Nonce, ce.Phase, ce.Setup, ce.State, km, validator,
			&nodePersister{nodeID: nodeID, db: db},
		)
		n.channels[id0] = slot
	}

	log.Infof("restored node %x with %d channels", nodeID, len(n.channels))
	return n, nil
}

func newNode(km *keychain.KeyManager, network *chaincfg.Params, netName string, db *channeldb.DB) *Node {
	return &Node{
		network:          network,
		netName:          netName,
		keyManager:       km,
		wallet:           newNodeWallet(km),
		validatorFactory: policy.SimpleValidatorFactory{},
		db:               db,
		channels:         make(map[[32]byte]*lnwallet.ChannelSlot),
		aliases:          make(map[[32]byte][32]byte),
	}
}

// Stop releases the node's background resources (the allowlist batcher).
func (n *Node) Stop() {
	n.batcher.stop()
}

// GetID implements get_id.
func (n *Node) GetID() [33]byte {
	return n.nodeID
}

// NodeSecret returns the node's identity private key.
func (n *Node) NodeSecret() *btcec.PrivateKey {
	return n.keyManager.NodeSecret()
}

func (n *Node) resolve(channelID [32]byte) (*lnwallet.ChannelSlot, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if slot, ok := n.channels[channelID]; ok {
		return slot, nil
	}
	if id0, ok := n.aliases[channelID]; ok {
		if slot, ok := n.channels[id0]; ok {
			return slot, nil
		}
	}
	return nil, signererror.Invalid("no such channel %x", channelID)
}

// NewChannel implements new_channel: idempotent on a matching Stub,
// rejected against a Ready channel or a Stub with a different nonce.
func (n *Node) NewChannel(id0 *[32]byte, nonce []byte) (*lnwallet.ChannelSlot, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	var channelID [32]byte
	if id0 != nil {
		channelID = *id0
	} else {
		channelID = n.keyManager.NewChannelID()
	}
	if nonce == nil {
		nonce = append([]byte(nil), channelID[:]...)
	}

	if existing, ok := n.channels[channelID]; ok {
		if existing.Phase != lnwallet.StubPhase {
			return nil, signererror.Invalid("channel %x is already ready", channelID)
		}
		if !bytesEqual(existing.Nonce, nonce) {
			return nil, signererror.Invalid(
				"new_channel nonce mismatch for existing stub %x", channelID)
		}
		return existing, nil
	}

	validator := n.validatorFactory.MakeValidator(n.netName, n.nodeID, channelID)
	slot := lnwallet.NewChannelSlot(
		channelID, nonce, n.keyManager, validator,
		&nodePersister{nodeID: n.nodeID, db: n.db},
	)
	n.channels[channelID] = slot

	if err := n.db.SaveChannel(n.nodeID, channelID, &channeldb.ChannelEntry{
		Nonce: slot.Nonce,
		Phase: slot.Phase,
	}); err != nil {
		return nil, signererror.Wrap(err, "persisting new_channel %x", channelID)
	}

	return slot, nil
}

// ReadyChannel implements ready_channel: runs the wallet-aware
// ValidateReadyChannel check (shutdown-script ownership, contest-delay
// bounds) before promoting the Stub, then installs permanentID as an
// alias for id0 if supplied.
func (n *Node) ReadyChannel(
	id0 [32]byte, permanentID *[32]byte, setup *lnwallet.ChannelSetup,
	holderShutdownKeyPath []uint32) (*lnwallet.ChannelSlot, error) {

	slot, err := n.resolve(id0)
	if err != nil {
		return nil, err
	}

	validator := n.validatorFactory.MakeValidator(n.netName, n.nodeID, id0)
	if err := validator.ValidateReadyChannel(n.wallet, setup, holderShutdownKeyPath); err != nil {
		return nil, err
	}

	if err := slot.Ready(setup); err != nil {
		return nil, err
	}

	if permanentID != nil {
		n.mu.Lock()
		n.aliases[*permanentID] = id0
		n.mu.Unlock()
	}

	return slot, nil
}

func bytesEqual(a, b []byte) bool {
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

// Allowlist implements allowlist(): the node's current set of approved
// destination scripts, rendered back as addresses of the node's network.
func (n *Node) Allowlist() ([]string, error) {
	scripts := n.wallet.snapshot()
	addrs := make([]string, 0, len(scripts))
	for _, script := range scripts {
		addr, err := scriptToAddress(script, n.network)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

func scriptToAddress(script []byte, params *chaincfg.Params) (string, error) {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(script, params)
	if err != nil {
		return "", signererror.Wrap(err, "decoding allowlist script")
	}
	if len(addrs) != 1 {
		return "", signererror.New(
			signererror.Internal, "allowlist script does not resolve to one address")
	}
	return addrs[0].EncodeAddress(), nil
}

func addressesToScripts(addrStrs []string, params *chaincfg.Params) ([][]byte, error) {
	scripts := make([][]byte, 0, len(addrStrs))
	for _, s := range addrStrs {
		addr, err := btcutil.DecodeAddress(s, params)
		if err != nil {
			return nil, signererror.Invalid("parse address %q: %v", s, err)
		}
		if !addr.IsForNet(params) {
			return nil, signererror.Invalid(
				"address %q is not valid for network %s", s, params.Name)
		}
		script, err := txscript.PayToAddrScript(addr)
		if err != nil {
			return nil, signererror.Wrap(err, "building script for address %q", s)
		}
		scripts = append(scripts, script)
	}
	return scripts, nil
}

// AddAllowlist implements add_allowlist: parses each address against the
// node's network, adds it to the in-memory set immediately, and queues a
// coalesced persistence flush.
func (n *Node) AddAllowlist(addrStrs []string) error {
	scripts, err := addressesToScripts(addrStrs, n.network)
	if err != nil {
		return err
	}
	n.wallet.add(scripts...)
	n.batcher.flush(n.wallet.snapshot)
	return nil
}

// RemoveAllowlist implements remove_allowlist.
func (n *Node) RemoveAllowlist(addrStrs []string) error {
	scripts, err := addressesToScripts(addrStrs, n.network)
	if err != nil {
		return err
	}
	n.wallet.remove(scripts...)
	n.batcher.flush(n.wallet.snapshot)
	return nil
}

// Ecdh implements ecdh: the shared secret between the node identity key
// and otherKey, SHA-256 of the compressed shared point, the form onion
// decoding needs.
func (n *Node) Ecdh(otherKey *btcec.PublicKey) ([32]byte, error) {
	var (
		pubJacobian btcec.JacobianPoint
		s           btcec.JacobianPoint
	)
	otherKey.AsJacobian(&pubJacobian)

	priv := n.keyManager.NodeSecret()
	btcec.ScalarMultNonConst(&priv.Key, &pubJacobian, &s)
	s.ToAffine()
	sPubKey := btcec.NewPublicKey(&s.X, &s.Y)

	return sha256Sum(sPubKey.SerializeCompressed()), nil
}

// SignNodeAnnouncement implements sign_node_announcement.
func (n *Node) SignNodeAnnouncement(msg []byte) ([]byte, error) {
	return signDoubleSha256DER(n.keyManager.NodeSecret(), msg)
}

// SignChannelUpdate implements sign_channel_update.
func (n *Node) SignChannelUpdate(msg []byte) ([]byte, error) {
	return signDoubleSha256DER(n.keyManager.NodeSecret(), msg)
}

// SignMessage implements sign_message: the ad hoc "Lightning Signed
// Message:"-prefixed digest every front end uses for peer-to-peer
// attestations outside the wire protocol proper.
func (n *Node) SignMessage(msg []byte) ([]byte, error) {
	buf := append([]byte("Lightning Signed Message:"), msg...)
	return signDoubleSha256Recoverable(n.keyManager.NodeSecret(), buf)
}

// SignMessageZbase32 signs msg the same way SignMessage does, then encodes
// the 65-byte recoverable signature as zbase32, the display format lnd's
// own signmessage RPC uses so the result can be typed or read aloud without
// ambiguous characters.
func (n *Node) SignMessageZbase32(msg []byte) (string, error) {
	sig, err := n.SignMessage(msg)
	if err != nil {
		return "", err
	}
	return zbase32.EncodeToString(sig), nil
}

// SignInvoice implements sign_invoice: signs the BOLT-11 digest of an
// already-assembled hrp and base32 data part.
func (n *Node) SignInvoice(hrp string, data []byte) ([]byte, error) {
	digest, err := signingDigest(hrp, data)
	if err != nil {
		return nil, err
	}
	return signRecoverable(n.keyManager.NodeSecret(), digest[:])
}

// onchainValidator returns a Validator for reviewing a non-channel
// transaction like a funding tx, built from the same per-network policy
// table channel validators use. SimplePolicy carries no per-channel
// tunables, so the zero channel id is fine here.
func (n *Node) onchainValidator() lnwallet.Validator {
	return n.validatorFactory.MakeValidator(n.netName, n.nodeID, [32]byte{})
}

// fundingChannelForOutput finds the Ready channel, if any, whose 2-of-2
// funding script and channel value match out, so a funding-tx output with
// no wallet path of its own can be recognized as a known channel's funding
// output rather than taken on the front end's word.
func (n *Node) fundingChannelForOutput(out *wire.TxOut) *lnwallet.FundingOutputChannel {
	n.mu.Lock()
	slots := make([]*lnwallet.ChannelSlot, 0, len(n.channels))
	for _, slot := range n.channels {
		slots = append(slots, slot)
	}
	n.mu.Unlock()

	for _, slot := range slots {
		if slot.Phase != lnwallet.ReadyPhase {
			continue
		}
		if slot.Setup.ChannelValueSat != uint64(out.Value) {
			continue
		}
		basepoints := slot.GetChannelBasepoints()
		_, pkScript, err := lnwallet.FundingScript(
			basepoints.FundingPubKey, slot.Setup.CounterpartyPoints.FundingPubKey,
		)
		if err != nil || !bytesEqual(pkScript, out.PkScript) {
			continue
		}
		return &lnwallet.FundingOutputChannel{
			Setup:              slot.Setup,
			State:              slot.State,
			LocalFundingPubKey: basepoints.FundingPubKey,
		}
	}
	return nil
}

// SignFundingTx implements sign_funding_tx: runs ValidateOnchainTx against
// the transaction's real outputs (every output must either be ours per
// opaths or be a known channel's funding output) and, once it clears,
// produces one witness stack per input the signer owns. uniCloseKeys, when
// non-nil at index i, overrides ipaths[i] with a directly-supplied private
// key, the path a unilateral close of a channel funded before this node
// restored from seed takes. Inputs whose spendTypes entry is
// SpendTypeInvalid are not ours to sign and come back with a nil witness.
func (n *Node) SignFundingTx(
	tx *wire.MsgTx, ipaths [][]uint32, valuesSat []int64,
	spendTypes []lnwallet.SpendType, uniCloseKeys []*btcec.PrivateKey,
	opaths [][]uint32) ([]wire.TxWitness, error) {

	if len(ipaths) != len(tx.TxIn) || len(valuesSat) != len(tx.TxIn) ||
		len(spendTypes) != len(tx.TxIn) {
		return nil, signererror.Invalid(
			"sign_funding_tx: input descriptor length mismatch")
	}
	if len(opaths) != len(tx.TxOut) {
		return nil, signererror.Invalid(
			"sign_funding_tx: output_paths has %d entries, tx has %d outputs",
			len(opaths), len(tx.TxOut))
	}

	channelsPerOutput := make(map[int]*lnwallet.FundingOutputChannel)
	for i, out := range tx.TxOut {
		if len(opaths[i]) > 0 {
			continue
		}
		fc := n.fundingChannelForOutput(out)
		if fc == nil {
			return nil, signererror.Policy(
				"sign_funding_tx: output %d has no wallet path and matches "+
					"no known channel's funding output", i)
		}
		channelsPerOutput[i] = fc
	}

	if err := n.onchainValidator().ValidateOnchainTx(
		n.wallet, channelsPerOutput, tx, valuesSat, opaths); err != nil {
		return nil, err
	}

	hc := txscript.NewTxSigHashes(tx)
	witnesses := make([]wire.TxWitness, len(tx.TxIn))

	for i, spendType := range spendTypes {
		if spendType == lnwallet.SpendTypeInvalid {
			continue
		}

		var key *btcec.PrivateKey
		if i < len(uniCloseKeys) && uniCloseKeys[i] != nil {
			key = uniCloseKeys[i]
		} else {
			var err error
			key, err = n.keyManager.WalletKey(ipaths[i])
			if err != nil {
				return nil, signererror.Wrap(err, "funding input %d key", i)
			}
		}

		witness, err := lnwallet.SignFundingInput(tx, hc, i, valuesSat[i], spendType, key)
		if err != nil {
			return nil, err
		}
		witnesses[i] = witness
	}

	return witnesses, nil
}

// SignFundingPSBT signs the given inputs of a PSBT-assembled funding
// transaction in place, the PSBT-native counterpart to SignFundingTx for
// front ends (dual-funded opens in particular) that hand the signer a
// PSBT rather than a bare wire.MsgTx plus parallel descriptor slices.
// ipaths[i] selects which of the signer's own wallet keys owns input i;
// inputs not present in ipaths are assumed to belong to the counterparty
// and are left untouched.
func (n *Node) SignFundingPSBT(packet *psbt.Packet, ipaths map[int][]uint32) error {
	for idx, path := range ipaths {
		key, err := n.keyManager.WalletKey(path)
		if err != nil {
			return signererror.Wrap(err, "psbt funding input %d key", idx)
		}
		if err := lnwallet.SignPSBTInput(packet, idx, key); err != nil {
			return err
		}
	}
	return nil
}

// ChannelCount returns the number of distinct channel slots this node
// holds, for diagnostics and tests.
func (n *Node) ChannelCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.channels)
}

// String implements fmt.Stringer for diagnostic logging.
func (n *Node) String() string {
	return fmt.Sprintf("node(%x)", n.nodeID)
}
