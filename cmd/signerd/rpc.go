package main

import (
	"crypto/tls"
	"encoding/hex"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightninglabs/remotesigner/channeldb"
	"github.com/lightninglabs/remotesigner/signer"
)

// rpcServer is signerd's local listener: a TLS socket serving a small
// subset of the signer's operations (node id, allowlist view and edits,
// message signing, ECDH) as JSON-RPC calls. The actual production wire
// format between a Lightning front end and its remote signer is an
// explicit external concern (spec.md §1); this is signerd's own minimal
// stand-in so the daemon has something listening on cfg.RPCListen and
// exercises the TLS bootstrap in tls.go. cmd/signer-cli does not use it;
// that tool works on the signer package in-process.
type rpcServer struct {
	listener net.Listener
	server   *rpc.Server

	mu    sync.RWMutex
	nodes map[[33]byte]*signer.Node
	db    *channeldb.DB
}

// SignerAPI is the JSON-RPC service newRPCServer registers; its exported
// methods are the ones net/rpc dispatches by name.
type SignerAPI struct {
	srv *rpcServer
}

// GetIDArgs/GetIDReply and friends are deliberately flat, hex-encoded
// structs: JSON-RPC has no notion of a [33]byte array.
type GetIDArgs struct {
	NodeID string
}

type GetIDReply struct {
	PubKey string
}

func (a *SignerAPI) GetID(args *GetIDArgs, reply *GetIDReply) error {
	node, err := a.srv.lookup(args.NodeID)
	if err != nil {
		return err
	}
	id := node.GetID()
	reply.PubKey = hex.EncodeToString(id[:])
	return nil
}

type AllowlistArgs struct {
	NodeID    string
	Addresses []string
}

type AllowlistReply struct {
	Addresses []string
}

func (a *SignerAPI) Allowlist(args *GetIDArgs, reply *AllowlistReply) error {
	node, err := a.srv.lookup(args.NodeID)
	if err != nil {
		return err
	}
	list, err := node.Allowlist()
	observeOp("allowlist", err)
	if err != nil {
		return err
	}
	reply.Addresses = list
	return nil
}

func (a *SignerAPI) AddAllowlist(args *AllowlistArgs, reply *AllowlistReply) error {
	node, err := a.srv.lookup(args.NodeID)
	if err != nil {
		return err
	}
	err = node.AddAllowlist(args.Addresses)
	observeOp("add_allowlist", err)
	return err
}

func (a *SignerAPI) RemoveAllowlist(args *AllowlistArgs, reply *AllowlistReply) error {
	node, err := a.srv.lookup(args.NodeID)
	if err != nil {
		return err
	}
	err = node.RemoveAllowlist(args.Addresses)
	observeOp("remove_allowlist", err)
	return err
}

type SignMessageArgs struct {
	NodeID  string
	Message string
}

type SignMessageReply struct {
	Signature string
}

func (a *SignerAPI) SignMessage(args *SignMessageArgs, reply *SignMessageReply) error {
	node, err := a.srv.lookup(args.NodeID)
	if err != nil {
		return err
	}
	sig, err := node.SignMessage([]byte(args.Message))
	observeOp("sign_message", err)
	if err != nil {
		return err
	}
	reply.Signature = hex.EncodeToString(sig)
	return nil
}

type EcdhArgs struct {
	NodeID  string
	OtherPub string
}

type EcdhReply struct {
	Secret string
}

func (a *SignerAPI) Ecdh(args *EcdhArgs, reply *EcdhReply) error {
	node, err := a.srv.lookup(args.NodeID)
	if err != nil {
		return err
	}
	otherBytes, err := hex.DecodeString(args.OtherPub)
	if err != nil {
		return err
	}
	otherPub, err := btcec.ParsePubKey(otherBytes)
	if err != nil {
		return err
	}
	secret, err := node.Ecdh(otherPub)
	observeOp("ecdh", err)
	if err != nil {
		return err
	}
	reply.Secret = hex.EncodeToString(secret[:])
	return nil
}

func (s *rpcServer) lookup(nodeIDHex string) (*signer.Node, error) {
	raw, err := hex.DecodeString(nodeIDHex)
	if err != nil {
		return nil, err
	}
	var id [33]byte
	copy(id[:], raw)

	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, errNoSuchNode(nodeIDHex)
	}
	return node, nil
}

type errNoSuchNode string

func (e errNoSuchNode) Error() string { return "no such node: " + string(e) }

// newRPCServer starts signerd's TLS listener and begins accepting
// connections in the background; callers stop it via (*rpcServer).Stop.
func newRPCServer(
	cfg *config, nodes map[[33]byte]*signer.Node, db *channeldb.DB,
	cert tls.Certificate) (*rpcServer, error) {

	tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}}
	listener, err := tls.Listen("tcp", cfg.RPCListen, tlsCfg)
	if err != nil {
		return nil, err
	}

	srv := &rpcServer{
		listener: listener,
		server:   rpc.NewServer(),
		nodes:    nodes,
		db:       db,
	}
	if err := srv.server.RegisterName("Signer", &SignerAPI{srv: srv}); err != nil {
		listener.Close()
		return nil, err
	}

	go srv.acceptLoop()

	log.Infof("rpc listener started on %s", cfg.RPCListen)
	return srv, nil
}

func (s *rpcServer) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.server.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}

// Stop closes the listener; in-flight connections are abandoned, matching
// the teacher's own best-effort shutdown of its gRPC listener.
func (s *rpcServer) Stop() {
	s.listener.Close()
}
