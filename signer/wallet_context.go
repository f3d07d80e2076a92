package signer

import (
	"sync"

	"github.com/lightninglabs/remotesigner/keychain"
)

// nodeWallet implements lnwallet.WalletContext on behalf of one Node: "is
// this mine" questions resolve either to a wallet-derived address (via the
// KeyManager) or to the node's allowlist of pre-approved external
// destinations.
type nodeWallet struct {
	keyManager *keychain.KeyManager

	mu        sync.RWMutex
	allowlist map[string]struct{}
}

func newNodeWallet(km *keychain.KeyManager) *nodeWallet {
	return &nodeWallet{
		keyManager: km,
		allowlist:  make(map[string]struct{}),
	}
}

// CanSpend implements lnwallet.WalletContext.
func (w *nodeWallet) CanSpend(path []uint32, script []byte) (bool, error) {
	return w.keyManager.CanSpend(path, script)
}

// InAllowlist implements lnwallet.WalletContext.
func (w *nodeWallet) InAllowlist(script []byte) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	_, ok := w.allowlist[string(script)]
	return ok
}

func (w *nodeWallet) add(scripts ...[]byte) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, s := range scripts {
		w.allowlist[string(s)] = struct{}{}
	}
}

func (w *nodeWallet) remove(scripts ...[]byte) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, s := range scripts {
		delete(w.allowlist, string(s))
	}
}

func (w *nodeWallet) snapshot() [][]byte {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([][]byte, 0, len(w.allowlist))
	for s := range w.allowlist {
		out = append(out, []byte(s))
	}
	return out
}

func (w *nodeWallet) replace(scripts [][]byte) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.allowlist = make(map[string]struct{}, len(scripts))
	for _, s := range scripts {
		w.allowlist[string(s)] = struct{}{}
	}
}
