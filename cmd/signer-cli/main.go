// Command signer-cli is a local operator convenience around the signer
// package: it opens the same bbolt database signerd uses, restores the
// requested node in-process, and runs one command against it. It is not a
// network client — spec.md leaves the actual front-end-to-signer RPC
// transport out of scope, and an operator tool has no need for it.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lightninglabs/remotesigner/channeldb"
	"github.com/lightninglabs/remotesigner/keychain"
	"github.com/lightninglabs/remotesigner/signer"
	"github.com/urfave/cli"
)

var (
	defaultHomeDir = filepath.Join(homeDir(), ".signerd")
	defaultDataDir = filepath.Join(defaultHomeDir, "data")
)

func homeDir() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return dir
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[signer-cli] %v\n", err)
	os.Exit(1)
}

func openDB(ctx *cli.Context) *channeldb.DB {
	db, err := channeldb.Open(cleanAndExpandPath(ctx.GlobalString("datadir")))
	if err != nil {
		fatal(err)
	}
	return db
}

func nodeIDFromHex(s string) ([33]byte, error) {
	var id [33]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(raw) != 33 {
		return id, fmt.Errorf("node id must be 33 bytes, got %d", len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

func loadNode(ctx *cli.Context, db *channeldb.DB) *signer.Node {
	id, err := nodeIDFromHex(ctx.GlobalString("node"))
	if err != nil {
		fatal(err)
	}
	entry, err := db.FetchNode(id)
	if err != nil {
		fatal(err)
	}
	node, err := signer.RestoreNode(id, entry, db)
	if err != nil {
		fatal(err)
	}
	return node
}

var createNodeCommand = cli.Command{
	Name:  "createnode",
	Usage: "create a new node identity from a random seed",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "network", Value: "testnet"},
	},
	Action: func(ctx *cli.Context) error {
		db := openDB(ctx)
		defer db.Close()

		seed, err := keychain.RandomSeed()
		if err != nil {
			return err
		}

		cfg := keychain.NodeConfig{KeyDerivationStyle: keychain.Lnd}
		node, err := signer.NewNode(cfg, seed, ctx.String("network"), db, nil)
		if err != nil {
			return err
		}
		defer node.Stop()

		id := node.GetID()
		fmt.Printf("node_id: %x\n", id)
		return nil
	},
}

var getIDCommand = cli.Command{
	Name:  "getid",
	Usage: "print a node's identity pubkey",
	Action: func(ctx *cli.Context) error {
		db := openDB(ctx)
		defer db.Close()
		node := loadNode(ctx, db)
		defer node.Stop()

		id := node.GetID()
		fmt.Printf("%x\n", id)
		return nil
	},
}

var allowlistCommand = cli.Command{
	Name:  "allowlist",
	Usage: "print a node's allowlisted addresses",
	Action: func(ctx *cli.Context) error {
		db := openDB(ctx)
		defer db.Close()
		node := loadNode(ctx, db)
		defer node.Stop()

		addrs, err := node.Allowlist()
		if err != nil {
			return err
		}
		for _, a := range addrs {
			fmt.Println(a)
		}
		return nil
	},
}

var addAllowlistCommand = cli.Command{
	Name:      "addallowlist",
	Usage:     "add one or more addresses to a node's allowlist",
	ArgsUsage: "<address> [address...]",
	Action: func(ctx *cli.Context) error {
		db := openDB(ctx)
		defer db.Close()
		node := loadNode(ctx, db)
		defer node.Stop()

		if ctx.NArg() == 0 {
			return fmt.Errorf("at least one address is required")
		}
		return node.AddAllowlist(ctx.Args())
	},
}

var removeAllowlistCommand = cli.Command{
	Name:      "removeallowlist",
	Usage:     "remove one or more addresses from a node's allowlist",
	ArgsUsage: "<address> [address...]",
	Action: func(ctx *cli.Context) error {
		db := openDB(ctx)
		defer db.Close()
		node := loadNode(ctx, db)
		defer node.Stop()

		if ctx.NArg() == 0 {
			return fmt.Errorf("at least one address is required")
		}
		return node.RemoveAllowlist(ctx.Args())
	},
}

var signMessageCommand = cli.Command{
	Name:      "signmessage",
	Usage:     "sign an arbitrary message with the node identity key",
	ArgsUsage: "<message>",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return fmt.Errorf("exactly one message argument is required")
		}
		db := openDB(ctx)
		defer db.Close()
		node := loadNode(ctx, db)
		defer node.Stop()

		sig, err := node.SignMessageZbase32([]byte(ctx.Args().First()))
		if err != nil {
			return err
		}
		fmt.Println(sig)
		return nil
	},
}

var listChannelsCommand = cli.Command{
	Name:  "listchannels",
	Usage: "print the number of channels a node holds",
	Action: func(ctx *cli.Context) error {
		db := openDB(ctx)
		defer db.Close()
		node := loadNode(ctx, db)
		defer node.Stop()

		fmt.Printf("%d channels\n", node.ChannelCount())
		return nil
	},
}

func main() {
	app := cli.NewApp()
	app.Name = "signer-cli"
	app.Version = "0.1"
	app.Usage = "operator console for signerd's node database"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "datadir",
			Value: defaultDataDir,
			Usage: "path to signerd's data directory",
		},
		cli.StringFlag{
			Name:  "node",
			Usage: "hex-encoded 33-byte node pubkey to operate on",
		},
	}
	app.Commands = []cli.Command{
		createNodeCommand,
		getIDCommand,
		allowlistCommand,
		addAllowlistCommand,
		removeAllowlistCommand,
		signMessageCommand,
		listChannelsCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

// cleanAndExpandPath expands environment variables and a leading ~ in
// path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		path = strings.Replace(path, "~", homeDir(), 1)
	}
	return filepath.Clean(os.ExpandEnv(path))
}
