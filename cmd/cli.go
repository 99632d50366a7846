package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"mini-coin-node/blockchain"
	"mini-coin-node/config"
	"mini-coin-node/network"
	"mini-coin-node/wallet"
)

// the address a process that only submits transactions or requests
// signatures reports as its own; nothing listens on it
const (
	clientHost = "0.0.0.0"
	clientPort = "7000"
)

type metadata struct {
	config *config.Config
	w      io.Writer
}

// NewApp 创建命令行应用, 输出写到 w
func NewApp(w io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "mini-coin-node"
	app.Usage = "a small UTXO blockchain node"
	app.HideVersion = true

	app.Writer = w
	app.ErrWriter = w

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Value: "",
			Usage: " TOML configuration `FILE`",
		},
		cli.StringFlag{
			Name:  "loglevel, l",
			Value: "",
			Usage: " log `LEVEL` [debug|info|warn|error]",
		},
	}

	app.Commands = []cli.Command{
		{
			Name:      "createblockchain",
			Usage:     "create a blockchain and send genesis reward to ADDRESS",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "address, a",
					Usage: "*genesis reward `ADDRESS`",
				},
			},
			Action: runCreateBlockchain,
		},
		{
			Name:   "createwallet",
			Usage:  "generate a new key pair and save it into the wallet store",
			Action: runCreateWallet,
		},
		{
			Name:   "listaddresses",
			Usage:  "list all addresses from the wallet store",
			Action: runListAddresses,
		},
		{
			Name:      "getbalance",
			Usage:     "get balance of ADDRESS",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "address, a",
					Usage: "*`ADDRESS` to get the balance for",
				},
			},
			Action: runGetBalance,
		},
		{
			Name:   "printchain",
			Usage:  "print all the blocks of the blockchain",
			Action: runPrintChain,
		},
		{
			Name:      "send",
			Usage:     "send AMOUNT of coins from FROM address to TO",
			ArgsUsage: "\n   (* = required)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "from, f",
					Usage: "*source wallet `ADDRESS`",
				},
				cli.StringFlag{
					Name:  "to, t",
					Usage: "*destination wallet `ADDRESS`",
				},
				cli.IntFlag{
					Name:  "amount, a",
					Usage: "*`AMOUNT` to send",
				},
				cli.BoolFlag{
					Name:  "mine, m",
					Usage: " mine immediately on this node",
				},
				cli.StringFlag{
					Name:  "remote-sign, r",
					Usage: " ask the node at `HOST:PORT` holding the sender's wallet to sign",
				},
			},
			Action: runSend,
		},
		{
			Name:  "startnode",
			Usage: "start the node with the ID from the NODE_ID env. var",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "miner, m",
					Usage: " enable mining and send rewards to `ADDRESS`",
				},
			},
			Action: runStartNode,
		},
	}

	app.Before = func(c *cli.Context) error {
		cfg, err := config.FromEnv(c.String("config"))
		if err != nil {
			return err
		}
		if level := c.String("loglevel"); level != "" {
			cfg.LogLevel = level
		}
		if err := cfg.SetupLogging(); err != nil {
			return err
		}

		c.App.Metadata = map[string]interface{}{
			"config": &metadata{config: &cfg, w: w},
		}
		return nil
	}

	return app
}

// Run 解析命令行参数并执行相应的命令
func Run(args []string) error {
	return NewApp(os.Stdout).Run(args)
}

func getMetadata(c *cli.Context) *metadata {
	return c.App.Metadata["config"].(*metadata)
}

func checkAddress(kind, address string) error {
	if address == "" {
		return fmt.Errorf("%s address is required", kind)
	}
	if !blockchain.ValidateAddress(address) {
		return fmt.Errorf("%s address is not valid: %s", kind, address)
	}
	return nil
}

// clientConfig 只发送请求的进程使用的网络参数
func clientConfig(cfg *config.Config) network.Config {
	n := cfg.Network()
	n.Host, n.Port = clientHost, clientPort
	return n
}

func runCreateBlockchain(c *cli.Context) error {
	m := getMetadata(c)

	address := c.String("address")
	if err := checkAddress("genesis", address); err != nil {
		return err
	}

	bc, err := blockchain.CreateBlockchain(m.config.BlockchainPath(), address, blockchain.ECDSASigner{})
	if err != nil {
		return err
	}
	defer bc.Close()

	utxoSet := blockchain.UTXOSet{Blockchain: bc}
	if err := utxoSet.Reindex(); err != nil {
		return err
	}

	fmt.Fprintln(m.w, "Done!")
	return nil
}

func runCreateWallet(c *cli.Context) error {
	m := getMetadata(c)

	wallets, err := wallet.OpenStore(m.config.WalletPath())
	if err != nil {
		return err
	}
	defer wallets.Close()

	address, err := wallets.CreateWallet()
	if err != nil {
		return err
	}

	fmt.Fprintf(m.w, "Your new address: %s\n", address)
	return nil
}

func runListAddresses(c *cli.Context) error {
	m := getMetadata(c)

	wallets, err := wallet.OpenStore(m.config.WalletPath())
	if err != nil {
		return err
	}
	defer wallets.Close()

	addresses, err := wallets.GetAddresses()
	if err != nil {
		return err
	}

	for _, address := range addresses {
		fmt.Fprintln(m.w, address)
	}
	return nil
}

func runGetBalance(c *cli.Context) error {
	m := getMetadata(c)

	address := c.String("address")
	if err := checkAddress("balance", address); err != nil {
		return err
	}

	bc, err := blockchain.NewBlockchain(m.config.BlockchainPath(), blockchain.ECDSASigner{})
	if err != nil {
		return err
	}
	defer bc.Close()

	balance, err := blockchain.UTXOSet{Blockchain: bc}.Balance(address)
	if err != nil {
		return err
	}

	fmt.Fprintf(m.w, "Balance of '%s': %d\n", address, balance)
	return nil
}

func runPrintChain(c *cli.Context) error {
	m := getMetadata(c)

	bc, err := blockchain.NewBlockchain(m.config.BlockchainPath(), blockchain.ECDSASigner{})
	if err != nil {
		return err
	}
	defer bc.Close()

	bci := bc.Iterator()
	for {
		block, err := bci.Next()
		if err != nil {
			return err
		}
		if block == nil {
			return nil
		}

		fmt.Fprintf(m.w, "============ Block %x ============\n", block.Hash)
		fmt.Fprintf(m.w, "Height: %d\n", block.Height)
		fmt.Fprintf(m.w, "Prev. block: %x\n", block.PrevBlockHash)
		fmt.Fprintf(m.w, "PoW: %t\n\n", blockchain.NewProofOfWork(block).Validate())
		for _, tx := range block.Transactions {
			fmt.Fprintln(m.w, tx)
		}
		fmt.Fprintf(m.w, "\n\n")
	}
}

func runSend(c *cli.Context) error {
	m := getMetadata(c)

	from, to, amount := c.String("from"), c.String("to"), c.Int("amount")
	if err := checkAddress("sender", from); err != nil {
		return err
	}
	if err := checkAddress("recipient", to); err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("invalid amount: %d", amount)
	}

	bc, err := blockchain.NewBlockchain(m.config.BlockchainPath(), blockchain.ECDSASigner{})
	if err != nil {
		return err
	}
	defer bc.Close()

	utxoSet := blockchain.UTXOSet{Blockchain: bc}
	tx, err := blockchain.NewUTXOTransaction(from, to, amount, &utxoSet)
	if err != nil {
		return err
	}

	ctx := context.Background()
	client := network.New(clientConfig(m.config), nil, nil, nil, nil)

	if peer := c.String("remote-sign"); peer != "" {
		tx, err = client.RequestSignature(ctx, peer, from, tx)
		if err != nil {
			return err
		}
	} else {
		wallets, err := wallet.OpenStore(m.config.WalletPath())
		if err != nil {
			return err
		}
		defer wallets.Close()

		w, err := wallets.GetWallet(from)
		if err != nil {
			return err
		}
		if err := bc.SignTransaction(tx, w.SecretKey, blockchain.ECDSASigner{}); err != nil {
			return err
		}
	}

	if c.Bool("mine") {
		cbtx, err := blockchain.NewCoinbaseTX(from, "")
		if err != nil {
			return err
		}

		newBlock, err := bc.MineBlock([]*blockchain.Transaction{tx, cbtx})
		if err != nil {
			return err
		}
		if err := utxoSet.Update(newBlock); err != nil {
			return err
		}
	} else {
		if err := client.SendTx(ctx, m.config.Node.BootstrapPeer, tx); err != nil {
			return err
		}
	}

	fmt.Fprintln(m.w, "Success!")
	return nil
}

func runStartNode(c *cli.Context) error {
	m := getMetadata(c)
	cfg := m.config.Network()

	if miner := c.String("miner"); miner != "" {
		if err := checkAddress("miner", miner); err != nil {
			return err
		}
		cfg.MiningAddress = miner
	}
	if cfg.MiningAddress != "" {
		fmt.Fprintf(m.w, "Mining is on. Address to receive rewards: %s\n", cfg.MiningAddress)
	}
	fmt.Fprintf(m.w, "Starting node %s\n", m.config.NodeID)

	bc, err := blockchain.NewBlockchain(m.config.BlockchainPath(), blockchain.ECDSASigner{})
	if err != nil {
		return err
	}
	defer bc.Close()

	wallets, err := wallet.OpenStore(m.config.WalletPath())
	if err != nil {
		return err
	}
	defer wallets.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := network.New(cfg, bc, blockchain.UTXOSet{Blockchain: bc}, wallets, blockchain.ECDSASigner{})
	if err := server.ListenAndServe(ctx); err != nil {
		return err
	}

	log.Info("node stopped")
	return nil
}
