package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"mini-coin-node/blockchain"
	"mini-coin-node/config"
)

// debug 打印节点本地账本的内部状态: 最高区块, UTXO 集合和某个地址的可花费输出
func main() {
	app := cli.NewApp()
	app.Name = "mini-coin-debug"
	app.Usage = "dump the ledger state of the node selected by NODE_ID"
	app.HideVersion = true

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: " TOML configuration `FILE`",
		},
		cli.StringFlag{
			Name:  "address, a",
			Usage: " also dump the spendable outputs of `ADDRESS`",
		},
		cli.IntFlag{
			Name:  "amount",
			Value: 1,
			Usage: " `AMOUNT` to look for spendable outputs",
		},
	}
	app.Action = runDebug

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runDebug(c *cli.Context) error {
	cfg, err := config.FromEnv(c.String("config"))
	if err != nil {
		return err
	}

	bc, err := blockchain.NewBlockchain(cfg.BlockchainPath(), blockchain.ECDSASigner{})
	if err != nil {
		return err
	}
	defer bc.Close()

	height, err := bc.GetBestHeight()
	if err != nil {
		return err
	}
	hashes, err := bc.GetBlockHashes()
	if err != nil {
		return err
	}

	fmt.Println("=== 区块 ===")
	fmt.Printf("最高区块高度: %d\n", height)
	for _, hash := range hashes {
		fmt.Printf("  %x\n", hash)
	}

	utxoSet := blockchain.UTXOSet{Blockchain: bc}
	count, err := utxoSet.CountTransactions()
	if err != nil {
		return err
	}
	fmt.Println("\n=== UTXO 集合 ===")
	fmt.Printf("包含未花费输出的交易数: %d\n", count)

	utxos, err := bc.FindUTXO()
	if err != nil {
		return err
	}
	spew.Dump(utxos)

	address := c.String("address")
	if address == "" {
		return nil
	}

	pubKeyHash, err := blockchain.PubKeyHashFromAddress(address)
	if err != nil {
		return err
	}

	balance, err := utxoSet.Balance(address)
	if err != nil {
		return err
	}
	acc, outputs, err := utxoSet.FindSpendableOutputs(pubKeyHash, c.Int("amount"))
	if err != nil {
		return err
	}

	fmt.Printf("\n=== %s ===\n", address)
	fmt.Printf("公钥哈希: %s\n", hex.EncodeToString(pubKeyHash))
	fmt.Printf("余额: %d\n", balance)
	fmt.Printf("找到的可花费输出: 总金额=%d\n", acc)
	for txid, outs := range outputs {
		fmt.Printf("  TxID: %s, Outputs: %v\n", txid, outs)
	}
	return nil
}
