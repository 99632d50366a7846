package network

//go:generate mockgen -destination=mocks/collaborators.go -package=mocks mini-coin-node/network UTXOIndex,WalletStore

import (
	"mini-coin-node/blockchain"
	"mini-coin-node/wallet"
)

// Ledger is the block store the node synchronizes and mines into
type Ledger interface {
	GetBestHeight() (int, error)
	GetBlockHashes() ([][]byte, error)
	GetBlock(hash []byte) (*blockchain.Block, error)
	AddBlock(block *blockchain.Block) error
	VerifyTransaction(tx *blockchain.Transaction) (bool, error)
	MineBlock(transactions []*blockchain.Transaction) (*blockchain.Block, error)
	SignTransaction(tx *blockchain.Transaction, secretKey []byte, signer blockchain.Signer) error
}

// UTXOIndex is rebuilt whenever the ledger's block set changes
type UTXOIndex interface {
	Reindex() error
}

// WalletStore looks up wallets for remote signing. A missing wallet is
// reported as wallet.ErrNotFound.
type WalletStore interface {
	GetWallet(address string) (*wallet.Wallet, error)
}
