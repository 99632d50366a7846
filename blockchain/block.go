package blockchain

import (
	"time"

	"github.com/fxamacker/cbor/v2"
	log "github.com/sirupsen/logrus"
)

// Block 是区块链的基本组成单位
type Block struct {
	Timestamp     int64          // 时间戳, 区块创建的时间
	Transactions  []*Transaction // 区块打包的交易
	PrevBlockHash []byte         // 前一个区块的哈希值
	Hash          []byte         // 当前区块的哈希值
	Nonce         int            // 工作量证明的计数器
	Height        int
}

// NewBlock 创建并返回一个新区块
func NewBlock(transactions []*Transaction, prevBlockHash []byte, height int) *Block {
	block := &Block{
		Timestamp:     time.Now().Unix(),
		Transactions:  transactions,
		PrevBlockHash: prevBlockHash,
		Height:        height,
	}
	pow := NewProofOfWork(block)
	nonce, hash := pow.Run() // 通过挖矿得到 nonce 和 hash

	block.Hash = hash
	block.Nonce = nonce

	return block
}

// NewGenesisBlock 创建并返回创世区块
func NewGenesisBlock(coinbase *Transaction) *Block {
	return NewBlock([]*Transaction{coinbase}, nil, 0)
}

// HashTransactions returns the merkle root over the block's serialized transactions
func (b *Block) HashTransactions() []byte {
	var txs [][]byte

	for _, tx := range b.Transactions {
		data, err := tx.Serialize()
		if err != nil {
			log.Panic(err)
		}
		txs = append(txs, data)
	}

	return NewMerkleTree(txs).RootNode.Data
}

// Serialize 序列化区块
func (b *Block) Serialize() ([]byte, error) {
	return encMode.Marshal(b)
}

// DeserializeBlock 反序列化区块
func DeserializeBlock(data []byte) (*Block, error) {
	var block Block
	if err := cbor.Unmarshal(data, &block); err != nil {
		return nil, err
	}
	return &block, nil
}
