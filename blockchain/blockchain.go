package blockchain

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"
)

const (
	blocksBucket = "blocks"
	tipKey       = "l"

	genesisCoinbaseData = "The Times 03/Jan/2009 Chancellor on brink of second bailout for banks"
)

var (
	ErrBlockNotFound       = errors.New("block is not found")
	ErrTransactionNotFound = errors.New("transaction is not found")
	ErrInvalidTransaction  = errors.New("invalid transaction")
	ErrInvalidBlock        = errors.New("invalid block")
	ErrBlockchainExists    = errors.New("blockchain already exists")
)

// Blockchain 结构体包含数据库连接, 链的末端哈希保存在数据库的 "l" 键中
type Blockchain struct {
	db     *bbolt.DB
	signer Signer
}

func openDB(path string) (*bbolt.DB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	return db, nil
}

// CreateBlockchain 创建一个新的区块链数据库并写入创世区块, 奖励发给 address
func CreateBlockchain(path, address string, signer Signer) (*Blockchain, error) {
	cbtx, err := NewCoinbaseTX(address, genesisCoinbaseData)
	if err != nil {
		return nil, err
	}

	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if b := tx.Bucket([]byte(blocksBucket)); b != nil && b.Get([]byte(tipKey)) != nil {
			return ErrBlockchainExists
		}

		b, err := tx.CreateBucketIfNotExists([]byte(blocksBucket))
		if err != nil {
			return err
		}

		genesis := NewGenesisBlock(cbtx)
		return putBlock(b, genesis, true)
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Blockchain{db: db, signer: signer}, nil
}

// NewBlockchain opens the ledger at path. A ledger without blocks is valid
// and reports a best height of -1 until blocks arrive from peers.
func NewBlockchain(path string, signer Signer) (*Blockchain, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(blocksBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Blockchain{db: db, signer: signer}, nil
}

// Close 关闭数据库
func (bc *Blockchain) Close() error {
	return bc.db.Close()
}

func putBlock(b *bbolt.Bucket, block *Block, asTip bool) error {
	data, err := block.Serialize()
	if err != nil {
		return err
	}
	if err := b.Put(block.Hash, data); err != nil {
		return err
	}
	if asTip {
		return b.Put([]byte(tipKey), block.Hash)
	}
	return nil
}

// tipBlock returns the block the tip key points at, or nil for an empty chain
func tipBlock(b *bbolt.Bucket) (*Block, error) {
	tip := b.Get([]byte(tipKey))
	if tip == nil {
		return nil, nil
	}
	data := b.Get(tip)
	if data == nil {
		return nil, fmt.Errorf("tip %x: %w", tip, ErrBlockNotFound)
	}
	return DeserializeBlock(data)
}

// GetBestHeight 返回最新区块的高度, 空链返回 -1
func (bc *Blockchain) GetBestHeight() (int, error) {
	height := -1

	err := bc.db.View(func(tx *bbolt.Tx) error {
		last, err := tipBlock(tx.Bucket([]byte(blocksBucket)))
		if err != nil || last == nil {
			return err
		}
		height = last.Height
		return nil
	})

	return height, err
}

// GetBlock 根据哈希查找区块
func (bc *Blockchain) GetBlock(hash []byte) (*Block, error) {
	var block *Block

	err := bc.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(blocksBucket)).Get(hash)
		if data == nil || bytes.Equal(hash, []byte(tipKey)) {
			return ErrBlockNotFound
		}

		var err error
		block, err = DeserializeBlock(data)
		return err
	})

	return block, err
}

// GetBlockHashes 返回链中所有区块的哈希, 从最新的区块开始
func (bc *Blockchain) GetBlockHashes() ([][]byte, error) {
	var hashes [][]byte

	it := bc.Iterator()
	for {
		block, err := it.Next()
		if err != nil {
			return nil, err
		}
		if block == nil {
			break
		}
		hashes = append(hashes, block.Hash)
	}

	return hashes, nil
}

// AddBlock stores a block received from a peer. The tip moves only when the
// block is higher than the current best block; known blocks are ignored.
func (bc *Blockchain) AddBlock(block *Block) error {
	if block == nil || !NewProofOfWork(block).Validate() {
		return ErrInvalidBlock
	}

	return bc.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(blocksBucket))
		if b.Get(block.Hash) != nil {
			return nil
		}

		last, err := tipBlock(b)
		if err != nil {
			return err
		}

		asTip := last == nil || block.Height > last.Height
		if err := putBlock(b, block, asTip); err != nil {
			return err
		}

		log.WithFields(log.Fields{"hash": hex.EncodeToString(block.Hash), "height": block.Height, "tip": asTip}).Debug("block added")
		return nil
	})
}

// MineBlock 验证交易后挖出一个新区块并将其设为链的末端
func (bc *Blockchain) MineBlock(transactions []*Transaction) (*Block, error) {
	for _, tx := range transactions {
		ok, err := bc.VerifyTransaction(tx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%s: %w", tx.IDString(), ErrInvalidTransaction)
		}
	}

	var newBlock *Block
	err := bc.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(blocksBucket))

		last, err := tipBlock(b)
		if err != nil {
			return err
		}

		var prevHash []byte
		height := 0
		if last != nil {
			prevHash = last.Hash
			height = last.Height + 1
		}

		newBlock = NewBlock(transactions, prevHash, height)
		return putBlock(b, newBlock, true)
	})
	if err != nil {
		return nil, err
	}

	return newBlock, nil
}

// FindTransaction 根据 ID 查找交易
func (bc *Blockchain) FindTransaction(id []byte) (Transaction, error) {
	it := bc.Iterator()
	for {
		block, err := it.Next()
		if err != nil {
			return Transaction{}, err
		}
		if block == nil {
			return Transaction{}, ErrTransactionNotFound
		}

		for _, tx := range block.Transactions {
			if bytes.Equal(tx.ID, id) {
				return *tx, nil
			}
		}
	}
}

func (bc *Blockchain) prevTransactions(tx *Transaction) (map[string]Transaction, error) {
	prevTXs := make(map[string]Transaction)

	for _, vin := range tx.Vin {
		prevTX, err := bc.FindTransaction(vin.Txid)
		if err != nil {
			return nil, err
		}
		prevTXs[hex.EncodeToString(prevTX.ID)] = prevTX
	}

	return prevTXs, nil
}

// SignTransaction 对交易的每个输入进行签名
func (bc *Blockchain) SignTransaction(tx *Transaction, secretKey []byte, signer Signer) error {
	prevTXs, err := bc.prevTransactions(tx)
	if err != nil {
		return err
	}
	return tx.Sign(secretKey, signer, prevTXs)
}

// VerifyTransaction 验证交易输入的签名. An input referencing an unknown
// transaction makes the transaction invalid rather than failing the call.
func (bc *Blockchain) VerifyTransaction(tx *Transaction) (bool, error) {
	if tx.IsCoinbase() {
		return true, nil
	}

	prevTXs, err := bc.prevTransactions(tx)
	if errors.Is(err, ErrTransactionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	ok, err := tx.Verify(bc.signer, prevTXs)
	if err != nil {
		return false, nil
	}
	return ok, nil
}

// FindUTXO 检索所有未花费的交易输出, 以十六进制交易 ID 为键
func (bc *Blockchain) FindUTXO() (map[string]TXOutputs, error) {
	utxo := make(map[string]TXOutputs)
	spent := make(map[string]map[int]bool)

	// 从最新的区块向前遍历, 花费总是出现在被花费的输出之后
	it := bc.Iterator()
	for {
		block, err := it.Next()
		if err != nil {
			return nil, err
		}
		if block == nil {
			break
		}

		for _, tx := range block.Transactions {
			if tx.IsCoinbase() {
				continue
			}
			for _, in := range tx.Vin {
				inTxID := hex.EncodeToString(in.Txid)
				if spent[inTxID] == nil {
					spent[inTxID] = make(map[int]bool)
				}
				spent[inTxID][in.Vout] = true
			}
		}

		for _, tx := range block.Transactions {
			txID := tx.IDString()

			for outIdx, out := range tx.Vout {
				if spent[txID][outIdx] {
					continue
				}
				outs, ok := utxo[txID]
				if !ok {
					outs = TXOutputs{Outputs: make(map[int]TXOutput)}
					utxo[txID] = outs
				}
				outs.Outputs[outIdx] = out
			}
		}
	}

	return utxo, nil
}

// Iterator 返回区块链迭代器
func (bc *Blockchain) Iterator() *Iterator {
	it := &Iterator{db: bc.db}

	bc.db.View(func(tx *bbolt.Tx) error {
		it.currentHash = tx.Bucket([]byte(blocksBucket)).Get([]byte(tipKey))
		if it.currentHash != nil {
			it.currentHash = append([]byte(nil), it.currentHash...)
		}
		return nil
	})

	return it
}

// Iterator 用于从末端向创世区块遍历
type Iterator struct {
	currentHash []byte
	db          *bbolt.DB
}

// Next returns the next block towards genesis, or nil once the chain is
// exhausted. A missing ancestor ends the walk as well.
func (i *Iterator) Next() (*Block, error) {
	if len(i.currentHash) == 0 {
		return nil, nil
	}

	var block *Block
	err := i.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(blocksBucket)).Get(i.currentHash)
		if data == nil {
			return nil
		}

		var err error
		block, err = DeserializeBlock(data)
		return err
	})
	if err != nil {
		return nil, err
	}

	if block == nil {
		i.currentHash = nil
		return nil, nil
	}
	i.currentHash = block.PrevBlockHash

	return block, nil
}
