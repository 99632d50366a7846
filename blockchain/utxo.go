package blockchain

import (
	"encoding/hex"
	"sort"

	"go.etcd.io/bbolt"
)

const utxoBucket = "chainstate"

// UTXOSet 表示 UTXO 集合, 以十六进制交易 ID 为键保存在 chainstate 桶中
type UTXOSet struct {
	Blockchain *Blockchain
}

// FindSpendableOutputs 查找并返回未花费的输出，以便在输入中引用
func (u UTXOSet) FindSpendableOutputs(pubKeyHash []byte, amount int) (int, map[string][]int, error) {
	unspentOutputs := make(map[string][]int)
	accumulated := 0

	err := u.Blockchain.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(utxoBucket))
		if b == nil {
			return nil
		}
		c := b.Cursor()

	Work:
		for k, v := c.First(); k != nil; k, v = c.Next() {
			txID := string(k)
			outs, err := DeserializeOutputs(v)
			if err != nil {
				return err
			}

			for _, outIdx := range outs.indexes() {
				out := outs.Outputs[outIdx]
				if out.IsLockedWithKey(pubKeyHash) {
					accumulated += out.Value
					unspentOutputs[txID] = append(unspentOutputs[txID], outIdx)

					if accumulated >= amount {
						break Work
					}
				}
			}
		}

		return nil
	})

	return accumulated, unspentOutputs, err
}

// FindUTXO 查找属于 pubKeyHash 的所有未花费输出
func (u UTXOSet) FindUTXO(pubKeyHash []byte) ([]TXOutput, error) {
	var UTXOs []TXOutput

	err := u.Blockchain.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(utxoBucket))
		if b == nil {
			return nil
		}

		return b.ForEach(func(_, v []byte) error {
			outs, err := DeserializeOutputs(v)
			if err != nil {
				return err
			}
			for _, outIdx := range outs.indexes() {
				if out := outs.Outputs[outIdx]; out.IsLockedWithKey(pubKeyHash) {
					UTXOs = append(UTXOs, out)
				}
			}
			return nil
		})
	})

	return UTXOs, err
}

// Balance sums the unspent outputs locked to address
func (u UTXOSet) Balance(address string) (int, error) {
	pubKeyHash, err := PubKeyHashFromAddress(address)
	if err != nil {
		return 0, err
	}

	outs, err := u.FindUTXO(pubKeyHash)
	if err != nil {
		return 0, err
	}

	balance := 0
	for _, out := range outs {
		balance += out.Value
	}
	return balance, nil
}

// CountTransactions 返回 UTXO 集合中的交易数量
func (u UTXOSet) CountTransactions() (int, error) {
	counter := 0

	err := u.Blockchain.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket([]byte(utxoBucket)); b != nil {
			counter = b.Stats().KeyN
		}
		return nil
	})

	return counter, err
}

// Reindex 重建 UTXO 集合
func (u UTXOSet) Reindex() error {
	utxos, err := u.Blockchain.FindUTXO()
	if err != nil {
		return err
	}

	return u.Blockchain.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(utxoBucket)) != nil {
			if err := tx.DeleteBucket([]byte(utxoBucket)); err != nil {
				return err
			}
		}

		b, err := tx.CreateBucket([]byte(utxoBucket))
		if err != nil {
			return err
		}

		for txID, outs := range utxos {
			if len(outs.Outputs) == 0 {
				continue
			}
			data, err := outs.Serialize()
			if err != nil {
				return err
			}
			if err := b.Put([]byte(txID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Update 使用区块中的交易更新 UTXO 集合
// 该区块是区块链的最后一个区块
func (u UTXOSet) Update(block *Block) error {
	return u.Blockchain.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(utxoBucket))
		if err != nil {
			return err
		}

		for _, t := range block.Transactions {
			if !t.IsCoinbase() {
				for _, vin := range t.Vin {
					key := []byte(hex.EncodeToString(vin.Txid))
					data := b.Get(key)
					if data == nil {
						continue
					}

					outs, err := DeserializeOutputs(data)
					if err != nil {
						return err
					}
					delete(outs.Outputs, vin.Vout)

					if len(outs.Outputs) == 0 {
						err = b.Delete(key)
					} else {
						data, err = outs.Serialize()
						if err == nil {
							err = b.Put(key, data)
						}
					}
					if err != nil {
						return err
					}
				}
			}

			newOutputs := TXOutputs{Outputs: make(map[int]TXOutput, len(t.Vout))}
			for outIdx, out := range t.Vout {
				newOutputs.Outputs[outIdx] = out
			}
			data, err := newOutputs.Serialize()
			if err != nil {
				return err
			}
			if err := b.Put([]byte(t.IDString()), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (outs TXOutputs) indexes() []int {
	idx := make([]int, 0, len(outs.Outputs))
	for i := range outs.Outputs {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}
