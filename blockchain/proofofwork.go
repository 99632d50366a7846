package blockchain

import (
	"bytes"
	"crypto/sha256"
	"math"
	"math/big"
)

// targetBits 难度值
const targetBits = 16

const maxNonce = math.MaxInt64

// ProofOfWork holds a block and the target its hash must stay below
type ProofOfWork struct {
	block  *Block
	target *big.Int
}

// NewProofOfWork 创建工作量证明
func NewProofOfWork(b *Block) *ProofOfWork {
	target := big.NewInt(1)
	target.Lsh(target, uint(256-targetBits))

	return &ProofOfWork{b, target}
}

func (pow *ProofOfWork) prepareData(txHash []byte, nonce int) []byte {
	return bytes.Join(
		[][]byte{
			pow.block.PrevBlockHash,
			txHash,
			IntToHex(pow.block.Timestamp),
			IntToHex(int64(targetBits)),
			IntToHex(int64(nonce)),
			IntToHex(int64(pow.block.Height)),
		},
		[]byte{},
	)
}

// Run 执行挖矿
func (pow *ProofOfWork) Run() (int, []byte) {
	var hashInt big.Int
	var hash [32]byte

	txHash := pow.block.HashTransactions()

	nonce := 0
	for nonce < maxNonce {
		hash = sha256.Sum256(pow.prepareData(txHash, nonce))
		hashInt.SetBytes(hash[:])

		if hashInt.Cmp(pow.target) == -1 {
			break
		}
		nonce++
	}

	return nonce, hash[:]
}

// Validate 验证工作量证明
func (pow *ProofOfWork) Validate() bool {
	var hashInt big.Int

	hash := sha256.Sum256(pow.prepareData(pow.block.HashTransactions(), pow.block.Nonce))
	hashInt.SetBytes(hash[:])

	return hashInt.Cmp(pow.target) == -1 && bytes.Equal(hash[:], pow.block.Hash)
}
