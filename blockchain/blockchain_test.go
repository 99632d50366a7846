package blockchain

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestChain 在临时目录中创建区块链, 创世奖励发给返回的地址
func setupTestChain(t *testing.T) (*Blockchain, []byte, string) {
	t.Helper()

	secret, address := newTestKey(t)
	bc, err := CreateBlockchain(filepath.Join(t.TempDir(), "blockchain.db"), address, ECDSASigner{})
	require.NoError(t, err)
	t.Cleanup(func() { bc.Close() })

	return bc, secret, address
}

// newSignedTransfer builds and signs a transfer the way the CLI does
func newSignedTransfer(t *testing.T, bc *Blockchain, secret []byte, from, to string, amount int) *Transaction {
	t.Helper()

	utxoSet := UTXOSet{bc}
	require.NoError(t, utxoSet.Reindex())

	tx, err := NewUTXOTransaction(from, to, amount, &utxoSet)
	require.NoError(t, err)
	require.NoError(t, bc.SignTransaction(tx, secret, ECDSASigner{}))

	return tx
}

// TestCreateBlockchain 测试创建新区块链
func TestCreateBlockchain(t *testing.T) {
	bc, _, address := setupTestChain(t)

	height, err := bc.GetBestHeight()
	require.NoError(t, err)
	assert.Equal(t, 0, height)

	hashes, err := bc.GetBlockHashes()
	require.NoError(t, err)
	require.Len(t, hashes, 1)

	genesis, err := bc.GetBlock(hashes[0])
	require.NoError(t, err)
	assert.Empty(t, genesis.PrevBlockHash)
	assert.True(t, NewProofOfWork(genesis).Validate())

	t.Run("existing ledger is not overwritten", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "blockchain.db")
		first, err := CreateBlockchain(path, address, ECDSASigner{})
		require.NoError(t, err)
		require.NoError(t, first.Close())

		_, err = CreateBlockchain(path, address, ECDSASigner{})
		assert.ErrorIs(t, err, ErrBlockchainExists)
	})
}

func TestNewBlockchain_Empty(t *testing.T) {
	bc, err := NewBlockchain(filepath.Join(t.TempDir(), "empty.db"), ECDSASigner{})
	require.NoError(t, err)
	defer bc.Close()

	height, err := bc.GetBestHeight()
	require.NoError(t, err)
	assert.Equal(t, -1, height)

	hashes, err := bc.GetBlockHashes()
	require.NoError(t, err)
	assert.Empty(t, hashes)

	_, err = bc.GetBlock([]byte("missing"))
	assert.ErrorIs(t, err, ErrBlockNotFound)
}

// TestBlockchain_MineBlock 测试挖矿功能
func TestBlockchain_MineBlock(t *testing.T) {
	bc, secret, address := setupTestChain(t)
	_, receiver := newTestKey(t)

	tx := newSignedTransfer(t, bc, secret, address, receiver, 30)

	ok, err := bc.VerifyTransaction(tx)
	require.NoError(t, err)
	require.True(t, ok)

	cbtx, err := NewCoinbaseTX(address, "")
	require.NoError(t, err)

	block, err := bc.MineBlock([]*Transaction{tx, cbtx})
	require.NoError(t, err)
	assert.Equal(t, 1, block.Height)

	height, err := bc.GetBestHeight()
	require.NoError(t, err)
	assert.Equal(t, 1, height)

	hashes, err := bc.GetBlockHashes()
	require.NoError(t, err)
	require.Len(t, hashes, 2)
	assert.Equal(t, block.Hash, hashes[0])

	found, err := bc.FindTransaction(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, found.ID)

	utxoSet := UTXOSet{bc}
	require.NoError(t, utxoSet.Reindex())

	balance, err := utxoSet.Balance(receiver)
	require.NoError(t, err)
	assert.Equal(t, 30, balance)

	balance, err = utxoSet.Balance(address)
	require.NoError(t, err)
	assert.Equal(t, subsidy-30+subsidy, balance)

	t.Run("receiver cannot overspend", func(t *testing.T) {
		_, err := NewUTXOTransaction(receiver, address, 31, &utxoSet)
		assert.ErrorIs(t, err, ErrNotEnoughFunds)
	})

	t.Run("unsigned transaction is rejected", func(t *testing.T) {
		unsigned, err := NewUTXOTransaction(address, receiver, 10, &utxoSet)
		require.NoError(t, err)

		ok, err := bc.VerifyTransaction(unsigned)
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = bc.MineBlock([]*Transaction{unsigned})
		assert.ErrorIs(t, err, ErrInvalidTransaction)
	})

	t.Run("unknown input is invalid", func(t *testing.T) {
		orphan := &Transaction{Vin: []TXInput{{Txid: []byte("nope"), Vout: 0}}, Vout: tx.Vout}
		orphan.ID = orphan.Hash()

		ok, err := bc.VerifyTransaction(orphan)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestBlockchain_AddBlock(t *testing.T) {
	source, _, address := setupTestChain(t)

	cbtx, err := NewCoinbaseTX(address, "")
	require.NoError(t, err)
	_, err = source.MineBlock([]*Transaction{cbtx})
	require.NoError(t, err)

	hashes, err := source.GetBlockHashes()
	require.NoError(t, err)
	require.Len(t, hashes, 2)

	target, err := NewBlockchain(filepath.Join(t.TempDir(), "target.db"), ECDSASigner{})
	require.NoError(t, err)
	defer target.Close()

	// newest first, the order peers announce them in
	for _, hash := range hashes {
		block, err := source.GetBlock(hash)
		require.NoError(t, err)
		require.NoError(t, target.AddBlock(block))
	}

	height, err := target.GetBestHeight()
	require.NoError(t, err)
	assert.Equal(t, 1, height)

	targetHashes, err := target.GetBlockHashes()
	require.NoError(t, err)
	assert.Equal(t, hashes, targetHashes)

	t.Run("known block is ignored", func(t *testing.T) {
		block, err := source.GetBlock(hashes[1])
		require.NoError(t, err)
		require.NoError(t, target.AddBlock(block))

		height, err := target.GetBestHeight()
		require.NoError(t, err)
		assert.Equal(t, 1, height)
	})

	t.Run("block without proof of work is rejected", func(t *testing.T) {
		block, err := source.GetBlock(hashes[0])
		require.NoError(t, err)
		block.Nonce++

		assert.ErrorIs(t, target.AddBlock(block), ErrInvalidBlock)
	})
}

// TestUTXOSet_Reindex 测试 UTXO 重建索引
func TestUTXOSet_Reindex(t *testing.T) {
	bc, secret, address := setupTestChain(t)
	_, receiver := newTestKey(t)

	utxoSet := UTXOSet{bc}
	require.NoError(t, utxoSet.Reindex())

	pubKeyHash, err := PubKeyHashFromAddress(address)
	require.NoError(t, err)
	utxos, err := utxoSet.FindUTXO(pubKeyHash)
	require.NoError(t, err)
	assert.Len(t, utxos, 1)

	count, err := utxoSet.CountTransactions()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	t.Run("update matches reindex", func(t *testing.T) {
		tx := newSignedTransfer(t, bc, secret, address, receiver, 25)
		cbtx, err := NewCoinbaseTX(receiver, "")
		require.NoError(t, err)

		block, err := bc.MineBlock([]*Transaction{cbtx, tx})
		require.NoError(t, err)
		require.NoError(t, utxoSet.Update(block))

		updated, err := utxoSet.Balance(receiver)
		require.NoError(t, err)

		require.NoError(t, utxoSet.Reindex())
		reindexed, err := utxoSet.Balance(receiver)
		require.NoError(t, err)

		assert.Equal(t, subsidy+25, updated)
		assert.Equal(t, updated, reindexed)
	})
}

func TestMerkleTree(t *testing.T) {
	data := [][]byte{[]byte("a"), []byte("b"), []byte("c")}

	root := NewMerkleTree(data).RootNode
	require.NotNil(t, root)
	assert.Len(t, root.Data, 32)

	t.Run("odd leaf is paired with itself", func(t *testing.T) {
		padded := NewMerkleTree([][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("c")}).RootNode
		assert.Equal(t, padded.Data, root.Data)
	})

	t.Run("order matters", func(t *testing.T) {
		swapped := NewMerkleTree([][]byte{[]byte("b"), []byte("a"), []byte("c")}).RootNode
		assert.NotEqual(t, swapped.Data, root.Data)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Len(t, NewMerkleTree(nil).RootNode.Data, 32)
	})
}

func TestBlockSerialize(t *testing.T) {
	_, address := newTestKey(t)
	cbtx, err := NewCoinbaseTX(address, "")
	require.NoError(t, err)

	block := NewBlock([]*Transaction{cbtx}, []byte("prev"), 3)
	data, err := block.Serialize()
	require.NoError(t, err)

	decoded, err := DeserializeBlock(data)
	require.NoError(t, err)
	assert.Equal(t, block.Hash, decoded.Hash)
	assert.Equal(t, 3, decoded.Height)
	assert.True(t, NewProofOfWork(decoded).Validate())
}
