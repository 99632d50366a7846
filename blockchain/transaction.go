package blockchain

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fxamacker/cbor/v2"
	log "github.com/sirupsen/logrus"
)

// subsidy 挖矿奖励
const subsidy = 100

var (
	ErrNotEnoughFunds         = errors.New("not enough funds")
	ErrMissingPrevTransaction = errors.New("previous transaction is not found")
)

// TXInput 结构:
type TXInput struct {
	Txid      []byte // 引用来源交易的 ID (哈希)
	Vout      int    // 引用来源交易的某个输出的索引
	Signature []byte
	PubKey    []byte
}

// UsesKey checks whether the input was created by the owner of pubKeyHash
func (in *TXInput) UsesKey(pubKeyHash []byte) bool {
	return bytes.Equal(HashPubKey(in.PubKey), pubKeyHash)
}

// TXOutput 结构:
type TXOutput struct {
	Value      int    // 金额
	PubKeyHash []byte // 锁定脚本
}

// NewTXOutput creates an output locked to address
func NewTXOutput(value int, address string) (*TXOutput, error) {
	pubKeyHash, err := PubKeyHashFromAddress(address)
	if err != nil {
		return nil, err
	}
	return &TXOutput{Value: value, PubKeyHash: pubKeyHash}, nil
}

// IsLockedWithKey 检查输出是否可以用提供的密钥解锁
func (out *TXOutput) IsLockedWithKey(pubKeyHash []byte) bool {
	return bytes.Equal(out.PubKeyHash, pubKeyHash)
}

// TXOutputs holds the unspent outputs of one transaction keyed by output index
type TXOutputs struct {
	Outputs map[int]TXOutput
}

// Serialize 序列化 TXOutputs
func (outs TXOutputs) Serialize() ([]byte, error) {
	return encMode.Marshal(outs)
}

// DeserializeOutputs 反序列化 TXOutputs
func DeserializeOutputs(data []byte) (TXOutputs, error) {
	var outputs TXOutputs
	err := cbor.Unmarshal(data, &outputs)
	return outputs, err
}

// Transaction 结构:
type Transaction struct {
	ID   []byte     // 交易的唯一标识 (哈希)
	Vin  []TXInput  // 交易输入
	Vout []TXOutput // 交易输出
}

// IDString returns the hex form of the transaction id used as map key
func (tx *Transaction) IDString() string {
	return hex.EncodeToString(tx.ID)
}

// Serialize 序列化交易
func (tx Transaction) Serialize() ([]byte, error) {
	return encMode.Marshal(tx)
}

// DeserializeTransaction 反序列化交易
func DeserializeTransaction(data []byte) (*Transaction, error) {
	var tx Transaction
	if err := cbor.Unmarshal(data, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// Hash 计算交易的哈希值
func (tx *Transaction) Hash() []byte {
	txCopy := *tx
	txCopy.ID = nil

	data, err := txCopy.Serialize()
	if err != nil {
		log.Panic(err)
	}
	hash := sha256.Sum256(data)

	return hash[:]
}

// IsCoinbase 检查是否为 Coinbase 交易
func (tx *Transaction) IsCoinbase() bool {
	return len(tx.Vin) == 1 && len(tx.Vin[0].Txid) == 0 && tx.Vin[0].Vout == -1
}

// NewCoinbaseTX 创建并返回一个 Coinbase 交易
func NewCoinbaseTX(to, data string) (*Transaction, error) {
	if data == "" {
		randData := make([]byte, 20)
		if _, err := rand.Read(randData); err != nil {
			return nil, err
		}
		data = hex.EncodeToString(randData)
	}

	out, err := NewTXOutput(subsidy, to)
	if err != nil {
		return nil, err
	}

	// Coinbase 交易没有输入，Txid 为空，Vout 为 -1
	in := TXInput{Txid: nil, Vout: -1, Signature: nil, PubKey: []byte(data)}
	tx := Transaction{nil, []TXInput{in}, []TXOutput{*out}}
	tx.ID = tx.Hash()

	return &tx, nil
}

// TrimmedCopy returns a copy with signatures and public keys stripped
func (tx *Transaction) TrimmedCopy() Transaction {
	inputs := make([]TXInput, 0, len(tx.Vin))
	for _, vin := range tx.Vin {
		inputs = append(inputs, TXInput{Txid: vin.Txid, Vout: vin.Vout})
	}
	outputs := make([]TXOutput, len(tx.Vout))
	copy(outputs, tx.Vout)

	return Transaction{ID: tx.ID, Vin: inputs, Vout: outputs}
}

// digestFor hashes the trimmed copy with the referenced output's lock placed in input idx
func (tx *Transaction) digestFor(txCopy *Transaction, idx int, prevTXs map[string]Transaction) ([]byte, error) {
	vin := tx.Vin[idx]
	prevTx, ok := prevTXs[hex.EncodeToString(vin.Txid)]
	if !ok || prevTx.ID == nil {
		return nil, ErrMissingPrevTransaction
	}
	if vin.Vout < 0 || vin.Vout >= len(prevTx.Vout) {
		return nil, fmt.Errorf("input %d references output %d of %x: out of range", idx, vin.Vout, vin.Txid)
	}

	txCopy.Vin[idx].Signature = nil
	txCopy.Vin[idx].PubKey = prevTx.Vout[vin.Vout].PubKeyHash
	digest := txCopy.Hash()
	txCopy.Vin[idx].PubKey = nil

	return digest, nil
}

// Sign signs every input of the transaction with secretKey. The public key
// derived from secretKey is written into each input.
func (tx *Transaction) Sign(secretKey []byte, signer Signer, prevTXs map[string]Transaction) error {
	if tx.IsCoinbase() {
		return nil
	}

	pubKey, err := signer.PublicKey(secretKey)
	if err != nil {
		return err
	}

	txCopy := tx.TrimmedCopy()
	for idx := range tx.Vin {
		digest, err := tx.digestFor(&txCopy, idx, prevTXs)
		if err != nil {
			return err
		}

		signature, err := signer.Sign(secretKey, digest)
		if err != nil {
			return err
		}
		tx.Vin[idx].Signature = signature
		tx.Vin[idx].PubKey = pubKey
	}

	return nil
}

// Verify checks the signature and ownership of every input
func (tx *Transaction) Verify(signer Signer, prevTXs map[string]Transaction) (bool, error) {
	if tx.IsCoinbase() {
		return true, nil
	}

	txCopy := tx.TrimmedCopy()
	for idx, vin := range tx.Vin {
		digest, err := tx.digestFor(&txCopy, idx, prevTXs)
		if err != nil {
			return false, err
		}

		prevOut := prevTXs[hex.EncodeToString(vin.Txid)].Vout[vin.Vout]
		if !vin.UsesKey(prevOut.PubKeyHash) {
			return false, nil
		}
		if !signer.Verify(vin.PubKey, digest, vin.Signature) {
			return false, nil
		}
	}

	return true, nil
}

// String 返回交易的可读表示
func (tx Transaction) String() string {
	var lines []string

	lines = append(lines, fmt.Sprintf("--- Transaction %x:", tx.ID))
	for i, input := range tx.Vin {
		lines = append(lines, fmt.Sprintf("     Input %d:", i))
		lines = append(lines, fmt.Sprintf("       TXID:      %x", input.Txid))
		lines = append(lines, fmt.Sprintf("       Out:       %d", input.Vout))
		lines = append(lines, fmt.Sprintf("       Signature: %x", input.Signature))
		lines = append(lines, fmt.Sprintf("       PubKey:    %x", input.PubKey))
	}
	for i, output := range tx.Vout {
		lines = append(lines, fmt.Sprintf("     Output %d:", i))
		lines = append(lines, fmt.Sprintf("       Value:  %d", output.Value))
		lines = append(lines, fmt.Sprintf("       Script: %x", output.PubKeyHash))
	}

	return strings.Join(lines, "\n")
}

// NewUTXOTransaction builds an unsigned transfer of amount from one address
// to another. Inputs carry no public key until the transaction is signed, so
// a node that does not hold the sender's key can still build it.
func NewUTXOTransaction(from, to string, amount int, utxoSet *UTXOSet) (*Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("invalid amount %d", amount)
	}

	pubKeyHash, err := PubKeyHashFromAddress(from)
	if err != nil {
		return nil, err
	}

	acc, validOutputs, err := utxoSet.FindSpendableOutputs(pubKeyHash, amount)
	if err != nil {
		return nil, err
	}
	if acc < amount {
		return nil, ErrNotEnoughFunds
	}

	txids := make([]string, 0, len(validOutputs))
	for txid := range validOutputs {
		txids = append(txids, txid)
	}
	sort.Strings(txids)

	var inputs []TXInput
	for _, txid := range txids {
		txID, err := hex.DecodeString(txid)
		if err != nil {
			return nil, err
		}

		for _, out := range validOutputs[txid] {
			inputs = append(inputs, TXInput{Txid: txID, Vout: out})
		}
	}

	payment, err := NewTXOutput(amount, to)
	if err != nil {
		return nil, err
	}
	outputs := []TXOutput{*payment}
	if acc > amount {
		// 找零
		outputs = append(outputs, TXOutput{Value: acc - amount, PubKeyHash: pubKeyHash})
	}

	tx := Transaction{nil, inputs, outputs}
	tx.ID = tx.Hash()

	return &tx, nil
}
