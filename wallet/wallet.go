package wallet

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"

	"mini-coin-node/blockchain"
)

const secretKeyLen = 32

// Wallet 存储私钥和公钥
type Wallet struct {
	SecretKey []byte
	PublicKey []byte
}

// NewKeyPair 创建一个新的密钥对, 私钥为 32 字节标量, 公钥为 X||Y
func NewKeyPair() ([]byte, []byte, error) {
	private, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	secret := make([]byte, secretKeyLen)
	private.D.FillBytes(secret)

	pubKey, err := blockchain.ECDSASigner{}.PublicKey(secret)
	if err != nil {
		return nil, nil, err
	}

	return secret, pubKey, nil
}

// NewWallet 创建并返回一个新的钱包
func NewWallet() (*Wallet, error) {
	secret, public, err := NewKeyPair()
	if err != nil {
		return nil, err
	}

	return &Wallet{SecretKey: secret, PublicKey: public}, nil
}

// GetAddress 返回钱包地址
func (w Wallet) GetAddress() string {
	return blockchain.AddressFromPubKeyHash(blockchain.HashPubKey(w.PublicKey))
}
