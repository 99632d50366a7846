package blockchain

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"

	"github.com/fxamacker/cbor/v2"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/ripemd160"
)

const ( // 版本和地址校验和长度
	version            = byte(0x00)
	addressChecksumLen = 4
)

// ErrInvalidAddress is returned for addresses that fail base58 or checksum validation
var ErrInvalidAddress = errors.New("invalid address")

// encMode produces canonical CBOR so that hashes over encoded values are stable
var encMode cbor.EncMode

func init() {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	encMode = em
}

// IntToHex 用于将 int64 转换为字节数组
func IntToHex(n int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return buf
}

// HashPubKey 对公钥进行哈希
func HashPubKey(pubKey []byte) []byte {
	publicSHA256 := sha256.Sum256(pubKey)

	hasher := ripemd160.New()
	hasher.Write(publicSHA256[:])

	return hasher.Sum(nil)
}

// checksum 为公钥哈希生成校验和
func checksum(payload []byte) []byte {
	firstSHA := sha256.Sum256(payload)
	secondSHA := sha256.Sum256(firstSHA[:])

	return secondSHA[:addressChecksumLen]
}

// AddressFromPubKeyHash builds a base58check address for a public key hash
func AddressFromPubKeyHash(pubKeyHash []byte) string {
	payload := make([]byte, 0, 1+len(pubKeyHash)+addressChecksumLen)
	payload = append(payload, version)
	payload = append(payload, pubKeyHash...)
	payload = append(payload, checksum(payload)...)

	return base58.Encode(payload)
}

// PubKeyHashFromAddress extracts the public key hash from a base58check address
func PubKeyHashFromAddress(address string) ([]byte, error) {
	payload, err := base58.Decode(address)
	if err != nil || len(payload) <= 1+addressChecksumLen {
		return nil, ErrInvalidAddress
	}

	versioned := payload[:len(payload)-addressChecksumLen]
	if versioned[0] != version || !bytes.Equal(checksum(versioned), payload[len(versioned):]) {
		return nil, ErrInvalidAddress
	}

	return versioned[1:], nil
}

// ValidateAddress 检查地址是否有效
func ValidateAddress(address string) bool {
	_, err := PubKeyHashFromAddress(address)
	return err == nil
}
