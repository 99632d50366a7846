package blockchain

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"math/big"
)

const coordinateLen = 32

// ErrInvalidKey is returned when a secret key cannot be used by a Signer
var ErrInvalidKey = errors.New("invalid secret key")

// Signer is the signature capability used when signing and verifying transactions
type Signer interface {
	PublicKey(secretKey []byte) ([]byte, error)
	Sign(secretKey, digest []byte) ([]byte, error)
	Verify(publicKey, digest, signature []byte) bool
}

// ECDSASigner signs with P-256. Secret keys are the 32-byte scalar, public
// keys and signatures are the two 32-byte coordinates concatenated.
type ECDSASigner struct{}

// PrivateKey rebuilds an ecdsa key from its raw scalar
func (ECDSASigner) PrivateKey(secretKey []byte) (*ecdsa.PrivateKey, error) {
	curve := elliptic.P256()
	d := new(big.Int).SetBytes(secretKey)
	if len(secretKey) != coordinateLen || d.Sign() == 0 || d.Cmp(curve.Params().N) >= 0 {
		return nil, ErrInvalidKey
	}

	priv := &ecdsa.PrivateKey{D: d}
	priv.PublicKey.Curve = curve
	priv.PublicKey.X, priv.PublicKey.Y = curve.ScalarBaseMult(secretKey)

	return priv, nil
}

// PublicKey derives the encoded public key for a secret key
func (s ECDSASigner) PublicKey(secretKey []byte) ([]byte, error) {
	priv, err := s.PrivateKey(secretKey)
	if err != nil {
		return nil, err
	}
	return joinCoordinates(priv.PublicKey.X, priv.PublicKey.Y), nil
}

// Sign signs a digest
func (s ECDSASigner) Sign(secretKey, digest []byte) ([]byte, error) {
	priv, err := s.PrivateKey(secretKey)
	if err != nil {
		return nil, err
	}

	r, ss, err := ecdsa.Sign(rand.Reader, priv, digest)
	if err != nil {
		return nil, err
	}
	return joinCoordinates(r, ss), nil
}

// Verify checks a signature over a digest
func (ECDSASigner) Verify(publicKey, digest, signature []byte) bool {
	if len(publicKey) != 2*coordinateLen || len(signature) != 2*coordinateLen {
		return false
	}

	curve := elliptic.P256()
	x, y := splitCoordinates(publicKey)
	if !curve.IsOnCurve(x, y) {
		return false
	}
	r, s := splitCoordinates(signature)

	pub := ecdsa.PublicKey{Curve: curve, X: x, Y: y}
	return ecdsa.Verify(&pub, digest, r, s)
}

func joinCoordinates(a, b *big.Int) []byte {
	out := make([]byte, 2*coordinateLen)
	a.FillBytes(out[:coordinateLen])
	b.FillBytes(out[coordinateLen:])
	return out
}

func splitCoordinates(data []byte) (*big.Int, *big.Int) {
	return new(big.Int).SetBytes(data[:coordinateLen]), new(big.Int).SetBytes(data[coordinateLen:])
}
