package wallet

import (
	"errors"
	"sort"
	"sync"

	"github.com/fxamacker/cbor/v2"
	log "github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const keyPrefixWallet = "w:"

// ErrNotFound is returned when no wallet is stored for an address
var ErrNotFound = errors.New("wallet not found")

// Store 钱包集合, 保存在 LevelDB 中
type Store struct {
	path string
	mu   sync.Mutex
	db   *leveldb.DB
}

func keyFromAddress(address string) []byte {
	return append([]byte(keyPrefixWallet), address...)
}

// OpenStore opens or creates the wallet store at path, recovering a
// corrupted database when possible
func OpenStore(path string) (*Store, error) {
	opts := &opt.Options{
		Compression: opt.NoCompression,
	}

	db, err := leveldb.OpenFile(path, opts)
	if lerrors.IsCorrupted(err) {
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, err
	}

	log.Debugf("Opened wallet store at %s", path)

	return &Store{path: path, db: db}, nil
}

// CreateWallet 创建一个新钱包并保存, 返回钱包地址
func (s *Store) CreateWallet() (string, error) {
	w, err := NewWallet()
	if err != nil {
		return "", err
	}

	data, err := cbor.Marshal(w)
	if err != nil {
		return "", err
	}

	address := w.GetAddress()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Put(keyFromAddress(address), data, nil); err != nil {
		return "", err
	}

	return address, nil
}

// GetWallet 根据地址返回钱包
func (s *Store) GetWallet(address string) (*Wallet, error) {
	data, err := s.db.Get(keyFromAddress(address), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var w Wallet
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// GetAddresses 返回所有钱包地址, 按字典序排列
func (s *Store) GetAddresses() ([]string, error) {
	var addresses []string

	iter := s.db.NewIterator(util.BytesPrefix([]byte(keyPrefixWallet)), nil)
	for iter.Next() {
		addresses = append(addresses, string(iter.Key()[len(keyPrefixWallet):]))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return nil, err
	}

	sort.Strings(addresses)
	return addresses, nil
}

// Close 关闭钱包存储
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
