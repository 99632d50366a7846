package network

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-coin-node/blockchain"
	"mini-coin-node/network/connection"
	"mini-coin-node/network/message"
	"mini-coin-node/network/mocks"
	"mini-coin-node/wallet"
)

// startServer runs a node on a loopback port until the test ends
func startServer(t *testing.T, chain *blockchain.Blockchain, wallets WalletStore, configure func(*Config)) *Server {
	t.Helper()

	return serveLedger(t, chain, blockchain.UTXOSet{Blockchain: chain}, wallets, configure)
}

// serveLedger is startServer for any ledger and UTXO index
func serveLedger(t *testing.T, ledger Ledger, utxo UTXOIndex, wallets WalletStore, configure func(*Config)) *Server {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Host, cfg.Port = host, port
	cfg.BootstrapPeer = ""
	cfg.BootstrapDelay = 10 * time.Millisecond
	cfg.ReadTimeout = 5 * time.Second
	cfg.SignTimeout = 5 * time.Second
	if configure != nil {
		configure(&cfg)
	}

	s := New(cfg, ledger, utxo, wallets, blockchain.ECDSASigner{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	return s
}

func openChain(t *testing.T, address string) *blockchain.Blockchain {
	t.Helper()

	path := filepath.Join(t.TempDir(), "blockchain.db")

	var (
		chain *blockchain.Blockchain
		err   error
	)
	if address == "" {
		chain, err = blockchain.NewBlockchain(path, blockchain.ECDSASigner{})
	} else {
		chain, err = blockchain.CreateBlockchain(path, address, blockchain.ECDSASigner{})
	}
	require.NoError(t, err)
	t.Cleanup(func() { chain.Close() })

	return chain
}

func openWallets(t *testing.T) *wallet.Store {
	t.Helper()

	store, err := wallet.OpenStore(filepath.Join(t.TempDir(), "wallet"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

// TestServerSync 测试空节点从已知节点同步区块
func TestServerSync(t *testing.T) {
	miner := newMiningAddress(t)

	chainA := openChain(t, miner)
	cbtx, err := blockchain.NewCoinbaseTX(miner, "")
	require.NoError(t, err)
	_, err = chainA.MineBlock([]*blockchain.Transaction{cbtx})
	require.NoError(t, err)

	a := startServer(t, chainA, nil, nil)

	chainB := openChain(t, "")
	startServer(t, chainB, nil, func(c *Config) { c.BootstrapPeer = a.Address() })

	utxoB := blockchain.UTXOSet{Blockchain: chainB}
	require.Eventually(t, func() bool {
		balance, err := utxoB.Balance(miner)
		return err == nil && balance == 200
	}, 10*time.Second, 20*time.Millisecond)

	heightB, err := chainB.GetBestHeight()
	require.NoError(t, err)
	assert.Equal(t, 1, heightB)

	hashesA, err := chainA.GetBlockHashes()
	require.NoError(t, err)
	hashesB, err := chainB.GetBlockHashes()
	require.NoError(t, err)
	assert.Equal(t, hashesA, hashesB)
}

// TestServerSyncLongChain 同步的区块数远多于入站连接的突发上限, 使用默认配置
func TestServerSyncLongChain(t *testing.T) {
	const blocks = 300

	ledgerA := newFakeLedger(blocks - 1)
	for i := blocks - 1; i >= 0; i-- {
		block := &blockchain.Block{Hash: []byte(fmt.Sprintf("block-%03d", i)), Height: i}
		ledgerA.blocks[string(block.Hash)] = block
		ledgerA.hashes = append(ledgerA.hashes, block.Hash)
	}

	ctl := gomock.NewController(t)
	a := serveLedger(t, ledgerA, mocks.NewMockUTXOIndex(ctl), nil, nil)

	reindexed := make(chan struct{})
	utxoB := mocks.NewMockUTXOIndex(ctl)
	utxoB.EXPECT().Reindex().Do(func() { close(reindexed) }).Return(nil).Times(1)

	ledgerB := newFakeLedger(-1)
	serveLedger(t, ledgerB, utxoB, nil, func(c *Config) { c.BootstrapPeer = a.Address() })

	select {
	case <-reindexed:
	case <-time.After(20 * time.Second):
		height, _ := ledgerB.GetBestHeight()
		t.Fatalf("sync stalled at height %d of %d", height, blocks-1)
	}

	height, err := ledgerB.GetBestHeight()
	require.NoError(t, err)
	assert.Equal(t, blocks-1, height)

	ledgerB.mutex.Lock()
	assert.Len(t, ledgerB.blocks, blocks)
	ledgerB.mutex.Unlock()
}

// TestServerRemoteSigning 测试通过网络请求签名
func TestServerRemoteSigning(t *testing.T) {
	wallets := openWallets(t)
	owner, err := wallets.CreateWallet()
	require.NoError(t, err)

	chain := openChain(t, owner)
	utxoSet := blockchain.UTXOSet{Blockchain: chain}
	require.NoError(t, utxoSet.Reindex())

	signing := startServer(t, chain, wallets, nil)

	client := New(Config{Host: "0.0.0.0", Port: "7000", SignTimeout: 5 * time.Second, DialTimeout: time.Second, MaxFrameSize: 1 << 20}, nil, nil, nil, nil)

	receiver := newMiningAddress(t)
	tx, err := blockchain.NewUTXOTransaction(owner, receiver, 30, &utxoSet)
	require.NoError(t, err)

	ok, err := chain.VerifyTransaction(tx)
	require.NoError(t, err)
	require.False(t, ok)

	signed, err := client.RequestSignature(context.Background(), signing.Address(), owner, tx)
	require.NoError(t, err)

	ok, err = chain.VerifyTransaction(signed)
	require.NoError(t, err)
	assert.True(t, ok)

	t.Run("unknown wallet", func(t *testing.T) {
		_, err := client.RequestSignature(context.Background(), signing.Address(), receiver, tx)
		assert.True(t, message.IsCode(err, message.ErrSigning))
		assert.Contains(t, err.Error(), "wallet not found: "+receiver)
	})
}

func TestServerAdmission(t *testing.T) {
	wallets := openWallets(t)
	owner, err := wallets.CreateWallet()
	require.NoError(t, err)

	chain := openChain(t, owner)
	banned := startServer(t, chain, wallets, func(c *Config) { c.Banned = []string{"127.0.0.1"} })

	client := New(Config{Host: "0.0.0.0", Port: "7000", SignTimeout: 2 * time.Second, DialTimeout: time.Second, MaxFrameSize: 1 << 20}, nil, nil, nil, nil)

	_, err = client.RequestSignature(context.Background(), banned.Address(), owner, newTestTx(t, 1))
	require.Error(t, err)
	assert.True(t, message.IsCode(err, message.ErrEmptyResponse) || message.IsCode(err, message.ErrConnection))
}

func TestListenAndServeStartupFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Host, cfg.Port = host, port
	s := New(cfg, nil, nil, nil, nil)

	err = s.ListenAndServe(context.Background())
	assert.True(t, message.IsCode(err, message.ErrStartup))
}

// sendRaw writes data on its own connection and waits for the node to close it
func sendRaw(t *testing.T, addr string, data []byte) {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, _ = conn.Write(data)
	_ = connection.CloseWrite(conn)
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _ = io.Copy(io.Discard, conn)
}

// TestServerBansMalformedRequests 发送超长或无法解码消息的IP在封禁期内被拒绝
func TestServerBansMalformedRequests(t *testing.T) {
	tests := []struct {
		name    string
		request []byte
	}{
		{"undecodable", append([]byte("bogus\x00\x00\x00\x00\x00\x00\x00"), 0xff, 0xff)},
		{"oversized", bytes.Repeat([]byte{'x'}, 4096)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wallets := openWallets(t)
			owner, err := wallets.CreateWallet()
			require.NoError(t, err)

			chain := openChain(t, owner)
			s := startServer(t, chain, wallets, func(c *Config) {
				c.MaxFrameSize = 1024
				c.BanDuration = time.Minute
			})

			client := New(Config{Host: "0.0.0.0", Port: "7000", SignTimeout: 2 * time.Second, DialTimeout: time.Second, MaxFrameSize: 1 << 20}, nil, nil, nil, nil)

			sendRaw(t, s.Address(), tt.request)

			_, err = client.RequestSignature(context.Background(), s.Address(), owner, newTestTx(t, 1))
			require.Error(t, err)
			assert.True(t, message.IsCode(err, message.ErrEmptyResponse) || message.IsCode(err, message.ErrConnection))
		})
	}

	t.Run("no ban duration keeps serving", func(t *testing.T) {
		wallets := openWallets(t)
		owner, err := wallets.CreateWallet()
		require.NoError(t, err)

		chain := openChain(t, owner)
		s := startServer(t, chain, wallets, nil)

		client := New(Config{Host: "0.0.0.0", Port: "7000", SignTimeout: 2 * time.Second, DialTimeout: time.Second, MaxFrameSize: 1 << 20}, nil, nil, nil, nil)

		sendRaw(t, s.Address(), []byte("garbage"))

		// 签名失败, 但节点仍然给出应答
		_, err = client.RequestSignature(context.Background(), s.Address(), newMiningAddress(t), newTestTx(t, 1))
		assert.True(t, message.IsCode(err, message.ErrSigning))
	})
}
