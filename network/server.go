package network

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"mini-coin-node/blockchain"
	"mini-coin-node/network/connection"
	"mini-coin-node/network/message"
	"mini-coin-node/network/peer"
	"mini-coin-node/network/security"
	nsync "mini-coin-node/network/sync"
)

const (
	protocol        = "tcp"
	protocolVersion = 1
)

// Config 节点参数
type Config struct {
	Host           string        // 监听地址
	Port           string        // 监听端口
	MiningAddress  string        // 挖矿奖励地址, 为空表示不挖矿
	BootstrapPeer  string        // 启动时已知的节点
	BootstrapDelay time.Duration // 启动任务开始前的等待时间
	ReadTimeout    time.Duration // 入站连接读取超时
	SignTimeout    time.Duration // 远程签名等待应答的超时
	DialTimeout    time.Duration // 出站连接超时
	MaxFrameSize   int64         // 单个消息的最大字节数
	MempoolSize    int           // 内存池容量, <= 0 表示不限制
	AdmissionRate  float64       // 每个IP每秒允许的入站连接数, 0 表示不限制
	AdmissionBurst int
	Banned         []string      // 拒绝入站连接的IP
	BanDuration    time.Duration // 发送超长或无法解码消息的IP被封禁的时长, 0 表示不封禁
}

// DefaultConfig 返回默认参数
func DefaultConfig() Config {
	return Config{
		Host:           "localhost",
		Port:           "3000",
		BootstrapPeer:  "localhost:3000",
		BootstrapDelay: time.Second,
		ReadTimeout:    30 * time.Second,
		SignTimeout:    30 * time.Second,
		DialTimeout:    5 * time.Second,
		MaxFrameSize:   32 << 20,
		MempoolSize:    10000,
		AdmissionBurst: 100,
	}
}

// Address 返回节点地址 host:port
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// transport carries encoded frames to peers
type transport interface {
	Send(ctx context.Context, addr string, data []byte) error
	Call(ctx context.Context, addr string, data []byte, timeout time.Duration) ([]byte, error)
}

// Server 节点服务器, 持有节点的共享状态
type Server struct {
	cfg     Config
	address string

	ledger  Ledger
	utxo    UTXOIndex
	wallets WalletStore
	signer  blockchain.Signer

	peers     *peer.Registry
	inTransit *nsync.Tracker
	mempool   *nsync.Mempool

	blacklist *security.BlacklistFilter
	filter    security.Filter
	dialer    transport
	minerMu sync.Mutex
}

// New creates a server. The collaborators may be nil for a process that only
// submits transactions or requests signatures and never serves.
func New(cfg Config, ledger Ledger, utxo UTXOIndex, wallets WalletStore, signer blockchain.Signer) *Server {
	blacklist := security.NewBlacklistFilter(cfg.Banned...)

	return &Server{
		cfg:       cfg,
		address:   cfg.Address(),
		ledger:    ledger,
		utxo:      utxo,
		wallets:   wallets,
		signer:    signer,
		peers:     peer.NewRegistry(cfg.BootstrapPeer),
		inTransit: nsync.NewTracker(),
		mempool:   nsync.NewMempool(cfg.MempoolSize),
		blacklist: blacklist,
		filter: security.NewChain(
			blacklist,
			security.NewRateLimitFilter(cfg.AdmissionRate, cfg.AdmissionBurst),
		),
		dialer: connection.Dialer{Timeout: cfg.DialTimeout, MaxFrameSize: cfg.MaxFrameSize},
	}
}

// Address 返回节点地址
func (s *Server) Address() string {
	return s.address
}

// Peers 返回已知节点
func (s *Server) Peers() *peer.Registry {
	return s.peers
}

// Mempool 返回交易内存池
func (s *Server) Mempool() *nsync.Mempool {
	return s.mempool
}

// ListenAndServe 绑定节点地址并处理连接, 直到 ctx 被取消
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen(protocol, s.address)
	if err != nil {
		return message.NewError(message.ErrStartup, "listen on "+s.address, err)
	}

	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln and runs the bootstrap task. It returns
// nil once ctx is cancelled, or the first accept error.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log.WithFields(log.Fields{
		"address":       s.address,
		"miningAddress": s.cfg.MiningAddress,
	}).Info("Start server")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		ln.Close()
		return nil
	})

	g.Go(func() error {
		s.bootstrap(ctx)
		return nil
	})

	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return nil
				}
				return message.NewError(message.ErrConnection, "accept", err)
			}

			g.Go(func() error {
				s.handleConnection(ctx, conn)
				return nil
			})
		}
	})

	return g.Wait()
}

// bootstrap 启动任务: 空链向所有节点请求区块, 否则向第一个节点发送版本信息
func (s *Server) bootstrap(ctx context.Context) {
	if s.cfg.BootstrapDelay > 0 {
		timer := time.NewTimer(s.cfg.BootstrapDelay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}

	height, err := s.ledger.GetBestHeight()
	if err != nil {
		log.WithError(err).Error("bootstrap: read best height")
		return
	}

	nodes := s.knownPeers()
	if height == -1 {
		for _, node := range nodes {
			s.sendGetBlocks(ctx, node)
		}
		return
	}

	if len(nodes) > 0 {
		s.sendVersion(ctx, nodes[0])
	}
}

// knownPeers returns the sorted known addresses other than this node
func (s *Server) knownPeers() []string {
	nodes := s.peers.Snapshot()

	peers := nodes[:0]
	for _, node := range nodes {
		if node != s.address {
			peers = append(peers, node)
		}
	}
	return peers
}

// handleConnection 处理一个入站连接: 读取一条消息并分发
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	c := connection.NewConnection(conn)
	defer c.Close()

	if s.filter != nil && !s.filter.ShouldAllow(c.RemoteAddr) {
		return
	}

	request, err := c.ReadRequest(s.cfg.ReadTimeout, s.cfg.MaxFrameSize)
	if err != nil {
		log.WithError(err).WithField("peer", c.RemoteAddr).Warn("read request")
		if message.IsCode(err, message.ErrProtocol) {
			s.ban(c.RemoteAddr)
		}
		return
	}

	msg, err := message.Decode(request)
	if err != nil {
		log.WithError(err).WithField("peer", c.RemoteAddr).Warn("decode request")
		s.ban(c.RemoteAddr)
		return
	}

	log.WithField("peer", c.RemoteAddr).Infof("Received %s command", msg.Command())

	if err := s.dispatch(ctx, msg, c); err != nil {
		log.WithError(err).WithField("command", msg.Command()).Warn("handle request")
	}
}

// ban 封禁发送畸形消息的地址 BanDuration 时长
func (s *Server) ban(addr string) {
	if s.cfg.BanDuration <= 0 {
		return
	}

	s.blacklist.AddToBlacklist(addr, s.cfg.BanDuration)
	log.WithFields(log.Fields{"peer": addr, "duration": s.cfg.BanDuration}).Warn("banned peer for a malformed request")
}
