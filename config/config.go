package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"

	"mini-coin-node/network"
)

// NodeIDEnv 选择节点端口和数据文件的环境变量
const NodeIDEnv = "NODE_ID"

var ErrNodeIDMissing = errors.New(NodeIDEnv + " env. var is not set")

// Config 节点进程的全部配置
type Config struct {
	NodeID   string `toml:"node_id"`
	DataDir  string `toml:"data_dir"`
	LogLevel string `toml:"log_level"`

	Node      Node      `toml:"node"`
	Admission Admission `toml:"admission"`
}

// Node 网络参数
type Node struct {
	Host           string        `toml:"host"`
	Port           string        `toml:"port"`
	MiningAddress  string        `toml:"mining_address"`
	BootstrapPeer  string        `toml:"bootstrap_peer"`
	BootstrapDelay time.Duration `toml:"bootstrap_delay"`
	ReadTimeout    time.Duration `toml:"read_timeout"`
	SignTimeout    time.Duration `toml:"sign_timeout"`
	DialTimeout    time.Duration `toml:"dial_timeout"`
	MaxFrameSize   int64         `toml:"max_frame_size"`
	MempoolSize    int           `toml:"mempool_size"`
}

// Admission 入站连接限制
type Admission struct {
	Rate        float64       `toml:"rate"`
	Burst       int           `toml:"burst"`
	Banned      []string      `toml:"banned"`
	BanDuration time.Duration `toml:"ban_duration"`
}

// Default returns the configuration of node nodeID: it listens on port
// nodeID and keeps its data files in the working directory
func Default(nodeID string) Config {
	n := network.DefaultConfig()

	return Config{
		NodeID:   nodeID,
		DataDir:  ".",
		LogLevel: log.InfoLevel.String(),
		Node: Node{
			Host:           n.Host,
			Port:           nodeID,
			BootstrapPeer:  n.BootstrapPeer,
			BootstrapDelay: n.BootstrapDelay,
			ReadTimeout:    n.ReadTimeout,
			SignTimeout:    n.SignTimeout,
			DialTimeout:    n.DialTimeout,
			MaxFrameSize:   n.MaxFrameSize,
			MempoolSize:    n.MempoolSize,
		},
		Admission: Admission{
			Rate:        n.AdmissionRate,
			Burst:       n.AdmissionBurst,
			BanDuration: n.BanDuration,
		},
	}
}

// FromEnv builds the default configuration for the node named by NODE_ID and
// overlays the TOML file at path when path is not empty
func FromEnv(path string) (Config, error) {
	nodeID := os.Getenv(NodeIDEnv)
	if nodeID == "" {
		return Config{}, ErrNodeIDMissing
	}

	cfg := Default(nodeID)
	if path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	return cfg, nil
}

// LoadFile parse the config from the file of the path
func LoadFile(path string, v interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return LoadReader(file, v)
}

// LoadString parse the config from the string
func LoadString(data string, v interface{}) error {
	return LoadReader(bytes.NewReader([]byte(data)), v)
}

// LoadReader parse the config from the file of the reader
func LoadReader(r io.Reader, v interface{}) error {
	if _, err := toml.NewDecoder(r).Decode(v); err != nil {
		return err
	}
	return nil
}

// BlockchainPath 区块链数据库文件
func (c Config) BlockchainPath() string {
	return filepath.Join(c.DataDir, fmt.Sprintf("blockchain_%s.db", c.NodeID))
}

// WalletPath 钱包数据库目录
func (c Config) WalletPath() string {
	return filepath.Join(c.DataDir, fmt.Sprintf("wallet_%s", c.NodeID))
}

// Network converts the node section into the server configuration
func (c Config) Network() network.Config {
	return network.Config{
		Host:           c.Node.Host,
		Port:           c.Node.Port,
		MiningAddress:  c.Node.MiningAddress,
		BootstrapPeer:  c.Node.BootstrapPeer,
		BootstrapDelay: c.Node.BootstrapDelay,
		ReadTimeout:    c.Node.ReadTimeout,
		SignTimeout:    c.Node.SignTimeout,
		DialTimeout:    c.Node.DialTimeout,
		MaxFrameSize:   c.Node.MaxFrameSize,
		MempoolSize:    c.Node.MempoolSize,
		AdmissionRate:  c.Admission.Rate,
		AdmissionBurst: c.Admission.Burst,
		Banned:         c.Admission.Banned,
		BanDuration:    c.Admission.BanDuration,
	}
}

// SetupLogging 设置日志级别
func (c Config) SetupLogging() error {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}

	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return nil
}
