package message

import "mini-coin-node/blockchain"

// 库存类型
const (
	KindBlock = "block"
	KindTx    = "tx"
)

// Message is one of the nine wire messages. The set is closed: only types
// declared in this package implement it.
type Message interface {
	Command() string
	isMessage()
}

// Version 消息，用于节点间同步区块链高度
type Version struct {
	Version    int
	BestHeight int
	AddrFrom   string
}

// GetBlocks 消息，用于向其他节点请求区块哈希列表
type GetBlocks struct {
	AddrFrom string
}

// Inv 消息，用于告诉其他节点自己拥有的区块或交易信息
type Inv struct {
	AddrFrom string
	Type     string
	Items    [][]byte
}

// GetData 消息，用于根据哈希请求具体的区块或交易数据
type GetData struct {
	AddrFrom string
	Type     string
	ID       []byte
}

// BlockData 消息，用于发送一个完整的区块数据
type BlockData struct {
	AddrFrom string
	Block    *blockchain.Block
}

// Tx 消息，用于发送一个交易数据
type Tx struct {
	AddrFrom    string
	Transaction *blockchain.Transaction
}

// Addr 消息，用于在节点间共享和广播其他节点的地址
type Addr struct {
	AddrList []string
}

// SignRequest 消息, 请求持有钱包私钥的节点对交易签名
type SignRequest struct {
	AddrFrom      string
	WalletAddress string
	Transaction   *blockchain.Transaction
}

// SignResponse 消息, 签名请求的唯一应答
type SignResponse struct {
	AddrFrom     string
	Transaction  *blockchain.Transaction
	Success      bool
	ErrorMessage string
}

func (*Version) Command() string      { return CmdVersion }
func (*GetBlocks) Command() string    { return CmdGetBlocks }
func (*Inv) Command() string          { return CmdInv }
func (*GetData) Command() string      { return CmdGetData }
func (*BlockData) Command() string    { return CmdBlock }
func (*Tx) Command() string           { return CmdTx }
func (*Addr) Command() string         { return CmdAddr }
func (*SignRequest) Command() string  { return CmdSignRequest }
func (*SignResponse) Command() string { return CmdSignResponse }

func (*Version) isMessage()      {}
func (*GetBlocks) isMessage()    {}
func (*Inv) isMessage()          {}
func (*GetData) isMessage()      {}
func (*BlockData) isMessage()    {}
func (*Tx) isMessage()           {}
func (*Addr) isMessage()         {}
func (*SignRequest) isMessage()  {}
func (*SignResponse) isMessage() {}
