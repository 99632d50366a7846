package message

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// CommandLength 命令的长度
const CommandLength = 12

// 协议命令
const (
	CmdAddr         = "addr"
	CmdBlock        = "block"
	CmdInv          = "inv"
	CmdGetBlocks    = "getblocks"
	CmdGetData      = "getdata"
	CmdTx           = "tx"
	CmdVersion      = "version"
	CmdSignRequest  = "signreq"
	CmdSignResponse = "signres"
)

var encMode cbor.EncMode

func init() {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	encMode = em
}

// CommandToBytes 将命令转换为 NUL 填充的 12 字节数组
func CommandToBytes(command string) ([]byte, error) {
	if len(command) > CommandLength {
		return nil, fmt.Errorf("command %q exceeds %d bytes", command, CommandLength)
	}

	var bytes [CommandLength]byte
	copy(bytes[:], command)

	return bytes[:], nil
}

// BytesToCommand 将字节数组转换为命令, 去掉末尾的 NUL
func BytesToCommand(bytes []byte) string {
	end := len(bytes)
	for end > 0 && bytes[end-1] == 0x0 {
		end--
	}

	return string(bytes[:end])
}

// newMessage returns an empty payload value for a known command
func newMessage(command string) Message {
	switch command {
	case CmdAddr:
		return &Addr{}
	case CmdBlock:
		return &BlockData{}
	case CmdInv:
		return &Inv{}
	case CmdGetBlocks:
		return &GetBlocks{}
	case CmdGetData:
		return &GetData{}
	case CmdTx:
		return &Tx{}
	case CmdVersion:
		return &Version{}
	case CmdSignRequest:
		return &SignRequest{}
	case CmdSignResponse:
		return &SignResponse{}
	}
	return nil
}

// Encode 将消息编码为 命令 + 负载
func Encode(msg Message) ([]byte, error) {
	header, err := CommandToBytes(msg.Command())
	if err != nil {
		return nil, NewError(ErrProtocol, "encode command", err)
	}

	payload, err := encMode.Marshal(msg)
	if err != nil {
		return nil, NewError(ErrProtocol, "encode "+msg.Command(), err)
	}

	return append(header, payload...), nil
}

// Decode 从请求中解析消息
func Decode(request []byte) (Message, error) {
	if len(request) < CommandLength {
		return nil, NewError(ErrProtocol, fmt.Sprintf("frame of %d bytes is shorter than the command", len(request)), nil)
	}

	command := BytesToCommand(request[:CommandLength])
	msg := newMessage(command)
	if msg == nil {
		return nil, NewError(ErrProtocol, fmt.Sprintf("unknown command %q", command), nil)
	}

	if err := cbor.Unmarshal(request[CommandLength:], msg); err != nil {
		return nil, NewError(ErrProtocol, "decode "+command, err)
	}

	return msg, nil
}
