package network

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"mini-coin-node/blockchain"
	"mini-coin-node/network/connection"
	"mini-coin-node/network/message"
)

// sendMessage encodes msg and delivers it to addr. Sending to this node is a
// no-op. A peer that cannot be reached is forgotten.
func (s *Server) sendMessage(ctx context.Context, addr string, msg message.Message) error {
	if addr == s.address {
		return nil
	}

	data, err := message.Encode(msg)
	if err != nil {
		return err
	}

	err = s.dialer.Send(ctx, addr, data)
	if errors.Is(err, connection.ErrDialFailed) {
		log.WithField("peer", addr).Warn("peer is not available, removing it")
		s.peers.Remove(addr)
	}
	return err
}

// send is sendMessage for the fire-and-forget paths, where failures are only logged
func (s *Server) send(ctx context.Context, addr string, msg message.Message) {
	if err := s.sendMessage(ctx, addr, msg); err != nil {
		log.WithError(err).WithFields(log.Fields{"peer": addr, "command": msg.Command()}).Debug("send failed")
	}
}

func (s *Server) sendVersion(ctx context.Context, addr string) {
	height, err := s.ledger.GetBestHeight()
	if err != nil {
		log.WithError(err).Error("read best height")
		return
	}

	s.send(ctx, addr, &message.Version{Version: protocolVersion, BestHeight: height, AddrFrom: s.address})
}

func (s *Server) sendAddr(ctx context.Context, addr string) {
	s.send(ctx, addr, &message.Addr{AddrList: s.peers.Snapshot()})
}

func (s *Server) sendBlock(ctx context.Context, addr string, block *blockchain.Block) {
	s.send(ctx, addr, &message.BlockData{AddrFrom: s.address, Block: block})
}

func (s *Server) sendInv(ctx context.Context, addr, kind string, items [][]byte) {
	s.send(ctx, addr, &message.Inv{AddrFrom: s.address, Type: kind, Items: items})
}

func (s *Server) sendGetBlocks(ctx context.Context, addr string) {
	s.send(ctx, addr, &message.GetBlocks{AddrFrom: s.address})
}

func (s *Server) sendGetData(ctx context.Context, addr, kind string, id []byte) {
	s.send(ctx, addr, &message.GetData{AddrFrom: s.address, Type: kind, ID: id})
}

func (s *Server) sendTx(ctx context.Context, addr string, tx *blockchain.Transaction) {
	s.send(ctx, addr, &message.Tx{AddrFrom: s.address, Transaction: tx})
}

// SendTx submits a transaction to the node at addr
func (s *Server) SendTx(ctx context.Context, addr string, tx *blockchain.Transaction) error {
	return s.sendMessage(ctx, addr, &message.Tx{AddrFrom: s.address, Transaction: tx})
}
