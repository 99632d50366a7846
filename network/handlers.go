package network

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"

	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"

	"mini-coin-node/network/connection"
	"mini-coin-node/network/message"
)

// dispatch routes a decoded request to its handler. conn is used only to
// answer a SignRequest.
func (s *Server) dispatch(ctx context.Context, msg message.Message, conn *connection.Connection) error {
	switch m := msg.(type) {
	case *message.Addr:
		s.handleAddr(m)
		return nil
	case *message.Version:
		return s.handleVersion(ctx, m)
	case *message.BlockData:
		return s.handleBlock(ctx, m)
	case *message.Inv:
		s.handleInv(ctx, m)
		return nil
	case *message.GetBlocks:
		return s.handleGetBlocks(ctx, m)
	case *message.GetData:
		return s.handleGetData(ctx, m)
	case *message.Tx:
		return s.handleTx(ctx, m)
	case *message.SignRequest:
		return s.handleSignRequest(m, conn)
	case *message.SignResponse:
		log.WithField("peer", m.AddrFrom).Info("ignoring unsolicited sign response")
		return nil
	default:
		return message.NewError(message.ErrProtocol, fmt.Sprintf("no handler for %T", msg), nil)
	}
}

// handleAddr 合并收到的节点地址
func (s *Server) handleAddr(m *message.Addr) {
	for _, node := range m.AddrList {
		s.peers.Add(node)
	}
	log.Infof("there are %d known nodes", s.peers.Len())
}

// handleVersion 比较链高度, 决定请求区块还是回复版本信息
func (s *Server) handleVersion(ctx context.Context, m *message.Version) error {
	myBestHeight, err := s.ledger.GetBestHeight()
	if err != nil {
		return err
	}

	if myBestHeight < m.BestHeight {
		s.sendGetBlocks(ctx, m.AddrFrom)
	} else if myBestHeight > m.BestHeight {
		s.sendVersion(ctx, m.AddrFrom)
	}

	s.sendAddr(ctx, m.AddrFrom)

	if s.peers.Add(m.AddrFrom) {
		log.WithField("peer", m.AddrFrom).Info("registered new node")
	}
	return nil
}

// handleBlock 保存区块, 然后请求下一个正在传输的区块或重建 UTXO 集合
func (s *Server) handleBlock(ctx context.Context, m *message.BlockData) error {
	if m.Block == nil {
		return message.NewError(message.ErrProtocol, "block message without a block", nil)
	}

	if err := s.ledger.AddBlock(m.Block); err != nil {
		return fmt.Errorf("add block %x: %w", m.Block.Hash, err)
	}
	log.WithFields(log.Fields{"peer": m.AddrFrom, "height": m.Block.Height}).Infof("Added block %x", m.Block.Hash)

	if next, ok := s.inTransit.PopFront(); ok {
		s.sendGetData(ctx, m.AddrFrom, message.KindBlock, next)
		return nil
	}

	return s.utxo.Reindex()
}

// handleInv 处理库存通知
func (s *Server) handleInv(ctx context.Context, m *message.Inv) {
	log.WithField("peer", m.AddrFrom).Infof("Received inventory with %d %s", len(m.Items), m.Type)

	if len(m.Items) == 0 {
		log.WithField("peer", m.AddrFrom).Warn("ignoring empty inventory")
		return
	}

	switch m.Type {
	case message.KindBlock:
		blockHash := m.Items[0]

		remaining := make([][]byte, 0, len(m.Items)-1)
		for _, b := range m.Items {
			if !bytes.Equal(b, blockHash) {
				remaining = append(remaining, b)
			}
		}
		s.inTransit.Replace(remaining)

		s.sendGetData(ctx, m.AddrFrom, message.KindBlock, blockHash)

	case message.KindTx:
		txID := m.Items[0]

		if tx, ok := s.mempool.Get(hex.EncodeToString(txID)); !ok || len(tx.ID) == 0 {
			s.sendGetData(ctx, m.AddrFrom, message.KindTx, txID)
		}

	default:
		log.WithField("peer", m.AddrFrom).Warnf("unknown inventory type %q", m.Type)
	}
}

// handleGetBlocks 回复本地所有区块哈希
func (s *Server) handleGetBlocks(ctx context.Context, m *message.GetBlocks) error {
	hashes, err := s.ledger.GetBlockHashes()
	if err != nil {
		return err
	}

	s.sendInv(ctx, m.AddrFrom, message.KindBlock, hashes)
	return nil
}

// handleGetData 回复请求的区块或交易
func (s *Server) handleGetData(ctx context.Context, m *message.GetData) error {
	switch m.Type {
	case message.KindBlock:
		block, err := s.ledger.GetBlock(m.ID)
		if err != nil {
			return fmt.Errorf("get block %x: %w", m.ID, err)
		}
		s.sendBlock(ctx, m.AddrFrom, block)

	case message.KindTx:
		txID := hex.EncodeToString(m.ID)
		tx, ok := s.mempool.Get(txID)
		if !ok {
			log.WithFields(log.Fields{"peer": m.AddrFrom, "tx": txID}).Warn("requested transaction is not in the mempool")
			return nil
		}
		s.sendTx(ctx, m.AddrFrom, tx)

	default:
		return message.NewError(message.ErrProtocol, fmt.Sprintf("unknown data type %q", m.Type), nil)
	}
	return nil
}

// handleTx 将交易加入内存池, 转发给其他节点, 并在需要时挖矿
func (s *Server) handleTx(ctx context.Context, m *message.Tx) error {
	tx := m.Transaction
	if tx == nil || len(tx.ID) == 0 {
		return message.NewError(message.ErrProtocol, "tx message without a transaction id", nil)
	}

	if !s.mempool.Put(tx) {
		log.WithField("tx", tx.IDString()).Warn("mempool is full, dropping transaction")
		return nil
	}
	log.WithFields(log.Fields{"peer": m.AddrFrom, "tx": tx.IDString()}).Info("Received transaction")

	for _, node := range s.knownPeers() {
		if node != m.AddrFrom {
			s.sendInv(ctx, node, message.KindTx, [][]byte{tx.ID})
		}
	}

	if s.cfg.MiningAddress == "" || s.mempool.Len() == 0 {
		return nil
	}

	if log.IsLevelEnabled(log.DebugLevel) {
		log.Debugf("Current mempool: %s", spew.Sdump(s.mempool.IDs()))
	}

	return s.mine(ctx)
}

// handleSignRequest answers a signing request on the connection it arrived on
func (s *Server) handleSignRequest(m *message.SignRequest, conn *connection.Connection) error {
	log.WithFields(log.Fields{"peer": m.AddrFrom, "wallet": m.WalletAddress}).Info("Received sign request")

	data, err := message.Encode(s.prepareSignResponse(m))
	if err != nil {
		return err
	}

	return conn.Reply(data)
}
