package network

import (
	"context"

	log "github.com/sirupsen/logrus"

	"mini-coin-node/blockchain"
	"mini-coin-node/network/message"
)

// mine drains a snapshot of the mempool into blocks. Each pass mines the
// transactions that still verify; the burst ends when the snapshot is used up
// or a pass finds nothing valid. The mempool is not cleared wholesale: only the
// snapshot's ids leave it, so transactions that arrive meanwhile wait for the
// next burst. A first pass with nothing valid leaves the mempool untouched.
func (s *Server) mine(ctx context.Context) error {
	s.minerMu.Lock()
	defer s.minerMu.Unlock()

	snapshot := s.mempool.Snapshot()
	working := snapshot
	var mined []string

	for len(working) > 0 {
		var txs []*blockchain.Transaction
		var rest []*blockchain.Transaction

		for _, tx := range working {
			ok, err := s.ledger.VerifyTransaction(tx)
			if err != nil {
				s.mempool.Remove(mined...)
				return err
			}
			if ok {
				txs = append(txs, tx)
			} else {
				rest = append(rest, tx)
			}
		}

		if len(txs) == 0 {
			if len(mined) == 0 {
				return nil
			}
			break
		}

		cbtx, err := blockchain.NewCoinbaseTX(s.cfg.MiningAddress, "")
		if err != nil {
			s.mempool.Remove(mined...)
			return err
		}

		newBlock, err := s.ledger.MineBlock(append(txs, cbtx))
		if err != nil {
			s.mempool.Remove(mined...)
			return err
		}
		for _, tx := range txs {
			mined = append(mined, tx.IDString())
		}
		log.WithFields(log.Fields{"height": newBlock.Height, "transactions": len(txs)}).Infof("New block %x is mined", newBlock.Hash)

		if err := s.utxo.Reindex(); err != nil {
			s.mempool.Remove(mined...)
			return err
		}

		for _, node := range s.knownPeers() {
			s.sendInv(ctx, node, message.KindBlock, [][]byte{newBlock.Hash})
		}

		working = rest
	}

	ids := make([]string, 0, len(snapshot))
	for _, tx := range snapshot {
		ids = append(ids, tx.IDString())
	}
	s.mempool.Remove(ids...)

	return nil
}
