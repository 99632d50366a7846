package network

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"mini-coin-node/blockchain"
	"mini-coin-node/network/connection"
	"mini-coin-node/network/message"
	"mini-coin-node/wallet"
)

// RequestSignature asks the node at addr, which holds the wallet for
// walletAddress, to sign tx and returns the signed transaction
func (s *Server) RequestSignature(ctx context.Context, addr, walletAddress string, tx *blockchain.Transaction) (*blockchain.Transaction, error) {
	log.WithFields(log.Fields{"peer": addr, "wallet": walletAddress}).Info("send sign request")

	data, err := message.Encode(&message.SignRequest{
		AddrFrom:      s.address,
		WalletAddress: walletAddress,
		Transaction:   tx,
	})
	if err != nil {
		return nil, err
	}

	resp, err := s.dialer.Call(ctx, addr, data, s.cfg.SignTimeout)
	if err != nil {
		if errors.Is(err, connection.ErrDialFailed) {
			s.peers.Remove(addr)
		}
		return nil, err
	}

	msg, err := message.Decode(resp)
	if err != nil {
		return nil, err
	}

	res, ok := msg.(*message.SignResponse)
	if !ok {
		return nil, message.NewError(message.ErrProtocol, "unexpected response "+msg.Command(), nil)
	}
	if !res.Success {
		return nil, message.NewError(message.ErrSigning, res.ErrorMessage, nil)
	}
	if res.Transaction == nil {
		return nil, message.NewError(message.ErrProtocol, "sign response without a transaction", nil)
	}

	return res.Transaction, nil
}

// prepareSignResponse signs the requested transaction with the local wallet.
// Every outcome, including failure, is a response.
func (s *Server) prepareSignResponse(m *message.SignRequest) *message.SignResponse {
	fail := func(format string, args ...interface{}) *message.SignResponse {
		msg := fmt.Sprintf(format, args...)
		log.WithField("wallet", m.WalletAddress).Warn(msg)
		return &message.SignResponse{AddrFrom: s.address, Transaction: m.Transaction, Success: false, ErrorMessage: msg}
	}

	if s.wallets == nil {
		return fail("wallet not found: %s", m.WalletAddress)
	}

	w, err := s.wallets.GetWallet(m.WalletAddress)
	if errors.Is(err, wallet.ErrNotFound) {
		return fail("wallet not found: %s", m.WalletAddress)
	}
	if err != nil {
		return fail("signing error: %v", err)
	}

	if m.Transaction == nil {
		return fail("signing error: no transaction to sign")
	}

	tx := *m.Transaction
	tx.Vin = append([]blockchain.TXInput(nil), m.Transaction.Vin...)
	if err := s.ledger.SignTransaction(&tx, w.SecretKey, s.signer); err != nil {
		return fail("signing error: %v", err)
	}

	return &message.SignResponse{AddrFrom: s.address, Transaction: &tx, Success: true}
}
