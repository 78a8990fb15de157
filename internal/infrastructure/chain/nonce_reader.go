package chain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"

	"minegame/internal/config"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

var ErrNonceUnavailable = errors.New("读取链上 nonce 失败")

// NonceReader 外部 nonce 读取接口
// nonce 的权威来源是链上兑换合约，本服务只读不写；
// 测试里用内存实现替换
type NonceReader interface {
	NonceOf(ctx context.Context, wallet common.Address) (uint64, error)
}

// EthNonceReader 通过 eth_call 读取兑换合约的 nonces(address) 视图
type EthNonceReader struct {
	client   *ethclient.Client
	contract common.Address
	selector []byte
}

// NewEthNonceReader 连接链节点并构造 nonce 读取器
func NewEthNonceReader(cfg *config.ChainConfig) (*EthNonceReader, error) {
	if !common.IsHexAddress(cfg.ClaimContract) {
		return nil, fmt.Errorf("兑换合约地址不合法: %s", cfg.ClaimContract)
	}
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("连接链节点失败: %w", err)
	}
	log.Printf("链节点连接成功: %s", cfg.RPCURL)
	return &EthNonceReader{
		client:   client,
		contract: common.HexToAddress(cfg.ClaimContract),
		// nonces(address) 的 4 字节函数选择器
		selector: crypto.Keccak256([]byte("nonces(address)"))[:4],
	}, nil
}

// NonceOf 读取指定钱包当前的兑换 nonce
func (r *EthNonceReader) NonceOf(ctx context.Context, wallet common.Address) (uint64, error) {
	data := make([]byte, 0, 36)
	data = append(data, r.selector...)
	data = append(data, common.LeftPadBytes(wallet.Bytes(), 32)...)

	msg := ethereum.CallMsg{
		To:   &r.contract,
		Data: data,
	}
	out, err := r.client.CallContract(ctx, msg, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNonceUnavailable, err)
	}
	if len(out) == 0 {
		return 0, ErrNonceUnavailable
	}
	return new(big.Int).SetBytes(out).Uint64(), nil
}

// Close 释放底层 RPC 连接
func (r *EthNonceReader) Close() {
	r.client.Close()
}
