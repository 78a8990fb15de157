package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ============================================================================
// 兑换签名器
// ============================================================================
//
// 被签消息把 wallet / amount / nonce / expiresAt 四个字段按定长打包后
// keccak256，再套一层以太坊个人签名前缀。四个字段绑死在同一个摘要里，
// 篡改任何一个字段整条签名即失效；nonce 把签名钉死在链上唯一的一个
// 消费槽位上（合约拒绝 nonce 复用）。
//
// ============================================================================

var ErrNoSignerKey = errors.New("签名私钥未配置")

type ClaimSigner struct {
	key *ecdsa.PrivateKey
}

// NewClaimSigner 从 hex 私钥构造签名器（生产环境私钥应由 KMS 托管）
func NewClaimSigner(privHex string) (*ClaimSigner, error) {
	if privHex == "" {
		return nil, ErrNoSignerKey
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("解析签名私钥失败: %w", err)
	}
	return &ClaimSigner{key: key}, nil
}

// Address 签名服务的链上地址（合约侧用它做 ecrecover 校验）
func (s *ClaimSigner) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

// HashClaim 计算兑换消息摘要
// 打包格式与合约侧 abi.encodePacked(wallet, amount, nonce, expiresAt) 一致
func HashClaim(wallet common.Address, amount int64, nonce uint64, expiresAt int64) []byte {
	packed := make([]byte, 0, 20+32*3)
	packed = append(packed, wallet.Bytes()...)
	packed = append(packed, common.LeftPadBytes(new(big.Int).SetInt64(amount).Bytes(), 32)...)
	packed = append(packed, common.LeftPadBytes(new(big.Int).SetUint64(nonce).Bytes(), 32)...)
	packed = append(packed, common.LeftPadBytes(new(big.Int).SetInt64(expiresAt).Bytes(), 32)...)
	inner := crypto.Keccak256(packed)

	// 以太坊个人签名前缀，防止签名内容被当作裸交易重放
	prefixed := append([]byte("\x19Ethereum Signed Message:\n32"), inner...)
	return crypto.Keccak256(prefixed)
}

// SignClaim 对兑换消息签名，返回 65 字节签名与摘要
func (s *ClaimSigner) SignClaim(wallet common.Address, amount int64, nonce uint64, expiresAt int64) (sig []byte, digest []byte, err error) {
	digest = HashClaim(wallet, amount, nonce, expiresAt)
	sig, err = crypto.Sign(digest, s.key)
	if err != nil {
		return nil, nil, fmt.Errorf("签名失败: %w", err)
	}
	// 合约侧 ecrecover 期望 v ∈ {27, 28}
	sig[64] += 27
	return sig, digest, nil
}

// RecoverSigner 从签名恢复签名者地址（测试与排查工具用）
func RecoverSigner(digest, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, errors.New("签名长度不合法")
	}
	raw := make([]byte, 65)
	copy(raw, sig)
	if raw[64] >= 27 {
		raw[64] -= 27
	}
	pub, err := crypto.SigToPub(digest, raw)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}
