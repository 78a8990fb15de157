package signer

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 测试专用私钥，不要用于任何真实环境
const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func newTestSigner(t *testing.T) *ClaimSigner {
	s, err := NewClaimSigner(testKeyHex)
	require.NoError(t, err)
	return s
}

func TestNewClaimSigner(t *testing.T) {
	t.Run("正常私钥", func(t *testing.T) {
		s, err := NewClaimSigner(testKeyHex)
		require.NoError(t, err)
		assert.NotEqual(t, common.Address{}, s.Address())
	})

	t.Run("带0x前缀", func(t *testing.T) {
		s1, err := NewClaimSigner(testKeyHex)
		require.NoError(t, err)
		s2, err := NewClaimSigner("0x" + testKeyHex)
		require.NoError(t, err)
		assert.Equal(t, s1.Address(), s2.Address())
	})

	t.Run("空私钥", func(t *testing.T) {
		_, err := NewClaimSigner("")
		assert.ErrorIs(t, err, ErrNoSignerKey)
	})

	t.Run("非法私钥", func(t *testing.T) {
		_, err := NewClaimSigner("not-a-key")
		assert.Error(t, err)
	})
}

func TestSignAndRecover(t *testing.T) {
	s := newTestSigner(t)
	wallet := common.HexToAddress("0x8ba1f109551bD432803012645Ac136ddd64DBA72")
	expiresAt := time.Now().Add(30 * time.Minute).Unix()

	sig, digest, err := s.SignClaim(wallet, 12345, 7, expiresAt)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	require.Len(t, digest, 32)

	// 合约侧 ecrecover 期望 v ∈ {27, 28}
	assert.Contains(t, []byte{27, 28}, sig[64])

	recovered, err := RecoverSigner(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), recovered)
}

// 重复签发必须返回字节级相同的签名：回放路径上客户端拿到的
// 永远是同一份数据，无从挑选
func TestSignDeterministic(t *testing.T) {
	s := newTestSigner(t)
	wallet := common.HexToAddress("0x8ba1f109551bD432803012645Ac136ddd64DBA72")

	sig1, digest1, err := s.SignClaim(wallet, 500, 3, 1900000000)
	require.NoError(t, err)
	sig2, digest2, err := s.SignClaim(wallet, 500, 3, 1900000000)
	require.NoError(t, err)

	assert.Equal(t, digest1, digest2)
	assert.Equal(t, sig1, sig2)
}

// 四个字段绑死在同一个摘要里，篡改任何一个字段摘要必然变化
func TestHashClaimFieldBinding(t *testing.T) {
	wallet := common.HexToAddress("0x8ba1f109551bD432803012645Ac136ddd64DBA72")
	base := HashClaim(wallet, 100, 1, 1900000000)

	otherWallet := common.HexToAddress("0x0000000000000000000000000000000000000001")
	assert.NotEqual(t, base, HashClaim(otherWallet, 100, 1, 1900000000))
	assert.NotEqual(t, base, HashClaim(wallet, 101, 1, 1900000000))
	assert.NotEqual(t, base, HashClaim(wallet, 100, 2, 1900000000))
	assert.NotEqual(t, base, HashClaim(wallet, 100, 1, 1900000001))
}

func TestRecoverSignerRejectsBadInput(t *testing.T) {
	s := newTestSigner(t)
	wallet := common.HexToAddress("0x8ba1f109551bD432803012645Ac136ddd64DBA72")

	sig, digest, err := s.SignClaim(wallet, 100, 1, 1900000000)
	require.NoError(t, err)

	_, err = RecoverSigner(digest, sig[:64])
	assert.Error(t, err)

	// 篡改签名后恢复出的地址不再是签名服务地址
	tampered := make([]byte, 65)
	copy(tampered, sig)
	tampered[0] ^= 0xff
	recovered, err := RecoverSigner(digest, tampered)
	if err == nil {
		assert.NotEqual(t, s.Address(), recovered)
	}
}
