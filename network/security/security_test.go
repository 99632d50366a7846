package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestBlacklistFilter 测试黑名单过滤器
func TestBlacklistFilter(t *testing.T) {
	bf := NewBlacklistFilter("10.0.0.1")

	t.Run("StaticBan", func(t *testing.T) {
		assert.False(t, bf.ShouldAllow("10.0.0.1:5000"))
		assert.True(t, bf.ShouldAllow("10.0.0.2:5000"))
	})

	t.Run("TemporaryBanExpires", func(t *testing.T) {
		bf.AddToBlacklist("10.0.0.3", 20*time.Millisecond)
		assert.False(t, bf.ShouldAllow("10.0.0.3:1"))

		time.Sleep(40 * time.Millisecond)
		assert.True(t, bf.ShouldAllow("10.0.0.3:1"))
	})

	t.Run("PermanentBan", func(t *testing.T) {
		bf.AddToBlacklist("10.0.0.4:7000", 0)
		assert.False(t, bf.ShouldAllow("10.0.0.4:1"))
		assert.False(t, bf.ShouldAllow("10.0.0.1:5000"))
	})
}

// TestRateLimitFilter 测试速率限制过滤器
func TestRateLimitFilter(t *testing.T) {
	t.Run("RejectsBurstOverLimit", func(t *testing.T) {
		rlf := NewRateLimitFilter(1, 3)

		for i := 0; i < 3; i++ {
			assert.True(t, rlf.ShouldAllow("127.0.0.1:4000"), "request %d", i)
		}
		assert.False(t, rlf.ShouldAllow("127.0.0.1:4001"))

		// 其他IP不受影响
		assert.True(t, rlf.ShouldAllow("127.0.0.2:4000"))
	})

	t.Run("ZeroRateDisables", func(t *testing.T) {
		rlf := NewRateLimitFilter(0, 0)
		for i := 0; i < 100; i++ {
			assert.True(t, rlf.ShouldAllow("127.0.0.1:4000"))
		}
	})
}

func TestChain(t *testing.T) {
	var chain Filter = NewChain(NewBlacklistFilter("10.0.0.9"), NewRateLimitFilter(1, 1))
	assert.Equal(t, "chain", chain.GetName())

	assert.False(t, chain.ShouldAllow("10.0.0.9:1"))
	assert.True(t, chain.ShouldAllow("10.0.0.8:1"))
	assert.False(t, chain.ShouldAllow("10.0.0.8:2"))
	assert.True(t, NewChain().ShouldAllow("10.0.0.8:1"))
}

func TestExtractIP(t *testing.T) {
	assert.Equal(t, "127.0.0.1", extractIP("127.0.0.1:3000"))
	assert.Equal(t, "::1", extractIP("[::1]:3000"))
	assert.Equal(t, "localhost", extractIP("localhost"))
}
