package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-coin-node/config"
)

// setupTestEnvironment 在临时目录中准备节点配置, 返回配置文件路径
func setupTestEnvironment(t *testing.T) string {
	t.Helper()

	t.Setenv(config.NodeIDEnv, "3000")

	dir := t.TempDir()
	path := filepath.Join(dir, "node.toml")
	content := "data_dir = \"" + filepath.ToSlash(dir) + "\"\nlog_level = \"error\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

// runCLI 执行一条命令并返回输出
func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	app := NewApp(&out)
	err := app.Run(append([]string{"mini-coin-node", "--config", configPath}, args...))
	return out.String(), err
}

func createWallet(t *testing.T, configPath string) string {
	t.Helper()

	output, err := runCLI(t, configPath, "createwallet")
	require.NoError(t, err)
	require.Contains(t, output, "Your new address: ")

	return strings.TrimSpace(strings.TrimPrefix(output, "Your new address: "))
}

// TestCLI_CreateWallet 测试创建钱包功能
func TestCLI_CreateWallet(t *testing.T) {
	configPath := setupTestEnvironment(t)

	first := createWallet(t, configPath)
	second := createWallet(t, configPath)

	output, err := runCLI(t, configPath, "listaddresses")
	require.NoError(t, err)

	listed := strings.Fields(output)
	assert.ElementsMatch(t, []string{first, second}, listed)
}

// TestCLI_CreateBlockchain 测试创建区块链和查询余额
func TestCLI_CreateBlockchain(t *testing.T) {
	configPath := setupTestEnvironment(t)
	address := createWallet(t, configPath)

	output, err := runCLI(t, configPath, "createblockchain", "--address", address)
	require.NoError(t, err)
	assert.Contains(t, output, "Done!")

	output, err = runCLI(t, configPath, "getbalance", "--address", address)
	require.NoError(t, err)
	assert.Equal(t, "Balance of '"+address+"': 100\n", output)

	t.Run("second genesis is refused", func(t *testing.T) {
		_, err := runCLI(t, configPath, "createblockchain", "--address", address)
		assert.Error(t, err)
	})
}

// TestCLI_Send 测试本地挖矿转账
func TestCLI_Send(t *testing.T) {
	configPath := setupTestEnvironment(t)
	from := createWallet(t, configPath)
	to := createWallet(t, configPath)

	_, err := runCLI(t, configPath, "createblockchain", "--address", from)
	require.NoError(t, err)

	output, err := runCLI(t, configPath, "send", "--from", from, "--to", to, "--amount", "30", "--mine")
	require.NoError(t, err)
	assert.Contains(t, output, "Success!")

	output, err = runCLI(t, configPath, "getbalance", "--address", from)
	require.NoError(t, err)
	assert.Contains(t, output, ": 170")

	output, err = runCLI(t, configPath, "getbalance", "--address", to)
	require.NoError(t, err)
	assert.Contains(t, output, ": 30")

	output, err = runCLI(t, configPath, "printchain")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(output, "PoW: true"))
	assert.Contains(t, output, "Height: 1")

	t.Run("insufficient funds", func(t *testing.T) {
		_, err := runCLI(t, configPath, "send", "--from", to, "--to", from, "--amount", "1000", "--mine")
		assert.Error(t, err)
	})
}

func TestCLI_InvalidInput(t *testing.T) {
	configPath := setupTestEnvironment(t)
	address := createWallet(t, configPath)

	tests := []struct {
		name string
		args []string
	}{
		{"getbalance bad address", []string{"getbalance", "--address", "not-an-address"}},
		{"getbalance missing address", []string{"getbalance"}},
		{"createblockchain bad address", []string{"createblockchain", "--address", "1111"}},
		{"send zero amount", []string{"send", "--from", address, "--to", address, "--amount", "0"}},
		{"startnode bad miner", []string{"startnode", "--miner", "nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, configPath, tt.args...)
			assert.Error(t, err)
		})
	}

	t.Run("missing node id", func(t *testing.T) {
		t.Setenv(config.NodeIDEnv, "")

		_, err := runCLI(t, configPath, "listaddresses")
		assert.ErrorIs(t, err, config.ErrNodeIDMissing)
	})
}
