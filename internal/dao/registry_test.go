package dao

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()

	aave, err := r.Lookup("AAVE")
	require.NoError(t, err)
	assert.Equal(t, "aavedao.eth", aave.Identifier)
	assert.Equal(t, "snapshot", aave.Source)

	lido, err := r.ByIdentifier("lido-snapshot.eth")
	require.NoError(t, err)
	assert.Equal(t, "lido", lido.Key)

	uni, err := r.ByName("uniswap")
	require.NoError(t, err)
	assert.Equal(t, "uniswap", uni.Key)

	keys := []string{}
	for _, item := range r.All() {
		keys = append(keys, item.Key)
	}
	assert.Equal(t, []string{"aave", "arbitrum", "balancer", "gnosis", "lido", "uniswap"}, keys)
}

func TestLookupMissing(t *testing.T) {
	_, err := Default().Resolve("compound")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "compound", nf.Ref)
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry([]Config{
		{Key: "a", Identifier: "x.eth"},
		{Key: "b", Identifier: "x.eth"},
	})
	assert.Error(t, err)

	_, err = NewRegistry([]Config{
		{Key: "a", Identifier: "x.eth"},
		{Key: "A", Identifier: "y.eth"},
	})
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daos.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
daos:
  - key: ens
    name: ENS
    identifier: ens.eth
`), 0o600))

	r, err := LoadFile(path)
	require.NoError(t, err)
	ens, err := r.Lookup("ens")
	require.NoError(t, err)
	assert.Equal(t, "ENS", ens.Name)

	_, err = r.Lookup("aave")
	assert.Error(t, err)
}
