package command

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dmap "github.com/beam-cloud/redismap/pkg/abstractions/map"
	"github.com/beam-cloud/redismap/pkg/common"
	"github.com/beam-cloud/redismap/pkg/types"
)

type cliTestDetails struct {
	mr      *miniredis.Miniredis
	hashKey string
}

func setupCli(t *testing.T) cliTestDetails {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("CONFIG_JSON", "")
	t.Setenv("REDISMAP_HASH_KEY", "")
	t.Setenv("REDISMAP_REDIS_ADDRS", "")

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	return cliTestDetails{mr: mr, hashKey: uuid.New().String()}
}

func (d cliTestDetails) run(args ...string) (string, error) {
	var out bytes.Buffer

	app := App()
	app.Writer = &out
	app.ErrWriter = &out

	base := []string{"redismap", "--redis-addr", d.mr.Addr(), "--hash-key", d.hashKey}
	err := app.Run(append(base, args...))
	return out.String(), err
}

func TestCliFieldCommands(t *testing.T) {
	d := setupCli(t)

	out, err := d.run("put", "a", "1")
	require.NoError(t, err)
	assert.Equal(t, absent+"\n", out)

	out, err = d.run("put", "a", "-5")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)
	assert.Equal(t, "-5", d.mr.HGet(d.hashKey, "a"))

	out, err = d.run("get", "a")
	require.NoError(t, err)
	assert.Equal(t, "-5\n", out)

	_, err = d.run("get", "missing")
	assert.ErrorContains(t, err, "not found")

	out, err = d.run("get", "--default", "99", "missing")
	require.NoError(t, err)
	assert.Equal(t, "99\n", out)

	out, err = d.run("remove", "a")
	require.NoError(t, err)
	assert.Equal(t, "-5\n", out)

	out, err = d.run("rm", "a")
	require.NoError(t, err)
	assert.Equal(t, absent+"\n", out)
}

func TestCliArgumentValidation(t *testing.T) {
	d := setupCli(t)

	_, err := d.run("put", "a", "ten")
	assert.ErrorContains(t, err, "not an integer")

	_, err = d.run("put", "a")
	assert.Error(t, err)

	_, err = d.run("get")
	assert.Error(t, err)

	assert.False(t, d.mr.Exists(d.hashKey))
}

func TestCliListing(t *testing.T) {
	d := setupCli(t)
	d.mr.HSet(d.hashKey, "b", "2")
	d.mr.HSet(d.hashKey, "a", "1")

	out, err := d.run("size")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	out, err = d.run("list")
	require.NoError(t, err)
	assert.Equal(t, "  a => 1\n  b => 2\n", out)

	out, err = d.run("ls", "--keys")
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", out)

	out, err = d.run("list", "--values")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2"}, strings.Fields(out))

	out, err = d.run("list", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 1, "b": 2}`, out)

	_, err = d.run("clear")
	require.NoError(t, err)
	assert.False(t, d.mr.Exists(d.hashKey))
}

func TestCliSurfacesDecodeErrors(t *testing.T) {
	d := setupCli(t)
	d.mr.HSet(d.hashKey, "bad", "x")

	_, err := d.run("get", "bad")
	require.Error(t, err)
	assert.True(t, (&types.ErrDecode{}).From(err))
}

func TestCliRedisUnavailable(t *testing.T) {
	d := setupCli(t)
	d.mr.Close()

	// Only json keys apply once CONFIG_JSON is set, so connect retries stay zero
	t.Setenv("CONFIG_JSON", `{"database": {"redis": {"max_retries": -1}}}`)
	_, err := d.run("--redis-mode", "single", "size")
	require.Error(t, err)
	assert.True(t, common.IsStoreUnavailable(err))
}

func TestCliDemo(t *testing.T) {
	d := setupCli(t)
	d.mr.HSet(d.hashKey, "stale", "x")

	out, err := d.run("--swap-mode", "optimistic", "demo")
	require.NoError(t, err, out)

	assert.Contains(t, out, "Map is empty, isTrue=true")
	assert.Contains(t, out, "Old value from map with key [6], equals to 6, isTrue=true")
	assert.Contains(t, out, "Key [10], value [10], isTrue=true")
	assert.Contains(t, out, "  10 => 10")
	assert.Contains(t, out, "Map entry set: [1=1 10=10 3=3 4=4 5=5 6=7 8=8 9=9]")
	assert.NotContains(t, out, "isTrue=false")
	assert.False(t, d.mr.Exists(d.hashKey))
}

// sizeLiar reports a fixed size regardless of contents.
type sizeLiar struct {
	dmap.Map
}

func (sizeLiar) Size(context.Context) (int64, error) {
	return 42, nil
}

func TestRunDemoReportsFailedChecks(t *testing.T) {
	d := setupCli(t)

	rdb, err := common.NewRedisClient(types.RedisConfig{Addrs: []string{d.mr.Addr()}, Mode: types.RedisModeSingle})
	require.NoError(t, err)
	defer rdb.Close()

	m, err := dmap.NewRedisMap(rdb, types.MapConfig{HashKey: d.hashKey})
	require.NoError(t, err)

	var out bytes.Buffer
	err = RunDemo(context.Background(), sizeLiar{Map: m}, &out)
	assert.ErrorContains(t, err, "2 checks failed")
	assert.Contains(t, out.String(), "Size = 6, isTrue=false")
}
