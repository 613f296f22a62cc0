package ownership

import (
	"testing"

	"github.com/alicebob/miniredis"
	"github.com/stretchr/testify/require"

	"github.com/lumenarr/seedr/core"
)

func redisFixture(t *testing.T, tag string) (*miniredis.Miniredis, *RedisRegistry) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	r, err := NewRedisRegistry(Config{Addr: s.Addr(), InstanceTag: tag})
	require.NoError(t, err)
	return s, r
}

func TestRedisRegistryClaimAndMembership(t *testing.T) {
	require := require.New(t)

	s, r := redisFixture(t, "radarr-4k")
	h := core.InfoHashFixture()

	require.Equal(No, r.IsOwnedByMe(h))

	r.Claim(h)
	require.Equal(Yes, r.IsOwnedByMe(h))

	// Claims carry a TTL so abandoned releases eventually expire.
	require.True(s.TTL(ownerSetKey(h)) > 0)
}

func TestRedisRegistryReleaseLastOwner(t *testing.T) {
	require := require.New(t)

	s, r1 := redisFixture(t, "radarr-4k")
	r2, err := NewRedisRegistry(Config{Addr: s.Addr(), InstanceTag: "radarr-hd"})
	require.NoError(err)

	h := core.InfoHashFixture()
	r1.Claim(h)
	r2.Claim(h)

	// Another instance still owns the release.
	require.Equal(No, r1.Release(h))
	require.Equal(No, r1.IsOwnedByMe(h))
	require.Equal(Yes, r2.IsOwnedByMe(h))

	// Last owner out deletes the set.
	require.Equal(Yes, r2.Release(h))
	require.False(s.Exists(ownerSetKey(h)))
}

func TestRedisRegistryDegradesToUnknown(t *testing.T) {
	require := require.New(t)

	s, r := redisFixture(t, "radarr-4k")
	h := core.InfoHashFixture()
	r.Claim(h)

	s.Close()

	require.Equal(Unknown, r.IsOwnedByMe(h))
	require.Equal(Unknown, r.Release(h))
	require.Error(r.TestConnection())
}

func TestRedisRegistryTestConnection(t *testing.T) {
	_, r := redisFixture(t, "radarr-4k")
	require.NoError(t, r.TestConnection())
}

func TestNewRedisRegistryValidation(t *testing.T) {
	require := require.New(t)

	_, err := NewRedisRegistry(Config{InstanceTag: "x"})
	require.Error(err)

	_, err = NewRedisRegistry(Config{Addr: "localhost:6379", InstanceTag: ""})
	require.Error(err)

	_, err = NewRedisRegistry(Config{Addr: "localhost:6379", InstanceTag: "bad tag!"})
	require.Error(err)
}

func TestValidateTag(t *testing.T) {
	require := require.New(t)

	require.NoError(ValidateTag("radarr-4k_01"))
	require.Error(ValidateTag(""))
	require.Error(ValidateTag("has space"))
	require.Error(ValidateTag("has/slash"))
}

func TestNoopRegistry(t *testing.T) {
	require := require.New(t)

	r := NewNoopRegistry()
	r.Claim("H")
	require.Equal(Unknown, r.IsOwnedByMe("H"))
	require.Equal(Unknown, r.Release("H"))
	require.NoError(r.TestConnection())
}
