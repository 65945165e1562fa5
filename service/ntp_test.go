package service

import (
	"testing"
	"time"

	bc "tbb/blockchain"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestNTPClockFirstAnswerWins(t *testing.T) {
	remote := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	var asked []string
	clock := NewNTPClock([]string{"down.example", "up.example", "never.example"}, 0)
	clock.query = func(server string, timeout time.Duration) (time.Time, error) {
		asked = append(asked, server)
		require.Equal(t, DefaultNTPTimeout, timeout)
		if server == "down.example" {
			return time.Time{}, xerrors.New("i/o timeout")
		}
		return remote, nil
	}

	require.Equal(t, remote, clock.Now())
	require.Equal(t, []string{"down.example", "up.example"}, asked)
}

func TestNTPClockFallback(t *testing.T) {
	local := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewNTPClock([]string{"a.example", "b.example"}, time.Second)
	clock.Fallback = FixedClock(local)
	clock.query = func(string, time.Duration) (time.Time, error) {
		return time.Time{}, xerrors.New("unreachable")
	}
	require.Equal(t, local, clock.Now())

	clock.Servers = nil
	require.Equal(t, local, clock.Now())
}

func TestPersistUsesClock(t *testing.T) {
	remote := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	clock := NewNTPClock([]string{"up.example"}, 0)
	clock.query = func(string, time.Duration) (time.Time, error) {
		return remote, nil
	}
	s, err := Rebuild(testGenesis(), openTestLog(t), WithClock(clock))
	require.NoError(t, err)
	require.NoError(t, s.AddTx(bc.NewTx("alice", "bob", 1, "")))
	_, err = s.Persist()
	require.NoError(t, err)
	require.Equal(t, uint64(remote.Unix()), s.LatestBlock().Header.Time)
}
