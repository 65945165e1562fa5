package service

import (
	"time"

	"github.com/beevik/ntp"
	"go.dedis.ch/onet/v3/log"
)

// NTPClock asks the configured NTP servers for the time, in order, and
// falls back to Fallback when none answers.
type NTPClock struct {
	Servers  []string
	Timeout  time.Duration
	Fallback Clock

	query func(server string, timeout time.Duration) (time.Time, error)
}

func NewNTPClock(servers []string, timeout time.Duration) *NTPClock {
	if timeout <= 0 {
		timeout = DefaultNTPTimeout
	}
	return &NTPClock{
		Servers:  servers,
		Timeout:  timeout,
		Fallback: SystemClock,
		query:    getRemoteTime,
	}
}

func getRemoteTime(server string, timeout time.Duration) (time.Time, error) {
	resp, err := ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return time.Time{}, err
	}
	if err := resp.Validate(); err != nil {
		return time.Time{}, err
	}
	return time.Now().Add(resp.ClockOffset), nil
}

func (c *NTPClock) Now() time.Time {
	for _, server := range c.Servers {
		now, err := c.query(server, c.Timeout)
		if err != nil {
			log.Warnf("ntp %s: %v", server, err)
			continue
		}
		return now
	}
	return c.Fallback.Now()
}
