package useragent

import (
	"crypto/rand"
	"math/big"
)

// Default is the desktop Chrome User-Agent sent when nothing else is configured.
const Default = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/94.0.4606.61 Safari/537.36"

// Pool holds the User-Agents one of which is sent per request.
type Pool struct {
	uas []string
}

// NewPool creates a new User-Agent pool. Blank entries are dropped; if
// nothing remains the pool holds only Default.
func NewPool(uas []string) *Pool {
	copied := make([]string, 0, len(uas))
	for _, ua := range uas {
		if ua != "" {
			copied = append(copied, ua)
		}
	}
	if len(copied) == 0 {
		copied = append(copied, Default)
	}
	return &Pool{uas: copied}
}

// Pick returns a User-Agent from the pool. A single-entry pool always
// returns that entry; larger pools are sampled with crypto/rand.
func (p *Pool) Pick() string {
	if len(p.uas) == 1 {
		return p.uas[0]
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(p.uas))))
	if err != nil {
		return p.uas[0]
	}
	return p.uas[n.Int64()]
}

// All returns a copy of the pool's User-Agents.
func (p *Pool) All() []string {
	copied := make([]string, len(p.uas))
	copy(copied, p.uas)
	return copied
}
