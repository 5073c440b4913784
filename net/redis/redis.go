package redis

import (
	"github.com/mediocregopher/radix/v3"
	"gitlab.com/vitanet-network/settlement_api/config"
)

// Client wraps a radix connection pool behind the small command surface the
// rest of the system needs.
type Client struct {
	cfg  config.RedisConfig
	pool *radix.Pool
}

// NewClient creates a disconnected client for the given configuration.
func NewClient(cfg config.RedisConfig) *Client {
	return &Client{cfg: cfg}
}

// Connect opens the connection pool.
func (c *Client) Connect() error {
	poolSize := c.cfg.PoolSize
	if poolSize == 0 {
		poolSize = 4
	}
	opts := []radix.PoolOpt{}
	if c.cfg.Password != "" {
		connFunc := func(network, addr string) (radix.Conn, error) {
			return radix.Dial(network, addr, radix.DialAuthPass(c.cfg.Password))
		}
		opts = append(opts, radix.PoolConnFunc(connFunc))
	}
	pool, err := radix.NewPool("tcp", c.cfg.Address, poolSize, opts...)
	if err != nil {
		return err
	}
	c.pool = pool
	return nil
}

// Disconnect closes the pool.
func (c *Client) Disconnect() {
	if c.pool != nil {
		_ = c.pool.Close()
	}
}

// Exec runs a single redis command, decoding the reply into rcv when given.
func (c *Client) Exec(rcv interface{}, cmd string, args ...string) error {
	return c.pool.Do(radix.Cmd(rcv, cmd, args...))
}

// Eval runs a lua script with the given keys and arguments.
func (c *Client) Eval(rcv interface{}, script string, numKeys int, args ...string) error {
	return c.pool.Do(radix.NewEvalScript(numKeys, script).Cmd(rcv, args...))
}
