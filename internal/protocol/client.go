package protocol

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidServerResponse is returned when the server's response cannot
// be interpreted for the request that was sent (§7).
var ErrInvalidServerResponse = fmt.Errorf("invalid server response")

// Client speaks one request/response round trip per call, opening and
// closing a fresh connection each time — grounded on
// original_source/project-3/src/client.rs's KvsClient.
type Client struct {
	addr    string
	timeout time.Duration
	log     *zap.SugaredLogger
}

// NewClient builds a Client dialing addr. log may be nil.
func NewClient(addr string, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{addr: addr, timeout: 5 * time.Second, log: log}
}

func (c *Client) roundTrip(req string) (string, error) {
	conn, err := net.DialTimeout("tcp", c.addr, c.timeout)
	if err != nil {
		c.log.Errorw("dial failed", "addr", c.addr, "err", err)
		return "", fmt.Errorf("dial %s: %w", c.addr, err)
	}
	defer conn.Close()

	if _, err := fmt.Fprintf(conn, "%s\n", req); err != nil {
		c.log.Errorw("write request failed", "addr", c.addr, "err", err)
		return "", err
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		c.log.Errorw("read response failed", "addr", c.addr, "err", err)
		return "", fmt.Errorf("%w: %v", ErrInvalidServerResponse, err)
	}
	return strings.TrimRight(line, "\n"), nil
}

// Set sends `set <key> <value>`; any non-OK response is an error.
func (c *Client) Set(key, value string) error {
	resp, err := c.roundTrip(fmt.Sprintf("set %s %s", key, value))
	if err != nil {
		return err
	}
	if resp != RespOK {
		return fmt.Errorf("%w: %s", ErrInvalidServerResponse, resp)
	}
	return nil
}

// Get sends `get <key>`. A literal "Key not found" response surfaces as
// ok=false, not an error.
func (c *Client) Get(key string) (value string, ok bool, err error) {
	resp, err := c.roundTrip(fmt.Sprintf("get %s", key))
	if err != nil {
		return "", false, err
	}
	if resp == RespKeyNotFound {
		return "", false, nil
	}
	return resp, true, nil
}

// Remove sends `rm <key>`; any non-OK response (commonly "Key not found")
// is surfaced as an error.
func (c *Client) Remove(key string) error {
	resp, err := c.roundTrip(fmt.Sprintf("rm %s", key))
	if err != nil {
		return err
	}
	if resp != RespOK {
		return fmt.Errorf("%s", resp)
	}
	return nil
}
