package ipc

import (
	"encoding/json"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, client: rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) call(method string, req, resp any) error {
	return c.client.Call(serviceName+"."+method, req, resp)
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// List returns queue entries matching statuses.
func (c *Client) List(statuses []string) (*ListResponse, error) {
	var resp ListResponse
	if err := c.call("List", ListRequest{Statuses: statuses}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Show returns a single entry.
func (c *Client) Show(localID string) (*ShowResponse, error) {
	var resp ShowResponse
	if err := c.call("Show", ShowRequest{LocalID: localID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Enqueue submits a seizure document to the queue.
func (c *Client) Enqueue(payload json.RawMessage) (*EnqueueResponse, error) {
	var resp EnqueueResponse
	if err := c.call("Enqueue", EnqueueRequest{Payload: payload}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Sync runs a pass and waits for it to finish.
func (c *Client) Sync() (*SyncResponse, error) {
	var resp SyncResponse
	if err := c.call("Sync", SyncRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Retry resets failed entries to pending.
func (c *Client) Retry(localIDs []string) (*RetryResponse, error) {
	var resp RetryResponse
	if err := c.call("Retry", RetryRequest{LocalIDs: localIDs}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Discard removes entries.
func (c *Client) Discard(localIDs []string) (*DiscardResponse, error) {
	var resp DiscardResponse
	if err := c.call("Discard", DiscardRequest{LocalIDs: localIDs}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns daemon log lines.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.call("LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification asks the daemon to send a test notification.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.call("TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
