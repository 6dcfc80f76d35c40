package ipc

import (
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
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func call[Req, Resp any](c *Client, method string, req Req) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(serviceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start starts a capture session.
func (c *Client) Start() (*StartResponse, error) {
	return call[StartRequest, StartResponse](c, "Start", StartRequest{})
}

// Stop ends the capture session.
func (c *Client) Stop(discard bool) (*StopResponse, error) {
	return call[StopRequest, StopResponse](c, "Stop", StopRequest{Discard: discard})
}

// Shutdown asks the daemon process to exit.
func (c *Client) Shutdown() (*ShutdownResponse, error) {
	return call[ShutdownRequest, ShutdownResponse](c, "Shutdown", ShutdownRequest{})
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusRequest, StatusResponse](c, "Status", StatusRequest{})
}

// Modes lists capture modes.
func (c *Client) Modes() (*ModesResponse, error) {
	return call[ModesRequest, ModesResponse](c, "Modes", ModesRequest{})
}

// SelectMode applies a capture mode by name.
func (c *Client) SelectMode(name string) (*SelectModeResponse, error) {
	return call[SelectModeRequest, SelectModeResponse](c, "SelectMode", SelectModeRequest{Name: name})
}

// Configure updates tagging and upload settings.
func (c *Client) Configure(req ConfigureRequest) (*ConfigureResponse, error) {
	return call[ConfigureRequest, ConfigureResponse](c, "Configure", req)
}

// Uploads lists ledger records.
func (c *Client) Uploads(req UploadsRequest) (*UploadsResponse, error) {
	return call[UploadsRequest, UploadsResponse](c, "Uploads", req)
}

// UploadsClear removes ledger records.
func (c *Client) UploadsClear(status string) (*UploadsClearResponse, error) {
	return call[UploadsClearRequest, UploadsClearResponse](c, "UploadsClear", UploadsClearRequest{Status: status})
}

// LogTail returns log events from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	return call[LogTailRequest, LogTailResponse](c, "LogTail", req)
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call(serviceName+".TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return &resp, err
	}
	return &resp, nil
}
