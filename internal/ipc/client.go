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

// VisitStart opens a visit for the volunteer.
func (c *Client) VisitStart(req VisitStartRequest) (*VisitStartResponse, error) {
	var resp VisitStartResponse
	if err := c.client.Call("CareCount.VisitStart", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VisitHeartbeat refreshes a visit's activity.
func (c *Client) VisitHeartbeat(req VisitHeartbeatRequest) (*VisitHeartbeatResponse, error) {
	var resp VisitHeartbeatResponse
	if err := c.client.Call("CareCount.VisitHeartbeat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VisitClose ends a visit manually.
func (c *Client) VisitClose(req VisitCloseRequest) (*VisitCloseResponse, error) {
	var resp VisitCloseResponse
	if err := c.client.Call("CareCount.VisitClose", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VisitStatus looks up a visit by id or volunteer.
func (c *Client) VisitStatus(req VisitStatusRequest) (*VisitStatusResponse, error) {
	var resp VisitStatusResponse
	if err := c.client.Call("CareCount.VisitStatus", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VisitItems lists a visit's logged items.
func (c *Client) VisitItems(req VisitItemsRequest) (*VisitItemsResponse, error) {
	var resp VisitItemsResponse
	if err := c.client.Call("CareCount.VisitItems", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ItemLog attaches a confirmed item to a visit.
func (c *Client) ItemLog(req ItemLogRequest) (*ItemLogResponse, error) {
	var resp ItemLogResponse
	if err := c.client.Call("CareCount.ItemLog", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Identify runs the identification pipeline on one photo.
func (c *Client) Identify(req IdentifyRequest) (*IdentifyResponse, error) {
	var resp IdentifyResponse
	if err := c.client.Call("CareCount.Identify", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Impact aggregates one local day of logged donations.
func (c *Client) Impact(req ImpactRequest) (*ImpactResponse, error) {
	var resp ImpactResponse
	if err := c.client.Call("CareCount.Impact", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves daemon runtime information.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("CareCount.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
