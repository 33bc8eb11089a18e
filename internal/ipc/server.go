package ipc

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"
	"time"

	"carecount/internal/daemon"
	"carecount/internal/extract"
	"carecount/internal/logging"
	"carecount/internal/photo"
	"carecount/internal/services"
	"carecount/internal/visit"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("CareCount", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("ipc server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the listener and waits for in-flight connections.
func (s *Server) Close() error {
	s.cancel()
	err := s.listener.Close()
	s.wg.Wait()
	_ = os.RemoveAll(s.path)
	return err
}

// service implements the RPC surface. Every method follows the net/rpc
// signature: request by value, response by pointer, error return.
type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) VisitStart(req VisitStartRequest, resp *VisitStartResponse) error {
	volunteer := strings.TrimSpace(req.Volunteer)
	if volunteer == "" {
		return errors.New("volunteer required")
	}
	ctx := services.WithVolunteer(s.ctx, volunteer)
	v, err := s.daemon.Manager().Start(ctx, volunteer)
	if err != nil {
		return err
	}
	resp.Visit = summarizeVisit(v)
	return nil
}

func (s *service) VisitHeartbeat(req VisitHeartbeatRequest, resp *VisitHeartbeatResponse) error {
	if req.VisitID == "" {
		return errors.New("visit_id required")
	}
	v, err := s.daemon.Manager().Heartbeat(services.WithVisitID(s.ctx, req.VisitID), req.VisitID)
	if err != nil {
		return err
	}
	resp.Visit = summarizeVisit(v)
	return nil
}

func (s *service) VisitClose(req VisitCloseRequest, resp *VisitCloseResponse) error {
	if req.VisitID == "" {
		return errors.New("visit_id required")
	}
	v, err := s.daemon.Manager().Close(services.WithVisitID(s.ctx, req.VisitID), req.VisitID)
	if err != nil {
		return err
	}
	resp.Visit = summarizeVisit(v)
	return nil
}

func (s *service) VisitStatus(req VisitStatusRequest, resp *VisitStatusResponse) error {
	var (
		v   *visit.Visit
		err error
	)
	switch {
	case req.VisitID != "":
		v, err = s.daemon.Manager().Lookup(s.ctx, req.VisitID)
	case req.Volunteer != "":
		v, err = s.daemon.Manager().Active(s.ctx, req.Volunteer)
	default:
		return errors.New("visit_id or volunteer required")
	}
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			resp.Found = false
			return nil
		}
		return err
	}
	resp.Found = true
	resp.Visit = summarizeVisit(v)
	return nil
}

func (s *service) VisitItems(req VisitItemsRequest, resp *VisitItemsResponse) error {
	if req.VisitID == "" {
		return errors.New("visit_id required")
	}
	items, err := s.daemon.Manager().Items(s.ctx, req.VisitID)
	if err != nil {
		return err
	}
	for _, item := range items {
		resp.Items = append(resp.Items, summarizeItem(item))
	}
	return nil
}

func (s *service) ItemLog(req ItemLogRequest, resp *ItemLogResponse) error {
	if req.VisitID == "" {
		return errors.New("visit_id required")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return errors.New("item name required")
	}
	source := extract.SourceManual
	if req.Source != "" {
		parsed, ok := extract.ParseSource(req.Source)
		if !ok {
			return fmt.Errorf("unknown item source %q", req.Source)
		}
		source = parsed
	}
	ctx := services.WithVisitID(s.ctx, req.VisitID)
	v, err := s.daemon.Manager().LogItem(ctx, req.VisitID, visit.Item{
		Name:     name,
		Quantity: req.Quantity,
		Category: req.Category,
		Unit:     req.Unit,
		Barcode:  req.Barcode,
		Source:   string(source),
	}, req.ClientRef)
	if err != nil {
		return err
	}
	resp.Visit = summarizeVisit(v)
	return nil
}

func (s *service) Identify(req IdentifyRequest, resp *IdentifyResponse) error {
	if req.ImageBase64 == "" {
		return errors.New("image payload required")
	}
	raw, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		return fmt.Errorf("decode image payload: %w", err)
	}
	ctx := s.ctx
	if req.VisitID != "" {
		ctx = services.WithVisitID(ctx, req.VisitID)
	}
	if req.Volunteer != "" {
		ctx = services.WithVolunteer(ctx, req.Volunteer)
	}
	resolution, err := s.daemon.Resolver().Resolve(ctx, photo.Payload{
		Bytes:       raw,
		ContentType: req.ContentType,
	})
	if err != nil {
		return err
	}
	resp.Resolution = summarizeResolution(resolution)
	return nil
}

func (s *service) Impact(req ImpactRequest, resp *ImpactResponse) error {
	day := strings.TrimSpace(req.Day)
	if day == "" {
		day = s.daemon.Manager().Now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", day); err != nil {
		return fmt.Errorf("invalid day %q: %w", day, err)
	}
	summary, err := s.daemon.Store().ImpactForDay(s.ctx, day)
	if err != nil {
		return err
	}
	resp.Summary = summary
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.StartedAt = status.StartedAt
	resp.DBPath = status.DBPath
	resp.LockFilePath = status.LockFilePath
	resp.OpenVisits = status.OpenVisits
	return nil
}
