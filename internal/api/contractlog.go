package api

import (
	"context"

	"github.com/matheus3301/tradechat/internal/contractlog"
	"github.com/matheus3301/tradechat/internal/rpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// ContractLogService implements rpc.ContractLogServer by passing queries
// through to the backend.
type ContractLogService struct {
	logs *contractlog.Client
}

// NewContractLogService creates a new contract log service.
func NewContractLogService(logs *contractlog.Client) *ContractLogService {
	return &ContractLogService{logs: logs}
}

func (s *ContractLogService) All(ctx context.Context, _ *rpc.ListLogsRequest) (*rpc.ListLogsResponse, error) {
	return logsResponse(s.logs.All(ctx))
}

func (s *ContractLogService) ByDateRange(ctx context.Context, req *rpc.ListLogsRequest) (*rpc.ListLogsResponse, error) {
	if req.Start.IsZero() || req.End.IsZero() {
		return nil, grpcstatus.Error(codes.InvalidArgument, "start and end are required")
	}
	if req.End.Before(req.Start) {
		return nil, grpcstatus.Error(codes.InvalidArgument, "end is before start")
	}
	return logsResponse(s.logs.ByDateRange(ctx, req.Start, req.End))
}

func (s *ContractLogService) ByEventType(ctx context.Context, req *rpc.ListLogsRequest) (*rpc.ListLogsResponse, error) {
	if req.EventType == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "event type is required")
	}
	return logsResponse(s.logs.ByEventType(ctx, req.EventType))
}

func (s *ContractLogService) ByAddress(ctx context.Context, req *rpc.ListLogsRequest) (*rpc.ListLogsResponse, error) {
	if req.Address == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "address is required")
	}
	return logsResponse(s.logs.ByAddress(ctx, req.Address))
}

func (s *ContractLogService) DailySummary(ctx context.Context, req *rpc.DailySummaryRequest) (*rpc.DailySummaryResponse, error) {
	if req.Date.IsZero() {
		return nil, grpcstatus.Error(codes.InvalidArgument, "date is required")
	}
	sum, err := s.logs.DailySummary(ctx, req.Date)
	if err != nil {
		return nil, toStatus("daily summary", err)
	}
	return &rpc.DailySummaryResponse{Summary: sum}, nil
}

func logsResponse(logs []contractlog.Log, err error) (*rpc.ListLogsResponse, error) {
	if err != nil {
		return nil, toStatus("contract logs", err)
	}
	return &rpc.ListLogsResponse{Logs: logs}, nil
}
