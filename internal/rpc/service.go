package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// Service names as they appear in full method names.
const (
	SessionServiceName      = "tradechat.v1.SessionService"
	NotificationServiceName = "tradechat.v1.NotificationService"
	DirectoryServiceName    = "tradechat.v1.DirectoryService"
	ContractLogServiceName  = "tradechat.v1.ContractLogService"
)

// EventStream is the server side of a Watch call.
type EventStream interface {
	Send(*Event) error
	Context() context.Context
}

// SessionServer reports daemon and feed state.
type SessionServer interface {
	GetStatus(context.Context, *StatusRequest) (*StatusResponse, error)
	Refresh(context.Context, *RefreshRequest) (*RefreshResponse, error)
	Watch(*WatchRequest, EventStream) error
}

// NotificationServer exposes the Notification Store.
type NotificationServer interface {
	List(context.Context, *ListNotificationsRequest) (*ListNotificationsResponse, error)
	MarkRead(context.Context, *MarkReadRequest) (*MarkReadResponse, error)
	MarkAllRead(context.Context, *MarkAllReadRequest) (*MarkReadResponse, error)
	Watch(*WatchRequest, EventStream) error
}

// DirectoryServer exposes the Chat Directory Model.
type DirectoryServer interface {
	ListChats(context.Context, *ListChatsRequest) (*ListChatsResponse, error)
	OpenChat(context.Context, *OpenChatRequest) (*OpenChatResponse, error)
	ListMessages(context.Context, *ListMessagesRequest) (*ListMessagesResponse, error)
	SendText(context.Context, *SendTextRequest) (*SendTextResponse, error)
	Pin(context.Context, *PinRequest) (*PinResponse, error)
	React(context.Context, *ReactRequest) (*ReactResponse, error)
	Shared(context.Context, *SharedRequest) (*SharedResponse, error)
	Watch(*WatchRequest, EventStream) error
}

// ContractLogServer proxies the smart-contract log queries.
type ContractLogServer interface {
	All(context.Context, *ListLogsRequest) (*ListLogsResponse, error)
	ByDateRange(context.Context, *ListLogsRequest) (*ListLogsResponse, error)
	ByEventType(context.Context, *ListLogsRequest) (*ListLogsResponse, error)
	ByAddress(context.Context, *ListLogsRequest) (*ListLogsResponse, error)
	DailySummary(context.Context, *DailySummaryRequest) (*DailySummaryResponse, error)
}

var SessionServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionServiceName,
	HandlerType: (*SessionServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(SessionServiceName, "GetStatus", SessionServer.GetStatus),
		unary(SessionServiceName, "Refresh", SessionServer.Refresh),
	},
	Streams: []grpc.StreamDesc{
		watch(SessionServer.Watch),
	},
	Metadata: "tradechat/v1/session",
}

var NotificationServiceDesc = grpc.ServiceDesc{
	ServiceName: NotificationServiceName,
	HandlerType: (*NotificationServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(NotificationServiceName, "List", NotificationServer.List),
		unary(NotificationServiceName, "MarkRead", NotificationServer.MarkRead),
		unary(NotificationServiceName, "MarkAllRead", NotificationServer.MarkAllRead),
	},
	Streams: []grpc.StreamDesc{
		watch(NotificationServer.Watch),
	},
	Metadata: "tradechat/v1/notification",
}

var DirectoryServiceDesc = grpc.ServiceDesc{
	ServiceName: DirectoryServiceName,
	HandlerType: (*DirectoryServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(DirectoryServiceName, "ListChats", DirectoryServer.ListChats),
		unary(DirectoryServiceName, "OpenChat", DirectoryServer.OpenChat),
		unary(DirectoryServiceName, "ListMessages", DirectoryServer.ListMessages),
		unary(DirectoryServiceName, "SendText", DirectoryServer.SendText),
		unary(DirectoryServiceName, "Pin", DirectoryServer.Pin),
		unary(DirectoryServiceName, "React", DirectoryServer.React),
		unary(DirectoryServiceName, "Shared", DirectoryServer.Shared),
	},
	Streams: []grpc.StreamDesc{
		watch(DirectoryServer.Watch),
	},
	Metadata: "tradechat/v1/directory",
}

var ContractLogServiceDesc = grpc.ServiceDesc{
	ServiceName: ContractLogServiceName,
	HandlerType: (*ContractLogServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(ContractLogServiceName, "All", ContractLogServer.All),
		unary(ContractLogServiceName, "ByDateRange", ContractLogServer.ByDateRange),
		unary(ContractLogServiceName, "ByEventType", ContractLogServer.ByEventType),
		unary(ContractLogServiceName, "ByAddress", ContractLogServer.ByAddress),
		unary(ContractLogServiceName, "DailySummary", ContractLogServer.DailySummary),
	},
	Metadata: "tradechat/v1/contractlog",
}

func RegisterSessionServer(s grpc.ServiceRegistrar, srv SessionServer) {
	s.RegisterService(&SessionServiceDesc, srv)
}

func RegisterNotificationServer(s grpc.ServiceRegistrar, srv NotificationServer) {
	s.RegisterService(&NotificationServiceDesc, srv)
}

func RegisterDirectoryServer(s grpc.ServiceRegistrar, srv DirectoryServer) {
	s.RegisterService(&DirectoryServiceDesc, srv)
}

func RegisterContractLogServer(s grpc.ServiceRegistrar, srv ContractLogServer) {
	s.RegisterService(&ContractLogServiceDesc, srv)
}

func fullMethod(service, method string) string {
	return "/" + service + "/" + method
}

// unary adapts a typed server method to a grpc.MethodDesc.
func unary[S, Req, Resp any](service, method string, fn func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(service, method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return fn(srv.(S), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// watchMethod is the stream name shared by every service.
const watchMethod = "Watch"

func watch[S any](fn func(S, *WatchRequest, EventStream) error) grpc.StreamDesc {
	return grpc.StreamDesc{
		StreamName: watchMethod,
		Handler: func(srv any, stream grpc.ServerStream) error {
			in := new(WatchRequest)
			if err := stream.RecvMsg(in); err != nil {
				return err
			}
			return fn(srv.(S), in, &eventStream{stream})
		},
		ServerStreams: true,
	}
}

type eventStream struct {
	grpc.ServerStream
}

func (s *eventStream) Send(e *Event) error {
	return s.SendMsg(e)
}
