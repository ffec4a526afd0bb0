package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Dial connects to a daemon listening on socketPath.
func Dial(socketPath string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return conn, nil
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, service, method string, in any) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, fullMethod(service, method), in, out, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

// EventReceiver is the client side of a Watch call.
type EventReceiver interface {
	Recv() (*Event, error)
}

type eventReceiver struct {
	grpc.ClientStream
}

func (r *eventReceiver) Recv() (*Event, error) {
	e := new(Event)
	if err := r.RecvMsg(e); err != nil {
		return nil, err
	}
	return e, nil
}

func openWatch(ctx context.Context, cc grpc.ClientConnInterface, desc *grpc.ServiceDesc) (EventReceiver, error) {
	stream, err := cc.NewStream(ctx, &desc.Streams[0], fullMethod(desc.ServiceName, watchMethod), grpc.CallContentSubtype(CodecName))
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&WatchRequest{}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &eventReceiver{stream}, nil
}

// IsEOF reports whether err marks the normal end of a Watch stream.
func IsEOF(err error) bool {
	return errors.Is(err, io.EOF)
}

// SessionClient calls SessionService.
type SessionClient struct{ cc grpc.ClientConnInterface }

func NewSessionClient(cc grpc.ClientConnInterface) *SessionClient { return &SessionClient{cc} }

func (c *SessionClient) GetStatus(ctx context.Context) (*StatusResponse, error) {
	return invoke[StatusResponse](ctx, c.cc, SessionServiceName, "GetStatus", &StatusRequest{})
}

func (c *SessionClient) Refresh(ctx context.Context) (*RefreshResponse, error) {
	return invoke[RefreshResponse](ctx, c.cc, SessionServiceName, "Refresh", &RefreshRequest{})
}

func (c *SessionClient) Watch(ctx context.Context) (EventReceiver, error) {
	return openWatch(ctx, c.cc, &SessionServiceDesc)
}

// NotificationClient calls NotificationService.
type NotificationClient struct{ cc grpc.ClientConnInterface }

func NewNotificationClient(cc grpc.ClientConnInterface) *NotificationClient {
	return &NotificationClient{cc}
}

func (c *NotificationClient) List(ctx context.Context, limit int) (*ListNotificationsResponse, error) {
	return invoke[ListNotificationsResponse](ctx, c.cc, NotificationServiceName, "List", &ListNotificationsRequest{Limit: limit})
}

func (c *NotificationClient) MarkRead(ctx context.Context, id string) (*MarkReadResponse, error) {
	return invoke[MarkReadResponse](ctx, c.cc, NotificationServiceName, "MarkRead", &MarkReadRequest{ID: id})
}

func (c *NotificationClient) MarkAllRead(ctx context.Context) (*MarkReadResponse, error) {
	return invoke[MarkReadResponse](ctx, c.cc, NotificationServiceName, "MarkAllRead", &MarkAllReadRequest{})
}

func (c *NotificationClient) Watch(ctx context.Context) (EventReceiver, error) {
	return openWatch(ctx, c.cc, &NotificationServiceDesc)
}

// DirectoryClient calls DirectoryService.
type DirectoryClient struct{ cc grpc.ClientConnInterface }

func NewDirectoryClient(cc grpc.ClientConnInterface) *DirectoryClient { return &DirectoryClient{cc} }

func (c *DirectoryClient) ListChats(ctx context.Context) (*ListChatsResponse, error) {
	return invoke[ListChatsResponse](ctx, c.cc, DirectoryServiceName, "ListChats", &ListChatsRequest{})
}

func (c *DirectoryClient) OpenChat(ctx context.Context, chatID string) (*OpenChatResponse, error) {
	return invoke[OpenChatResponse](ctx, c.cc, DirectoryServiceName, "OpenChat", &OpenChatRequest{ChatID: chatID})
}

func (c *DirectoryClient) ListMessages(ctx context.Context, req *ListMessagesRequest) (*ListMessagesResponse, error) {
	return invoke[ListMessagesResponse](ctx, c.cc, DirectoryServiceName, "ListMessages", req)
}

func (c *DirectoryClient) SendText(ctx context.Context, chatID, text string) (*SendTextResponse, error) {
	return invoke[SendTextResponse](ctx, c.cc, DirectoryServiceName, "SendText", &SendTextRequest{ChatID: chatID, Text: text})
}

func (c *DirectoryClient) Pin(ctx context.Context, req *PinRequest) (*PinResponse, error) {
	return invoke[PinResponse](ctx, c.cc, DirectoryServiceName, "Pin", req)
}

func (c *DirectoryClient) React(ctx context.Context, req *ReactRequest) (*ReactResponse, error) {
	return invoke[ReactResponse](ctx, c.cc, DirectoryServiceName, "React", req)
}

func (c *DirectoryClient) Shared(ctx context.Context, chatID string) (*SharedResponse, error) {
	return invoke[SharedResponse](ctx, c.cc, DirectoryServiceName, "Shared", &SharedRequest{ChatID: chatID})
}

func (c *DirectoryClient) Watch(ctx context.Context) (EventReceiver, error) {
	return openWatch(ctx, c.cc, &DirectoryServiceDesc)
}

// ContractLogClient calls ContractLogService.
type ContractLogClient struct{ cc grpc.ClientConnInterface }

func NewContractLogClient(cc grpc.ClientConnInterface) *ContractLogClient {
	return &ContractLogClient{cc}
}

func (c *ContractLogClient) All(ctx context.Context) (*ListLogsResponse, error) {
	return invoke[ListLogsResponse](ctx, c.cc, ContractLogServiceName, "All", &ListLogsRequest{})
}

func (c *ContractLogClient) ByDateRange(ctx context.Context, req *ListLogsRequest) (*ListLogsResponse, error) {
	return invoke[ListLogsResponse](ctx, c.cc, ContractLogServiceName, "ByDateRange", req)
}

func (c *ContractLogClient) ByEventType(ctx context.Context, eventType string) (*ListLogsResponse, error) {
	return invoke[ListLogsResponse](ctx, c.cc, ContractLogServiceName, "ByEventType", &ListLogsRequest{EventType: eventType})
}

func (c *ContractLogClient) ByAddress(ctx context.Context, address string) (*ListLogsResponse, error) {
	return invoke[ListLogsResponse](ctx, c.cc, ContractLogServiceName, "ByAddress", &ListLogsRequest{Address: address})
}

func (c *ContractLogClient) DailySummary(ctx context.Context, date time.Time) (*DailySummaryResponse, error) {
	return invoke[DailySummaryResponse](ctx, c.cc, ContractLogServiceName, "DailySummary", &DailySummaryRequest{Date: date})
}
