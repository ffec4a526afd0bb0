package api

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/matheus3301/tradechat/internal/backend"
	"github.com/matheus3301/tradechat/internal/bus"
	"github.com/matheus3301/tradechat/internal/directory"
	"github.com/matheus3301/tradechat/internal/outbox"
	"github.com/matheus3301/tradechat/internal/rpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// encodeFunc turns a bus event into a stream payload. Returning false skips
// the event.
type encodeFunc func(bus.Event) (any, bool)

func payloadAsIs(evt bus.Event) (any, bool) { return evt.Payload, true }

// forward streams bus events under namespace until the client goes away.
func forward(stream rpc.EventStream, b *bus.Bus, session, namespace string, encode encodeFunc) error {
	ch, unsub := b.Subscribe(namespace, 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			payload, ok := encode(evt)
			if !ok {
				continue
			}
			raw, err := json.Marshal(payload)
			if err != nil {
				return grpcstatus.Errorf(codes.Internal, "encode %s: %v", evt.Kind, err)
			}
			if err := stream.Send(&rpc.Event{
				ID:         uuid.NewString(),
				Session:    session,
				Kind:       evt.Kind,
				OccurredAt: evt.Timestamp,
				Payload:    raw,
			}); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

// toStatus maps domain errors to gRPC codes at the edge.
func toStatus(op string, err error) error {
	switch {
	case errors.Is(err, outbox.ErrEmptyText):
		return grpcstatus.Errorf(codes.InvalidArgument, "%s: %v", op, err)
	case errors.Is(err, directory.ErrChatNotFound), errors.Is(err, directory.ErrMessageNotFound), backend.IsNotFound(err):
		return grpcstatus.Errorf(codes.NotFound, "%s: %v", op, err)
	case errors.Is(err, directory.ErrPostNotAllowed):
		return grpcstatus.Errorf(codes.PermissionDenied, "%s: %v", op, err)
	default:
		return grpcstatus.Errorf(codes.Unavailable, "%s: %v", op, err)
	}
}
