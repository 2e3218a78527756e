package pbdd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/opencode-ai/pbd/internal/dispatcher"
	"github.com/opencode-ai/pbd/internal/interaction"
	"github.com/opencode-ai/pbd/internal/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client talks to a running pbdd.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the daemon at addr.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// NewClient wraps an existing connection.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// SendCommand submits a token and returns its outcome. Rejections come back
// as gRPC status errors.
func (c *Client) SendCommand(ctx context.Context, raw string) (dispatcher.Outcome, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, MethodSendCommand, wrapperspb.String(raw), out); err != nil {
		return dispatcher.Outcome{}, err
	}
	var outcome dispatcher.Outcome
	if err := fromStruct(out, &outcome); err != nil {
		return dispatcher.Outcome{}, fmt.Errorf("failed to decode outcome: %w", err)
	}
	return outcome, nil
}

// GetStatus returns the machine status.
func (c *Client) GetStatus(ctx context.Context) (interaction.Status, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, MethodGetStatus, &emptypb.Empty{}, out); err != nil {
		return interaction.Status{}, err
	}
	var st interaction.Status
	if err := fromStruct(out, &st); err != nil {
		return interaction.Status{}, fmt.Errorf("failed to decode status: %w", err)
	}
	return st, nil
}

// SwitchAction makes the numbered action current.
func (c *Client) SwitchAction(ctx context.Context, number int) (interaction.Status, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, MethodSwitchAction, wrapperspb.Int32(int32(number)), out); err != nil {
		return interaction.Status{}, err
	}
	var st interaction.Status
	if err := fromStruct(out, &st); err != nil {
		return interaction.Status{}, fmt.Errorf("failed to decode status: %w", err)
	}
	return st, nil
}

// ListEvents returns up to limit recent events.
func (c *Client) ListEvents(ctx context.Context, limit int) ([]*models.Event, error) {
	out := new(structpb.ListValue)
	if err := c.conn.Invoke(ctx, MethodListEvents, wrapperspb.Int32(int32(limit)), out); err != nil {
		return nil, err
	}
	data, err := json.Marshal(out.AsSlice())
	if err != nil {
		return nil, err
	}
	var events []*models.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}
	return events, nil
}

// Ping returns the daemon's liveness report.
func (c *Client) Ping(ctx context.Context) (map[string]any, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, MethodPing, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// StreamOutcomes calls fn for every outcome until ctx ends or the stream
// breaks.
func (c *Client) StreamOutcomes(ctx context.Context, fn func(dispatcher.Outcome)) error {
	stream, err := c.conn.NewStream(ctx, &InteractionServiceDesc.Streams[0], MethodStreamOutcomes)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}

	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		var out dispatcher.Outcome
		if err := fromStruct(msg, &out); err != nil {
			return fmt.Errorf("failed to decode outcome: %w", err)
		}
		fn(out)
	}
}
