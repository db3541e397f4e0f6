// Package remote is the gRPC client side of the drivesync.RecordStore
// service. It implements recordstore.Store, so the sync engines run against
// a server exactly as they do against an in-process store.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/drivesync/internal/common"
	"github.com/dmitrijs2005/drivesync/internal/logging"
	"github.com/dmitrijs2005/drivesync/internal/recordstore"
	"github.com/dmitrijs2005/drivesync/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var ErrUnavailable = errors.New("server unavailable")

// TokenSource yields the current access token, "" when signed out.
type TokenSource interface {
	Token() string
}

type Client struct {
	conn   *grpc.ClientConn
	tokens TokenSource
	log    logging.Logger
}

var _ recordstore.Store = (*Client)(nil)

// Dial connects to target. Extra options are appended after the defaults,
// so callers may override transport credentials or the dialer.
func Dial(target string, tokens TokenSource, log logging.Logger, opts ...grpc.DialOption) (*Client, error) {
	c := &Client{tokens: tokens, log: logging.OrNop(log).With("module", "grpc_client")}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
		grpc.WithStreamInterceptor(c.streamAccessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

// token returns the access token or ErrAuthRequired, before any network
// traffic.
func (c *Client) token() (string, error) {
	if c.tokens == nil {
		return "", common.ErrAuthRequired
	}
	t := c.tokens.Token()
	if t == "" {
		return "", common.ErrAuthRequired
	}
	return t, nil
}

func (c *Client) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if method == rpc.MethodPing {
		return invoker(ctx, method, req, reply, cc, opts...)
	}
	token, err := c.token()
	if err != nil {
		return err
	}
	return invoker(withAccessToken(ctx, token), method, req, reply, cc, opts...)
}

func (c *Client) streamAccessTokenInterceptor(
	ctx context.Context,
	desc *grpc.StreamDesc,
	cc *grpc.ClientConn,
	method string,
	streamer grpc.Streamer,
	opts ...grpc.CallOption,
) (grpc.ClientStream, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	return streamer(withAccessToken(ctx, token), desc, cc, method, opts...)
}

func (c *Client) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", common.ErrorNotFound, st.Message())
	case codes.Unauthenticated:
		switch st.Message() {
		case common.ErrTokenExpired.Error():
			return common.ErrTokenExpired
		case "missing token", common.ErrAuthRequired.Error():
			return common.ErrAuthRequired
		}
		return common.ErrInvalidToken
	case codes.PermissionDenied:
		return fmt.Errorf("%w: %s", common.ErrorUnauthorized, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", common.ErrorValidation, st.Message())
	case codes.Aborted:
		return fmt.Errorf("%w: %s", common.ErrSubscriptionLost, st.Message())
	case codes.Canceled:
		return context.Canceled
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

func (c *Client) Ping(ctx context.Context) error {
	resp := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(ctx, rpc.MethodPing, &emptypb.Empty{}, resp); err != nil {
		return c.mapError(err)
	}
	if resp.GetValue() != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (c *Client) Get(ctx context.Context, collection, id string) (recordstore.Record, error) {
	req, err := rpc.EncodeRef(collection, id)
	if err != nil {
		return recordstore.Record{}, err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, rpc.MethodGet, req, resp); err != nil {
		return recordstore.Record{}, c.mapError(err)
	}
	return rpc.DecodeRecord(resp)
}

func (c *Client) Insert(ctx context.Context, collection string, fields recordstore.Document) (string, error) {
	req, err := rpc.EncodeInsert(collection, fields)
	if err != nil {
		return "", err
	}
	resp := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(ctx, rpc.MethodInsert, req, resp); err != nil {
		return "", c.mapError(err)
	}
	return resp.GetValue(), nil
}

func (c *Client) UpdateFields(ctx context.Context, collection, id string, fields recordstore.Document) error {
	req, err := rpc.EncodeUpdate(collection, id, fields)
	if err != nil {
		return err
	}
	if err := c.conn.Invoke(ctx, rpc.MethodUpdateFields, req, new(emptypb.Empty)); err != nil {
		return c.mapError(err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, collection, id string) error {
	req, err := rpc.EncodeRef(collection, id)
	if err != nil {
		return err
	}
	if err := c.conn.Invoke(ctx, rpc.MethodDelete, req, new(emptypb.Empty)); err != nil {
		return c.mapError(err)
	}
	return nil
}

// LiveQuery opens a server stream. Stream failures, including a server
// refusing the query, arrive as a terminal SubscriptionError snapshot.
func (c *Client) LiveQuery(ctx context.Context, q recordstore.Query) (recordstore.Subscription, error) {
	req, err := rpc.EncodeQuery(q)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := c.conn.NewStream(streamCtx, rpc.LiveQueryStreamDesc, rpc.MethodLiveQuery)
	if err != nil {
		cancel()
		return nil, c.mapError(err)
	}
	// io.EOF means the server already finished the call; its status is
	// read by receive.
	if err := stream.SendMsg(req); err != nil && !errors.Is(err, io.EOF) {
		cancel()
		return nil, c.mapError(err)
	}
	if err := stream.CloseSend(); err != nil {
		cancel()
		return nil, c.mapError(err)
	}

	feed := recordstore.NewFeed()
	feed.OnClose(cancel)
	feed.CloseWith(ctx)

	go c.receive(streamCtx, q.Collection, stream, feed)
	return feed, nil
}

func (c *Client) receive(ctx context.Context, collection string, stream grpc.ClientStream, feed *recordstore.Feed) {
	for {
		msg := new(structpb.Struct)
		err := stream.RecvMsg(msg)
		if err != nil {
			if ctx.Err() != nil {
				_ = feed.Close()
				return
			}
			if errors.Is(err, io.EOF) {
				err = errors.New("stream ended by server")
			} else {
				err = c.mapError(err)
			}
			c.log.Warn(ctx, "live query stream failed", "collection", collection, "error", err)
			feed.Fail(&common.SubscriptionError{Collection: collection, Err: err})
			return
		}

		records, err := rpc.DecodeSnapshot(msg)
		if err != nil {
			feed.Fail(&common.SubscriptionError{Collection: collection, Err: err})
			return
		}
		if !feed.Push(recordstore.Snapshot{Records: records}) {
			return
		}
	}
}
