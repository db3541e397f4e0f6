package rpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/drivesync/internal/common"
	"github.com/dmitrijs2005/drivesync/internal/recordstore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func (s *Server) caller(ctx context.Context) (string, error) {
	owner, ok := OwnerFromContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, common.ErrAuthRequired.Error())
	}
	return owner, nil
}

// owned loads a record of the caller. Records of other owners are reported
// as missing.
func (s *Server) owned(ctx context.Context, owner, collection, id string) (recordstore.Record, error) {
	rec, err := s.store.Get(ctx, collection, id)
	if err != nil {
		return recordstore.Record{}, err
	}
	if o, _ := rec.Fields[recordstore.FieldOwnerID].(string); o != owner {
		return recordstore.Record{}, fmt.Errorf("%s/%s: %w", collection, id, common.ErrorNotFound)
	}
	return rec, nil
}

func (s *Server) Ping(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String("OK"), nil
}

func (s *Server) Get(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	collection, id, err := DecodeRef(req)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	rec, err := s.owned(ctx, owner, collection, id)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	resp, err := EncodeRecord(rec)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return resp, nil
}

func (s *Server) Insert(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	owner, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	collection, doc, err := DecodeInsert(req)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	doc[recordstore.FieldOwnerID] = owner
	id, err := s.store.Insert(ctx, collection, doc)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Debug(ctx, "inserted", "collection", collection, "id", id, "owner", owner)
	return wrapperspb.String(id), nil
}

func (s *Server) UpdateFields(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	owner, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	collection, id, fields, err := DecodeUpdate(req)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	if o, ok := fields[recordstore.FieldOwnerID]; ok && o != owner {
		return nil, status.Error(codes.PermissionDenied, "ownerId cannot be changed")
	}

	if _, err := s.owned(ctx, owner, collection, id); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	if err := s.store.UpdateFields(ctx, collection, id, fields); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) Delete(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	owner, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	collection, id, err := DecodeRef(req)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	rec, err := s.store.Get(ctx, collection, id)
	if errors.Is(err, common.ErrorNotFound) {
		return &emptypb.Empty{}, nil
	}
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	if o, _ := rec.Fields[recordstore.FieldOwnerID].(string); o != owner {
		return nil, status.Error(codes.NotFound, common.ErrorNotFound.Error())
	}

	if err := s.store.Delete(ctx, collection, id); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &emptypb.Empty{}, nil
}

// LiveQuery streams snapshots until the client goes away or the store ends
// the subscription; the latter is reported as the stream's final status.
func (s *Server) LiveQuery(req *structpb.Struct, stream grpc.ServerStream) error {
	ctx := stream.Context()
	owner, err := s.caller(ctx)
	if err != nil {
		return err
	}
	q, err := DecodeQuery(req)
	if err != nil {
		return s.toStatus(ctx, err)
	}
	if v, ok := q.FilterValue(recordstore.FieldOwnerID); !ok || v != owner {
		return status.Error(codes.PermissionDenied, "query must be scoped to the caller")
	}

	sub, err := s.store.LiveQuery(ctx, q)
	if err != nil {
		return s.toStatus(ctx, err)
	}
	defer sub.Close()

	log := s.logger.With("collection", q.Collection, "owner", owner)
	log.Debug(ctx, "live query opened")

	for {
		select {
		case <-ctx.Done():
			log.Debug(ctx, "live query closed by client")
			return nil
		case snap, ok := <-sub.Events():
			if !ok {
				return status.Error(codes.Unavailable, "subscription ended")
			}
			if snap.Err != nil {
				log.Warn(ctx, "live query lost", "error", snap.Err)
				return s.toStatus(ctx, snap.Err)
			}
			msg, err := EncodeSnapshot(snap.Records)
			if err != nil {
				return s.toStatus(ctx, err)
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}
