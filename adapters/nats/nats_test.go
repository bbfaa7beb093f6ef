package nats_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	natsink "github.com/next-trace/scg-dispatch/adapters/nats"
	cdsp "github.com/next-trace/scg-dispatch/contract/dispatch"
	derr "github.com/next-trace/scg-dispatch/contract/errors"
)

type fakeClient struct {
	subjects []string
	bodies   [][]byte
	headers  []map[string]string
	err      error
}

func (f *fakeClient) Publish(subject string, data []byte, headers map[string]string) error {
	if f.err != nil {
		return f.err
	}

	f.subjects = append(f.subjects, subject)
	f.bodies = append(f.bodies, data)
	f.headers = append(f.headers, headers)

	return nil
}

func record() cdsp.Record {
	return cdsp.Record{
		CorrelationID: "cid-1",
		Kind:          cdsp.KindCommand,
		MessageType:   "CreateWidget",
		Success:       true,
		ElapsedMs:     1.5,
		At:            time.Now(),
	}
}

func Test_Emit_SubjectBodyHeaders(t *testing.T) {
	fc := &fakeClient{}
	s := natsink.New(fc)

	if err := s.Emit(t.Context(), record()); err != nil {
		t.Fatalf("emit: %v", err)
	}

	if len(fc.subjects) != 1 || fc.subjects[0] != "dispatch.command.CreateWidget" {
		t.Fatalf("subjects: %v", fc.subjects)
	}

	var got cdsp.Record
	if err := json.Unmarshal(fc.bodies[0], &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.CorrelationID != "cid-1" || got.MessageType != "CreateWidget" || !got.Success {
		t.Fatalf("record: %+v", got)
	}

	if fc.headers[0]["correlation-id"] != "cid-1" {
		t.Fatalf("headers: %v", fc.headers[0])
	}
}

func Test_Emit_SubjectPrefixOverride(t *testing.T) {
	fc := &fakeClient{}
	s := natsink.New(fc)
	s.SubjectPrefix = "obs."

	_ = s.Emit(t.Context(), record())

	if fc.subjects[0] != "obs.command.CreateWidget" {
		t.Fatalf("subject: %s", fc.subjects[0])
	}
}

func Test_Emit_Errors(t *testing.T) {
	s := natsink.New(nil)
	if err := s.Emit(t.Context(), record()); !errors.Is(err, derr.ErrSinkFailed) {
		t.Fatalf("want ErrSinkFailed, got %v", err)
	}

	fc := &fakeClient{err: errors.New("conn reset")}
	s = natsink.New(fc)

	if err := s.Emit(t.Context(), record()); !errors.Is(err, derr.ErrSinkFailed) {
		t.Fatalf("want ErrSinkFailed, got %v", err)
	}

	// Context cancellation passes through untouched.
	fc = &fakeClient{err: context.Canceled}
	s = natsink.New(fc)

	if err := s.Emit(t.Context(), record()); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if err := natsink.New(&fakeClient{}).Emit(ctx, record()); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func Test_NewWithNATS_RequiresURL(t *testing.T) {
	_, _, err := natsink.NewWithNATS(natsink.Config{})
	if !errors.Is(err, derr.ErrSinkFailed) {
		t.Fatalf("want ErrSinkFailed, got %v", err)
	}
}
