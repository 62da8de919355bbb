// Package bus implements the single bidirectional message bus used both for
// Coordinator <-> Agent and for Agent <-> Worker traffic (spec §6). It is a
// gRPC service, but since this environment cannot run protoc there is no
// generated .pb.go: the service descriptor below is hand-written in the same
// shape protoc-gen-go-grpc would emit, and the wire messages are plain Go
// structs carried by a custom JSON codec (codec.go) instead of compiled
// protobuf types. Spec §6 allows this explicitly: "exact byte layout is
// implementation-defined but must round-trip."
package bus

import (
	"time"

	"github.com/cuemby/warrenbench/pkg/benchtypes"
)

// Envelope is the transport-level frame: a routing header plus either an
// Operation or a Response, matching spec §6's
// "(source, destination, tag, payload bytes)".
type Envelope struct {
	Source      string                 `json:"source"`
	Destination string                 `json:"destination"`
	Kind        benchtypes.OperationKind `json:"kind"`
	SentAt      time.Time              `json:"sentAt"`

	Operation *benchtypes.Operation `json:"operation,omitempty"`
	Response  *benchtypes.Response  `json:"response,omitempty"`
}

// NewOperationEnvelope wraps an outbound Operation.
func NewOperationEnvelope(source, destination string, op benchtypes.Operation) *Envelope {
	return &Envelope{
		Source:      source,
		Destination: destination,
		Kind:        op.Kind,
		SentAt:      time.Now(),
		Operation:   &op,
	}
}

// NewResponseEnvelope wraps an outbound Response answering the given
// Envelope.
func (e *Envelope) NewResponseEnvelope(resp benchtypes.Response) *Envelope {
	return &Envelope{
		Source:      e.Destination,
		Destination: e.Source,
		Kind:        e.Kind,
		SentAt:      time.Now(),
		Response:    &resp,
	}
}
