package coordinator

import (
	"context"

	"github.com/cuemby/warrenbench/internal/bus"
	"github.com/cuemby/warrenbench/pkg/benchtypes"
	"github.com/cuemby/warrenbench/pkg/failurecontainer"
	"github.com/cuemby/warrenbench/pkg/log"
	"github.com/cuemby/warrenbench/pkg/perfstats"
	"github.com/cuemby/warrenbench/pkg/security"
)

// InboundServer is the Coordinator's bus.BusServer half: the one RPC
// endpoint Agents dial to deliver FailureOperations, enroll for an mTLS
// certificate and, indirectly (relayed by an Agent's Connector), Worker
// performance samples. It is the receiving end of remoteclient.Connector's
// outbound calls, kept in this package since both sides agree on the same
// Broadcaster/Coordinator lifecycle.
type InboundServer struct {
	failures *failurecontainer.Container
	perf     *perfstats.Container
	enroller *security.Enroller
}

// NewInboundServer wires an InboundServer to the Coordinator's Failure
// Container and Performance Stats Container. enroller may be nil, in which
// case OpEnroll requests are rejected — used for tests and for any run that
// opts out of mTLS.
func NewInboundServer(failures *failurecontainer.Container, perf *perfstats.Container, enroller *security.Enroller) *InboundServer {
	return &InboundServer{failures: failures, perf: perf, enroller: enroller}
}

// Dispatch implements bus.BusServer.
func (s *InboundServer) Dispatch(ctx context.Context, in *bus.Envelope) (*bus.Envelope, error) {
	resp := benchtypes.NewResponse()

	if in.Operation == nil {
		resp.Set(in.Destination, benchtypes.ExceptionDuringOperationExecution)
		return in.NewResponseEnvelope(resp), nil
	}

	switch in.Operation.Kind {
	case benchtypes.OpFailure:
		if in.Operation.Failure != nil {
			s.failures.Add(*in.Operation.Failure)
		}
		resp.Set(in.Destination, benchtypes.Success)

	case benchtypes.OpReportPerfSample:
		if in.Operation.ReportPerfSample != nil && s.perf != nil {
			s.perf.Record(*in.Operation.ReportPerfSample)
		}
		resp.Set(in.Destination, benchtypes.Success)

	case benchtypes.OpLog:
		if in.Operation.Log != nil {
			log.Logger.Info().Str("from", in.Source).Msg(in.Operation.Log.Message)
		}
		resp.Set(in.Destination, benchtypes.Success)

	case benchtypes.OpEnroll:
		s.handleEnroll(in, &resp)

	default:
		log.Logger.Warn().Str("kind", string(in.Operation.Kind)).Msg("coordinator: unsupported inbound operation kind")
		resp.Set(in.Destination, benchtypes.ExceptionDuringOperationExecution)
	}

	return in.NewResponseEnvelope(resp), nil
}

// handleEnroll answers an OpEnroll request by issuing a node certificate,
// or marking the target failed if no Enroller is configured, the token is
// wrong, or issuance itself fails.
func (s *InboundServer) handleEnroll(in *bus.Envelope, resp *benchtypes.Response) {
	if s.enroller == nil || in.Operation.Enroll == nil {
		log.Logger.Warn().Str("from", in.Source).Msg("coordinator: enroll rejected, no enroller configured")
		resp.Set(in.Destination, benchtypes.ExceptionDuringOperationExecution)
		return
	}

	req := in.Operation.Enroll
	certPEM, keyPEM, caPEM, err := s.enroller.Issue(req.JoinToken, req.Role, req.ID, req.DNSNames, req.IPAddresses)
	if err != nil {
		log.Logger.Warn().Err(err).Str("role", req.Role).Str("id", req.ID).Msg("coordinator: enroll rejected")
		resp.Set(in.Destination, benchtypes.ExceptionDuringOperationExecution)
		return
	}

	resp.EnrollCert = &benchtypes.EnrollCertificate{CertPEM: certPEM, KeyPEM: keyPEM, CAPEM: caPEM}
	resp.Set(in.Destination, benchtypes.Success)
	log.Logger.Info().Str("role", req.Role).Str("id", req.ID).Msg("coordinator: enrolled")
}
