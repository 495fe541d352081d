package mwixnet

import (
	"net/http"

	gorillarpc "github.com/gorilla/rpc"
	gorillajson "github.com/gorilla/rpc/json"
)

// SwapArgs is the JSON-RPC request body for the swap method: the onion the
// caller wants peeled and the signature proving knowledge of its commitment.
type SwapArgs struct {
	Onion  Onion        `json:"onion"`
	ComSig ComSignature `json:"comsig"`
}

// SwapReply is the JSON-RPC response body for the swap method. A successful
// admission carries no data; Ok exists only so the reply isn't an empty
// object, which some JSON-RPC clients reject.
type SwapReply struct {
	Ok bool `json:"ok"`
}

// swapRPCErrorCode maps a SwapErrorKind to a stable string code carried in
// the JSON-RPC error response, so clients can branch on the failure without
// parsing the human-readable message. Kept as a pure function so the
// mapping is unit-testable without a live HTTP round trip.
func swapRPCErrorCode(kind SwapErrorKind) string {
	switch kind {
	case InvalidPayloadLength:
		return "invalid_payload_length"
	case InvalidComSignature:
		return "invalid_com_signature"
	case CoinNotFound:
		return "coin_not_found"
	case PeelOnionFailure:
		return "peel_onion_failure"
	case FeeTooLow:
		return "fee_too_low"
	case MissingRangeproof:
		return "missing_rangeproof"
	case InvalidRangeproof:
		return "invalid_rangeproof"
	case AlreadySwapped:
		return "already_swapped"
	case EngineStoreError:
		return "store_error"
	default:
		return "unknown_error"
	}
}

// rpcError wraps a SwapError so its Error() string carries the stable code
// gorilla/rpc's JSON codec places in the response's error field.
type rpcError struct {
	code string
	err  error
}

func (e *rpcError) Error() string { return e.code + ": " + e.err.Error() }

func wrapSwapError(err error) error {
	if err == nil {
		return nil
	}
	if se, ok := err.(*SwapError); ok {
		return &rpcError{code: swapRPCErrorCode(se.Kind), err: se}
	}
	return &rpcError{code: "internal_error", err: err}
}

// SwapService exposes the engine's Swap operation over JSON-RPC, per
// the swap RPC contract.
type SwapService struct {
	server Server
	logger *Logger
}

// NewSwapService builds the RPC service around the given engine.
func NewSwapService(server Server) *SwapService {
	return &SwapService{server: server, logger: DefaultLogger().Module("rpc")}
}

// Swap is the JSON-RPC method handler for "SwapService.Swap".
func (s *SwapService) Swap(r *http.Request, args *SwapArgs, reply *SwapReply) error {
	if err := s.server.Swap(r.Context(), args.Onion, args.ComSig); err != nil {
		s.logger.Debug("swap rejected", "error", err)
		return wrapSwapError(err)
	}
	s.logger.Info("swap accepted", "commit", args.Onion.Commit)
	reply.Ok = true
	return nil
}

// NewRPCHandler builds the http.Handler mounting the swap JSON-RPC endpoint.
func NewRPCHandler(server Server) (http.Handler, error) {
	rpcServer := gorillarpc.NewServer()
	rpcServer.RegisterCodec(gorillajson.NewCodec(), "application/json")
	if err := rpcServer.RegisterService(NewSwapService(server), "SwapService"); err != nil {
		return nil, err
	}
	return rpcServer, nil
}
