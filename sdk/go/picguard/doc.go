// Package picguard provides in-process proposal verification for Go agent
// frameworks. It checks tool invocations against the PIC/1.0 contract:
// high-impact actions must carry a proposal whose claims cite trusted
// provenance, the proposal must be bound to the tool actually invoked, and
// attached evidence can be verified against an Ed25519 key registry.
//
// Usage:
//
//	pg, err := picguard.New(picguard.WithPolicy("policy.yaml"))
//	wrapped := pg.Wrap("send_payment", sendPayment)
//	result, err := wrapped(ctx, args)
//
// The SDK links directly against internal packages for zero-subprocess
// overhead. External users import github.com/openpic/picguard/sdk/go/picguard.
// A RemoteClient is available for processes that talk to a running bridge
// instead of embedding the verifier.
package picguard
