// Package idempotency deduplicates transaction submissions.
//
// A client that times out waiting for a receipt cannot tell whether its
// transaction was mined. Resubmitting the same signed envelope through an
// IdempotentSubmitter returns the original receipt instead of a nonce error:
//
//	n, _ := node.New(ctx, genesis)
//	submitter := idempotency.Wrap(n)
//	receipt, err := submitter.Submit(ctx, tx)
//
// Identical submissions that arrive while the first is still executing wait
// for it and share its receipt. Envelope rejections (node.ErrInvalidTx) are
// not cached, so a corrected retry is executed normally.
//
// Custom TTL:
//
//	submitter := idempotency.Wrap(n, idempotency.WithTTL(30*time.Minute))
//
// For several API replicas in front of one node, implement ReceiptStore with
// a shared backend and pass it with WithStore.
package idempotency
