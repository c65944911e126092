// Package snipe tracks the pre-mutation state of edited and deleted messages
// for a bounded time window and replays them on demand.
//
// The module records every observed edit and delete as an immutable message
// state, keeps per-message histories ordered by change time, prunes expired
// entries on a background loop, and answers /snipe commands by recency index.
// Responses render either as an embed reply or through an impersonating
// channel webhook, selected by validated configuration.
package snipe
