// Package gw2api is a minimal client for the official game REST API. It
// covers the read-only endpoints the pipeline needs: single items, bulk item
// pages, the full item-id listing, and wallet currencies.
//
// Requests are retried with jittered exponential backoff on transient
// failures (HTTP 429 and 5xx). Successful single-item and currency responses
// are written through a durable cache so repeat runs do not refetch.
package gw2api
