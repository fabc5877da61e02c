// Package currency is a client for a Frankfurter-compatible exchange-rate
// API. It lists supported currencies and converts amounts at the latest or a
// historical rate. Failed requests come back as *RemoteError; callers must
// treat them as "no result" rather than as a zero amount.
package currency
