// Package utils provides shared low-level helpers for the provider adapters.
// It covers JSON POST round-trips ([DoPostSync]), streaming POSTs whose body
// is read through an [SSEScanner] ([DoPostStream]), resty-backed JSON GETs for
// model listing and credential checks ([GetJSON]), tolerant decoding of
// stream fragments ([DecodeFragment]) and string helpers for log output.
//
// Non-2xx responses are reported as [*StatusError] so adapters can map the
// status code into the shared error taxonomy.
package utils
