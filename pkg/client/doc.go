/*
Package client is a small HTTP client for stoplightd's control plane,
used by cmd/stoplight. It speaks the same form-encoded POST /add_job and
JSON GET /status wire format the original Python client used, so the two
can be pointed at the same daemon interchangeably.

	c := client.New(client.DefaultAddr)
	if err := c.AddJob("/path/to/job"); err != nil { ... }
	status, err := c.Status()

There is no connection pooling beyond the stdlib http.Client default
transport and no retry logic: a CLI invocation makes one request and
reports success or failure as its exit code, matching the original
client's single urlopen() call per invocation.
*/
package client
