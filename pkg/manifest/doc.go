/*
Package manifest decodes a job's job.yaml.

Name, Description, and Container are required; a missing one is an
ErrConfiguration, never a panic, and Decode returns before touching the
filesystem further. Volumes and ResourceUsage are both optional — an absent
ResourceUsage section means a request of all zeros, matching the original
daemon's assumption that an unspecified resource is negligible.

Decode also returns a warning for every unrecognized key under
ResourceUsage instead of failing the whole job: a typo in an optional
tuning field shouldn't block submission.
*/
package manifest
