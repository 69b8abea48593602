/*
Package manager implements Stoplight's admission algorithm.

A tick does four things in order: reap finished jobs and reclaim their
resources, admit as many pending jobs as fit under remaining headroom,
flush the admission-candidate list, and drain output from every running
job. Admission walks the full pending queue only when something finished
this tick (resources may have freed up for previously rejected jobs);
otherwise it walks only the candidate list of jobs submitted since the
last tick, since utilization can only have grown and nothing else could
have newly started fitting.

Admission is strict FIFO: the walk stops the moment the oldest
not-yet-admitted job doesn't fit, rather than skipping ahead to admit a
smaller job behind it. This trades throughput for avoiding starvation of
large jobs under a steady stream of small ones.
*/
package manager
