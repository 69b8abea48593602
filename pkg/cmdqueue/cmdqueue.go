// Package cmdqueue is the multi-producer, single-consumer channel the
// control-plane process uses to hand commands to the scheduler process,
// mirroring the original daemon's multiprocessing.Queue between its Flask
// server and its main loop.
//
// Only AddJob is implemented; CancelJob and Shutdown are reserved variants
// for a future control-plane operation and are defined but never
// produced. Like pkg/mailbox, cross-process delivery is built on
// golang.org/x/sys/unix file locks rather than a Go channel, since a
// channel can't cross an os/exec process boundary.
package cmdqueue

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// Kind tags a Command's variant.
type Kind string

const (
	KindAddJob    Kind = "add_job"
	KindCancelJob Kind = "cancel_job" // reserved; never produced today
	KindShutdown  Kind = "shutdown"   // reserved; never produced today
)

// Command is one tagged entry in the queue. Only the field matching Kind
// is meaningful.
type Command struct {
	Kind   Kind   `json:"kind"`
	JobDir string `json:"job_dir,omitempty"`
	JobID  string `json:"job_id,omitempty"`
}

// Queue is a durable, file-backed FIFO of Commands. Producers append
// under an exclusive lock; the single consumer drains everything written
// since its last Drain call.
type Queue struct {
	path     string
	lockPath string
}

// Open prepares (creating if necessary) a queue backed by files in dir.
func Open(dir string) (*Queue, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating cmdqueue directory: %w", err)
	}
	q := &Queue{path: dir + "/cmdqueue.jsonl", lockPath: dir + "/cmdqueue.lock"}

	f, err := os.OpenFile(q.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("creating cmdqueue file: %w", err)
	}
	f.Close()

	lf, err := os.OpenFile(q.lockPath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("creating cmdqueue lock file: %w", err)
	}
	lf.Close()

	return q, nil
}

// Put appends a Command to the queue. Safe for concurrent producers,
// including producers in other OS processes.
func (q *Queue) Put(cmd Command) error {
	return q.withLock(func() error {
		f, err := os.OpenFile(q.path, os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("opening cmdqueue for append: %w", err)
		}
		defer f.Close()

		line, err := json.Marshal(cmd)
		if err != nil {
			return fmt.Errorf("encoding command: %w", err)
		}
		line = append(line, '\n')

		if _, err := f.Write(line); err != nil {
			return fmt.Errorf("writing command: %w", err)
		}
		return nil
	})
}

// PutAddJob is a convenience wrapper for the one production variant in
// active use.
func (q *Queue) PutAddJob(jobDir string) error {
	return q.Put(Command{Kind: KindAddJob, JobDir: jobDir})
}

// Drain returns every Command appended since the last Drain and empties
// the backing file, matching the original loop's non-blocking
// queue.get(block=False) drained once per tick.
func (q *Queue) Drain() ([]Command, error) {
	var commands []Command

	err := q.withLock(func() error {
		f, err := os.OpenFile(q.path, os.O_RDWR, 0644)
		if err != nil {
			return fmt.Errorf("opening cmdqueue for read: %w", err)
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var cmd Command
			if err := json.Unmarshal(line, &cmd); err != nil {
				return fmt.Errorf("decoding queued command: %w", err)
			}
			commands = append(commands, cmd)
		}
		if err := scanner.Err(); err != nil && err != io.EOF {
			return fmt.Errorf("scanning cmdqueue: %w", err)
		}

		return f.Truncate(0)
	})

	return commands, err
}

func (q *Queue) withLock(fn func() error) error {
	f, err := os.OpenFile(q.lockPath, os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("opening cmdqueue lock: %w", err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("acquiring cmdqueue lock: %w", err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	return fn()
}
