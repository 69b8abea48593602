// Package mailbox implements a one-slot, last-writer-wins status channel
// that survives across separate OS processes: the scheduler process
// publishes a status snapshot, the control-plane process reads it to
// answer GET /status.
//
// It is a direct translation of the original daemon's Mailbox, which used
// multiprocessing.Array/Value/Lock. Go has no cross-process mutex in the
// standard library, so this package builds one out of golang.org/x/sys/unix
// advisory file locks (flock(2)) instead: a "sync" lock file serializes
// Set/Get/Peek against each other, and a "read" lock file is held open by
// Set until Get (or an explicit clear) releases it, which is exactly what
// WaitForRead blocks on.
//
// flock locks are scoped to the open file description, not the process —
// the holder and any waiter must use distinct file descriptors for this
// to work, even within a single process. Set keeps its own fd open across
// calls; WaitForRead always opens a fresh one.
package mailbox

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Capacity is the maximum payload size, matching the original's fixed
// 1024-byte shared-memory slot.
const Capacity = 1024

const lengthPrefixSize = 4 // uint32 little-endian

// Mailbox is safe for concurrent use by multiple goroutines in this
// process and by other processes that open the same directory.
type Mailbox struct {
	dataPath     string
	syncLockPath string
	readLockPath string

	dataFile *os.File

	// readLockFD is the fd Set() holds open between writing a value and
	// that value being cleared by Get(). nil means the box is empty.
	readLockFD *os.File
}

// Open creates (if necessary) and opens the mailbox's backing files under
// dir. Multiple processes may Open the same dir concurrently.
func Open(dir string) (*Mailbox, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating mailbox directory: %w", err)
	}

	m := &Mailbox{
		dataPath:     dir + "/mailbox.data",
		syncLockPath: dir + "/mailbox.sync.lock",
		readLockPath: dir + "/mailbox.read.lock",
	}

	dataFile, err := os.OpenFile(m.dataPath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening mailbox data file: %w", err)
	}
	if err := dataFile.Truncate(lengthPrefixSize + Capacity); err != nil {
		dataFile.Close()
		return nil, fmt.Errorf("sizing mailbox data file: %w", err)
	}
	m.dataFile = dataFile

	for _, p := range []string{m.syncLockPath, m.readLockPath} {
		f, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE, 0644)
		if err != nil {
			dataFile.Close()
			return nil, fmt.Errorf("creating lock file %s: %w", p, err)
		}
		f.Close()
	}

	return m, nil
}

// Close releases this Mailbox's own resources. It does not clear the box
// or disturb other processes still holding it open.
func (m *Mailbox) Close() error {
	if m.readLockFD != nil {
		unix.Flock(int(m.readLockFD.Fd()), unix.LOCK_UN)
		m.readLockFD.Close()
		m.readLockFD = nil
	}
	return m.dataFile.Close()
}

func (m *Mailbox) withSyncLock(fn func() error) error {
	f, err := os.OpenFile(m.syncLockPath, os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("opening sync lock: %w", err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("acquiring sync lock: %w", err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	return fn()
}

// Set writes data into the box, replacing whatever was there. It panics
// never; a payload larger than Capacity is a plain error, matching the
// original's ValueError.
func (m *Mailbox) Set(data []byte) error {
	if len(data) > Capacity {
		return fmt.Errorf("mailbox: payload of %d bytes exceeds capacity of %d", len(data), Capacity)
	}

	return m.withSyncLock(func() error {
		used, err := m.usedLocked()
		if err != nil {
			return err
		}
		if used || m.readLockFD != nil {
			m.clearBoxLocked()
		}

		if err := m.writePayloadLocked(data); err != nil {
			return err
		}

		return m.acquireReadLock()
	})
}

// Get returns and clears whatever is in the box, or nil if it's empty.
func (m *Mailbox) Get() ([]byte, error) {
	var out []byte
	err := m.withSyncLock(func() error {
		data, err := m.readPayloadLocked()
		if err != nil {
			return err
		}
		out = data
		m.clearBoxLocked()
		return nil
	})
	return out, err
}

// Peek returns whatever is in the box without clearing it or waking
// anyone blocked in WaitForRead.
func (m *Mailbox) Peek() ([]byte, error) {
	var out []byte
	err := m.withSyncLock(func() error {
		data, err := m.readPayloadLocked()
		if err != nil {
			return err
		}
		out = data
		return nil
	})
	return out, err
}

// WaitForRead blocks until the current value in the box has been
// consumed by Get, or returns immediately if the box is already empty.
func (m *Mailbox) WaitForRead() error {
	f, err := os.OpenFile(m.readLockPath, os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("opening read lock: %w", err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("waiting on read lock: %w", err)
	}
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}

// --- internal helpers; callers must already hold the sync lock ---

func (m *Mailbox) usedLocked() (bool, error) {
	var lenBuf [lengthPrefixSize]byte
	if _, err := m.dataFile.ReadAt(lenBuf[:], 0); err != nil {
		return false, fmt.Errorf("reading mailbox length prefix: %w", err)
	}
	return decodeLength(lenBuf) > 0, nil
}

func (m *Mailbox) clearBoxLocked() error {
	var zero [lengthPrefixSize]byte
	if _, err := m.dataFile.WriteAt(zero[:], 0); err != nil {
		return fmt.Errorf("clearing mailbox length prefix: %w", err)
	}

	if m.readLockFD != nil {
		unix.Flock(int(m.readLockFD.Fd()), unix.LOCK_UN)
		m.readLockFD.Close()
		m.readLockFD = nil
	}
	return nil
}

func (m *Mailbox) writePayloadLocked(data []byte) error {
	lenBuf := encodeLength(uint32(len(data)))
	if _, err := m.dataFile.WriteAt(lenBuf[:], 0); err != nil {
		return fmt.Errorf("writing mailbox length prefix: %w", err)
	}
	if len(data) > 0 {
		if _, err := m.dataFile.WriteAt(data, lengthPrefixSize); err != nil {
			return fmt.Errorf("writing mailbox payload: %w", err)
		}
	}
	return nil
}

func (m *Mailbox) readPayloadLocked() ([]byte, error) {
	used, err := m.usedLocked()
	if err != nil {
		return nil, err
	}
	if !used {
		return nil, nil
	}

	var lenBuf [lengthPrefixSize]byte
	if _, err := m.dataFile.ReadAt(lenBuf[:], 0); err != nil {
		return nil, fmt.Errorf("reading mailbox length prefix: %w", err)
	}
	n := decodeLength(lenBuf)

	buf := make([]byte, n)
	if n > 0 {
		if _, err := m.dataFile.ReadAt(buf, lengthPrefixSize); err != nil {
			return nil, fmt.Errorf("reading mailbox payload: %w", err)
		}
	}
	return buf, nil
}

// acquireReadLock opens a persistent fd on the read lock file and locks
// it exclusively. Set calls clearBoxLocked first whenever this Mailbox
// still holds a read lock, so it never blocks on its own earlier lock.
func (m *Mailbox) acquireReadLock() error {
	f, err := os.OpenFile(m.readLockPath, os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("opening read lock: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return fmt.Errorf("acquiring read lock: %w", err)
	}
	m.readLockFD = f
	return nil
}

func encodeLength(n uint32) [lengthPrefixSize]byte {
	return [lengthPrefixSize]byte{byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24)}
}

func decodeLength(b [lengthPrefixSize]byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
