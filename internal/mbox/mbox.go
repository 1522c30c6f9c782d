// Package mbox implements the fixed-key mailbox IPC mechanism of spec
// section 4.3: a classic monitor with two condition variables guarding a
// circular byte ring per slot, built directly on package sync2.
package mbox

import (
	"encoding/binary"
	"errors"

	"github.com/krihaa/minikernel/internal/kconfig"
	"github.com/krihaa/minikernel/internal/sync2"
)

const (
	MaxMbox        = kconfig.MaxMbox
	BufferSize     = kconfig.MboxBufferSize
	headerLen      = 2 // 16-bit little-endian payload length prefix
	maxPayload     = 0xFFFF
)

var (
	ErrBadKey     = errors.New("mbox: invalid key")
	ErrNotOpen    = errors.New("mbox: slot not open")
	ErrTooLarge   = errors.New("mbox: message larger than mailbox buffer")
	ErrBufferFull = errors.New("mbox: caller-supplied buffer too small")
)

type slot struct {
	lock      *sync2.Lock
	moreSpace *sync2.Condition
	moreData  *sync2.Condition

	usedCount    int
	messageCount int
	head, tail   int
	buffer       [BufferSize]byte
}

func freshSlot() *slot {
	return &slot{
		lock:      sync2.NewLock(),
		moreSpace: sync2.NewCondition(),
		moreData:  sync2.NewCondition(),
	}
}

var slots [MaxMbox]*slot

func init() {
	for i := range slots {
		slots[i] = freshSlot()
	}
}

// Reset reinitializes every mailbox slot. Intended for tests and boot.
func Reset() {
	for i := range slots {
		slots[i] = freshSlot()
	}
}

func lookup(key int) (*slot, error) {
	if key < 0 || key >= MaxMbox {
		return nil, ErrBadKey
	}
	return slots[key], nil
}

// Open binds the calling task to the mailbox identified by key, bounds
// checking the key. A task that repeatedly opens a key simply bumps the
// reference count.
func Open(key int) error {
	s, err := lookup(key)
	if err != nil {
		return err
	}
	s.lock.Acquire()
	s.usedCount++
	s.lock.Release()
	return nil
}

// Close releases the caller's reference to key. When the last reference
// drops, every waiter is woken (so they observe the slot has gone away)
// and the slot is reinitialized.
func Close(key int) error {
	s, err := lookup(key)
	if err != nil {
		return err
	}
	s.lock.Acquire()
	s.usedCount--
	if s.usedCount <= 0 {
		s.moreSpace.Broadcast()
		s.moreData.Broadcast()
		s.usedCount = 0
		s.messageCount = 0
		s.head = 0
		s.tail = 0
		s.lock.Release()
		return nil
	}
	s.lock.Release()
	return nil
}

func usedBytes(s *slot) int {
	if s.messageCount == 0 {
		return 0
	}
	if s.head == s.tail {
		return BufferSize
	}
	if s.head > s.tail {
		return s.head - s.tail
	}
	return BufferSize - s.tail + s.head
}

func freeBytes(s *slot) int {
	return BufferSize - usedBytes(s)
}

func recordLen(payload int) int {
	return headerLen + payload
}

func writeRing(s *slot, data []byte) {
	for _, b := range data {
		s.buffer[s.head] = b
		s.head = (s.head + 1) % BufferSize
	}
}

func readRing(s *slot, n int) []byte {
	out := make([]byte, n)
	pos := s.tail
	for i := 0; i < n; i++ {
		out[i] = s.buffer[pos]
		pos = (pos + 1) % BufferSize
	}
	return out
}

func peekRing(s *slot, offset, n int) []byte {
	out := make([]byte, n)
	pos := (s.tail + offset) % BufferSize
	for i := 0; i < n; i++ {
		out[i] = s.buffer[pos]
		pos = (pos + 1) % BufferSize
	}
	return out
}

// Send copies msg (header + payload, where the header is the 2-byte
// little-endian payload length) into the mailbox's ring, blocking while
// there is not enough free space.
func Send(key int, msg []byte) error {
	if len(msg) > BufferSize {
		return ErrTooLarge
	}
	s, err := lookup(key)
	if err != nil {
		return err
	}
	if len(msg) < headerLen {
		return ErrTooLarge
	}
	need := recordLen(len(msg) - headerLen)

	s.lock.Acquire()
	for freeBytes(s) < need {
		s.moreSpace.Wait(s.lock)
	}
	writeRing(s, msg)
	s.messageCount++
	s.moreData.Broadcast()
	s.lock.Release()
	return nil
}

// EncodeMessage builds a wire message from a payload: a 2-byte
// little-endian length header followed by the payload bytes.
func EncodeMessage(payload []byte) []byte {
	buf := make([]byte, headerLen+len(payload))
	binary.LittleEndian.PutUint16(buf, uint16(len(payload)))
	copy(buf[headerLen:], payload)
	return buf
}

// Recv blocks while the mailbox has no message, then returns the next
// message's payload (header stripped).
func Recv(key int) ([]byte, error) {
	s, err := lookup(key)
	if err != nil {
		return nil, err
	}

	s.lock.Acquire()
	for s.messageCount == 0 {
		s.moreData.Wait(s.lock)
	}

	header := peekRing(s, 0, headerLen)
	payloadLen := int(binary.LittleEndian.Uint16(header))
	total := headerLen + payloadLen
	record := readRing(s, total)
	s.tail = (s.tail + total) % BufferSize
	s.messageCount--
	s.moreSpace.Broadcast()
	s.lock.Release()

	return record[headerLen:], nil
}

// Stat reports the pending message count and free space without
// blocking, per the stat syscall named in the syscall surface.
func Stat(key int) (messageCount, space int, err error) {
	s, lookupErr := lookup(key)
	if lookupErr != nil {
		return 0, 0, lookupErr
	}
	s.lock.Acquire()
	messageCount = s.messageCount
	space = freeBytes(s)
	s.lock.Release()
	return messageCount, space, nil
}
