package kernel

import "sync"

// GetStatus is the tri-state result of Stream.Get / Stream.Check.
type GetStatus int

const (
	// StatusSuccess means a byte was returned.
	StatusSuccess GetStatus = iota
	// StatusEmpty means no byte is currently buffered and the stream has not
	// (newly) reached end-of-stream.
	StatusEmpty
	// StatusEndOfStream is returned exactly once: the first Get/Check made
	// after the buffer drains while eof is set. Every call after that
	// returns StatusEmpty, even though eof remains set.
	StatusEndOfStream
)

// GetResult is the value returned by Stream.Get and Stream.Check.
type GetResult struct {
	Status GetStatus
	Byte   byte
}

// Stream is a single-producer/single-consumer buffered byte channel with an
// explicit end-of-stream flag. One writer goroutine and one reader
// goroutine may operate without external locking
// around individual Put/Get calls — the internal mutex only guards the
// buffer itself, not cross-call atomicity.
//
// refcount tracks the number of holders sharing this stream (e.g. a process
// and the pipeline neighbor it is wired to). A stream is implicitly closed
// — and read as EndOfStream by consumers probing HasData — when refcount
// drops to 1 and the buffer is empty, even if nobody ever called SetEOF.
type Stream struct {
	mu   sync.Mutex
	buf  []byte
	eof  bool
	done bool // StatusEndOfStream has already been reported once

	refcount int32

	// WriteMu is exposed for producers that need multi-byte atomicity when
	// several processes write to one shared stream (e.g. many children
	// sharing a parent's stdout). The runtime itself never acquires this —
	// callers that care about interleaving must take it around a run of
	// Put calls. It is independent of the internal buffer mutex, so taking
	// it does not block concurrent Put/Get from an uncoordinated writer.
	WriteMu sync.Mutex
}

// NewStream returns a Stream with an initial refcount of 1.
func NewStream() *Stream {
	return &Stream{refcount: 1}
}

// AddRef increments the holder count. Call whenever a new owner (a process,
// a pipeline neighbor) retains this stream.
func (s *Stream) AddRef() {
	s.mu.Lock()
	s.refcount++
	s.mu.Unlock()
}

// Release decrements the holder count. It does not close or free anything
// by itself — closing is inferred by readers via IsEffectivelyClosed.
func (s *Stream) Release() {
	s.mu.Lock()
	if s.refcount > 0 {
		s.refcount--
	}
	s.mu.Unlock()
}

// RefCount returns the current holder count.
func (s *Stream) RefCount() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refcount
}

// Put appends a byte to the buffer. Never fails. By contract, Put after
// SetEOF is ignored (a debug build might assert; this one silently drops).
func (s *Stream) Put(b byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eof {
		return
	}
	s.buf = append(s.buf, b)
}

// PutString appends every byte of str, under a single WriteMu-independent
// internal lock acquisition per byte (equivalent to calling Put in a loop,
// provided as a convenience for task bodies writing literal text).
func (s *Stream) PutString(str string) {
	for i := 0; i < len(str); i++ {
		s.Put(str[i])
	}
}

// Get consumes and returns the next byte, or reports Empty/EndOfStream.
func (s *Stream) Get() GetResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(true)
}

// Check behaves like Get but does not consume a byte on success; it peeks.
// EndOfStream/Empty reporting still follows the one-shot latch.
func (s *Stream) Check() GetResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(false)
}

func (s *Stream) getLocked(consume bool) GetResult {
	if len(s.buf) > 0 {
		b := s.buf[0]
		if consume {
			s.buf = s.buf[1:]
		}
		return GetResult{Status: StatusSuccess, Byte: b}
	}

	if s.eofLocked() && !s.done {
		s.done = true
		return GetResult{Status: StatusEndOfStream}
	}
	return GetResult{Status: StatusEmpty}
}

// eofLocked reports whether the stream should be treated as closed: either
// SetEOF was called explicitly, or only one holder remains (the implicit
// closure rule).
func (s *Stream) eofLocked() bool {
	return s.eof || s.refcount <= 1
}

// SetEOF marks the stream closed for writing. Idempotent.
func (s *Stream) SetEOF() {
	s.mu.Lock()
	s.eof = true
	s.mu.Unlock()
}

// IsEOFSet reports whether SetEOF was explicitly called (does not consider
// the implicit refcount==1 closure rule).
func (s *Stream) IsEOFSet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eof
}

// IsEffectivelyClosed reports the condition awaiters use to decide a stream
// will produce no more bytes: buffer empty AND (eof set OR refcount<=1).
func (s *Stream) IsEffectivelyClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf) == 0 && s.eofLocked()
}

// HasBufferedData reports whether at least one byte is currently queued.
func (s *Stream) HasBufferedData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf) > 0
}

// ReadLineResult is the outcome of Stream.ReadLine.
type ReadLineResult int

const (
	// ReadLineFound means a full line (newline consumed, stripped from the
	// returned bytes) was appended to buf.
	ReadLineFound ReadLineResult = iota
	// ReadLinePending means no newline has arrived yet and the stream is
	// still open; whatever was buffered was drained into buf regardless,
	// and the caller should poll again later.
	ReadLinePending
	// ReadLineEndOfStream means no newline will ever arrive: the stream
	// closed with a partial (possibly empty) line still in buf.
	ReadLineEndOfStream
)

// ReadLine drains currently-buffered bytes into buf up to and including a
// newline, which is stripped. It never blocks: if nothing is buffered yet
// (or no newline has appeared), it appends what it can and reports
// ReadLinePending, unless the stream is closed, in which case it reports
// ReadLineEndOfStream. Callers needing to block until a full line is
// available should precede this with the ReadLine awaiter, which calls
// this repeatedly across ticks.
func (s *Stream) ReadLine(buf *[]byte) ReadLineResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, b := range s.buf {
		if b == '\n' {
			*buf = append(*buf, s.buf[:i]...)
			s.buf = s.buf[i+1:]
			return ReadLineFound
		}
	}

	// No newline queued yet: drain what's there, caller will be invoked
	// again later if the stream awaiter deems it not yet ready.
	*buf = append(*buf, s.buf...)
	s.buf = s.buf[:0]

	if s.eofLocked() {
		return ReadLineEndOfStream
	}
	return ReadLinePending
}
