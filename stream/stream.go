// Package stream implements the STREAM construction for chunked
// authenticated encryption with ChaCha20-Poly1305.
//
// The plaintext is split into ChunkSize chunks, the last one possibly
// shorter. Each chunk is sealed under the same key with a nonce made of an
// 11-byte big-endian chunk counter followed by a flag byte that is 1 for the
// final chunk and 0 otherwise. Reordering, dropping or appending chunks
// changes some nonce and fails authentication; a stream cut at a chunk
// boundary lacks its flagged final chunk and fails as well.
//
// A key must never encrypt more than one stream.
package stream

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/dark-bio/crypto-fl/internal/fault"
)

const (
	// KeySize is the size of a stream key in bytes.
	KeySize = chacha20poly1305.KeySize

	// ChunkSize is the plaintext size of every chunk but the last.
	ChunkSize = 64 * 1024

	tagSize      = chacha20poly1305.Overhead
	encChunkSize = ChunkSize + tagSize
	lastFlag     = 0x01
)

// randReader is the random source used by GenerateKey.
// It defaults to nil (which uses crypto/rand) but can be overridden for testing.
var randReader io.Reader

// GenerateKey returns a fresh random stream key.
func GenerateKey() ([]byte, error) {
	r := randReader
	if r == nil {
		r = rand.Reader
	}
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fault.Wrap("stream.GenerateKey", fault.KindUsage, err, "read random key")
	}
	return key, nil
}

// EncryptedSize returns the ciphertext length of an n byte plaintext.
func EncryptedSize(n int64) int64 {
	chunks := (n + ChunkSize - 1) / ChunkSize
	if chunks == 0 {
		chunks = 1
	}
	return n + chunks*tagSize
}

func newAEAD(op string, key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fault.Usage(op, "invalid key size: got %d, want %d", len(key), KeySize)
	}
	a, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fault.Wrap(op, fault.KindUsage, err, "create cipher")
	}
	return a, nil
}

// nonce is the per-chunk counter and final flag.
type nonce [chacha20poly1305.NonceSize]byte

func (n *nonce) setLast() {
	n[len(n)-1] = lastFlag
}

// next advances the counter, failing once all 2^88 values are used.
func (n *nonce) next() bool {
	for i := len(n) - 2; i >= 0; i-- {
		n[i]++
		if n[i] != 0 {
			return true
		}
	}
	return false
}

// Encryptor is an io.WriteCloser that encrypts everything written to it.
// Close must be called to emit the final chunk. An Encryptor must not be
// used from multiple goroutines.
type Encryptor struct {
	a     cipher.AEAD
	dst   io.Writer
	nonce nonce

	buf    []byte // pending plaintext, at most ChunkSize
	out    []byte // ciphertext scratch
	err    error
	closed bool
}

// NewEncryptor returns an Encryptor writing ciphertext to dst.
func NewEncryptor(key []byte, dst io.Writer) (*Encryptor, error) {
	a, err := newAEAD("stream.NewEncryptor", key)
	if err != nil {
		return nil, err
	}
	return &Encryptor{
		a:   a,
		dst: dst,
		buf: make([]byte, 0, ChunkSize),
		out: make([]byte, 0, encChunkSize),
	}, nil
}

// Write buffers p and emits every chunk known not to be the last.
func (e *Encryptor) Write(p []byte) (int, error) {
	if e.closed {
		return 0, fault.Usage("stream.Write", "write after close")
	}
	if e.err != nil {
		return 0, e.err
	}
	total := 0
	for len(p) > 0 {
		// A full chunk is only flushed once more data arrives, so that
		// Close can still mark it as final.
		if len(e.buf) == ChunkSize {
			if err := e.flush(false); err != nil {
				e.err = err
				return total, err
			}
		}
		n := copy(e.buf[len(e.buf):ChunkSize], p)
		e.buf = e.buf[:len(e.buf)+n]
		p = p[n:]
		total += n
	}
	return total, nil
}

// Close emits the final chunk. It does not close the underlying writer.
func (e *Encryptor) Close() error {
	if e.closed {
		return e.err
	}
	e.closed = true
	if e.err != nil {
		return e.err
	}
	e.err = e.flush(true)
	clear(e.buf[:cap(e.buf)])
	return e.err
}

func (e *Encryptor) flush(last bool) error {
	if last {
		e.nonce.setLast()
	}
	e.out = e.a.Seal(e.out[:0], e.nonce[:], e.buf, nil)
	if _, err := e.dst.Write(e.out); err != nil {
		return fault.Wrap("stream.Write", fault.KindStream, err, "write chunk")
	}
	e.buf = e.buf[:0]
	if !last && !e.nonce.next() {
		return fault.New("stream.Write", fault.KindStream, "chunk counter overflow")
	}
	return nil
}

// Decryptor is an io.Reader that decrypts and authenticates a stream. No
// byte of a chunk is returned before the whole chunk authenticates, and
// io.EOF is only returned after the final chunk. A Decryptor must not be
// used from multiple goroutines.
type Decryptor struct {
	a     cipher.AEAD
	src   io.Reader
	nonce nonce

	// buf holds one encrypted chunk plus a single byte of lookahead that
	// tells a full final chunk apart from a full intermediate one.
	buf      []byte
	buffered int
	plain    []byte
	out      []byte // authenticated plaintext not yet returned
	done     bool
	err      error
}

// NewDecryptor returns a Decryptor reading ciphertext from src.
func NewDecryptor(key []byte, src io.Reader) (*Decryptor, error) {
	a, err := newAEAD("stream.NewDecryptor", key)
	if err != nil {
		return nil, err
	}
	return &Decryptor{
		a:     a,
		src:   src,
		buf:   make([]byte, encChunkSize+1),
		plain: make([]byte, 0, ChunkSize),
	}, nil
}

func (d *Decryptor) Read(p []byte) (int, error) {
	for len(d.out) == 0 {
		if d.err != nil {
			return 0, d.err
		}
		if d.done {
			return 0, io.EOF
		}
		if err := d.readChunk(); err != nil {
			d.err = err
			d.out = nil
			return 0, err
		}
	}
	n := copy(p, d.out)
	d.out = d.out[n:]
	return n, nil
}

func (d *Decryptor) readChunk() error {
	const op = "stream.Read"

	n, err := io.ReadFull(d.src, d.buf[d.buffered:])
	d.buffered += n

	more := true
	switch err {
	case nil:
	case io.EOF, io.ErrUnexpectedEOF:
		more = false
	default:
		return fault.Wrap(op, fault.KindStream, err, "read chunk")
	}

	size := encChunkSize
	if !more {
		size = d.buffered
	}
	switch {
	case size == 0:
		return fault.New(op, fault.KindStream, "missing final chunk")
	case size < tagSize:
		return fault.New(op, fault.KindStream, "truncated chunk")
	}

	first := d.nonce == nonce{}
	if !more {
		d.nonce.setLast()
	}
	out, err := d.a.Open(d.plain[:0], d.nonce[:], d.buf[:size], nil)
	if err != nil {
		return fault.New(op, fault.KindStream, "chunk authentication failed")
	}
	if !more && len(out) == 0 && !first {
		return fault.New(op, fault.KindStream, "empty final chunk")
	}

	if more {
		d.buf[0] = d.buf[encChunkSize]
		d.buffered = 1
		if !d.nonce.next() {
			return fault.New(op, fault.KindStream, "chunk counter overflow")
		}
	} else {
		d.buffered = 0
		d.done = true
	}
	d.out = out
	return nil
}

// Encrypt encrypts plaintext in one call.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(int(EncryptedSize(int64(len(plaintext)))))

	w, err := NewEncryptor(key, &buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decrypt decrypts and authenticates ciphertext in one call. On any error
// no plaintext is returned.
func Decrypt(key, ciphertext []byte) ([]byte, error) {
	r, err := NewDecryptor(key, bytes.NewReader(ciphertext))
	if err != nil {
		return nil, err
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		clear(plaintext)
		return nil, err
	}
	return plaintext, nil
}
