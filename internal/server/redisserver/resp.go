package redisserver

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/yndnr/meshkv/internal/core/engine"
)

// Protocol limits.
const (
	// MaxArrayLen limits the number of elements in a request array.
	// Variadic commands (MSET, SADD, ZADD, DEL) are bounded by it.
	MaxArrayLen = 64 * 1024

	// MaxBulkLen limits the size of a single bulk string (16MB).
	MaxBulkLen = 16 * 1024 * 1024

	// MaxInlineLen limits inline command line length (64KB).
	MaxInlineLen = 64 * 1024

	maxHeaderLen = 32
)

var (
	ErrProtocol      = errors.New("resp: protocol error")
	ErrLimitExceeded = errors.New("resp: limit exceeded")
)

// ReadCommand reads one request: a RESP array of bulk strings, or an inline
// command line. It returns nil for an empty request.
func ReadCommand(r *bufio.Reader) ([]string, error) {
	b, err := r.Peek(1)
	if err != nil {
		return nil, err
	}
	if b[0] == '*' {
		return readArrayCommand(r)
	}

	line, err := readLine(r, MaxInlineLen)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil
	}
	return fields, nil
}

func readArrayCommand(r *bufio.Reader) ([]string, error) {
	n, err := readHeader(r, '*')
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	if n > MaxArrayLen {
		return nil, fmt.Errorf("%w: array length %d exceeds limit %d", ErrLimitExceeded, n, MaxArrayLen)
	}

	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		arg, err := readBulkString(r)
		if err != nil {
			return nil, err
		}
		out = append(out, arg)
	}
	return out, nil
}

func readBulkString(r *bufio.Reader) (string, error) {
	n, err := readHeader(r, '$')
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", fmt.Errorf("%w: null bulk string in request", ErrProtocol)
	}
	if n > MaxBulkLen {
		return "", fmt.Errorf("%w: bulk length %d exceeds limit %d", ErrLimitExceeded, n, MaxBulkLen)
	}

	buf := make([]byte, n+2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	if buf[n] != '\r' || buf[n+1] != '\n' {
		return "", fmt.Errorf("%w: invalid bulk terminator", ErrProtocol)
	}
	return string(buf[:n]), nil
}

// readHeader reads a "<prefix><int>\r\n" line.
func readHeader(r *bufio.Reader, prefix byte) (int, error) {
	line, err := readLine(r, maxHeaderLen)
	if err != nil {
		return 0, err
	}
	if len(line) < 2 || line[0] != prefix {
		return 0, fmt.Errorf("%w: expected '%c', got %q", ErrProtocol, prefix, line)
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil {
		return 0, fmt.Errorf("%w: invalid length %q", ErrProtocol, line[1:])
	}
	return n, nil
}

func readLine(r *bufio.Reader, maxLen int) (string, error) {
	var buf []byte
	for {
		frag, err := r.ReadSlice('\n')
		buf = append(buf, frag...)
		if len(buf) > maxLen {
			return "", fmt.Errorf("%w: line length exceeds limit %d", ErrLimitExceeded, maxLen)
		}
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return "", err
	}

	if !bytes.HasSuffix(buf, []byte("\r\n")) {
		return "", fmt.Errorf("%w: missing CRLF", ErrProtocol)
	}
	return string(buf[:len(buf)-2]), nil
}

func WriteSimpleString(w *bufio.Writer, s string) error {
	_, err := w.WriteString("+" + s + "\r\n")
	return err
}

// WriteError writes an error reply. Line breaks in s are replaced so the
// reply stays a single line.
func WriteError(w *bufio.Writer, s string) error {
	s = strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
	_, err := w.WriteString("-" + s + "\r\n")
	return err
}

func WriteInteger(w *bufio.Writer, n int64) error {
	_, err := w.WriteString(":" + strconv.FormatInt(n, 10) + "\r\n")
	return err
}

func WriteNullBulk(w *bufio.Writer) error {
	_, err := w.WriteString("$-1\r\n")
	return err
}

func WriteNullArray(w *bufio.Writer) error {
	_, err := w.WriteString("*-1\r\n")
	return err
}

func WriteBulkString(w *bufio.Writer, s string) error {
	if _, err := w.WriteString("$" + strconv.Itoa(len(s)) + "\r\n"); err != nil {
		return err
	}
	if _, err := w.WriteString(s); err != nil {
		return err
	}
	_, err := w.WriteString("\r\n")
	return err
}

func WriteArrayHeader(w *bufio.Writer, n int) error {
	_, err := w.WriteString("*" + strconv.Itoa(n) + "\r\n")
	return err
}

// WriteValue encodes a command reply value. It accepts the value shapes
// produced by engine.Result plus int and error.
func WriteValue(w *bufio.Writer, v any) error {
	switch v := v.(type) {
	case nil:
		return WriteNullBulk(w)
	case engine.Status:
		return WriteSimpleString(w, string(v))
	case engine.NullArray:
		return WriteNullArray(w)
	case string:
		return WriteBulkString(w, v)
	case int64:
		return WriteInteger(w, v)
	case int:
		return WriteInteger(w, int64(v))
	case error:
		return WriteError(w, formatRedisError(v))
	case []string:
		if err := WriteArrayHeader(w, len(v)); err != nil {
			return err
		}
		for _, s := range v {
			if err := WriteBulkString(w, s); err != nil {
				return err
			}
		}
		return nil
	case []any:
		if err := WriteArrayHeader(w, len(v)); err != nil {
			return err
		}
		for _, e := range v {
			if err := WriteValue(w, e); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("resp: unsupported reply type %T", v)
}

// WriteResult writes a command result: its error or its value.
func WriteResult(w *bufio.Writer, res engine.Result) error {
	if res.Err != nil {
		return WriteError(w, formatRedisError(res.Err))
	}
	return WriteValue(w, res.Value)
}

func normalizeCommandName(name string) string {
	for i := 0; i < len(name); i++ {
		if c := name[i]; c >= 'a' && c <= 'z' {
			return strings.ToUpper(name)
		}
	}
	return name
}
