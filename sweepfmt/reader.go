// Copyright 2025 The Sweep Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sweepfmt

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"unicode"
	"unicode/utf8"
)

// A Reader reads measurements from a sweep log.
//
// Its API is modeled on bufio.Scanner. To minimize allocation, a
// Reader retains ownership of everything it creates; a caller should
// copy anything it needs to retain.
//
// A measurement begins on a line containing a "size=N" token. The
// "elapsed: V" and "rate: V" tokens for that size may appear on the
// same line or on lines that follow. The Reader emits the complete
// measurement once all three values have been seen. Unlike a bare
// token scan, this pairs each elapsed and rate with a size, so a log
// with stray or missing tokens produces *SyntaxError records instead
// of silently misaligned series.
//
// To construct a new Reader, either call NewReader, or call Reset on
// a zeroed Reader.
type Reader struct {
	s   *bufio.Scanner
	err error // current I/O error

	// q is the queue of records to return before processing the next
	// input line. qPos is the index of the current record in q. We
	// track the index explicitly rather than slicing q so that we can
	// reuse the q slice when we reach the end.
	q    []Record
	qPos int

	result Result

	// pend tracks which fields of the in-progress measurement have
	// been seen. 0 means no measurement is open. pendLine is the
	// line the open measurement started on, for error positions.
	pend     uint8
	pendLine int

	interns map[string]string
}

const (
	pendSize uint8 = 1 << iota
	pendElapsed
	pendRate

	pendAll = pendSize | pendElapsed | pendRate
)

// A SyntaxError represents a syntax error on a particular line of a
// sweep log.
type SyntaxError struct {
	FileName string
	Line     int
	Msg      string
}

func (e *SyntaxError) Pos() (fileName string, line int) {
	return e.FileName, e.Line
}

func (s *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: %s", s.FileName, s.Line, s.Msg)
}

var noResult = &SyntaxError{"", 0, "Reader.Scan has not been called"}

// NewReader constructs a reader to parse a sweep log from r.
// fileName is used in error messages; it is purely diagnostic.
func NewReader(r io.Reader, fileName string) *Reader {
	reader := new(Reader)
	reader.Reset(r, fileName)
	return reader
}

// newSyntaxError returns a *SyntaxError at the Reader's current position.
func (r *Reader) newSyntaxError(msg string) *SyntaxError {
	return &SyntaxError{r.result.fileName, r.result.line, msg}
}

// Reset resets the reader to begin reading from a new input.
// It also resets all accumulated label values.
//
// initLabels is an alternating sequence of keys and values.
// Reset will install these as the initial internal labels
// before any measurements are read from the input file.
func (r *Reader) Reset(ior io.Reader, fileName string, initLabels ...string) {
	r.s = bufio.NewScanner(ior)
	if fileName == "" {
		fileName = "<unknown>"
	}
	r.err = nil
	if r.interns == nil {
		r.interns = make(map[string]string)
	}

	// Wipe the queue in case the user hasn't consumed everything from
	// this file.
	r.qPos = 0
	r.q = r.q[:0]

	// Wipe the Result.
	r.result.Labels = r.result.Labels[:0]
	r.result.Size = 0
	r.result.Elapsed = 0
	r.result.Rate = 0
	for k := range r.result.labelPos {
		delete(r.result.labelPos, k)
	}
	r.result.fileName = fileName
	r.result.line = 0
	r.pend = 0
	r.pendLine = 0

	// Set up initial labels.
	if len(initLabels)%2 != 0 {
		panic("len(initLabels) must be a multiple of 2")
	}
	for i := 0; i < len(initLabels); i += 2 {
		r.result.SetLabel(initLabels[i], initLabels[i+1])
	}
}

var (
	sizeToken    = []byte("size=")
	elapsedToken = []byte("elapsed:")
	rateToken    = []byte("rate:")
)

// Scan advances the reader to the next record and reports whether a
// record was read.
// The caller should use the Result method to get the record.
// If Scan reaches EOF or an I/O error occurs, it returns false,
// in which case the caller should use the Err method to check for errors.
func (r *Reader) Scan() bool {
	if r.err != nil {
		return false
	}

	// If there's anything in the queue from an earlier line, just pop
	// the queue and return without consuming any more input.
	if r.qPos+1 < len(r.q) {
		r.qPos++
		return true
	}
	// Otherwise, we've drained the queue and need to parse more input
	// to refill it. Reset it to 0 so we can reuse the space.
	r.qPos = 0
	r.q = r.q[:0]

	// Process lines until we add something to the queue or hit EOF.
	for len(r.q) == 0 && r.s.Scan() {
		r.result.line++
		// We do everything in byte buffers to avoid allocation.
		line := r.s.Bytes()
		// Most lines are measurement lines, identified by their
		// metric tokens.
		size, hasSize := findSize(line)
		elapsed, hasElapsed := findValue(line, elapsedToken)
		rate, hasRate := findValue(line, rateToken)
		if hasSize || hasElapsed || hasRate {
			r.parseMeasurement(size, elapsed, rate)
			continue
		}
		if key, val, ok := parseKeyValueLine(line); ok && !reservedKey(key) {
			// Intern key, since there tend to be few
			// unique keys.
			keyStr := r.intern(key)
			if len(val) == 0 {
				r.result.deleteLabel(keyStr)
			} else {
				label := r.result.ensureLabel(keyStr, true)
				label.Value = append(label.Value[:0], val...)
			}
			continue
		}
		// Ignore the line.
	}

	if len(r.q) > 0 {
		// We queued something up to return.
		return true
	}

	// We hit EOF or an I/O error. Check for I/O errors.
	if err := r.s.Err(); err != nil {
		r.err = fmt.Errorf("%s:%d: %w", r.result.fileName, r.result.line, err)
		return false
	}
	// A measurement left open at EOF is a syntax error.
	if r.pend != 0 {
		r.q = append(r.q, r.incompleteError())
		r.pend = 0
		return true
	}
	r.err = nil
	return false
}

// parseMeasurement folds the metric tokens found on one line into the
// pending measurement, queuing the completed Result or any syntax
// errors on r.q. Each argument is nil if its token was not present.
func (r *Reader) parseMeasurement(size, elapsed, rate []byte) {
	if size != nil {
		if r.pend != 0 {
			r.q = append(r.q, r.incompleteError())
		}
		n, err := atoi(size)
		if err != nil {
			r.q = append(r.q, r.newSyntaxError("parsing size: "+err.Error()))
			r.pend = 0
			return
		}
		r.result.Size = n
		r.result.Elapsed = 0
		r.result.Rate = 0
		r.pend = pendSize
		r.pendLine = r.result.line
	}
	if elapsed != nil {
		if ok := r.setValue(&r.result.Elapsed, pendElapsed, "elapsed", elapsed); !ok {
			return
		}
	}
	if rate != nil {
		if ok := r.setValue(&r.result.Rate, pendRate, "rate", rate); !ok {
			return
		}
	}
	if r.pend == pendAll {
		r.q = append(r.q, &r.result)
		r.pend = 0
	}
}

// setValue parses val into *field and marks bit in the pending
// measurement. It queues a syntax error and abandons the pending
// measurement if the token is out of place or malformed, in which
// case it returns false.
func (r *Reader) setValue(field *float64, bit uint8, name string, val []byte) bool {
	if r.pend == 0 {
		r.q = append(r.q, r.newSyntaxError(name+" with no preceding size"))
		return false
	}
	if r.pend&bit != 0 {
		r.q = append(r.q, r.newSyntaxError("duplicate "+name+" in measurement"))
		r.pend = 0
		return false
	}
	v, err := atof(val)
	switch err := err.(type) {
	case nil:
		// ok
	case *strconv.NumError:
		r.q = append(r.q, r.newSyntaxError("parsing "+name+": "+err.Err.Error()))
		r.pend = 0
		return false
	default:
		r.q = append(r.q, r.newSyntaxError(err.Error()))
		r.pend = 0
		return false
	}
	*field = v
	r.pend |= bit
	return true
}

// incompleteError returns a *SyntaxError describing the missing
// fields of the pending measurement, positioned at the line the
// measurement started on.
func (r *Reader) incompleteError() *SyntaxError {
	var miss string
	switch {
	case r.pend&(pendElapsed|pendRate) == 0:
		miss = "elapsed and rate"
	case r.pend&pendElapsed == 0:
		miss = "elapsed"
	default:
		miss = "rate"
	}
	return &SyntaxError{r.result.fileName, r.pendLine, "incomplete measurement: missing " + miss}
}

// findSize finds the first "size=" token in line that is followed by
// at least one digit and returns the run of digits after it. A bare
// "size=" with no digits is not a token.
func findSize(line []byte) (val []byte, ok bool) {
	for off := 0; off < len(line); {
		i := bytes.Index(line[off:], sizeToken)
		if i < 0 {
			return nil, false
		}
		j := off + i + len(sizeToken)
		k := j
		for k < len(line) && '0' <= line[k] && line[k] <= '9' {
			k++
		}
		if k > j {
			return line[j:k], true
		}
		off = j
	}
	return nil, false
}

// findValue finds the first tok in line that is followed by
// whitespace and a number and returns the run of number characters
// after it. The run is maximal over digits, '.', 'e', 'E', '+', and
// '-'; it is not necessarily a well-formed number.
func findValue(line, tok []byte) (val []byte, ok bool) {
	for off := 0; off < len(line); {
		i := bytes.Index(line[off:], tok)
		if i < 0 {
			return nil, false
		}
		j := off + i + len(tok)
		k := j
		for k < len(line) && (line[k] == ' ' || line[k] == '\t') {
			k++
		}
		if k > j && k < len(line) && (line[k] == '.' || '0' <= line[k] && line[k] <= '9') {
			end := k
			for end < len(line) && isNumChar(line[end]) {
				end++
			}
			return line[k:end], true
		}
		off = j
	}
	return nil, false
}

func isNumChar(c byte) bool {
	return '0' <= c && c <= '9' || c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-'
}

// reservedKey reports whether key names a metric. Metric names never
// become labels, so a malformed metric token can't leak into the
// label set and collide with the metric itself.
func reservedKey(key []byte) bool {
	for _, name := range Metrics {
		if string(key) == name {
			return true
		}
	}
	return false
}

// parseKeyValueLine attempts to parse line as a key: val pair,
// with ok reporting whether the line could be parsed.
func parseKeyValueLine(line []byte) (key, val []byte, ok bool) {
	for i := 0; i < len(line); {
		r, n := utf8.DecodeRune(line[i:])
		// key begins with a lower case character ...
		if i == 0 && !unicode.IsLower(r) {
			return
		}
		// and contains no space characters nor upper case
		// characters.
		if unicode.IsSpace(r) || unicode.IsUpper(r) {
			return
		}
		if i > 0 && r == ':' {
			key, val = line[:i], line[i+1:]
			break
		}

		i += n
	}
	if len(key) == 0 {
		return
	}
	// Value can be omitted entirely, in which case the colon must
	// still be present, but need not be followed by a space.
	if len(val) == 0 {
		ok = true
		return
	}
	// One or more ASCII space or tab characters separate "key:"
	// from "value."
	for len(val) > 0 && (val[0] == ' ' || val[0] == '\t') {
		val = val[1:]
		ok = true
	}
	return
}

func (r *Reader) intern(x []byte) string {
	const maxIntern = 1024
	if s, ok := r.interns[string(x)]; ok {
		return s
	}
	if len(r.interns) >= maxIntern {
		// Evict a random item from the interns table.
		// Map iteration order is unspecified, but both
		// the gc and libgo runtimes both provide random
		// iteration order. The choice of item to evict doesn't
		// affect correctness, so we do the simple thing.
		for k := range r.interns {
			delete(r.interns, k)
			break
		}
	}
	s := string(x)
	r.interns[s] = s
	return s
}

// A Record is a single record read from a sweep log. It may be a
// *Result or a *SyntaxError.
type Record interface {
	// Pos returns the position of this record as a file name and a
	// 1-based line number within that file. If this record was not read
	// from a file, it returns "", 0.
	Pos() (fileName string, line int)
}

var _ Record = (*Result)(nil)
var _ Record = (*SyntaxError)(nil)

// Result returns the record that was just read by Scan. This is
// either a *Result or a *SyntaxError indicating a parse error.
// It may return more types in the future.
//
// Parse errors are non-fatal, so the caller can continue to call
// Scan.
//
// If this returns a *Result, the caller should not retain the Result,
// as it will be overwritten by the next call to Scan.
func (r *Reader) Result() Record {
	if r.qPos >= len(r.q) {
		// This should only happen if Scan has never been called.
		return noResult
	}
	return r.q[r.qPos]
}

// Err returns the first non-EOF I/O error that was encountered by the
// Reader.
func (r *Reader) Err() error {
	return r.err
}

// Parsing helpers.
//
// These are designed to leverage common fast paths. The integer fast
// path is especially important because sweep sizes and most rates are
// whole numbers.

// atoi parses a run of ASCII digits. The caller guarantees x is
// non-empty and contains only digits.
func atoi(x []byte) (int, error) {
	var val int64
	for _, ch := range x {
		if val > (math.MaxInt64-10)/10 {
			return 0, strconv.ErrRange
		}
		val = (val * 10) + int64(ch-'0')
	}
	return int(val), nil
}

// atof is a wrapper for strconv.ParseFloat that optimizes for
// numbers that are usually integers.
func atof(x []byte) (float64, error) {
	// Try parsing as an integer.
	var val int64
	for _, ch := range x {
		digit := ch - '0'
		if digit >= 10 {
			goto fail
		}
		if val > (math.MaxInt64-10)/10 {
			goto fail // avoid int64 overflow
		}
		val = (val * 10) + int64(digit)
	}
	return float64(val), nil

fail:
	// The fast path failed. Parse it as a float.
	return strconv.ParseFloat(string(x), 64)
}
