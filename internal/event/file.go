package event

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Format selects how a line is split into an outcome and predicates.
type Format int

const (
	// FormatPlain is "outcome pred1 pred2 ..." separated by whitespace.
	FormatPlain Format = iota

	// FormatComma is "pred1 pred2 ...,outcome": predicates before the last comma.
	FormatComma
)

// maxLineSize bounds a single event line.
const maxLineSize = 1 << 20

// ParseFormat converts a format name ("plain" or "comma") to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "", "plain", "space":
		return FormatPlain, nil
	case "comma", "csv":
		return FormatComma, nil
	default:
		return FormatPlain, fmt.Errorf("unknown event format %q (want plain or comma)", name)
	}
}

// Options configures a FileStream.
type Options struct {
	// Format of each line (default FormatPlain).
	Format Format

	// RealValues enables "pred=value" parsing. When false, tokens are taken verbatim.
	RealValues bool

	// Encoding is a WHATWG charset label such as "latin1" or "gbk"; empty means UTF-8.
	Encoding string

	// SkipInvalid logs and skips events that fail validation instead of returning the error.
	SkipInvalid bool

	// Logger receives warnings about recovered input problems.
	Logger *zap.Logger
}

// FileStream reads one event per line from a text source.
type FileStream struct {
	scanner *bufio.Scanner
	closer  io.Closer
	opts    Options
	line    int
	logger  *zap.Logger
}

// Open opens an event file.
func Open(path string, opts Options) (*FileStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event file: %w", err)
	}
	s, err := NewReaderStream(f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// NewReaderStream creates a stream that parses events from r.
func NewReaderStream(r io.Reader, opts Options) (*FileStream, error) {
	if opts.Encoding != "" {
		enc, err := htmlindex.Get(opts.Encoding)
		if err != nil {
			return nil, fmt.Errorf("unsupported encoding %q: %w", opts.Encoding, err)
		}
		r = transform.NewReader(r, enc.NewDecoder())
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &FileStream{
		scanner: scanner,
		opts:    opts,
		logger:  logger,
	}, nil
}

// Next returns the next event, skipping blank lines.
func (s *FileStream) Next() (Event, error) {
	for s.scanner.Scan() {
		s.line++
		text := strings.TrimSpace(s.scanner.Text())
		if text == "" {
			continue
		}

		ev, err := s.parse(text)
		if err != nil {
			if s.opts.SkipInvalid {
				s.logger.Warn("skipping invalid event", zap.Int("line", s.line), zap.Error(err))
				continue
			}
			return Event{}, err
		}
		return ev, nil
	}

	if err := s.scanner.Err(); err != nil {
		return Event{}, fmt.Errorf("failed to read events at line %d: %w", s.line, err)
	}
	return Event{}, io.EOF
}

// Line returns the number of lines consumed so far.
func (s *FileStream) Line() int {
	return s.line
}

// Close releases the underlying file, if any.
func (s *FileStream) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func (s *FileStream) parse(text string) (Event, error) {
	var outcome string
	var tokens []string

	switch s.opts.Format {
	case FormatComma:
		lastComma := strings.LastIndex(text, ",")
		if lastComma < 0 {
			return Event{}, fmt.Errorf("line %d: missing outcome separator ','", s.line)
		}
		outcome = strings.TrimSpace(text[lastComma+1:])
		tokens = strings.Fields(text[:lastComma])
	default:
		fields := strings.Fields(text)
		outcome = fields[0]
		tokens = fields[1:]
	}

	if outcome == "" {
		return Event{}, fmt.Errorf("line %d: empty outcome", s.line)
	}

	if !s.opts.RealValues {
		return Event{Outcome: outcome, Predicates: tokens}, nil
	}

	ev, err := parseValued(outcome, tokens, s.logger.With(zap.Int("line", s.line)))
	var negErr *NegativeValueError
	if errors.As(err, &negErr) {
		negErr.Line = s.line
	}
	return ev, err
}

// parseValued splits "name=value" tokens. A token whose value does not parse
// is kept whole as a binary predicate.
func parseValued(outcome string, tokens []string, logger *zap.Logger) (Event, error) {
	preds := make([]string, len(tokens))
	values := make([]float64, len(tokens))
	hasRealValue := false

	for i, tok := range tokens {
		preds[i] = tok
		values[i] = 1

		ei := strings.LastIndex(tok, "=")
		if ei <= 0 || ei+1 >= len(tok) {
			continue
		}

		v, err := strconv.ParseFloat(tok[ei+1:], 64)
		if err != nil {
			logger.Warn("malformed feature value, treating as binary",
				zap.String("feature", tok), zap.Error(err))
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			logger.Warn("non-finite feature value, treating as binary", zap.String("feature", tok))
			continue
		}
		if v < 0 {
			return Event{}, &NegativeValueError{Predicate: tok[:ei], Value: v}
		}

		preds[i] = tok[:ei]
		values[i] = v
		hasRealValue = true
	}

	if !hasRealValue {
		values = nil
	}
	return Event{Outcome: outcome, Predicates: preds, Values: values}, nil
}

// FormatLine renders an event in the plain line format read by FileStream.
func FormatLine(e Event) string {
	var sb strings.Builder
	sb.WriteString(e.Outcome)
	for i, p := range e.Predicates {
		sb.WriteByte(' ')
		sb.WriteString(p)
		if e.Values != nil {
			sb.WriteByte('=')
			sb.WriteString(strconv.FormatFloat(e.Values[i], 'g', -1, 64))
		}
	}
	return sb.String()
}

// NewCommaStream creates a stream over "pred1 pred2 ...,outcome" lines.
func NewCommaStream(r io.Reader, opts Options) (*FileStream, error) {
	opts.Format = FormatComma
	return NewReaderStream(r, opts)
}
